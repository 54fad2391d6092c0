// Package monitor detects growth and truncation of a log source by polling
// its size and modification time.
//
// Classify is the pure core: it compares two snapshots and returns one of
// NoOp, Truncated, Grew (with the byte range to re-read) or SameSizeModified.
// Modification time is checked first, so an unchanged time is a NoOp
// regardless of size. SameSizeModified means an in-place edit may have
// happened; consumers treat it as a NoOp because detecting such edits would
// require re-reading the file.
//
// Monitor runs Classify on a timer in a single goroutine, so two polls never
// race on the stored snapshot. An optional wake channel (for example from
// source.Watch) triggers an immediate poll through the same goroutine. A
// failed stat is reported as an Event with Err set, leaves the snapshot
// unchanged and delays the next poll with capped exponential backoff.
package monitor
