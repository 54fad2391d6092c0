// Package source defines the narrow read interface the rest of Lantern uses
// to reach log content, plus the implementations that satisfy it.
//
// # Overview
//
// A Source exposes three operations: Stat (size and modification time),
// ReadRange (bytes in a half-open range) and Name. Nothing above this package
// knows whether the bytes come from memory, a local file, an HTTP server or
// an object store.
//
// # Implementations
//
//   - Memory: in-memory buffer with Append/Truncate/Replace for tests and stdin
//   - File: local path, reopened per call so rotation is observed
//   - HTTP: HEAD for size and Last-Modified, GET with a Range header for reads
//   - S3: minio-go StatObject and ranged GetObject
//
// Open picks an implementation from a location string.
//
// # Change notification
//
// Watch uses fsnotify to turn filesystem events into coalesced wake-ups. The
// change monitor still classifies by polling Stat; a wake-up only makes the
// next poll happen sooner.
//
// # Error Handling
//
// I/O failures are returned as *ReadError carrying the source name and the
// requested range. Callers must not interpret a ReadError as truncation or as
// an empty result. Ranges with start < 0 or end < start fail with
// ErrInvalidRange before any I/O.
package source
