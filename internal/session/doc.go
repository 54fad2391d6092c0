// Package session ties one open log source to its line index, format
// registry and change monitor.
//
// A Session is the owned state object for a single viewer: it holds the
// active source, the Indexer built over it, the detected format id and the
// monitor that keeps the index current. Opening a new source cancels any
// build still running for the previous one; a superseded build is discarded
// and never becomes visible.
//
// Change events are applied as follows:
//
//	Grew              extend the index over the new byte range
//	Truncated         invalidate and rebuild, then re-detect the format
//	NoOp              nothing
//	SameSizeModified  nothing (in-place edits are not detected)
//	failed poll       recorded in the status store, index untouched
//
// Every state change is published to a state.Store for the UI.
package session
