// Package lineindex maps the byte layout of a log source to line numbers
// without loading its content.
//
// # Overview
//
// An Indexer is bound to exactly one source.Source. Build scans the source
// once in bounded chunks and records a Span (line number, start offset, end
// offset) for every line. Later reads slice the source using those spans, so
// memory use is proportional to the number of lines, not their length.
//
// # Line Terminators
//
// Lines end with "\n" or "\r\n". A span's End excludes the terminator. A
// "\r\n" pair that straddles a chunk boundary is recognised because the
// scanner remembers whether the previous chunk ended in '\r'. A final line
// with no terminator is still indexed; an empty source yields zero lines.
//
// # Lifecycle
//
//	NotBuilt ──Build──> Built ──Extend──> Built (spans appended)
//	   ^                  │
//	   └────Invalidate────┘
//
// TotalLines and ReadLine return ErrNotIndexed until the first successful
// Build. A failed or cancelled Build leaves the previous index untouched;
// partially scanned spans are never visible to readers.
//
// Extend scans only the bytes past the covered offset. When the last indexed
// line had no terminator its span is re-scanned, since appended bytes may
// continue it.
//
// # Caching
//
// ReadLine consults an LRU cache (package cache) before touching the source.
// ReadLines reads the minimal contiguous byte range once and splits it
// client-side; it bypasses the cache.
//
// # Concurrency
//
// All methods are safe for concurrent use. Build and Extend are serialised
// with each other. The index mutex is never held across source I/O; reads
// record the index generation and discard their result if the index changed
// underneath them, retrying a bounded number of times before returning
// ErrIndexChanged.
package lineindex
