// Package cache provides the bounded least-recently-used store that keeps hot
// log lines in memory.
//
// The cache sits in front of the line indexer: a hit avoids a byte-range read
// against the underlying source. Recency is tracked by the LRU list from
// hashicorp/golang-lru; this package adds a live-resizable capacity that may
// drop to zero, which the upstream type does not allow.
//
// Eviction order is strict recency. Inserting past capacity evicts exactly one
// entry (the least recently touched); shrinking the capacity evicts from the
// same end until the size fits.
//
// A Cache is single-consumer. The indexer serialises access behind its own
// mutex.
package cache
