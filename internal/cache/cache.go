package cache

import (
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Cache is a bounded key/value store that evicts the least recently used
// entry once it holds more than Capacity entries. It is not safe for
// concurrent use; callers that share a Cache must serialise access.
type Cache[K comparable, V any] struct {
	lru      *simplelru.LRU[K, V]
	capacity int
}

// New returns a Cache holding at most capacity entries. A capacity of zero
// or less yields a cache that stores nothing until SetCapacity raises it.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity < 0 {
		capacity = 0
	}
	// simplelru rejects non-positive sizes; a zero capacity is enforced by
	// Set instead.
	lru, err := simplelru.NewLRU[K, V](max(capacity, 1), nil)
	if err != nil {
		panic(err)
	}
	return &Cache[K, V]{lru: lru, capacity: capacity}
}

// Get returns the value stored for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.lru.Get(key)
}

// Peek returns the value stored for key without touching its recency.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	return c.lru.Peek(key)
}

// Set inserts or replaces the value for key and marks it most recently used.
// When the insert pushes the cache past capacity, the least recently used
// entry is evicted.
func (c *Cache[K, V]) Set(key K, value V) {
	if c.capacity == 0 {
		return
	}
	c.lru.Add(key, value)
}

// Remove drops key from the cache. It reports whether the key was present.
func (c *Cache[K, V]) Remove(key K) bool {
	return c.lru.Remove(key)
}

// SetCapacity resizes the cache, evicting least recently used entries until
// Len() <= n. A capacity of zero clears the cache.
func (c *Cache[K, V]) SetCapacity(n int) {
	if n < 0 {
		n = 0
	}
	c.capacity = n
	if n == 0 {
		c.lru.Purge()
		return
	}
	c.lru.Resize(n)
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	c.lru.Purge()
}

// Len returns the number of stored entries.
func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}

// Capacity returns the current maximum number of entries.
func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}

// Keys returns the stored keys from least to most recently used.
func (c *Cache[K, V]) Keys() []K {
	return c.lru.Keys()
}
