package cache

import (
	"sync"
	"time"
)

// DefaultMemoryTTL is how long in-process generation results stay valid.
const DefaultMemoryTTL = time.Hour

type memoryEntry[V any] struct {
	value     V
	timestamp time.Time
}

// MemoryCache is an in-process TTL cache. Expired entries are ignored on
// read and replaced on write; there is no size bound.
type MemoryCache[V any] struct {
	mu      sync.Mutex
	entries map[string]memoryEntry[V]
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates a cache with the given TTL (DefaultMemoryTTL when <= 0).
func NewMemoryCache[V any](ttl time.Duration) *MemoryCache[V] {
	if ttl <= 0 {
		ttl = DefaultMemoryTTL
	}
	return &MemoryCache[V]{
		entries: make(map[string]memoryEntry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock injects the time source.
func (c *MemoryCache[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Get returns the value for key if present and younger than the TTL.
func (c *MemoryCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	entry, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().Sub(entry.timestamp) >= c.ttl {
		return zero, false
	}
	return entry.value, true
}

// Set stores value under key with a fresh timestamp.
func (c *MemoryCache[V]) Set(key string, value V) {
	c.mu.Lock()
	c.entries[key] = memoryEntry[V]{value: value, timestamp: c.now()}
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *MemoryCache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry[V])
	c.mu.Unlock()
}
