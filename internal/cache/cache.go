// Package cache provides the bounded, thread-safe store for compiled script
// artifacts, keyed by source fingerprint.
package cache

import (
	"sync"
	"time"
)

// DefaultMaxSize bounds the cache when no explicit size is configured.
const DefaultMaxSize = 128

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	TotalRequests int64
	Hits          int64
	Misses        int64
	CurrentSize   int
	MaxSize       int
}

// HitRate returns hits as a fraction of total requests, zero when idle.
func (s Stats) HitRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.TotalRequests)
}

// entry pairs a cached value with its access bookkeeping.
type entry[V any] struct {
	value        V
	lastAccessed time.Time
	seq          uint64
}

// Cache is a bounded least-recently-used store. Values are treated as
// immutable once added and may be shared by any number of concurrent
// readers; the cache itself is safe for unlimited concurrent use.
//
// Eviction follows least-recent access, not insertion order. A strictly
// monotonic sequence number backs the timestamp so that ordering stays exact
// on coarse clocks.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*entry[V]
	maxSize int
	nextSeq uint64
	hits    int64
	misses  int64
}

// New creates a cache bounded to maxSize entries. Non-positive sizes fall
// back to DefaultMaxSize.
func New[V any](maxSize int) *Cache[V] {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Cache[V]{
		entries: make(map[string]*entry[V]),
		maxSize: maxSize,
	}
}

// Get looks up a fingerprint. A hit refreshes the entry's last-access mark.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}

	c.hits++
	c.nextSeq++
	e.seq = c.nextSeq
	e.lastAccessed = time.Now()
	return e.value, true
}

// Add inserts or replaces the value for a fingerprint. Replacement leaves
// the entry count unchanged. After a fresh insert the cache evicts the
// globally least-recently-used entry until the size bound holds again; the
// loop makes the bound hold even if earlier operations overshot it.
func (c *Cache[V]) Add(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSeq++
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.seq = c.nextSeq
		e.lastAccessed = time.Now()
		return
	}

	c.entries[key] = &entry[V]{
		value:        value,
		lastAccessed: time.Now(),
		seq:          c.nextSeq,
	}

	for len(c.entries) > c.maxSize {
		c.evictOldestLocked()
	}
}

// evictOldestLocked removes the entry with the smallest access sequence.
// Evicting from an empty map is a no-op, which keeps repeated eviction
// attempts idempotent.
func (c *Cache[V]) evictOldestLocked() {
	var (
		oldestKey string
		oldestSeq uint64
		found     bool
	)
	for key, e := range c.entries {
		if !found || e.seq < oldestSeq {
			oldestKey = key
			oldestSeq = e.seq
			found = true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}

// Remove drops a single fingerprint if present.
func (c *Cache[V]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear empties the cache. Hit and miss counters are preserved.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry[V])
}

// Len returns the current entry count.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		TotalRequests: c.hits + c.misses,
		Hits:          c.hits,
		Misses:        c.misses,
		CurrentSize:   len(c.entries),
		MaxSize:       c.maxSize,
	}
}
