// Package cache provides the in-process caches used by the retrieval core:
// an LRU cache with optional TTL, deterministic key fingerprints, and a
// manager that exposes per-cache stats and wholesale clearing.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU implements a bounded LRU cache with optional TTL.
// A non-positive TTL means entries never expire; they are only evicted by
// capacity pressure. Values are immutable once written: concurrent writers
// racing to fill the same key are expected to write identical values, so
// last-writer-wins is safe.
type LRU[K comparable, V any] struct {
	entries  map[K]*entry[K, V]
	order    *list.List
	capacity int
	ttl      time.Duration
	mu       sync.Mutex
}

type entry[K comparable, V any] struct {
	expiresAt time.Time // zero when the cache has no TTL
	element   *list.Element
	key       K
	value     V
}

// NewLRU creates a new LRU cache. ttl <= 0 disables expiry.
func NewLRU[K comparable, V any](capacity int, ttl time.Duration) *LRU[K, V] {
	if capacity <= 0 {
		capacity = 1000
	}
	return &LRU[K, V]{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[K]*entry[K, V]),
		order:    list.New(),
	}
}

// Get retrieves a value from the cache.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}

	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.removeEntry(e)
		var zero V
		return zero, false
	}

	c.order.MoveToFront(e.element)
	return e.value, true
}

// Set stores a value, overwriting any existing entry for the key and
// evicting the least recently used entries once capacity is reached.
func (c *LRU[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = time.Now().Add(c.ttl)
	}

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(e.element)
		return
	}

	for len(c.entries) >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeEntry(oldest.Value.(*entry[K, V]))
	}

	e := &entry[K, V]{key: key, value: value, expiresAt: expiresAt}
	e.element = c.order.PushFront(e)
	c.entries[key] = e
}

// Remove removes a specific entry from the cache.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.removeEntry(e)
		return true
	}
	return false
}

// Len returns the number of entries currently in the cache, including
// expired entries that have not been touched since expiring.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the maximum number of entries.
func (c *LRU[K, V]) Capacity() int {
	return c.capacity
}

// TTL returns the entry time-to-live; zero means entries never expire.
func (c *LRU[K, V]) TTL() time.Duration {
	if c.ttl > 0 {
		return c.ttl
	}
	return 0
}

// Clear removes all entries and returns the number of entries removed.
func (c *LRU[K, V]) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cleared := len(c.entries)
	c.entries = make(map[K]*entry[K, V])
	c.order.Init()
	return cleared
}

// CleanupExpired removes all expired entries and returns how many were
// removed. A no-op for caches without a TTL.
func (c *LRU[K, V]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ttl <= 0 {
		return 0
	}

	var stale []*entry[K, V]
	now := time.Now()
	for _, e := range c.entries {
		if now.After(e.expiresAt) {
			stale = append(stale, e)
		}
	}
	for _, e := range stale {
		c.removeEntry(e)
	}
	return len(stale)
}

// removeEntry removes an entry. Must be called with the lock held.
func (c *LRU[K, V]) removeEntry(e *entry[K, V]) {
	c.order.Remove(e.element)
	delete(c.entries, e.key)
}
