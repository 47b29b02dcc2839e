// Package cache provides the bounded in-memory store for decoded tiles.
package cache

import (
	"sync"

	"github.com/tilevista/go-deepzoom/metrics"
	"github.com/tilevista/go-deepzoom/tile"
)

// DefaultCapacity is the tile budget used when no limit is configured.
const DefaultCapacity = 128

// Cache maps tile keys to decoded tiles and evicts in insertion order once
// the capacity is exceeded. Eviction drops the payload reference before
// removing the entry so large decoded buffers are released promptly.
// All methods are safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[tile.Key]*tile.Tile
	order    []tile.Key
}

// New creates a cache holding at most capacity tiles. Non-positive values
// fall back to DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[tile.Key]*tile.Tile),
	}
}

// Get returns the resident tile for key. It never triggers a fetch.
func (c *Cache) Get(key tile.Key) (*tile.Tile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.entries[key]
	if ok {
		metrics.CacheHits.Inc()
	} else {
		metrics.CacheMisses.Inc()
	}
	return t, ok
}

// Contains reports whether key is resident with a decoded payload, without
// touching the hit/miss counters. Used by the scheduler to partition
// requests.
func (c *Cache) Contains(key tile.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.entries[key]
	return ok && t.Available()
}

// Insert adds t and evicts the oldest entries while over capacity.
// Re-inserting a resident key is a no-op: occupancy and insertion order
// are unchanged.
func (c *Cache) Insert(t *tile.Tile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[t.Key]; ok {
		return
	}
	c.entries[t.Key] = t
	c.order = append(c.order, t.Key)
	metrics.CacheInserts.Inc()
	c.evictLocked()
}

// SetCapacity updates the limit and immediately re-enforces it.
func (c *Cache) SetCapacity(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n < 0 {
		n = 0
	}
	c.capacity = n
	c.evictLocked()
}

// Len returns the number of resident tiles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) evictLocked() {
	for len(c.entries) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]

		// Drop the payload reference first so the pixel buffer is
		// collectable even if a caller still holds the Tile.
		if t, ok := c.entries[oldest]; ok {
			t.Data = nil
			delete(c.entries, oldest)
			metrics.CacheEvictions.Inc()
		}
	}
}
