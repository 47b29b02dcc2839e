// Package bytecache provides byte-level caches for compressed tile data,
// keyed by pyramid tile coordinates. A byte cache sits between the tile
// source and its backing store so repeat views skip the filesystem or
// network entirely.
package bytecache

import "github.com/tilevista/go-deepzoom/tile"

// Cache stores raw tile bytes. Implementations must be safe for
// concurrent use by multiple fetch workers.
type Cache interface {
	Get(key tile.Key) ([]byte, bool, error)
	Set(key tile.Key, data []byte) error
}
