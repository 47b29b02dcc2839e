package bytecache

import (
	"sync"

	"github.com/tilevista/go-deepzoom/tile"
)

// MapCache is an in-memory, process-lifetime byte cache.
type MapCache struct {
	m sync.Map
}

var _ Cache = (*MapCache)(nil)

func NewMapCache() *MapCache {
	return &MapCache{}
}

func (c *MapCache) Get(k tile.Key) ([]byte, bool, error) {
	v, ok := c.m.Load(k)
	if !ok {
		return nil, false, nil
	}
	return v.([]byte), true, nil
}

func (c *MapCache) Set(k tile.Key, data []byte) error {
	c.m.Store(k, data)
	return nil
}
