package source

import (
	"context"

	"go.uber.org/zap"

	"github.com/tilevista/go-deepzoom/bytecache"
	"github.com/tilevista/go-deepzoom/tile"
)

// Cached wraps a fetcher with a byte-level cache: hits skip the backing
// store, fetched bytes are written back. Cache failures are logged and
// never fail the fetch itself.
type Cached struct {
	next   tile.Fetcher
	cache  bytecache.Cache
	logger *zap.Logger
}

var _ tile.Fetcher = (*Cached)(nil)

func WithCache(next tile.Fetcher, c bytecache.Cache, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, cache: c, logger: logger}
}

func (s *Cached) FetchTile(ctx context.Context, key tile.Key) ([]byte, error) {
	data, ok, err := s.cache.Get(key)
	if err != nil {
		s.logger.Warn("byte cache read failed",
			zap.Int("level", key.Level), zap.Int("col", key.Col), zap.Int("row", key.Row),
			zap.Error(err))
	}
	if ok {
		return data, nil
	}

	data, err = s.next.FetchTile(ctx, key)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(key, data); err != nil {
		s.logger.Warn("byte cache write failed",
			zap.Int("level", key.Level), zap.Int("col", key.Col), zap.Int("row", key.Row),
			zap.Error(err))
	}
	return data, nil
}
