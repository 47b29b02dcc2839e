// Package deepzoom renders arbitrarily large raster images as
// multi-resolution tile pyramids: it picks a resolution level for the
// current viewport, enumerates the covering tiles, and streams them into a
// bounded cache without ever blocking the render path on I/O.
//
// A renderer drives one Image per pyramid: VisibleTiles for the key set,
// EnsureCoverage to schedule the misses, then Tile per key for whatever is
// already resident, tolerating partial coverage until fetches land.
package deepzoom

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tilevista/go-deepzoom/bytecache"
	"github.com/tilevista/go-deepzoom/cache"
	"github.com/tilevista/go-deepzoom/dzi"
	"github.com/tilevista/go-deepzoom/fetch"
	"github.com/tilevista/go-deepzoom/source"
	"github.com/tilevista/go-deepzoom/tile"
)

// Params configures Open. Zero values fall back to the package defaults.
type Params struct {
	// CacheLimit bounds the number of decoded tiles kept resident.
	CacheLimit int

	// Workers bounds concurrent background fetches.
	Workers int

	// DrainTimeout stops the idle fetch dispatcher; see fetch.Params.
	DrainTimeout time.Duration

	// LevelThreshold biases resolution-level selection; see
	// Descriptor.ChooseLevel.
	LevelThreshold float64

	Logger     *zap.Logger
	HTTPClient *http.Client

	// ByteCache, when set, caches compressed tile bytes in front of the
	// backing store.
	ByteCache bytecache.Cache
}

// Image is one opened pyramid with its own cache and fetch scheduler; no
// state is shared between pyramids.
type Image struct {
	src  string
	desc *dzi.Descriptor

	cache     *cache.Cache
	scheduler *fetch.Scheduler
	logger    *zap.Logger

	mu        sync.Mutex
	threshold float64
}

// Open reads and parses the descriptor at src (local path or http(s) URL)
// and prepares the tile pipeline. Malformed metadata fails here with no
// partial result; once Open succeeds there is no fatal error path — fetch
// failures degrade to tiles that are not shown yet.
func Open(ctx context.Context, src string, params Params) (*Image, error) {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	raw, err := source.ReadDescriptor(ctx, src, params.HTTPClient)
	if err != nil {
		return nil, err
	}
	desc, err := dzi.Parse(raw)
	if err != nil {
		return nil, err
	}

	var fetcher tile.Fetcher = source.New(src, desc.Format, params.HTTPClient)
	if params.ByteCache != nil {
		fetcher = source.WithCache(fetcher, params.ByteCache, logger)
	}

	c := cache.New(params.CacheLimit)
	scheduler := fetch.NewScheduler(desc, fetcher, c, fetch.Params{
		Workers:      params.Workers,
		DrainTimeout: params.DrainTimeout,
		Logger:       logger,
	})

	logger.Info("pyramid opened",
		zap.String("source", src),
		zap.Int("width", desc.Width), zap.Int("height", desc.Height),
		zap.Int("tile_size", desc.TileSize), zap.Int("max_level", desc.MaxLevel()))

	return &Image{
		src:       src,
		desc:      desc,
		cache:     c,
		scheduler: scheduler,
		logger:    logger,
		threshold: params.LevelThreshold,
	}, nil
}

// Descriptor returns the parsed pyramid metadata. Read-only.
func (img *Image) Descriptor() *dzi.Descriptor {
	return img.desc
}

// Tile returns whatever is resident for key; absent tiles are simply not
// drawn this pass and arrive after EnsureCoverage completes them.
func (img *Image) Tile(key tile.Key) (*tile.Tile, bool) {
	t, ok := img.cache.Get(key)
	if !ok || !t.Available() {
		return nil, false
	}
	return t, true
}

// EnsureCoverage schedules background fetches for the keys missing from
// the cache and returns the number queued. It never blocks on I/O.
func (img *Image) EnsureCoverage(keys []tile.Key) int {
	return img.scheduler.Schedule(keys)
}

// FetchNow fetches one tile synchronously, bypassing the background queue.
// For callers that can afford to block: exports, thumbnails, tests.
func (img *Image) FetchNow(ctx context.Context, key tile.Key) (*tile.Tile, error) {
	return img.scheduler.FetchSync(ctx, key)
}

// SetCacheLimit updates the resident-tile budget and re-enforces it
// immediately.
func (img *Image) SetCacheLimit(n int) {
	img.cache.SetCapacity(n)
}

// SetLevelThreshold adjusts level selection for subsequent VisibleTiles
// calls; positive values switch to finer levels earlier.
func (img *Image) SetLevelThreshold(t float64) {
	img.mu.Lock()
	img.threshold = t
	img.mu.Unlock()
}

func (img *Image) levelThreshold() float64 {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.threshold
}

// Close stops background fetching. Cached tiles remain readable.
func (img *Image) Close() error {
	return img.scheduler.Close()
}
