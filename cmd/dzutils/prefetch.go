package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	deepzoom "github.com/tilevista/go-deepzoom"
	"github.com/tilevista/go-deepzoom/bytecache"
	"github.com/tilevista/go-deepzoom/config"
	"github.com/tilevista/go-deepzoom/logging"
	"github.com/tilevista/go-deepzoom/source"
	"github.com/tilevista/go-deepzoom/tile"
)

// prefetchCmd warms a persistent byte cache with the tiles covering a view
// rectangle, so a viewer opening the same region later reads locally.
type prefetchCmd struct {
	sourcePath string
	x, y, w, h float64
	displayW   int
	displayH   int
}

func (c *prefetchCmd) Name() string     { return "prefetch" }
func (c *prefetchCmd) Synopsis() string { return "warm the tile byte cache for a view rectangle" }
func (c *prefetchCmd) Usage() string {
	return "dzutils prefetch -i <dzi path or url> [-x -y -w -h view rect] [-dw -dh display size]\n"
}
func (c *prefetchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.sourcePath, "i", "", "Descriptor path or URL")
	f.Float64Var(&c.x, "x", 0, "View rectangle origin X (image pixels)")
	f.Float64Var(&c.y, "y", 0, "View rectangle origin Y (image pixels)")
	f.Float64Var(&c.w, "w", 0, "View rectangle width (0 = full image)")
	f.Float64Var(&c.h, "h", 0, "View rectangle height (0 = full image)")
	f.IntVar(&c.displayW, "dw", 0, "Display width in pixels (0 = full resolution)")
	f.IntVar(&c.displayH, "dh", 0, "Display height in pixels (0 = full resolution)")
}

func (c *prefetchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.sourcePath == "" {
		log.Println("missing -i descriptor path")
		return subcommands.ExitUsageError
	}

	cfg, err := config.New()
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	logger := logging.New(cfg.Logger.Level)
	defer logger.Sync()

	bc, closeCache, err := openByteCache(cfg, logger)
	if err != nil {
		log.Println(err)
		return subcommands.ExitUsageError
	}
	defer closeCache()

	client := &http.Client{Timeout: cfg.HTTPTimeout}
	img, err := deepzoom.Open(ctx, c.sourcePath, deepzoom.Params{
		CacheLimit:     cfg.CacheLimit,
		Workers:        cfg.Workers,
		DrainTimeout:   cfg.DrainTimeout,
		LevelThreshold: cfg.LevelThreshold,
		Logger:         logger,
		HTTPClient:     client,
	})
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer img.Close()

	desc := img.Descriptor()
	w, h := c.w, c.h
	if w <= 0 {
		w = float64(desc.Width)
	}
	if h <= 0 {
		h = float64(desc.Height)
	}
	keys := img.VisibleTiles(c.x, c.y, w, h, c.displayW, c.displayH)

	fetcher := source.WithCache(source.New(c.sourcePath, desc.Format, client), bc, logger)
	bar := progressbar.NewOptions(len(keys), progressbar.OptionShowIts(), progressbar.OptionShowCount())

	sem := make(chan struct{}, cfg.Workers)
	var wg sync.WaitGroup
	for _, k := range keys {
		sem <- struct{}{}
		wg.Add(1)
		go func(k tile.Key) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := fetcher.FetchTile(ctx, k); err != nil {
				logger.Warn("prefetch failed",
					zap.Int("level", k.Level), zap.Int("col", k.Col), zap.Int("row", k.Row),
					zap.Error(err))
			}
			bar.Add(1)
		}(k)
	}
	wg.Wait()

	bar.Finish()
	fmt.Println()

	return subcommands.ExitSuccess
}

func openByteCache(cfg *config.Config, logger *zap.Logger) (bytecache.Cache, func() error, error) {
	noop := func() error { return nil }

	switch cfg.ByteCache.Backend {
	case "dir":
		if cfg.ByteCache.Dir == "" {
			return nil, nil, fmt.Errorf("dir byte cache requires DEEPZOOM_BYTE_CACHE_DIR")
		}
		return bytecache.NewDirCache(cfg.ByteCache.Dir), noop, nil
	case "sqlite":
		if cfg.ByteCache.SQLitePath == "" {
			return nil, nil, fmt.Errorf("sqlite byte cache requires DEEPZOOM_BYTE_CACHE_SQLITE_PATH")
		}
		c, err := bytecache.NewSQLiteCache(cfg.ByteCache.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	case "redis":
		c, err := bytecache.NewRedisCache(bytecache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	case "":
		return nil, nil, fmt.Errorf("no byte cache backend configured (set DEEPZOOM_BYTE_CACHE_BACKEND)")
	default:
		return nil, nil, fmt.Errorf("unknown byte cache backend %q", cfg.ByteCache.Backend)
	}
}
