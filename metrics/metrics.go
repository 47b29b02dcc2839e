// Package metrics exposes prometheus collectors for the tile pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepzoom_tile_cache_hits_total",
		Help: "Total number of tile cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepzoom_tile_cache_misses_total",
		Help: "Total number of tile cache misses",
	})

	CacheInserts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepzoom_tile_cache_inserts_total",
		Help: "Total number of tile cache insert operations",
	})

	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepzoom_tile_cache_evictions_total",
		Help: "Total number of tiles evicted from the cache",
	})

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "deepzoom_tile_fetch_duration_seconds",
		Help:    "Duration of tile fetch and decode in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})

	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepzoom_tile_fetch_errors_total",
		Help: "Total number of failed tile fetches by failure kind",
	}, []string{"kind"})
)
