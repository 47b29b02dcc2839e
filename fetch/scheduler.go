// Package fetch schedules background tile fetches so the render path never
// blocks on I/O: callers enqueue the tiles a viewport needs and read
// whatever the cache already holds.
package fetch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tilevista/go-deepzoom/cache"
	"github.com/tilevista/go-deepzoom/codec"
	"github.com/tilevista/go-deepzoom/dzi"
	"github.com/tilevista/go-deepzoom/metrics"
	"github.com/tilevista/go-deepzoom/tile"
)

const (
	DefaultWorkers      = 8
	DefaultDrainTimeout = 10 * time.Second
)

// Params configures a Scheduler. Zero values fall back to the defaults.
type Params struct {
	// Workers bounds the number of concurrent fetch+decode tasks.
	Workers int

	// DrainTimeout stops the idle dispatcher once no new work arrives
	// within it; the next Schedule call restarts the dispatcher.
	DrainTimeout time.Duration

	Logger *zap.Logger
}

// Scheduler dispatches bounded-concurrency fetch+decode tasks that
// populate the shared tile cache.
//
// Each Schedule call is one generation: keys queued by the previous
// generation but not yet dispatched are dropped, while tasks already
// running are left to finish (their results land in the cache and are
// simply unused). The scheduler holds no lock during I/O or decode; the
// cache serializes concurrent inserts.
type Scheduler struct {
	desc    *dzi.Descriptor
	fetcher tile.Fetcher
	cache   *cache.Cache
	logger  *zap.Logger
	workers int
	drain   time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	queue    []tile.Key
	inflight map[tile.Key]struct{}
	running  bool

	wake chan struct{}
}

// NewScheduler creates a scheduler writing decoded tiles into c.
func NewScheduler(desc *dzi.Descriptor, fetcher tile.Fetcher, c *cache.Cache, params Params) *Scheduler {
	if params.Workers <= 0 {
		params.Workers = DefaultWorkers
	}
	if params.DrainTimeout <= 0 {
		params.DrainTimeout = DefaultDrainTimeout
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		desc:     desc,
		fetcher:  fetcher,
		cache:    c,
		logger:   params.Logger,
		workers:  params.Workers,
		drain:    params.DrainTimeout,
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[tile.Key]struct{}),
		wake:     make(chan struct{}, 1),
	}
}

// Schedule starts a new fetch generation for keys and returns the number
// of fetches queued. Keys already cached or already in flight are skipped;
// queued keys from the previous generation that are not re-requested are
// dropped. Schedule never blocks on I/O.
func (s *Scheduler) Schedule(keys []tile.Key) int {
	seen := make(map[tile.Key]struct{}, len(keys))
	needed := make([]tile.Key, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		if s.cache.Contains(k) {
			continue
		}
		needed = append(needed, k)
	}

	s.mu.Lock()
	queue := needed[:0]
	for _, k := range needed {
		if _, ok := s.inflight[k]; ok {
			continue
		}
		queue = append(queue, k)
	}
	s.queue = queue
	n := len(queue)
	start := !s.running && n > 0
	if start {
		s.running = true
	}
	s.mu.Unlock()

	if start {
		go s.run()
	} else if n > 0 {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
	return n
}

// run is the dispatcher: it pulls queued keys, fans them out to at most
// s.workers concurrent tasks, and exits once the queue stays empty for the
// drain timeout. A worker slot is acquired before popping a key, so a key
// counts as dispatched only when a task can actually start; everything
// still queued remains subject to supersession.
func (s *Scheduler) run() {
	s.logger.Debug("fetch dispatcher started")

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	timer := time.NewTimer(s.drain)
	defer timer.Stop()

	for {
		if !s.acquire(sem) {
			break
		}
		k, ok := s.await(timer)
		if !ok {
			<-sem
			break
		}
		wg.Add(1)
		go func(k tile.Key) {
			defer wg.Done()
			defer func() { <-sem }()
			s.fetchOne(k)
		}(k)
	}

	wg.Wait()
	s.logger.Debug("fetch dispatcher stopped")
}

func (s *Scheduler) acquire(sem chan struct{}) bool {
	select {
	case sem <- struct{}{}:
		return true
	case <-s.ctx.Done():
		s.shutdown()
		return false
	}
}

// await pops the next queued key, waiting for new work if the queue is
// empty. It returns false once the queue stays empty for the drain timeout
// or the scheduler is closed.
func (s *Scheduler) await(timer *time.Timer) (tile.Key, bool) {
	for {
		if k, ok := s.next(); ok {
			resetTimer(timer, s.drain)
			return k, true
		}
		select {
		case <-s.wake:
		case <-timer.C:
			if s.idleStop() {
				return tile.Key{}, false
			}
			timer.Reset(s.drain)
		case <-s.ctx.Done():
			s.shutdown()
			return tile.Key{}, false
		}
	}
}

func (s *Scheduler) next() (tile.Key, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return tile.Key{}, false
	}
	k := s.queue[0]
	s.queue = s.queue[1:]
	s.inflight[k] = struct{}{}
	return k, true
}

// idleStop marks the dispatcher stopped unless new work raced in; both
// sides check under the same mutex, so Schedule either sees running and
// wakes us, or sees stopped and starts a fresh dispatcher.
func (s *Scheduler) idleStop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) > 0 {
		return false
	}
	s.running = false
	return true
}

func (s *Scheduler) shutdown() {
	s.mu.Lock()
	s.running = false
	s.queue = nil
	s.mu.Unlock()
}

// fetchOne retrieves and decodes a single tile. Errors leave the tile
// absent: a later generation that re-requests the key fetches it fresh,
// and one failing tile never aborts its siblings.
func (s *Scheduler) fetchOne(k tile.Key) {
	defer s.release(k)

	if s.cache.Contains(k) {
		return
	}

	start := time.Now()
	data, err := s.fetcher.FetchTile(s.ctx, k)
	if err != nil {
		metrics.FetchErrors.WithLabelValues("fetch").Inc()
		s.logger.Warn("tile fetch failed",
			zap.Int("level", k.Level), zap.Int("col", k.Col), zap.Int("row", k.Row),
			zap.Error(err))
		return
	}

	payload, err := codec.Decode(data)
	if err != nil {
		metrics.FetchErrors.WithLabelValues("decode").Inc()
		s.logger.Warn("tile decode failed",
			zap.Int("level", k.Level), zap.Int("col", k.Col), zap.Int("row", k.Row),
			zap.Error(err))
		return
	}

	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	s.cache.Insert(&tile.Tile{Key: k, Rect: s.desc.TileRect(k), Data: payload})
}

func (s *Scheduler) release(k tile.Key) {
	s.mu.Lock()
	delete(s.inflight, k)
	s.mu.Unlock()
}

// FetchSync fetches and decodes key on the calling goroutine, bypassing
// the queue. The result is cached like any worker completion.
func (s *Scheduler) FetchSync(ctx context.Context, k tile.Key) (*tile.Tile, error) {
	if t, ok := s.cache.Get(k); ok && t.Available() {
		return t, nil
	}

	start := time.Now()
	data, err := s.fetcher.FetchTile(ctx, k)
	if err != nil {
		metrics.FetchErrors.WithLabelValues("fetch").Inc()
		return nil, err
	}
	payload, err := codec.Decode(data)
	if err != nil {
		metrics.FetchErrors.WithLabelValues("decode").Inc()
		return nil, err
	}
	metrics.FetchDuration.Observe(time.Since(start).Seconds())

	t := &tile.Tile{Key: k, Rect: s.desc.TileRect(k), Data: payload}
	s.cache.Insert(t)
	return t, nil
}

// Close cancels outstanding work. Running tasks stop at their next
// suspension point; results that still complete are cached harmlessly.
func (s *Scheduler) Close() error {
	s.cancel()
	return nil
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
