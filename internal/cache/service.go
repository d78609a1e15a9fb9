package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"stockdbv1/internal/frame"
	"stockdbv1/internal/metrics"
	"stockdbv1/internal/model"

	"github.com/go-co-op/gocron"
)

// Tier names accepted by Clear.
const (
	TierMemory     = "memory"
	TierPersistent = "persistent"
	TierAll        = "all"
)

const (
	defaultMemoryTTL     = time.Hour
	defaultPersistTTL    = 24 * time.Hour
	defaultSweepInterval = 10 * time.Minute
)

// Options configures the cache service. Zero values select defaults.
type Options struct {
	MemoryTTL     time.Duration
	PersistTTL    time.Duration
	SweepInterval time.Duration
	MaxItems      int              // memory tier item cap
	Metrics       *metrics.Metrics // optional
}

// Stats counts cache traffic per tier.
type Stats struct {
	MemoryHits       int64 `json:"memory_hits"`
	MemoryMisses     int64 `json:"memory_misses"`
	PersistentHits   int64 `json:"persistent_hits"`
	PersistentMisses int64 `json:"persistent_misses"`
	Corrupted        int64 `json:"corrupted"`
	MemoryItems      int   `json:"memory_items"`
}

// Service is the two-tier indicator cache: an in-process memory tier in
// front of an optional persistent PayloadStore. Reads fall through
// memory to the persistent tier and promote hits; writes go through to
// both. Persistent-tier failures and corrupt payloads degrade to misses
// so caching never breaks a calculation.
type Service struct {
	mem     *Memory
	persist model.PayloadStore // nil disables the persistent tier

	memTTL     time.Duration
	persistTTL time.Duration
	sweepEvery time.Duration

	sched *gocron.Scheduler
	prom  *metrics.Metrics

	mu    sync.Mutex
	stats Stats
}

// New creates a cache service. persist may be nil for a memory-only cache.
func New(persist model.PayloadStore, opts Options) *Service {
	if opts.MemoryTTL <= 0 {
		opts.MemoryTTL = defaultMemoryTTL
	}
	if opts.PersistTTL <= 0 {
		opts.PersistTTL = defaultPersistTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	return &Service{
		mem:        NewMemory(opts.MaxItems),
		persist:    persist,
		memTTL:     opts.MemoryTTL,
		persistTTL: opts.PersistTTL,
		sweepEvery: opts.SweepInterval,
		prom:       opts.Metrics,
	}
}

// Get returns the cached frame for key, checking memory first and then
// the persistent tier. Persistent hits are promoted into memory.
func (s *Service) Get(ctx context.Context, key string) (*frame.Frame, bool) {
	now := time.Now()

	if f, _, ok := s.mem.Get(key, now); ok {
		s.count(func(st *Stats) { st.MemoryHits++ })
		s.countOp(TierMemory, "hit")
		return f, true
	}
	s.count(func(st *Stats) { st.MemoryMisses++ })
	s.countOp(TierMemory, "miss")

	if s.persist == nil {
		return nil, false
	}

	payload, ok, err := s.persist.Get(ctx, key)
	if err != nil {
		log.Printf("[cache] persistent get error for %s: %v", shortKey(key), err)
		return nil, false
	}
	if !ok {
		s.count(func(st *Stats) { st.PersistentMisses++ })
		s.countOp(TierPersistent, "miss")
		return nil, false
	}

	var f frame.Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		// Corrupt payload: drop it so the next read recomputes cleanly.
		s.count(func(st *Stats) { st.Corrupted++ })
		if s.prom != nil {
			s.prom.CacheCorrupt.Inc()
		}
		log.Printf("[cache] %v for %s: %v", model.ErrCacheCorruption, shortKey(key), err)
		if derr := s.persist.Delete(ctx, key); derr != nil {
			log.Printf("[cache] delete corrupt entry %s: %v", shortKey(key), derr)
		}
		s.count(func(st *Stats) { st.PersistentMisses++ })
		s.countOp(TierPersistent, "miss")
		return nil, false
	}
	s.count(func(st *Stats) { st.PersistentHits++ })
	s.countOp(TierPersistent, "hit")

	s.mem.Set(model.CacheMeta{
		Key:       key,
		Size:      len(payload),
		CreatedAt: now,
		ExpiresAt: now.Add(s.memTTL),
	}, &f)
	return &f, true
}

// Put writes a frame through to both tiers. A persistent-tier failure is
// logged and not returned: the memory entry is already in place.
func (s *Service) Put(ctx context.Context, symbol, name, key string, f *frame.Frame) {
	now := time.Now()

	s.mem.Set(model.CacheMeta{
		Key:       key,
		Symbol:    symbol,
		Indicator: name,
		CreatedAt: now,
		ExpiresAt: now.Add(s.memTTL),
	}, f)

	if s.persist == nil {
		return
	}
	payload, err := json.Marshal(f)
	if err != nil {
		log.Printf("[cache] marshal %s/%s: %v", symbol, name, err)
		return
	}
	meta := model.CacheMeta{
		Key:       key,
		Symbol:    symbol,
		Indicator: name,
		Size:      len(payload),
		CreatedAt: now,
		ExpiresAt: now.Add(s.persistTTL),
	}
	if err := s.persist.Set(ctx, meta, payload); err != nil {
		log.Printf("[cache] persistent set %s/%s: %v", symbol, name, err)
	}
}

// Invalidate removes one entry from both tiers.
func (s *Service) Invalidate(ctx context.Context, key string) error {
	s.mem.Delete(key)
	if s.persist == nil {
		return nil
	}
	return s.persist.Delete(ctx, key)
}

// Clear empties the named tier ("memory", "persistent", or "all").
func (s *Service) Clear(ctx context.Context, tier string) error {
	switch tier {
	case TierMemory:
		s.mem.Clear()
		return nil
	case TierPersistent:
		if s.persist == nil {
			return nil
		}
		return s.persist.Clear(ctx)
	case TierAll:
		s.mem.Clear()
		if s.persist == nil {
			return nil
		}
		return s.persist.Clear(ctx)
	}
	return fmt.Errorf("unknown cache tier %q", tier)
}

// Sweep purges expired entries from both tiers and returns the total removed.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	now := time.Now()
	n := s.mem.Purge(now)
	if s.persist != nil {
		pn, err := s.persist.Purge(ctx, now)
		if err != nil {
			return n, fmt.Errorf("persistent purge: %w", err)
		}
		n += pn
	}
	return n, nil
}

// StartSweeper schedules the background expiry sweep.
func (s *Service) StartSweeper() error {
	if s.sched != nil {
		return nil
	}
	sched := gocron.NewScheduler(time.UTC)
	_, err := sched.Every(s.sweepEvery).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := s.Sweep(ctx)
		if err != nil {
			log.Printf("[cache] sweep error: %v", err)
			return
		}
		if s.prom != nil {
			s.prom.CacheSweeps.Inc()
		}
		if n > 0 {
			log.Printf("[cache] sweep removed %d expired entries", n)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	sched.StartAsync()
	s.sched = sched
	log.Printf("[cache] sweeper started, interval %v", s.sweepEvery)
	return nil
}

// Stats returns a snapshot of the traffic counters.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	st := s.stats
	s.mu.Unlock()
	st.MemoryItems = s.mem.Len()
	return st
}

// Close stops the sweeper and closes the persistent tier.
func (s *Service) Close() error {
	if s.sched != nil {
		s.sched.Stop()
		s.sched = nil
	}
	if s.persist != nil {
		return s.persist.Close()
	}
	return nil
}

func (s *Service) count(fn func(*Stats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

func (s *Service) countOp(tier, result string) {
	if s.prom != nil {
		s.prom.CacheOps.WithLabelValues(tier, result).Inc()
	}
}

// shortKey truncates a fingerprint for logging.
func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
