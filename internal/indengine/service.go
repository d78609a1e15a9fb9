package indengine

import (
	"context"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stockdbv1/config"
	"stockdbv1/internal/adjust"
	"stockdbv1/internal/cache"
	"stockdbv1/internal/calc"
	"stockdbv1/internal/indicator"
	"stockdbv1/internal/logger"
	"stockdbv1/internal/metrics"
	"stockdbv1/internal/model"
	"stockdbv1/internal/quality"
	redisstore "stockdbv1/internal/store/redis"
	sqlitestore "stockdbv1/internal/store/sqlite"
	"stockdbv1/internal/tradecal"

	"github.com/go-co-op/gocron"
	goredis "github.com/go-redis/redis/v8"
)

// Service is the top-level daemon for the indicator engine.
// It wires storage, cache, and orchestrator, runs the scheduled
// daily batch, and serves metrics and health endpoints.
type Service struct {
	cfg *config.Config

	store      *sqlitestore.Store
	redisCache *redisstore.CacheStore
	cacheSvc   *cache.Service
	orch       *calc.Orchestrator
	runner     *calc.TaskRunner

	prom   *metrics.Metrics
	health *metrics.HealthStatus
	sched  *gocron.Scheduler
}

// New creates a Service from the given Config.
// SQLite is required; the Redis cache tier is optional and falls back
// to the SQLite cache file when disabled or unreachable.
func New(cfg *config.Config) (*Service, error) {
	logger.Init("indengine", parseLevel(cfg.LogLevel))

	svc := &Service{
		cfg:    cfg,
		prom:   metrics.NewMetrics(),
		health: metrics.NewHealthStatus(),
	}

	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	store, err := sqlitestore.New(sqlitestore.StoreConfig{DBPath: cfg.SQLitePath, Metrics: svc.prom})
	if err != nil {
		return nil, err
	}
	svc.store = store

	var persist model.PayloadStore
	svc.health.SetRedisEnabled(cfg.RedisEnabled)
	if cfg.RedisEnabled {
		rc, err := redisstore.NewCacheStore(redisstore.CacheConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Printf("[indengine] WARNING: redis cache init failed: %v (falling back to sqlite cache)", err)
		} else {
			svc.redisCache = rc
			persist = rc
			rc.Breaker().OnStateChange = func(from, to redisstore.State) {
				svc.prom.RedisCircuitBreakerState.Set(float64(to))
				if to == redisstore.StateOpen {
					svc.prom.RedisCircuitBreakerTrips.Inc()
				}
				slog.Warn("redis circuit breaker transition",
					slog.String("from", from.String()), slog.String("to", to.String()))
			}
		}
	}
	if persist == nil {
		cs, err := sqlitestore.NewCacheStore(cfg.CacheDBPath)
		if err != nil {
			store.Close()
			return nil, err
		}
		persist = cs
	}

	svc.cacheSvc = cache.New(persist, cache.Options{
		MemoryTTL:     cfg.CacheMemoryTTL,
		PersistTTL:    cfg.CachePersistTTL,
		SweepInterval: cfg.CacheSweepEvery,
		MaxItems:      cfg.CacheMaxItems,
		Metrics:       svc.prom,
	})

	cal := tradecal.New(cfg.Holidays)
	svc.orch = calc.New(store,
		indicator.NewDefaultRegistry(),
		indicator.NewResolver(),
		quality.New(cal),
		calc.Options{
			Cache:   svc.cacheSvc,
			Adjust:  adjust.NewEngine(store),
			Metrics: svc.prom,
		})
	svc.runner = calc.NewTaskRunner(svc.orch, svc.prom)

	return svc, nil
}

// Run starts the cache sweeper, the daily batch schedule, and the
// metrics server, then blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	log.Println("[indengine] starting indicator engine...")

	if err := svc.cacheSvc.StartSweeper(); err != nil {
		return err
	}

	svc.sched = gocron.NewScheduler(time.Local)
	if _, err := svc.sched.Every(1).Day().At(svc.cfg.BatchTime).Do(func() {
		svc.runDailyBatch(ctx)
	}); err != nil {
		return err
	}
	svc.sched.StartAsync()
	log.Printf("[indengine] daily batch scheduled at %s (concurrency=%d)",
		svc.cfg.BatchTime, svc.cfg.BatchConcurrency)

	var rdb *goredis.Client
	if svc.redisCache != nil {
		rdb = svc.redisCache.Client()
	}
	svc.health.StartLivenessChecker(ctx, rdb, svc.store.DB(), 30*time.Second)
	go svc.pollCacheGauge(ctx)

	srv := metrics.NewServer(svc.cfg.MetricsAddr, svc.health)
	srv.Start()
	log.Printf("[indengine] metrics and health on %s", svc.cfg.MetricsAddr)

	<-ctx.Done()

	log.Println("[indengine] shutdown signal received")
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Stop(shutCtx)
	svc.sched.Stop()
	svc.cacheSvc.Close()
	err := svc.store.Close()
	log.Println("[indengine] shutdown complete.")
	return err
}

// Runner exposes the async task runner for embedding callers.
func (svc *Service) Runner() *calc.TaskRunner { return svc.runner }

// Orchestrator exposes the calculation orchestrator for embedding callers.
func (svc *Service) Orchestrator() *calc.Orchestrator { return svc.orch }

// runDailyBatch recomputes the configured indicator set for every symbol
// over the trailing year. An empty config falls back to every stored
// symbol and every registered indicator.
func (svc *Service) runDailyBatch(ctx context.Context) {
	symbols := svc.cfg.Symbols
	if len(symbols) == 0 {
		var err error
		symbols, err = svc.store.Symbols(ctx)
		if err != nil {
			log.Printf("[indengine] daily batch: list symbols: %v", err)
			svc.health.SetLastBatch(time.Now(), false)
			return
		}
	}
	if len(symbols) == 0 {
		log.Println("[indengine] daily batch: no symbols stored, skipping")
		return
	}

	indicators := svc.cfg.Indicators
	if len(indicators) == 0 {
		for _, d := range svc.orch.Registry().List() {
			indicators = append(indicators, d.Name)
		}
	}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	res := svc.orch.CalculateBatch(ctx, calc.BatchRequest{
		Symbols:     symbols,
		Indicators:  indicators,
		Range:       model.DateRange{Start: end.AddDate(-1, 0, 0), End: end},
		Adjust:      model.AdjustForward,
		UseCache:    true,
		Concurrency: svc.cfg.BatchConcurrency,
	})
	svc.health.SetLastBatch(time.Now(), res.Failed == 0)
	slog.Info("daily batch finished",
		slog.Int("symbols", len(symbols)),
		slog.Int("succeeded", res.Succeeded),
		slog.Int("failed", res.Failed),
		slog.Duration("elapsed", res.Elapsed))
}

// pollCacheGauge keeps the memory-tier occupancy gauge current.
func (svc *Service) pollCacheGauge(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.prom.CacheItems.Set(float64(svc.cacheSvc.Stats().MemoryItems))
		}
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
