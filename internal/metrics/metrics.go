package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the indicator engine.
type Metrics struct {
	// Indicator computation
	ComputeDur      *prometheus.HistogramVec // labels: indicator
	ComputeTotal    *prometheus.CounterVec   // labels: indicator, status
	BarsLoaded      prometheus.Counter
	RequestsTotal   prometheus.Counter
	RequestDur      prometheus.Histogram

	// Cache service
	CacheOps     *prometheus.CounterVec // labels: tier, result
	CacheItems   prometheus.Gauge       // memory-tier occupancy
	CacheSweeps  prometheus.Counter
	CacheCorrupt prometheus.Counter

	// Batch / async
	BatchWorkers prometheus.Gauge
	TasksTotal   *prometheus.CounterVec // labels: state

	// Quality pipeline
	QualityScore  prometheus.Histogram
	RowsFilled    prometheus.Counter
	RowsDeduped   prometheus.Counter

	// Adjustment engine
	SeriesAdjusted *prometheus.CounterVec // labels: mode

	// Storage
	SQLiteCommitDur          prometheus.Histogram
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		ComputeDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indengine_compute_duration_seconds",
			Help:    "Indicator computation latency per indicator",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"indicator"}),
		ComputeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indengine_compute_total",
			Help: "Indicator computations by outcome (ok, cached, error)",
		}, []string{"indicator", "status"}),
		BarsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indengine_bars_loaded_total",
			Help: "Daily bars loaded from storage",
		}),
		RequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indengine_requests_total",
			Help: "Calculation requests handled",
		}),
		RequestDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "indengine_request_duration_seconds",
			Help:    "End-to-end calculation request latency",
			Buckets: prometheus.DefBuckets,
		}),

		CacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indengine_cache_ops_total",
			Help: "Cache lookups by tier (memory, persistent) and result (hit, miss)",
		}, []string{"tier", "result"}),
		CacheItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indengine_cache_memory_items",
			Help: "Entries held in the memory cache tier",
		}),
		CacheSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indengine_cache_sweeps_total",
			Help: "Expired entries removed by the cache sweeper",
		}),
		CacheCorrupt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indengine_cache_corrupt_total",
			Help: "Persistent cache payloads dropped as unreadable",
		}),

		BatchWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indengine_batch_workers",
			Help: "Batch workers currently computing",
		}),
		TasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indengine_tasks_total",
			Help: "Async task transitions by final state",
		}, []string{"state"}),

		QualityScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "indengine_quality_score",
			Help:    "Data quality scores per preprocessing pass",
			Buckets: []float64{0.5, 0.7, 0.85, 0.95, 1.0},
		}),
		RowsFilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indengine_quality_filled_total",
			Help: "Missing values filled by the quality pipeline",
		}),
		RowsDeduped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indengine_quality_deduped_total",
			Help: "Duplicate rows dropped by the quality pipeline",
		}),

		SeriesAdjusted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indengine_adjust_series_total",
			Help: "Price series adjusted by mode",
		}, []string{"mode"}),

		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "indengine_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indengine_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indengine_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
	}

	prometheus.MustRegister(
		m.ComputeDur,
		m.ComputeTotal,
		m.BarsLoaded,
		m.RequestsTotal,
		m.RequestDur,
		m.CacheOps,
		m.CacheItems,
		m.CacheSweeps,
		m.CacheCorrupt,
		m.BatchWorkers,
		m.TasksTotal,
		m.QualityScore,
		m.RowsFilled,
		m.RowsDeduped,
		m.SeriesAdjusted,
		m.SQLiteCommitDur,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	SQLiteOK       bool      `json:"sqlite_ok"`
	RedisConnected bool      `json:"redis_connected"`
	RedisEnabled   bool      `json:"redis_enabled"`
	LastBatchAt    time.Time `json:"last_batch_at"`
	LastBatchOK    bool      `json:"last_batch_ok"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
		SQLiteOK:  true,
	}
}

func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.RedisEnabled = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastBatch(at time.Time, ok bool) {
	h.mu.Lock()
	h.LastBatchAt = at
	h.LastBatchOK = ok
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial probe and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.SQLiteOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	} else if h.RedisEnabled && !h.RedisConnected {
		// Redis is a cache tier: losing it degrades but does not disable.
		overallStatus = "degraded"
	}

	lastBatch := ""
	if !h.LastBatchAt.IsZero() {
		lastBatch = h.LastBatchAt.Format(time.RFC3339)
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		LastBatchAt     string  `json:"last_batch_at"`
		LastBatchOK     bool    `json:"last_batch_ok"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		LastBatchAt:     lastBatch,
		LastBatchOK:     h.LastBatchOK,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
