package calc

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"stockdbv1/internal/adjust"
	"stockdbv1/internal/cache"
	"stockdbv1/internal/frame"
	"stockdbv1/internal/indicator"
	"stockdbv1/internal/logger"
	"stockdbv1/internal/metrics"
	"stockdbv1/internal/model"
	"stockdbv1/internal/quality"
)

// Per-indicator outcome values.
const (
	StatusOK     = "ok"
	StatusCached = "cached"
	StatusError  = "error"
)

// Request names one calculation: a symbol, the indicators to compute,
// and how to treat cache and quality gates.
type Request struct {
	Symbol     string
	Indicators []string
	Overrides  map[string]indicator.Params // per-indicator parameter overrides
	Range      model.DateRange
	Adjust     model.AdjustMode // price adjustment applied before computing
	UseCache   bool
	Force      bool // compute even when quality is below the usable threshold
}

// IndicatorStatus records one indicator's outcome within a request.
type IndicatorStatus struct {
	Status string `json:"status"` // ok | cached | error
	Error  string `json:"error,omitempty"`
}

// Result carries everything a calculation produced.
type Result struct {
	Symbol   string
	Report   *model.QualityReport
	Frames   map[string]*frame.Frame // per-indicator output columns
	Status   map[string]IndicatorStatus
	Merged   *frame.Frame // input columns plus every indicator output
	Warnings []string
}

// Options wires the orchestrator's optional collaborators.
type Options struct {
	Cache   *cache.Service
	Adjust  *adjust.Engine
	Metrics *metrics.Metrics
}

// Orchestrator drives dependency-ordered indicator computation over
// quality-checked bars, consulting the cache per indicator.
type Orchestrator struct {
	bars     model.BarReader
	registry *indicator.Registry
	resolver *indicator.Resolver
	quality  *quality.Pipeline

	cache   *cache.Service
	adjust  *adjust.Engine
	metrics *metrics.Metrics
}

// New creates an orchestrator. Cache, adjustment, and metrics are optional.
func New(bars model.BarReader, reg *indicator.Registry, res *indicator.Resolver, qp *quality.Pipeline, opts Options) *Orchestrator {
	return &Orchestrator{
		bars:     bars,
		registry: reg,
		resolver: res,
		quality:  qp,
		cache:    opts.Cache,
		adjust:   opts.Adjust,
		metrics:  opts.Metrics,
	}
}

// Registry exposes the indicator listing without triggering computation.
func (o *Orchestrator) Registry() *indicator.Registry { return o.registry }

// Calculate runs one request end to end: load, preprocess, optionally
// adjust, then compute each requested indicator (and its required
// ancestors) in dependency order.
func (o *Orchestrator) Calculate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if logger.TraceID(ctx) == "" {
		ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(req.Symbol, start))
	}
	if o.metrics != nil {
		o.metrics.RequestsTotal.Inc()
		defer func() { o.metrics.RequestDur.Observe(time.Since(start).Seconds()) }()
	}

	bars, err := o.bars.ReadBars(ctx, req.Symbol, req.Range)
	if err != nil {
		return nil, fmt.Errorf("load bars for %s: %w", req.Symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s %s", model.ErrDataUnavailable, req.Symbol, req.Range)
	}
	if o.metrics != nil {
		o.metrics.BarsLoaded.Add(float64(len(bars)))
	}

	work, report := o.quality.Preprocess(bars, req.Symbol, req.Range)
	o.observeQuality(report)
	if !report.Usable() && !req.Force {
		return nil, fmt.Errorf("%w: %s scored %.2f (%s)",
			model.ErrInvalidQuality, req.Symbol, report.Score, report.Level)
	}

	res := &Result{
		Symbol: req.Symbol,
		Report: report,
		Frames: make(map[string]*frame.Frame),
		Status: make(map[string]IndicatorStatus),
	}

	if req.Adjust == model.AdjustForward || req.Adjust == model.AdjustBackward {
		if o.adjust == nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("no adjustment engine wired, computing on raw prices for %s", req.Symbol))
		} else {
			adjusted, err := o.adjust.Adjust(ctx, work, req.Symbol, req.Adjust)
			if err != nil {
				return nil, fmt.Errorf("adjust %s: %w", req.Symbol, err)
			}
			work = adjusted
			if o.metrics != nil {
				o.metrics.SeriesAdjusted.WithLabelValues(string(req.Adjust)).Inc()
			}
		}
	}

	// Unknown names are dropped, not fatal.
	known := make([]string, 0, len(req.Indicators))
	for _, name := range req.Indicators {
		if !o.registry.Has(name) {
			warning := fmt.Sprintf("unknown indicator %q dropped", name)
			res.Warnings = append(res.Warnings, warning)
			log.Printf("[calc] %s: %s", req.Symbol, warning)
			continue
		}
		known = append(known, name)
	}

	for _, name := range o.resolver.Resolve(known) {
		o.computeOne(ctx, req, name, work, res)
	}

	res.Merged = work
	slog.Debug("calculation finished", append(logger.LogWithTrace(ctx),
		slog.String("symbol", req.Symbol),
		slog.Int("indicators", len(known)),
		slog.Duration("elapsed", time.Since(start)))...)
	return res, nil
}

// computeOne runs a single indicator against the working frame, serving
// from cache when possible. Failures isolate to this indicator's status.
func (o *Orchestrator) computeOne(ctx context.Context, req Request, name string, work *frame.Frame, res *Result) {
	desc, err := o.registry.Describe(name)
	if err != nil {
		res.Status[name] = IndicatorStatus{Status: StatusError, Error: err.Error()}
		return
	}
	params := indicator.Merge(desc.Defaults, req.Overrides[name])
	key := cache.Fingerprint(req.Symbol, name, params, req.Range)

	if req.UseCache && o.cache != nil {
		if cached, ok := o.cache.Get(ctx, key); ok {
			res.Frames[name] = cached
			res.Status[name] = IndicatorStatus{Status: StatusCached}
			o.countCompute(name, StatusCached)
			if err := work.MergeFrom(cached); err != nil {
				log.Printf("[calc] %s/%s: merge cached result: %v", req.Symbol, name, err)
			}
			return
		}
	}

	ind, err := o.registry.New(name, req.Overrides[name])
	if err != nil {
		res.Status[name] = IndicatorStatus{Status: StatusError, Error: err.Error()}
		o.countCompute(name, StatusError)
		return
	}
	if err := ind.ValidateParams(); err != nil {
		res.Status[name] = IndicatorStatus{Status: StatusError, Error: err.Error()}
		o.countCompute(name, StatusError)
		log.Printf("[calc] %s/%s: %v", req.Symbol, name, err)
		return
	}
	if work.Len() < ind.MinDataPoints() {
		warning := fmt.Sprintf("%s: %v: %d rows < %d, output will have long warmup",
			name, model.ErrInsufficientData, work.Len(), ind.MinDataPoints())
		res.Warnings = append(res.Warnings, warning)
		log.Printf("[calc] %s: %s", req.Symbol, warning)
	}

	computeStart := time.Now()
	out, err := ind.Calculate(work)
	if o.metrics != nil {
		o.metrics.ComputeDur.WithLabelValues(name).Observe(time.Since(computeStart).Seconds())
	}
	if err != nil {
		res.Status[name] = IndicatorStatus{Status: StatusError, Error: err.Error()}
		o.countCompute(name, StatusError)
		log.Printf("[calc] %s/%s: calculate: %v", req.Symbol, name, err)
		return
	}

	if req.UseCache && o.cache != nil {
		o.cache.Put(ctx, req.Symbol, name, key, out)
	}
	res.Frames[name] = out
	res.Status[name] = IndicatorStatus{Status: StatusOK}
	o.countCompute(name, StatusOK)

	// Later indicators and the caller see this output through the merged
	// frame. Existing columns always win, so inputs are never overwritten
	// and duplicate outputs resolve to the first producer.
	if err := work.MergeFrom(out); err != nil {
		log.Printf("[calc] %s/%s: merge result: %v", req.Symbol, name, err)
	}
}

func (o *Orchestrator) countCompute(name, status string) {
	if o.metrics != nil {
		o.metrics.ComputeTotal.WithLabelValues(name, status).Inc()
	}
}

func (o *Orchestrator) observeQuality(report *model.QualityReport) {
	if o.metrics == nil {
		return
	}
	o.metrics.QualityScore.Observe(report.Score)
	o.metrics.RowsFilled.Add(float64(report.FilledValues))
	o.metrics.RowsDeduped.Add(float64(report.Duplicates))
}
