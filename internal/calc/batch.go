package calc

import (
	"context"
	"log"
	"sync"
	"time"

	"stockdbv1/internal/indicator"
	"stockdbv1/internal/model"
)

const defaultBatchConcurrency = 4

// BatchRequest fans one indicator set out over many symbols.
type BatchRequest struct {
	Symbols     []string
	Indicators  []string
	Overrides   map[string]indicator.Params
	Range       model.DateRange
	Adjust      model.AdjustMode
	UseCache    bool
	Force       bool
	Concurrency int // max parallel symbols, default 4
}

// SymbolOutcome is one symbol's slice of a batch.
type SymbolOutcome struct {
	Symbol string                     `json:"symbol"`
	OK     bool                       `json:"ok"`
	Error  string                     `json:"error,omitempty"`
	Status map[string]IndicatorStatus `json:"status,omitempty"`
	Score  float64                    `json:"score"`
}

// BatchResult aggregates per-symbol outcomes.
type BatchResult struct {
	Outcomes  map[string]SymbolOutcome `json:"outcomes"`
	Succeeded int                      `json:"succeeded"`
	Failed    int                      `json:"failed"`
	Elapsed   time.Duration            `json:"elapsed"`
}

// CalculateBatch runs the request for every symbol on a bounded worker
// pool. A failed symbol never stops the rest.
func (o *Orchestrator) CalculateBatch(ctx context.Context, req BatchRequest) *BatchResult {
	start := time.Now()
	workers := req.Concurrency
	if workers <= 0 {
		workers = defaultBatchConcurrency
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	out := &BatchResult{Outcomes: make(map[string]SymbolOutcome, len(req.Symbols))}

	for _, symbol := range req.Symbols {
		symbol := symbol
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				out.Outcomes[symbol] = SymbolOutcome{Symbol: symbol, Error: ctx.Err().Error()}
				out.Failed++
				mu.Unlock()
				return
			}
			defer func() { <-sem }()

			if o.metrics != nil {
				o.metrics.BatchWorkers.Inc()
				defer o.metrics.BatchWorkers.Dec()
			}

			res, err := o.Calculate(ctx, Request{
				Symbol:     symbol,
				Indicators: req.Indicators,
				Overrides:  req.Overrides,
				Range:      req.Range,
				Adjust:     req.Adjust,
				UseCache:   req.UseCache,
				Force:      req.Force,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.Outcomes[symbol] = SymbolOutcome{Symbol: symbol, Error: err.Error()}
				out.Failed++
				log.Printf("[calc] batch symbol %s: %v", symbol, err)
				return
			}
			out.Outcomes[symbol] = SymbolOutcome{
				Symbol: symbol,
				OK:     true,
				Status: res.Status,
				Score:  res.Report.Score,
			}
			out.Succeeded++
		}()
	}

	wg.Wait()
	out.Elapsed = time.Since(start)
	log.Printf("[calc] batch finished: %d ok, %d failed in %v",
		out.Succeeded, out.Failed, out.Elapsed)
	return out
}
