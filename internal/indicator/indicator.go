// Package indicator provides batch technical indicator calculations over
// daily-bar frames.
//
// Each indicator consumes a frame of canonical price/volume columns and
// returns a new frame holding only its output columns, aligned to the
// input's date index. Signal columns are 0/1 valued; warmup rows are NaN.
package indicator

import (
	"math"

	"stockdbv1/internal/frame"
)

// Indicator is the interface for all technical indicators.
type Indicator interface {
	// Name returns the registry name (e.g. "rsi", "moving_average").
	Name() string

	// Calculate computes the indicator's output columns over the input
	// frame. The input is never mutated.
	Calculate(f *frame.Frame) (*frame.Frame, error)

	// ValidateParams checks the configured parameters.
	ValidateParams() error

	// RequiredColumns lists the input columns the calculation reads.
	RequiredColumns() []string

	// OutputColumns lists the columns Calculate produces.
	OutputColumns() []string

	// MinDataPoints is the recommended minimum row count. Shorter input
	// still computes (with leading NaNs) but draws a warning.
	MinDataPoints() int
}

// ── shared series helpers ──
// Comparisons involving NaN are false, matching how the signal columns
// behave around warmup rows: no data, no signal.

func b2f(cond bool) float64 {
	if cond {
		return 1
	}
	return 0
}

func isSet(v float64) bool { return v == 1 }

// gtSeries returns 1 where a > b.
func gtSeries(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = b2f(a[i] > b[i])
	}
	return out
}

// ltSeries returns 1 where a < b.
func ltSeries(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = b2f(a[i] < b[i])
	}
	return out
}

// gtConst returns 1 where a > c; geConst, ltConst, leConst likewise.
func gtConst(a []float64, c float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = b2f(a[i] > c)
	}
	return out
}

func geConst(a []float64, c float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = b2f(a[i] >= c)
	}
	return out
}

func ltConst(a []float64, c float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = b2f(a[i] < c)
	}
	return out
}

func leConst(a []float64, c float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = b2f(a[i] <= c)
	}
	return out
}

// crossAbove returns 1 where a crosses above b: a[i] > b[i] while
// a[i-1] <= b[i-1]. Row 0 and NaN-adjacent rows are 0.
func crossAbove(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := 1; i < len(a); i++ {
		out[i] = b2f(a[i] > b[i] && a[i-1] <= b[i-1])
	}
	return out
}

// crossBelow returns 1 where a crosses below b.
func crossBelow(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := 1; i < len(a); i++ {
		out[i] = b2f(a[i] < b[i] && a[i-1] >= b[i-1])
	}
	return out
}

// crossAboveConst / crossBelowConst cross a fixed level.
func crossAboveConst(a []float64, c float64) []float64 {
	out := make([]float64, len(a))
	for i := 1; i < len(a); i++ {
		out[i] = b2f(a[i] > c && a[i-1] <= c)
	}
	return out
}

func crossBelowConst(a []float64, c float64) []float64 {
	out := make([]float64, len(a))
	for i := 1; i < len(a); i++ {
		out[i] = b2f(a[i] < c && a[i-1] >= c)
	}
	return out
}

// replaceZero substitutes eps for exact zeros, guarding divisions.
func replaceZero(vals []float64, eps float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		if v == 0 {
			out[i] = eps
		} else {
			out[i] = v
		}
	}
	return out
}

// divergences flags rows where price makes a fresh extreme over the
// trailing lookback but the oscillator does not confirm it. Scanning
// starts at row 20 and only runs on series longer than 30 rows.
func divergences(price, osc []float64, lookback int) ([]float64, []float64) {
	bullish := make([]float64, len(price))
	bearish := make([]float64, len(price))
	if len(price) <= 30 {
		return bullish, bearish
	}
	for i := 20; i < len(price); i++ {
		lo, hi := windowMinMax(price, i-lookback, i)
		oLo, oHi := windowMinMax(osc, i-lookback, i)
		if price[i] < lo && osc[i] > oLo {
			bullish[i] = 1
		}
		if price[i] > hi && osc[i] < oHi {
			bearish[i] = 1
		}
	}
	return bullish, bearish
}

// windowMinMax scans [from, to) ignoring NaN.
func windowMinMax(vals []float64, from, to int) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	if from < 0 {
		from = 0
	}
	for j := from; j < to; j++ {
		if math.IsNaN(vals[j]) {
			continue
		}
		if vals[j] < lo {
			lo = vals[j]
		}
		if vals[j] > hi {
			hi = vals[j]
		}
	}
	return lo, hi
}
