package frame

import "math"

// Rolling-window helpers. All functions return a slice the same length as
// the input with NaN wherever the window is not yet full or any value
// inside the window is missing.

func nan() float64 { return math.NaN() }

// Fill returns a slice of n copies of v.
func Fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// NaNs returns a slice of n missing values.
func NaNs(n int) []float64 { return Fill(n, nan()) }

func windowOK(vals []float64, i, window int) bool {
	if i+1 < window {
		return false
	}
	for j := i + 1 - window; j <= i; j++ {
		if math.IsNaN(vals[j]) {
			return false
		}
	}
	return true
}

// RollingMean is the simple moving average over a trailing window.
func RollingMean(vals []float64, window int) []float64 {
	out := NaNs(len(vals))
	for i := range vals {
		if !windowOK(vals, i, window) {
			continue
		}
		sum := 0.0
		for j := i + 1 - window; j <= i; j++ {
			sum += vals[j]
		}
		out[i] = sum / float64(window)
	}
	return out
}

// RollingStd is the sample standard deviation (n-1 denominator) over a
// trailing window. Windows of size 1 yield NaN.
func RollingStd(vals []float64, window int) []float64 {
	out := NaNs(len(vals))
	if window < 2 {
		return out
	}
	for i := range vals {
		if !windowOK(vals, i, window) {
			continue
		}
		mean := 0.0
		for j := i + 1 - window; j <= i; j++ {
			mean += vals[j]
		}
		mean /= float64(window)
		ss := 0.0
		for j := i + 1 - window; j <= i; j++ {
			d := vals[j] - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(window-1))
	}
	return out
}

// RollingMin is the trailing-window minimum.
func RollingMin(vals []float64, window int) []float64 {
	out := NaNs(len(vals))
	for i := range vals {
		if !windowOK(vals, i, window) {
			continue
		}
		m := vals[i+1-window]
		for j := i + 2 - window; j <= i; j++ {
			if vals[j] < m {
				m = vals[j]
			}
		}
		out[i] = m
	}
	return out
}

// RollingMax is the trailing-window maximum.
func RollingMax(vals []float64, window int) []float64 {
	out := NaNs(len(vals))
	for i := range vals {
		if !windowOK(vals, i, window) {
			continue
		}
		m := vals[i+1-window]
		for j := i + 2 - window; j <= i; j++ {
			if vals[j] > m {
				m = vals[j]
			}
		}
		out[i] = m
	}
	return out
}

// RollingMeanAbsDev is the trailing-window mean absolute deviation from
// the window mean. Used by CCI.
func RollingMeanAbsDev(vals []float64, window int) []float64 {
	out := NaNs(len(vals))
	for i := range vals {
		if !windowOK(vals, i, window) {
			continue
		}
		mean := 0.0
		for j := i + 1 - window; j <= i; j++ {
			mean += vals[j]
		}
		mean /= float64(window)
		dev := 0.0
		for j := i + 1 - window; j <= i; j++ {
			dev += math.Abs(vals[j] - mean)
		}
		out[i] = dev / float64(window)
	}
	return out
}

// EMA is the span-form exponential moving average with alpha = 2/(span+1),
// seeded at the first non-missing value. Leading NaNs stay NaN; once the
// series starts, every later value participates.
func EMA(vals []float64, span int) []float64 {
	out := NaNs(len(vals))
	alpha := 2.0 / (float64(span) + 1.0)
	started := false
	prev := 0.0
	for i, v := range vals {
		if math.IsNaN(v) {
			if started {
				out[i] = prev
			}
			continue
		}
		if !started {
			started = true
			prev = v
		} else {
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}

// WMA is the linearly-weighted moving average: weights 1..window with the
// newest value weighted heaviest.
func WMA(vals []float64, window int) []float64 {
	out := NaNs(len(vals))
	denom := float64(window*(window+1)) / 2
	for i := range vals {
		if !windowOK(vals, i, window) {
			continue
		}
		sum := 0.0
		for k := 0; k < window; k++ {
			sum += vals[i-window+1+k] * float64(k+1)
		}
		out[i] = sum / denom
	}
	return out
}

// Shift moves values forward by n rows (n > 0: value at i comes from i-n).
// Negative n shifts backward, pulling future values earlier.
func Shift(vals []float64, n int) []float64 {
	out := NaNs(len(vals))
	for i := range vals {
		src := i - n
		if src >= 0 && src < len(vals) {
			out[i] = vals[src]
		}
	}
	return out
}

// Diff is the first difference: vals[i] - vals[i-1].
func Diff(vals []float64) []float64 {
	out := NaNs(len(vals))
	for i := 1; i < len(vals); i++ {
		out[i] = vals[i] - vals[i-1]
	}
	return out
}

// PctChange is the one-step fractional change. A zero previous value
// yields NaN rather than infinity.
func PctChange(vals []float64) []float64 {
	out := NaNs(len(vals))
	for i := 1; i < len(vals); i++ {
		if vals[i-1] == 0 || math.IsNaN(vals[i-1]) || math.IsNaN(vals[i]) {
			continue
		}
		out[i] = vals[i]/vals[i-1] - 1
	}
	return out
}

// RollingRankPct ranks each value within its trailing window as a fraction
// in (0,1]: 1/window for the window minimum, 1.0 for the maximum.
func RollingRankPct(vals []float64, window int) []float64 {
	out := NaNs(len(vals))
	for i := range vals {
		if !windowOK(vals, i, window) {
			continue
		}
		rank := 0
		for j := i + 1 - window; j <= i; j++ {
			if vals[j] <= vals[i] {
				rank++
			}
		}
		out[i] = float64(rank) / float64(window)
	}
	return out
}

// CumSum is the running total, treating missing values as zero increments
// while keeping the output missing until the first real value.
func CumSum(vals []float64) []float64 {
	out := NaNs(len(vals))
	started := false
	total := 0.0
	for i, v := range vals {
		if math.IsNaN(v) {
			if started {
				out[i] = total
			}
			continue
		}
		total += v
		started = true
		out[i] = total
	}
	return out
}
