package frame

import (
	"math"
	"testing"
)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

func assertNaN(t *testing.T, label string, got float64) {
	t.Helper()
	if !math.IsNaN(got) {
		t.Errorf("%s: got %.6f, want NaN", label, got)
	}
}

// ────────────────────────────────────────────────────────────
// RollingMean / RollingStd
// ────────────────────────────────────────────────────────────

func TestRollingMean_Window3(t *testing.T) {
	// Values: 100, 102, 104, 103, 105
	// Mean(3) row 2: (100+102+104)/3 = 102.0
	// Mean(3) row 3: (102+104+103)/3 = 103.0
	// Mean(3) row 4: (104+103+105)/3 = 104.0
	vals := []float64{100, 102, 104, 103, 105}
	out := RollingMean(vals, 3)

	assertNaN(t, "mean row 0", out[0])
	assertNaN(t, "mean row 1", out[1])
	assertClose(t, "mean row 2", out[2], 102.0, 0.0001)
	assertClose(t, "mean row 3", out[3], 103.0, 0.0001)
	assertClose(t, "mean row 4", out[4], 104.0, 0.0001)
}

func TestRollingMean_MissingValuePoisonsWindow(t *testing.T) {
	vals := []float64{100, math.NaN(), 104, 103, 105}
	out := RollingMean(vals, 3)

	assertNaN(t, "window covering NaN (row 2)", out[2])
	assertNaN(t, "window covering NaN (row 3)", out[3])
	assertClose(t, "clean window (row 4)", out[4], 104.0, 0.0001)
}

func TestRollingStd_SampleVariance(t *testing.T) {
	// Values 2, 4, 6: mean 4, sample variance ((2-4)^2+(0)^2+(2)^2)/2 = 4
	// → std = 2.
	vals := []float64{2, 4, 6}
	out := RollingStd(vals, 3)

	assertClose(t, "std(3)", out[2], 2.0, 0.0001)
}

// ────────────────────────────────────────────────────────────
// Min / Max / MeanAbsDev
// ────────────────────────────────────────────────────────────

func TestRollingMinMax(t *testing.T) {
	vals := []float64{5, 3, 8, 1, 9}
	lo := RollingMin(vals, 3)
	hi := RollingMax(vals, 3)

	assertClose(t, "min row 2", lo[2], 3, 0.0001)
	assertClose(t, "min row 3", lo[3], 1, 0.0001)
	assertClose(t, "max row 2", hi[2], 8, 0.0001)
	assertClose(t, "max row 4", hi[4], 9, 0.0001)
}

func TestRollingMeanAbsDev(t *testing.T) {
	// Values 1, 2, 3: mean 2, deviations 1,0,1 → MAD = 2/3.
	vals := []float64{1, 2, 3}
	out := RollingMeanAbsDev(vals, 3)
	assertClose(t, "mad(3)", out[2], 2.0/3.0, 0.0001)
}

// ────────────────────────────────────────────────────────────
// EMA / WMA
// ────────────────────────────────────────────────────────────

func TestEMA_SeededAtFirstValue(t *testing.T) {
	// Span 3 → alpha 0.5, seed = first value.
	// Values: 100, 102, 104
	// Row 0: 100
	// Row 1: 0.5*102 + 0.5*100 = 101
	// Row 2: 0.5*104 + 0.5*101 = 102.5
	vals := []float64{100, 102, 104}
	out := EMA(vals, 3)

	assertClose(t, "ema row 0", out[0], 100.0, 0.0001)
	assertClose(t, "ema row 1", out[1], 101.0, 0.0001)
	assertClose(t, "ema row 2", out[2], 102.5, 0.0001)
}

func TestEMA_LeadingMissing(t *testing.T) {
	vals := []float64{math.NaN(), 100, 102}
	out := EMA(vals, 3)

	assertNaN(t, "ema before series starts", out[0])
	assertClose(t, "ema seed", out[1], 100.0, 0.0001)
	assertClose(t, "ema step", out[2], 101.0, 0.0001)
}

func TestWMA_Window3(t *testing.T) {
	// Values 1, 2, 3 with weights 1,2,3: (1+4+9)/6 = 14/6.
	vals := []float64{1, 2, 3}
	out := WMA(vals, 3)
	assertClose(t, "wma(3)", out[2], 14.0/6.0, 0.0001)
}

// ────────────────────────────────────────────────────────────
// Shift / Diff / PctChange / RankPct / CumSum
// ────────────────────────────────────────────────────────────

func TestShift(t *testing.T) {
	vals := []float64{1, 2, 3, 4}

	fwd := Shift(vals, 1)
	assertNaN(t, "forward shift row 0", fwd[0])
	assertClose(t, "forward shift row 1", fwd[1], 1, 0.0001)
	assertClose(t, "forward shift row 3", fwd[3], 3, 0.0001)

	back := Shift(vals, -2)
	assertClose(t, "backward shift row 0", back[0], 3, 0.0001)
	assertNaN(t, "backward shift row 3", back[3])
}

func TestDiffAndPctChange(t *testing.T) {
	vals := []float64{100, 110, 99}

	d := Diff(vals)
	assertNaN(t, "diff row 0", d[0])
	assertClose(t, "diff row 1", d[1], 10, 0.0001)
	assertClose(t, "diff row 2", d[2], -11, 0.0001)

	p := PctChange(vals)
	assertClose(t, "pct row 1", p[1], 0.10, 0.0001)
	assertClose(t, "pct row 2", p[2], -0.10, 0.0001)
}

func TestPctChange_ZeroBase(t *testing.T) {
	vals := []float64{0, 5}
	p := PctChange(vals)
	assertNaN(t, "pct change off zero base", p[1])
}

func TestRollingRankPct(t *testing.T) {
	// Window 4 over 1,2,3,4: last value is the maximum → rank 1.0.
	// Over 2,3,4,1: last value is the minimum → rank 1/4.
	vals := []float64{1, 2, 3, 4, 1}
	out := RollingRankPct(vals, 4)

	assertClose(t, "rank of max", out[3], 1.0, 0.0001)
	assertClose(t, "rank of min", out[4], 0.25, 0.0001)
}

func TestCumSum(t *testing.T) {
	vals := []float64{1, math.NaN(), 2, 3}
	out := CumSum(vals)

	assertClose(t, "cumsum row 0", out[0], 1, 0.0001)
	assertClose(t, "cumsum holds through gap", out[1], 1, 0.0001)
	assertClose(t, "cumsum row 2", out[2], 3, 0.0001)
	assertClose(t, "cumsum row 3", out[3], 6, 0.0001)
}
