package indicator

import (
	"fmt"

	"stockdbv1/internal/frame"
	"stockdbv1/internal/model"
)

// ParabolicSAR computes the parabolic stop-and-reverse by folding an
// explicit trend state across the series: each step advances the SAR
// toward the extreme point, accelerating while the extreme keeps
// extending, and flips trend when price pierces the SAR.
type ParabolicSAR struct {
	step    float64 // acceleration added per new extreme
	maxStep float64 // acceleration cap
}

// sarState is the fold state carried from row to row.
type sarState struct {
	trend   int     // +1 rising, -1 falling
	af      float64 // current acceleration factor
	extreme float64 // best price seen in the current trend
	sar     float64
}

// NewParabolicSAR builds the indicator from merged parameters.
func NewParabolicSAR(p Params) *ParabolicSAR {
	return &ParabolicSAR{
		step:    p.Float("acceleration_factor", 0.02),
		maxStep: p.Float("acceleration_max", 0.2),
	}
}

func (ps *ParabolicSAR) Name() string { return "parabolic_sar" }

func (ps *ParabolicSAR) ValidateParams() error {
	if !(0 < ps.step && ps.step <= ps.maxStep) {
		return fmt.Errorf("%w: acceleration factor %.4f must be in (0, max %.4f]",
			model.ErrInvalidParameters, ps.step, ps.maxStep)
	}
	if ps.maxStep <= ps.step {
		return fmt.Errorf("%w: acceleration max %.4f must exceed the step %.4f",
			model.ErrInvalidParameters, ps.maxStep, ps.step)
	}
	return nil
}

func (ps *ParabolicSAR) RequiredColumns() []string {
	return []string{model.ColClose, model.ColHigh, model.ColLow}
}

func (ps *ParabolicSAR) MinDataPoints() int { return 20 }

func (ps *ParabolicSAR) OutputColumns() []string {
	return []string{
		"Parabolic_SAR",
		"SAR_Above_Price", "SAR_Below_Price",
		"SAR_Turning_Up", "SAR_Turning_Down",
		"SAR_Trend_Strength",
	}
}

func (ps *ParabolicSAR) Calculate(f *frame.Frame) (*frame.Frame, error) {
	high, low, close := f.Col(model.ColHigh), f.Col(model.ColLow), f.Col(model.ColClose)
	if high == nil || low == nil || close == nil {
		return nil, fmt.Errorf("parabolic_sar: missing high/low/close input columns")
	}

	n := len(close)
	sar := frame.NaNs(n)
	if n >= 2 {
		st := sarState{trend: -1, af: ps.step, sar: high[0], extreme: low[0]}
		if close[1] > close[0] {
			st = sarState{trend: 1, af: ps.step, sar: low[0], extreme: high[0]}
		}
		sar[0] = st.sar

		for i := 1; i < n; i++ {
			next := st.sar + st.af*(st.extreme-st.sar)

			if st.trend == 1 {
				if low[i] < next {
					// Price pierced the SAR: reverse down.
					st = sarState{trend: -1, af: ps.step, sar: maxOf(high[i-1], high[i]), extreme: low[i]}
				} else {
					st.sar = next
					if high[i] > st.extreme {
						st.extreme = high[i]
						st.af = minOf(st.af+ps.step, ps.maxStep)
					}
				}
			} else {
				if high[i] > next {
					st = sarState{trend: 1, af: ps.step, sar: minOf(low[i-1], low[i]), extreme: high[i]}
				} else {
					st.sar = next
					if low[i] < st.extreme {
						st.extreme = low[i]
						st.af = minOf(st.af+ps.step, ps.maxStep)
					}
				}
			}
			sar[i] = st.sar
		}
	}

	out := frame.New(f.Dates())
	out.MustSet("Parabolic_SAR", sar)
	out.MustSet("SAR_Above_Price", gtSeries(sar, close))
	out.MustSet("SAR_Below_Price", ltSeries(sar, close))

	sarDiff := frame.Diff(sar)
	out.MustSet("SAR_Turning_Up", crossAboveConst(sarDiff, 0))
	out.MustSet("SAR_Turning_Down", crossBelowConst(sarDiff, 0))

	// Distance from price in units of the day's range.
	strength := make([]float64, n)
	for i := 0; i < n; i++ {
		span := high[i] - low[i]
		if span == 0 {
			span = 1
		}
		d := sar[i] - close[i]
		if d < 0 {
			d = -d
		}
		strength[i] = d / span
	}
	out.MustSet("SAR_Trend_Strength", strength)

	return out, nil
}

func maxOf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minOf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
