package indicator

import (
	"fmt"
	"math"

	"stockdbv1/internal/frame"
	"stockdbv1/internal/model"
)

// Extreme zone levels beyond the configurable overbought/oversold lines.
const (
	williamsExtremeOverbought = -10
	williamsExtremeOversold   = -90
	williamsMidline           = -50
)

// WilliamsR computes Williams %R: the close's position inside the
// trailing high/low range scaled to [-100, 0].
type WilliamsR struct {
	period     int
	overbought float64
	oversold   float64
}

// NewWilliamsR builds the indicator from merged parameters.
func NewWilliamsR(p Params) *WilliamsR {
	return &WilliamsR{
		period:     p.Int("period", 14),
		overbought: p.Float("overbought_level", -20),
		oversold:   p.Float("oversold_level", -80),
	}
}

func (w *WilliamsR) Name() string { return "williams_r" }

func (w *WilliamsR) ValidateParams() error {
	if w.period <= 0 {
		return fmt.Errorf("%w: period must be positive", model.ErrInvalidParameters)
	}
	if !(-100 <= w.oversold && w.oversold < w.overbought && w.overbought <= 0) {
		return fmt.Errorf("%w: need -100 <= oversold(%.0f) < overbought(%.0f) <= 0",
			model.ErrInvalidParameters, w.oversold, w.overbought)
	}
	return nil
}

func (w *WilliamsR) RequiredColumns() []string {
	return []string{model.ColHigh, model.ColLow, model.ColClose}
}

func (w *WilliamsR) MinDataPoints() int { return w.period + 10 }

func (w *WilliamsR) OutputColumns() []string {
	return []string{
		"Williams_R", "Williams_Overbought", "Williams_Oversold",
		"Williams_Extreme_Overbought", "Williams_Extreme_Oversold",
		"Williams_Above_Mid", "Williams_Below_Mid",
		"Williams_Cross_Mid_Up", "Williams_Cross_Mid_Down",
		"Williams_Momentum_Up", "Williams_Momentum_Down",
		"Williams_Break_Overbought", "Williams_Break_Oversold",
		"Williams_Bullish_Divergence", "Williams_Bearish_Divergence",
		"Williams_Overbought_Duration", "Williams_Oversold_Duration",
		"Williams_Trend_Strength",
	}
}

func (w *WilliamsR) Calculate(f *frame.Frame) (*frame.Frame, error) {
	high, low, close := f.Col(model.ColHigh), f.Col(model.ColLow), f.Col(model.ColClose)
	if high == nil || low == nil || close == nil {
		return nil, fmt.Errorf("williams_r: missing high/low/close input columns")
	}

	highest := frame.RollingMax(high, w.period)
	lowest := frame.RollingMin(low, w.period)

	n := len(close)
	wr := make([]float64, n)
	for i := 0; i < n; i++ {
		span := highest[i] - lowest[i]
		if span == 0 {
			span = 1e-10
		}
		wr[i] = (highest[i] - close[i]) / span * -100
	}

	out := frame.New(f.Dates())
	out.MustSet("Williams_R", wr)

	overbought := geConst(wr, w.overbought)
	oversold := leConst(wr, w.oversold)
	out.MustSet("Williams_Overbought", overbought)
	out.MustSet("Williams_Oversold", oversold)
	out.MustSet("Williams_Extreme_Overbought", geConst(wr, williamsExtremeOverbought))
	out.MustSet("Williams_Extreme_Oversold", leConst(wr, williamsExtremeOversold))

	out.MustSet("Williams_Above_Mid", gtConst(wr, williamsMidline))
	out.MustSet("Williams_Below_Mid", ltConst(wr, williamsMidline))
	out.MustSet("Williams_Cross_Mid_Up", crossAboveConst(wr, williamsMidline))
	out.MustSet("Williams_Cross_Mid_Down", crossBelowConst(wr, williamsMidline))

	momentum := frame.Diff(wr)
	out.MustSet("Williams_Momentum_Up", gtConst(momentum, 0))
	out.MustSet("Williams_Momentum_Down", ltConst(momentum, 0))

	// Leaving a zone, back toward the midline.
	out.MustSet("Williams_Break_Overbought", crossBelowConst(wr, w.overbought))
	out.MustSet("Williams_Break_Oversold", crossAboveConst(wr, w.oversold))

	bull, bear := divergences(close, wr, 10)
	out.MustSet("Williams_Bullish_Divergence", bull)
	out.MustSet("Williams_Bearish_Divergence", bear)

	obDur, osDur := zoneDurations(overbought, oversold)
	out.MustSet("Williams_Overbought_Duration", obDur)
	out.MustSet("Williams_Oversold_Duration", osDur)

	abs := make([]float64, n)
	for i := range wr {
		abs[i] = math.Abs(wr[i])
	}
	out.MustSet("Williams_Trend_Strength", frame.RollingMean(abs, 5))

	return out, nil
}
