package indicator

import (
	"fmt"
	"math"

	"stockdbv1/internal/frame"
	"stockdbv1/internal/model"
)

// CCI computes the commodity channel index over the typical price
// (high+low+close)/3 with the conventional 0.015 scaling constant.
type CCI struct {
	period     int
	constant   float64
	overbought float64
	oversold   float64
}

// NewCCI builds the indicator from merged parameters.
func NewCCI(p Params) *CCI {
	return &CCI{
		period:     p.Int("period", 20),
		constant:   p.Float("constant", 0.015),
		overbought: p.Float("overbought_level", 100),
		oversold:   p.Float("oversold_level", -100),
	}
}

func (c *CCI) Name() string { return "cci" }

func (c *CCI) ValidateParams() error {
	if c.period <= 0 {
		return fmt.Errorf("%w: period must be positive", model.ErrInvalidParameters)
	}
	if c.constant <= 0 {
		return fmt.Errorf("%w: scaling constant must be positive", model.ErrInvalidParameters)
	}
	if c.oversold >= c.overbought {
		return fmt.Errorf("%w: oversold level %.0f must be below overbought level %.0f",
			model.ErrInvalidParameters, c.oversold, c.overbought)
	}
	return nil
}

func (c *CCI) RequiredColumns() []string {
	return []string{model.ColHigh, model.ColLow, model.ColClose}
}

func (c *CCI) MinDataPoints() int { return c.period + 10 }

func (c *CCI) OutputColumns() []string {
	return []string{
		"CCI", "CCI_Overbought", "CCI_Oversold",
		"CCI_Above_Zero", "CCI_Below_Zero",
		"CCI_Cross_Zero_Up", "CCI_Cross_Zero_Down",
		"CCI_Momentum_Up", "CCI_Momentum_Down",
		"CCI_Bullish_Divergence", "CCI_Bearish_Divergence",
		"CCI_Trend_Strength",
		"CCI_Overbought_Duration", "CCI_Oversold_Duration",
	}
}

func (c *CCI) Calculate(f *frame.Frame) (*frame.Frame, error) {
	high, low, close := f.Col(model.ColHigh), f.Col(model.ColLow), f.Col(model.ColClose)
	if high == nil || low == nil || close == nil {
		return nil, fmt.Errorf("cci: missing high/low/close input columns")
	}

	n := len(close)
	typical := make([]float64, n)
	for i := 0; i < n; i++ {
		typical[i] = (high[i] + low[i] + close[i]) / 3
	}

	sma := frame.RollingMean(typical, c.period)
	meanDev := replaceZero(frame.RollingMeanAbsDev(typical, c.period), 1e-10)

	cci := make([]float64, n)
	for i := 0; i < n; i++ {
		cci[i] = (typical[i] - sma[i]) / (c.constant * meanDev[i])
	}

	out := frame.New(f.Dates())
	out.MustSet("CCI", cci)

	overbought := geConst(cci, c.overbought)
	oversold := leConst(cci, c.oversold)
	out.MustSet("CCI_Overbought", overbought)
	out.MustSet("CCI_Oversold", oversold)

	out.MustSet("CCI_Above_Zero", gtConst(cci, 0))
	out.MustSet("CCI_Below_Zero", ltConst(cci, 0))
	out.MustSet("CCI_Cross_Zero_Up", crossAboveConst(cci, 0))
	out.MustSet("CCI_Cross_Zero_Down", crossBelowConst(cci, 0))

	momentum := frame.Diff(cci)
	out.MustSet("CCI_Momentum_Up", gtConst(momentum, 0))
	out.MustSet("CCI_Momentum_Down", ltConst(momentum, 0))

	bull, bear := divergences(close, cci, 10)
	out.MustSet("CCI_Bullish_Divergence", bull)
	out.MustSet("CCI_Bearish_Divergence", bear)

	abs := make([]float64, n)
	for i := range cci {
		abs[i] = math.Abs(cci[i])
	}
	out.MustSet("CCI_Trend_Strength", frame.RollingMean(abs, 5))

	obDur, osDur := zoneDurations(overbought, oversold)
	out.MustSet("CCI_Overbought_Duration", obDur)
	out.MustSet("CCI_Oversold_Duration", osDur)

	return out, nil
}

// zoneDurations counts consecutive rows spent in each zone; entering one
// zone resets the other's counter.
func zoneDurations(overbought, oversold []float64) (obDur, osDur []float64) {
	obDur = make([]float64, len(overbought))
	osDur = make([]float64, len(oversold))
	ob, os := 0, 0
	for i := range overbought {
		switch {
		case isSet(overbought[i]):
			ob++
			os = 0
		case isSet(oversold[i]):
			os++
			ob = 0
		default:
			ob, os = 0, 0
		}
		obDur[i] = float64(ob)
		osDur[i] = float64(os)
	}
	return obDur, osDur
}
