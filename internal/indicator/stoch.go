package indicator

import (
	"fmt"

	"stockdbv1/internal/frame"
	"stockdbv1/internal/model"
)

// Stochastic computes the stochastic oscillator: raw %K over the k-period
// high/low range, smoothed into the fast %K line, with %D and a slow %K
// as successive moving averages.
type Stochastic struct {
	kPeriod    int
	dPeriod    int
	smoothing  int
	overbought float64
	oversold   float64
}

// NewStochastic builds the indicator from merged parameters.
func NewStochastic(p Params) *Stochastic {
	return &Stochastic{
		kPeriod:    p.Int("k_period", 14),
		dPeriod:    p.Int("d_period", 3),
		smoothing:  p.Int("smoothing", 3),
		overbought: p.Float("overbought_level", 80),
		oversold:   p.Float("oversold_level", 20),
	}
}

func (s *Stochastic) Name() string { return "stochastic" }

func (s *Stochastic) ValidateParams() error {
	for _, p := range []int{s.kPeriod, s.dPeriod, s.smoothing} {
		if p <= 0 {
			return fmt.Errorf("%w: stochastic periods must be positive", model.ErrInvalidParameters)
		}
	}
	if !(0 < s.oversold && s.oversold < s.overbought && s.overbought < 100) {
		return fmt.Errorf("%w: need 0 < oversold(%.0f) < overbought(%.0f) < 100",
			model.ErrInvalidParameters, s.oversold, s.overbought)
	}
	return nil
}

func (s *Stochastic) RequiredColumns() []string {
	return []string{model.ColHigh, model.ColLow, model.ColClose}
}

func (s *Stochastic) MinDataPoints() int {
	return s.kPeriod + s.dPeriod + s.smoothing + 10
}

func (s *Stochastic) OutputColumns() []string {
	return []string{
		"Stochastic_K_Fast", "Stochastic_D_Slow", "Stochastic_K_Slow",
		"Stochastic_Overbought", "Stochastic_Oversold",
		"Stochastic_Golden_Cross", "Stochastic_Death_Cross",
		"Stochastic_Bullish_Divergence", "Stochastic_Bearish_Divergence",
		"Stochastic_Momentum_Up", "Stochastic_Momentum_Down",
		"Stochastic_Golden_in_Oversold", "Stochastic_Death_in_Overbought",
	}
}

func (s *Stochastic) Calculate(f *frame.Frame) (*frame.Frame, error) {
	high, low, close := f.Col(model.ColHigh), f.Col(model.ColLow), f.Col(model.ColClose)
	if high == nil || low == nil || close == nil {
		return nil, fmt.Errorf("stochastic: missing high/low/close input columns")
	}

	lowest := frame.RollingMin(low, s.kPeriod)
	highest := frame.RollingMax(high, s.kPeriod)

	kRaw := make([]float64, len(close))
	for i := range kRaw {
		span := highest[i] - lowest[i]
		if span == 0 {
			span = 1e-10
		}
		kRaw[i] = 100 * (close[i] - lowest[i]) / span
	}

	kFast := frame.RollingMean(kRaw, s.smoothing)
	dSlow := frame.RollingMean(kFast, s.dPeriod)
	kSlow := frame.RollingMean(dSlow, s.dPeriod)

	out := frame.New(f.Dates())
	out.MustSet("Stochastic_K_Fast", kFast)
	out.MustSet("Stochastic_D_Slow", dSlow)
	out.MustSet("Stochastic_K_Slow", kSlow)

	overbought := geConst(kFast, s.overbought)
	oversold := leConst(kFast, s.oversold)
	out.MustSet("Stochastic_Overbought", overbought)
	out.MustSet("Stochastic_Oversold", oversold)

	golden := crossAbove(kFast, dSlow)
	death := crossBelow(kFast, dSlow)
	out.MustSet("Stochastic_Golden_Cross", golden)
	out.MustSet("Stochastic_Death_Cross", death)

	bull, bear := divergences(close, kFast, 5)
	out.MustSet("Stochastic_Bullish_Divergence", bull)
	out.MustSet("Stochastic_Bearish_Divergence", bear)

	momentum := frame.Diff(kFast)
	out.MustSet("Stochastic_Momentum_Up", gtConst(momentum, 0))
	out.MustSet("Stochastic_Momentum_Down", ltConst(momentum, 0))

	// Crosses inside the extreme zones carry more weight.
	goldenOS := make([]float64, len(golden))
	deathOB := make([]float64, len(death))
	for i := 1; i < len(golden); i++ {
		goldenOS[i] = b2f(isSet(golden[i]) && isSet(oversold[i-1]))
		deathOB[i] = b2f(isSet(death[i]) && isSet(overbought[i-1]))
	}
	out.MustSet("Stochastic_Golden_in_Oversold", goldenOS)
	out.MustSet("Stochastic_Death_in_Overbought", deathOB)

	return out, nil
}
