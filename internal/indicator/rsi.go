package indicator

import (
	"fmt"
	"math"

	"stockdbv1/internal/frame"
	"stockdbv1/internal/model"
)

// RSI computes the Relative Strength Index using Wilder's smoothing:
// the first average gain/loss is a simple mean over the period, later
// values blend as (prev*(period-1) + delta)/period. Output is bounded
// to [0, 100] with an all-gain window pinned at 100.
type RSI struct {
	period     int
	priceCol   string
	overbought float64
	oversold   float64
}

// NewRSI builds the indicator from merged parameters.
func NewRSI(p Params) *RSI {
	return &RSI{
		period:     p.Int("period", 14),
		priceCol:   p.String("price_column", model.ColClose),
		overbought: p.Float("overbought", 70),
		oversold:   p.Float("oversold", 30),
	}
}

func (r *RSI) Name() string { return "rsi" }

func (r *RSI) ValidateParams() error {
	if r.period <= 0 {
		return fmt.Errorf("%w: RSI period must be positive", model.ErrInvalidParameters)
	}
	if !(0 < r.oversold && r.oversold < r.overbought && r.overbought < 100) {
		return fmt.Errorf("%w: need 0 < oversold(%.0f) < overbought(%.0f) < 100",
			model.ErrInvalidParameters, r.oversold, r.overbought)
	}
	return nil
}

func (r *RSI) RequiredColumns() []string { return []string{r.priceCol} }

func (r *RSI) MinDataPoints() int {
	if r.period+10 < 20 {
		return 20
	}
	return r.period + 10
}

func (r *RSI) OutputColumns() []string {
	return []string{
		"RSI",
		"RSI_Overbought", "RSI_Oversold",
		"RSI_Buy_Signal", "RSI_Sell_Signal",
		"RSI_Trend",
	}
}

func (r *RSI) Calculate(f *frame.Frame) (*frame.Frame, error) {
	price := f.Col(r.priceCol)
	if price == nil {
		return nil, fmt.Errorf("rsi: missing input column %q", r.priceCol)
	}

	rsi := frame.NaNs(len(price))
	var avgGain, avgLoss float64
	seen := 0 // deltas accumulated so far

	for i := 1; i < len(price); i++ {
		if math.IsNaN(price[i]) || math.IsNaN(price[i-1]) {
			continue
		}
		delta := price[i] - price[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}

		seen++
		p := float64(r.period)
		if seen < r.period {
			avgGain += gain
			avgLoss += loss
			continue
		}
		if seen == r.period {
			avgGain = (avgGain + gain) / p
			avgLoss = (avgLoss + loss) / p
		} else {
			avgGain = (avgGain*(p-1) + gain) / p
			avgLoss = (avgLoss*(p-1) + loss) / p
		}

		if avgLoss == 0 {
			rsi[i] = 100
		} else {
			rs := avgGain / avgLoss
			rsi[i] = 100 - 100/(1+rs)
		}
	}

	out := frame.New(f.Dates())
	out.MustSet("RSI", rsi)
	out.MustSet("RSI_Overbought", geConst(rsi, r.overbought))
	out.MustSet("RSI_Oversold", leConst(rsi, r.oversold))
	out.MustSet("RSI_Buy_Signal", crossAboveConst(rsi, r.oversold))
	out.MustSet("RSI_Sell_Signal", crossBelowConst(rsi, r.overbought))

	// Trend: +1 rising above the midline, -1 falling below it, else 0.
	trend := make([]float64, len(rsi))
	for i := 1; i < len(rsi); i++ {
		if math.IsNaN(rsi[i]) || math.IsNaN(rsi[i-1]) {
			continue
		}
		switch {
		case rsi[i] > 50 && rsi[i] > rsi[i-1]:
			trend[i] = 1
		case rsi[i] < 50 && rsi[i] < rsi[i-1]:
			trend[i] = -1
		}
	}
	out.MustSet("RSI_Trend", trend)

	return out, nil
}
