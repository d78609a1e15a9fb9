package indicator

import (
	"fmt"

	"stockdbv1/internal/frame"
	"stockdbv1/internal/model"
)

// MACD computes the moving average convergence divergence lines with
// cross, histogram-turn and zero-line signals. The histogram carries the
// conventional 2x scaling of the DIF/DEA gap.
type MACD struct {
	fast     int
	slow     int
	signal   int
	priceCol string
}

// NewMACD builds the indicator from merged parameters.
func NewMACD(p Params) *MACD {
	return &MACD{
		fast:     p.Int("fast_period", 12),
		slow:     p.Int("slow_period", 26),
		signal:   p.Int("signal_period", 9),
		priceCol: p.String("price_column", model.ColClose),
	}
}

func (m *MACD) Name() string { return "macd" }

func (m *MACD) ValidateParams() error {
	for _, p := range []int{m.fast, m.slow, m.signal} {
		if p <= 0 {
			return fmt.Errorf("%w: MACD periods must be positive", model.ErrInvalidParameters)
		}
	}
	if m.fast >= m.slow {
		return fmt.Errorf("%w: fast period %d must be less than slow period %d",
			model.ErrInvalidParameters, m.fast, m.slow)
	}
	return nil
}

func (m *MACD) RequiredColumns() []string { return []string{m.priceCol} }

func (m *MACD) MinDataPoints() int { return m.slow + m.signal + 10 }

func (m *MACD) OutputColumns() []string {
	return []string{
		"MACD_DIF", "MACD_DEA", "MACD_HIST",
		"MACD_GOLDEN_CROSS", "MACD_DEATH_CROSS",
		"MACD_HIST_TURNING_UP", "MACD_HIST_TURNING_DOWN",
		"MACD_DIF_ABOVE_ZERO", "MACD_DIF_BELOW_ZERO",
		"MACD_DIF_CROSS_ZERO_UP", "MACD_DIF_CROSS_ZERO_DOWN",
	}
}

func (m *MACD) Calculate(f *frame.Frame) (*frame.Frame, error) {
	price := f.Col(m.priceCol)
	if price == nil {
		return nil, fmt.Errorf("macd: missing input column %q", m.priceCol)
	}

	emaFast := frame.EMA(price, m.fast)
	emaSlow := frame.EMA(price, m.slow)

	dif := make([]float64, len(price))
	for i := range dif {
		dif[i] = emaFast[i] - emaSlow[i]
	}
	dea := frame.EMA(dif, m.signal)
	hist := make([]float64, len(price))
	for i := range hist {
		hist[i] = (dif[i] - dea[i]) * 2
	}

	out := frame.New(f.Dates())
	out.MustSet("MACD_DIF", dif)
	out.MustSet("MACD_DEA", dea)
	out.MustSet("MACD_HIST", hist)

	out.MustSet("MACD_GOLDEN_CROSS", crossAbove(dif, dea))
	out.MustSet("MACD_DEATH_CROSS", crossBelow(dif, dea))

	histDiff := frame.Diff(hist)
	out.MustSet("MACD_HIST_TURNING_UP", crossAboveConst(histDiff, 0))
	out.MustSet("MACD_HIST_TURNING_DOWN", crossBelowConst(histDiff, 0))

	out.MustSet("MACD_DIF_ABOVE_ZERO", gtConst(dif, 0))
	out.MustSet("MACD_DIF_BELOW_ZERO", ltConst(dif, 0))
	out.MustSet("MACD_DIF_CROSS_ZERO_UP", crossAboveConst(dif, 0))
	out.MustSet("MACD_DIF_CROSS_ZERO_DOWN", crossBelowConst(dif, 0))

	return out, nil
}
