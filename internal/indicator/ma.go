package indicator

import (
	"fmt"
	"sort"
	"strings"

	"stockdbv1/internal/frame"
	"stockdbv1/internal/model"
)

// MovingAverage computes one moving average per configured period plus
// price-position signals and pairwise golden/death crosses.
type MovingAverage struct {
	periods  []int
	priceCol string
	maType   string // sma, ema or wma
}

// NewMovingAverage builds the indicator from merged parameters.
func NewMovingAverage(p Params) *MovingAverage {
	return &MovingAverage{
		periods:  p.Ints("periods", []int{5, 10, 20, 30, 60}),
		priceCol: p.String("price_column", model.ColClose),
		maType:   strings.ToLower(p.String("ma_type", "sma")),
	}
}

func (m *MovingAverage) Name() string { return "moving_average" }

func (m *MovingAverage) ValidateParams() error {
	if len(m.periods) == 0 {
		return fmt.Errorf("%w: periods must list at least one period", model.ErrInvalidParameters)
	}
	for _, p := range m.periods {
		if p <= 0 {
			return fmt.Errorf("%w: period %d must be positive", model.ErrInvalidParameters, p)
		}
	}
	switch m.maType {
	case "sma", "ema", "wma":
	default:
		return fmt.Errorf("%w: ma_type %q must be sma, ema or wma", model.ErrInvalidParameters, m.maType)
	}
	return nil
}

func (m *MovingAverage) RequiredColumns() []string { return []string{m.priceCol} }

func (m *MovingAverage) MinDataPoints() int {
	max := 0
	for _, p := range m.periods {
		if p > max {
			max = p
		}
	}
	return max + 10
}

func (m *MovingAverage) prefix() string {
	switch m.maType {
	case "ema":
		return "EMA"
	case "wma":
		return "WMA"
	}
	return "MA"
}

func (m *MovingAverage) colName(period int) string {
	return fmt.Sprintf("%s_%d", m.prefix(), period)
}

func (m *MovingAverage) OutputColumns() []string {
	var cols []string
	for _, p := range m.periods {
		cols = append(cols, m.colName(p))
		if p <= 60 {
			cols = append(cols, m.colName(p)+"_Signal")
		}
	}
	sorted := append([]int(nil), m.periods...)
	sort.Ints(sorted)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			base := m.colName(sorted[i]) + "_CROSS_" + m.colName(sorted[j])
			cols = append(cols, base+"_GOLDEN", base+"_DEATH")
		}
	}
	return cols
}

func (m *MovingAverage) Calculate(f *frame.Frame) (*frame.Frame, error) {
	price := f.Col(m.priceCol)
	if price == nil {
		return nil, fmt.Errorf("moving_average: missing input column %q", m.priceCol)
	}

	out := frame.New(f.Dates())
	lines := make(map[int][]float64, len(m.periods))

	for _, period := range m.periods {
		var line []float64
		switch m.maType {
		case "ema":
			line = frame.EMA(price, period)
		case "wma":
			line = frame.WMA(price, period)
		default:
			line = frame.RollingMean(price, period)
		}
		lines[period] = line
		out.MustSet(m.colName(period), line)

		// Signals only for short-term lines.
		if period <= 60 {
			out.MustSet(m.colName(period)+"_Signal", gtSeries(price, line))
		}
	}

	sorted := append([]int(nil), m.periods...)
	sort.Ints(sorted)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			short, long := lines[sorted[i]], lines[sorted[j]]
			base := m.colName(sorted[i]) + "_CROSS_" + m.colName(sorted[j])
			out.MustSet(base+"_GOLDEN", crossAbove(short, long))
			out.MustSet(base+"_DEATH", crossBelow(short, long))
		}
	}
	return out, nil
}
