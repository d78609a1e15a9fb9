package indicator

import (
	"fmt"
	"math"
	"strings"

	"stockdbv1/internal/frame"
	"stockdbv1/internal/model"
)

// BollingerBands computes the middle/upper/lower bands plus band-position,
// squeeze and breakout signals. The middle band matches what
// moving_average would produce for the same period and type.
type BollingerBands struct {
	period   int
	stdDev   float64
	priceCol string
	maType   string
}

// NewBollingerBands builds the indicator from merged parameters.
func NewBollingerBands(p Params) *BollingerBands {
	return &BollingerBands{
		period:   p.Int("period", 20),
		stdDev:   p.Float("std_dev", 2),
		priceCol: p.String("price_column", model.ColClose),
		maType:   strings.ToLower(p.String("ma_type", "sma")),
	}
}

func (b *BollingerBands) Name() string { return "bollinger_bands" }

func (b *BollingerBands) ValidateParams() error {
	if b.period <= 0 {
		return fmt.Errorf("%w: period must be positive", model.ErrInvalidParameters)
	}
	if b.stdDev <= 0 {
		return fmt.Errorf("%w: std_dev multiplier must be positive", model.ErrInvalidParameters)
	}
	if b.maType != "sma" && b.maType != "ema" {
		return fmt.Errorf("%w: ma_type %q must be sma or ema", model.ErrInvalidParameters, b.maType)
	}
	return nil
}

func (b *BollingerBands) RequiredColumns() []string { return []string{b.priceCol} }

func (b *BollingerBands) MinDataPoints() int { return b.period + 10 }

func (b *BollingerBands) OutputColumns() []string {
	return []string{
		"BB_Middle", "BB_Upper", "BB_Lower",
		"BB_Width_Pct", "BB_Percent_B",
		"Price_Above_Upper", "Price_Below_Lower", "Price_In_Band",
		"BB_Squeeze", "BB_Expansion", "BB_Extreme_Squeeze",
		"BB_Breakout_Upper", "BB_Breakout_Lower",
		"BB_Return_From_Upper", "BB_Return_From_Lower",
	}
}

func (b *BollingerBands) Calculate(f *frame.Frame) (*frame.Frame, error) {
	price := f.Col(b.priceCol)
	if price == nil {
		return nil, fmt.Errorf("bollinger_bands: missing input column %q", b.priceCol)
	}

	var middle []float64
	if b.maType == "ema" {
		middle = frame.EMA(price, b.period)
	} else {
		middle = frame.RollingMean(price, b.period)
	}
	std := frame.RollingStd(price, b.period)

	n := len(price)
	upper := make([]float64, n)
	lower := make([]float64, n)
	width := make([]float64, n)
	widthPct := frame.NaNs(n)
	percentB := frame.NaNs(n)
	for i := 0; i < n; i++ {
		upper[i] = middle[i] + std[i]*b.stdDev
		lower[i] = middle[i] - std[i]*b.stdDev
		width[i] = upper[i] - lower[i]
		if !math.IsNaN(middle[i]) && middle[i] != 0 {
			widthPct[i] = width[i] / middle[i] * 100
		}
		if !math.IsNaN(width[i]) && width[i] != 0 {
			percentB[i] = (price[i] - lower[i]) / width[i] * 100
		}
	}

	out := frame.New(f.Dates())
	out.MustSet("BB_Middle", middle)
	out.MustSet("BB_Upper", upper)
	out.MustSet("BB_Lower", lower)
	out.MustSet("BB_Width_Pct", widthPct)
	out.MustSet("BB_Percent_B", percentB)

	above := gtSeries(price, upper)
	below := ltSeries(price, lower)
	inBand := make([]float64, n)
	for i := range inBand {
		inBand[i] = b2f(!isSet(above[i]) && !isSet(below[i]))
	}
	out.MustSet("Price_Above_Upper", above)
	out.MustSet("Price_Below_Lower", below)
	out.MustSet("Price_In_Band", inBand)

	widthChange := frame.PctChange(width)
	out.MustSet("BB_Squeeze", ltConst(widthChange, 0))
	out.MustSet("BB_Expansion", gtConst(widthChange, 0))

	// Extreme squeeze: band width in the bottom quintile of its recent
	// history. Needs enough rows for the doubled ranking window.
	extreme := make([]float64, n)
	if n > b.period*2 {
		rank := frame.RollingRankPct(width, b.period*2)
		extreme = ltConst(rank, 0.2)
	}
	out.MustSet("BB_Extreme_Squeeze", extreme)

	out.MustSet("BB_Breakout_Upper", crossAbove(price, upper))
	out.MustSet("BB_Breakout_Lower", crossBelow(price, lower))

	// Return signals mirror the breakouts: price back inside the band
	// after closing beyond it.
	retUpper := make([]float64, n)
	retLower := make([]float64, n)
	for i := 1; i < n; i++ {
		retUpper[i] = b2f(price[i] <= upper[i] && price[i-1] > upper[i-1])
		retLower[i] = b2f(price[i] >= lower[i] && price[i-1] < lower[i-1])
	}
	out.MustSet("BB_Return_From_Upper", retUpper)
	out.MustSet("BB_Return_From_Lower", retLower)

	return out, nil
}
