package indicator

import (
	"fmt"
	"math"

	"stockdbv1/internal/frame"
	"stockdbv1/internal/model"
)

// IchimokuCloud computes the five Ichimoku lines with the cloud displaced
// forward and the lagging span displaced backward, plus cloud geometry
// and price-position signals.
type IchimokuCloud struct {
	tenkan       int
	kijun        int
	senkouB      int
	displacement int
}

// NewIchimokuCloud builds the indicator from merged parameters.
func NewIchimokuCloud(p Params) *IchimokuCloud {
	return &IchimokuCloud{
		tenkan:       p.Int("tenkan_period", 9),
		kijun:        p.Int("kijun_period", 26),
		senkouB:      p.Int("senkou_span_b_period", 52),
		displacement: p.Int("displacement", 26),
	}
}

func (ic *IchimokuCloud) Name() string { return "ichimoku_cloud" }

func (ic *IchimokuCloud) ValidateParams() error {
	for _, p := range []int{ic.tenkan, ic.kijun, ic.senkouB} {
		if p <= 0 {
			return fmt.Errorf("%w: ichimoku periods must be positive", model.ErrInvalidParameters)
		}
	}
	if ic.displacement <= 0 || ic.displacement > 100 {
		return fmt.Errorf("%w: displacement %d must be in 1..100",
			model.ErrInvalidParameters, ic.displacement)
	}
	return nil
}

func (ic *IchimokuCloud) RequiredColumns() []string {
	return []string{model.ColHigh, model.ColLow, model.ColClose}
}

func (ic *IchimokuCloud) MinDataPoints() int {
	max := ic.tenkan
	if ic.kijun > max {
		max = ic.kijun
	}
	if ic.senkouB > max {
		max = ic.senkouB
	}
	return max + ic.displacement + 10
}

func (ic *IchimokuCloud) OutputColumns() []string {
	return []string{
		"Ichimoku_Tenkan", "Ichimoku_Kijun",
		"Ichimoku_Senkou_A", "Ichimoku_Senkou_B", "Ichimoku_Chikou",
		"Tenkan_Kijun_Cross_Up", "Tenkan_Kijun_Cross_Down",
		"Cloud_Top", "Cloud_Bottom",
		"Price_Above_Cloud", "Price_Below_Cloud", "Price_In_Cloud",
		"Chikou_Above_Price", "Chikou_Below_Price",
		"Cloud_Thickness", "Cloud_Color_Green", "Cloud_Color_Red",
		"Future_Cloud_Top", "Future_Cloud_Bottom", "Future_Cloud_Green",
	}
}

// pivotLine is the midpoint of the trailing high/low range.
func pivotLine(high, low []float64, period int) []float64 {
	hh := frame.RollingMax(high, period)
	ll := frame.RollingMin(low, period)
	out := make([]float64, len(high))
	for i := range out {
		out[i] = (hh[i] + ll[i]) / 2
	}
	return out
}

func (ic *IchimokuCloud) Calculate(f *frame.Frame) (*frame.Frame, error) {
	high, low, close := f.Col(model.ColHigh), f.Col(model.ColLow), f.Col(model.ColClose)
	if high == nil || low == nil || close == nil {
		return nil, fmt.Errorf("ichimoku_cloud: missing high/low/close input columns")
	}

	tenkan := pivotLine(high, low, ic.tenkan)
	kijun := pivotLine(high, low, ic.kijun)

	n := len(close)
	midpoint := make([]float64, n)
	for i := 0; i < n; i++ {
		midpoint[i] = (tenkan[i] + kijun[i]) / 2
	}
	senkouA := frame.Shift(midpoint, ic.displacement)
	senkouB := frame.Shift(pivotLine(high, low, ic.senkouB), ic.displacement)
	chikou := frame.Shift(close, -ic.displacement)

	out := frame.New(f.Dates())
	out.MustSet("Ichimoku_Tenkan", tenkan)
	out.MustSet("Ichimoku_Kijun", kijun)
	out.MustSet("Ichimoku_Senkou_A", senkouA)
	out.MustSet("Ichimoku_Senkou_B", senkouB)
	out.MustSet("Ichimoku_Chikou", chikou)

	out.MustSet("Tenkan_Kijun_Cross_Up", crossAbove(tenkan, kijun))
	out.MustSet("Tenkan_Kijun_Cross_Down", crossBelow(tenkan, kijun))

	top := make([]float64, n)
	bottom := make([]float64, n)
	thickness := make([]float64, n)
	for i := 0; i < n; i++ {
		// Warmup rows can have one span present before the other; the
		// cloud edge follows whichever line exists.
		top[i] = nanMax(senkouA[i], senkouB[i])
		bottom[i] = nanMin(senkouA[i], senkouB[i])
		thickness[i] = math.Abs(senkouA[i] - senkouB[i])
	}
	out.MustSet("Cloud_Top", top)
	out.MustSet("Cloud_Bottom", bottom)

	above := gtSeries(close, top)
	below := ltSeries(close, bottom)
	inCloud := make([]float64, n)
	for i := range inCloud {
		inCloud[i] = b2f(!isSet(above[i]) && !isSet(below[i]))
	}
	out.MustSet("Price_Above_Cloud", above)
	out.MustSet("Price_Below_Cloud", below)
	out.MustSet("Price_In_Cloud", inCloud)

	out.MustSet("Chikou_Above_Price", gtSeries(chikou, close))
	out.MustSet("Chikou_Below_Price", ltSeries(chikou, close))

	out.MustSet("Cloud_Thickness", thickness)
	out.MustSet("Cloud_Color_Green", gtSeries(senkouA, senkouB))
	out.MustSet("Cloud_Color_Red", ltSeries(senkouA, senkouB))

	out.MustSet("Future_Cloud_Top", frame.Shift(top, -ic.displacement))
	out.MustSet("Future_Cloud_Bottom", frame.Shift(bottom, -ic.displacement))
	out.MustSet("Future_Cloud_Green",
		gtSeries(frame.Shift(senkouA, -ic.displacement), frame.Shift(senkouB, -ic.displacement)))

	return out, nil
}

func nanMax(a, b float64) float64 {
	if math.IsNaN(a) {
		return b
	}
	if math.IsNaN(b) {
		return a
	}
	return maxOf(a, b)
}

func nanMin(a, b float64) float64 {
	if math.IsNaN(a) {
		return b
	}
	if math.IsNaN(b) {
		return a
	}
	return minOf(a, b)
}
