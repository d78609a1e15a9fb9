package indicator

import (
	"fmt"

	"stockdbv1/internal/frame"
	"stockdbv1/internal/model"
)

const obvMAWindow = 20

// OBV computes on-balance volume: cumulative volume signed by the
// direction of the close-to-close move; flat days carry the total
// unchanged.
type OBV struct {
	priceCol  string
	volumeCol string
}

// NewOBV builds the indicator from merged parameters.
func NewOBV(p Params) *OBV {
	return &OBV{
		priceCol:  p.String("price_column", model.ColClose),
		volumeCol: p.String("volume_column", model.ColVolume),
	}
}

func (o *OBV) Name() string { return "obv" }

// ValidateParams always passes: OBV has no numeric parameters to bound.
func (o *OBV) ValidateParams() error { return nil }

func (o *OBV) RequiredColumns() []string { return []string{o.priceCol, o.volumeCol} }

func (o *OBV) MinDataPoints() int { return 2 }

func (o *OBV) OutputColumns() []string {
	return []string{
		"OBV", "OBV_Increasing", "OBV_Decreasing",
		"OBV_MA20", "OBV_Above_MA20", "OBV_Below_MA20",
		"OBV_Break_Above_MA20", "OBV_Break_Below_MA20",
		"OBV_Bullish_Divergence", "OBV_Bearish_Divergence",
	}
}

func (o *OBV) Calculate(f *frame.Frame) (*frame.Frame, error) {
	price := f.Col(o.priceCol)
	volume := f.Col(o.volumeCol)
	if price == nil || volume == nil {
		return nil, fmt.Errorf("obv: missing input columns %q/%q", o.priceCol, o.volumeCol)
	}

	n := len(price)
	obv := make([]float64, n)
	if n > 0 {
		obv[0] = volume[0]
		for i := 1; i < n; i++ {
			switch {
			case price[i] > price[i-1]:
				obv[i] = obv[i-1] + volume[i]
			case price[i] < price[i-1]:
				obv[i] = obv[i-1] - volume[i]
			default:
				obv[i] = obv[i-1]
			}
		}
	}

	out := frame.New(f.Dates())
	out.MustSet("OBV", obv)

	change := frame.Diff(obv)
	out.MustSet("OBV_Increasing", gtConst(change, 0))
	out.MustSet("OBV_Decreasing", ltConst(change, 0))

	ma := frame.RollingMean(obv, obvMAWindow)
	out.MustSet("OBV_MA20", ma)
	out.MustSet("OBV_Above_MA20", gtSeries(obv, ma))
	out.MustSet("OBV_Below_MA20", ltSeries(obv, ma))
	out.MustSet("OBV_Break_Above_MA20", crossAbove(obv, ma))
	out.MustSet("OBV_Break_Below_MA20", crossBelow(obv, ma))

	bull, bear := divergences(price, obv, 10)
	out.MustSet("OBV_Bullish_Divergence", bull)
	out.MustSet("OBV_Bearish_Divergence", bear)

	return out, nil
}
