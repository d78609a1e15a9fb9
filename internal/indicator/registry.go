package indicator

import (
	"fmt"
	"sort"

	"stockdbv1/internal/model"
)

// Indicator categories.
const (
	CategoryTrend      = "trend"
	CategoryMomentum   = "momentum"
	CategoryVolatility = "volatility"
	CategoryVolume     = "volume"
)

// Descriptor describes a registered indicator without instantiating it.
type Descriptor struct {
	Name          string `json:"name"`
	Category      string `json:"category"`
	Description   string `json:"description"`
	Defaults      Params `json:"defaults"`
	MinDataPoints int    `json:"min_data_points"` // at default parameters
}

// Factory builds an indicator instance for the given merged parameters.
type Factory func(p Params) Indicator

type entry struct {
	desc    Descriptor
	factory Factory
}

// Registry maps indicator names to factories and descriptors.
type Registry struct {
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds an indicator. Re-registering a name replaces it.
func (r *Registry) Register(desc Descriptor, factory Factory) {
	r.entries[desc.Name] = entry{desc: desc, factory: factory}
}

// Has reports whether the name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// New instantiates a registered indicator with defaults merged under the
// given overrides.
func (r *Registry) New(name string, overrides Params) (Indicator, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnregisteredIndicator, name)
	}
	return e.factory(Merge(e.desc.Defaults, overrides)), nil
}

// Describe returns the descriptor for a registered name.
func (r *Registry) Describe(name string) (Descriptor, error) {
	e, ok := r.entries[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", model.ErrUnregisteredIndicator, name)
	}
	return e.desc, nil
}

// List returns all descriptors sorted by name.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NewDefaultRegistry returns a registry with the full built-in indicator
// set.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(Descriptor{
		Name:        "moving_average",
		Category:    CategoryTrend,
		Description: "Simple/exponential/weighted moving averages with cross signals",
		Defaults: Params{
			"periods":      []int{5, 10, 20, 30, 60},
			"price_column": model.ColClose,
			"ma_type":      "sma",
		},
		MinDataPoints: 70,
	}, func(p Params) Indicator { return NewMovingAverage(p) })

	r.Register(Descriptor{
		Name:        "macd",
		Category:    CategoryTrend,
		Description: "Moving average convergence divergence",
		Defaults: Params{
			"fast_period":   12,
			"slow_period":   26,
			"signal_period": 9,
			"price_column":  model.ColClose,
		},
		MinDataPoints: 45,
	}, func(p Params) Indicator { return NewMACD(p) })

	r.Register(Descriptor{
		Name:        "rsi",
		Category:    CategoryMomentum,
		Description: "Relative strength index",
		Defaults: Params{
			"period":       14,
			"price_column": model.ColClose,
			"overbought":   70.0,
			"oversold":     30.0,
		},
		MinDataPoints: 24,
	}, func(p Params) Indicator { return NewRSI(p) })

	r.Register(Descriptor{
		Name:        "bollinger_bands",
		Category:    CategoryVolatility,
		Description: "Bollinger bands with squeeze and breakout signals",
		Defaults: Params{
			"period":       20,
			"std_dev":      2.0,
			"price_column": model.ColClose,
		},
		MinDataPoints: 30,
	}, func(p Params) Indicator { return NewBollingerBands(p) })

	r.Register(Descriptor{
		Name:        "stochastic",
		Category:    CategoryMomentum,
		Description: "Stochastic oscillator",
		Defaults: Params{
			"k_period":         14,
			"d_period":         3,
			"smoothing":        3,
			"overbought_level": 80.0,
			"oversold_level":   20.0,
		},
		MinDataPoints: 30,
	}, func(p Params) Indicator { return NewStochastic(p) })

	r.Register(Descriptor{
		Name:        "cci",
		Category:    CategoryMomentum,
		Description: "Commodity channel index",
		Defaults: Params{
			"period":           20,
			"constant":         0.015,
			"overbought_level": 100.0,
			"oversold_level":   -100.0,
		},
		MinDataPoints: 30,
	}, func(p Params) Indicator { return NewCCI(p) })

	r.Register(Descriptor{
		Name:        "williams_r",
		Category:    CategoryMomentum,
		Description: "Williams %R",
		Defaults: Params{
			"period":           14,
			"overbought_level": -20.0,
			"oversold_level":   -80.0,
		},
		MinDataPoints: 24,
	}, func(p Params) Indicator { return NewWilliamsR(p) })

	r.Register(Descriptor{
		Name:        "parabolic_sar",
		Category:    CategoryTrend,
		Description: "Parabolic stop-and-reverse",
		Defaults: Params{
			"acceleration_factor": 0.02,
			"acceleration_max":    0.2,
		},
		MinDataPoints: 20,
	}, func(p Params) Indicator { return NewParabolicSAR(p) })

	r.Register(Descriptor{
		Name:        "ichimoku_cloud",
		Category:    CategoryTrend,
		Description: "Ichimoku cloud",
		Defaults: Params{
			"tenkan_period":        9,
			"kijun_period":         26,
			"senkou_span_b_period": 52,
			"displacement":         26,
		},
		MinDataPoints: 88,
	}, func(p Params) Indicator { return NewIchimokuCloud(p) })

	r.Register(Descriptor{
		Name:        "obv",
		Category:    CategoryVolume,
		Description: "On-balance volume",
		Defaults: Params{
			"price_column":  model.ColClose,
			"volume_column": model.ColVolume,
		},
		MinDataPoints: 2,
	}, func(p Params) Indicator { return NewOBV(p) })

	return r
}
