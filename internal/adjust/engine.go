package adjust

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"stockdbv1/internal/frame"
	"stockdbv1/internal/model"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Event wraps a corporate action with its per-event adjustment ratios,
// fixed at construction.
type Event struct {
	Action   model.CorporateAction
	forward  decimal.Decimal // price ratio across the ex-date, < 1 for payouts
	backward decimal.Decimal // 1 / forward
}

// NewEvent validates an action and computes its ratios. The dividend
// formula is evaluated against a unit reference price, so cash amounts
// are per unit of pre-close:
//
//	r = (1 - cash + allot_price*allot_ratio) / ((1 + shares_div + allot_ratio) * split_ratio)
//
// The denominator counts post-event shares per pre-event share, so a
// split on the same record multiplies through: a pure split reduces to
// r = 1/split_ratio and a dividend-only event to the classic formula.
func NewEvent(a model.CorporateAction) (Event, error) {
	if a.CashDividend < 0 || a.SharesDividend < 0 || a.AllotmentRatio < 0 || a.AllotmentPrice < 0 {
		return Event{}, fmt.Errorf("%w: negative corporate action field for %s@%s",
			model.ErrInvalidParameters, a.Symbol, a.ExDate.Format("2006-01-02"))
	}
	if a.SplitRatio == 0 {
		a.SplitRatio = 1
	}
	if a.SplitRatio < 0 {
		return Event{}, fmt.Errorf("%w: split ratio %v must be positive",
			model.ErrInvalidParameters, a.SplitRatio)
	}

	num := one.
		Sub(decimal.NewFromFloat(a.CashDividend)).
		Add(decimal.NewFromFloat(a.AllotmentPrice).Mul(decimal.NewFromFloat(a.AllotmentRatio)))
	den := one.
		Add(decimal.NewFromFloat(a.SharesDividend)).
		Add(decimal.NewFromFloat(a.AllotmentRatio)).
		Mul(decimal.NewFromFloat(a.SplitRatio))
	if !num.IsPositive() || !den.IsPositive() {
		return Event{}, fmt.Errorf("%w: event for %s@%s yields non-positive price ratio",
			model.ErrInvalidParameters, a.Symbol, a.ExDate.Format("2006-01-02"))
	}
	r := num.Div(den)

	return Event{Action: a, forward: r, backward: one.Div(r)}, nil
}

// ForwardRatio returns the per-event forward price ratio.
func (e Event) ForwardRatio() float64 { return e.forward.InexactFloat64() }

// BackwardRatio returns the per-event backward price ratio.
func (e Event) BackwardRatio() float64 { return e.backward.InexactFloat64() }

// Engine computes cumulative adjustment factors and rescales price series.
type Engine struct {
	store model.FactorStore
}

// NewEngine creates an engine persisting factors through store.
func NewEngine(store model.FactorStore) *Engine {
	return &Engine{store: store}
}

// CalculateFactors turns a symbol's corporate actions into cumulative
// factor records and upserts them. Events are walked newest-first so each
// record's factors cover every event at or after its ex-date; the total
// factor is the divisor forward adjustment applies to older prices.
func (e *Engine) CalculateFactors(ctx context.Context, symbol string, actions []model.CorporateAction) ([]model.FactorRecord, error) {
	if len(actions) == 0 {
		return nil, nil
	}

	events := make([]Event, 0, len(actions))
	for _, a := range actions {
		ev, err := NewEvent(a)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Action.ExDate.After(events[j].Action.ExDate)
	})

	cumF, cumB := one, one
	recs := make([]model.FactorRecord, 0, len(events))
	for _, ev := range events {
		cumF = cumF.Mul(ev.forward)
		cumB = cumB.Mul(ev.backward)
		recs = append(recs, model.FactorRecord{
			Symbol:         symbol,
			ExDate:         ev.Action.ExDate,
			CashDividend:   ev.Action.CashDividend,
			SharesDividend: ev.Action.SharesDividend,
			AllotmentRatio: ev.Action.AllotmentRatio,
			AllotmentPrice: ev.Action.AllotmentPrice,
			SplitRatio:     ev.Action.SplitRatio,
			ForwardFactor:  cumF.InexactFloat64(),
			BackwardFactor: cumB.InexactFloat64(),
			TotalFactor:    one.Div(cumF).InexactFloat64(),
		})
	}

	if e.store != nil {
		if err := e.store.SaveFactors(ctx, recs); err != nil {
			return nil, fmt.Errorf("save factors for %s: %w", symbol, err)
		}
	}
	log.Printf("[adjust] computed %d factor records for %s", len(recs), symbol)
	return recs, nil
}

// Adjust returns a rescaled copy of f. Forward mode divides prices before
// each ex-date by the applicable total factor, leaving the latest price
// untouched; backward mode multiplies prices at/after ex-dates instead,
// leaving the oldest untouched. The input frame is never modified, and a
// symbol without factor rows comes back unadjusted with a warning.
func (e *Engine) Adjust(ctx context.Context, f *frame.Frame, symbol string, mode model.AdjustMode) (*frame.Frame, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: adjust mode %q", model.ErrInvalidParameters, mode)
	}
	out := f.Copy()
	if mode == model.AdjustNone {
		return out, nil
	}

	var recs []model.FactorRecord
	if e.store != nil {
		var err error
		recs, err = e.store.ReadFactors(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("read factors for %s: %w", symbol, err)
		}
	}
	if len(recs) == 0 {
		log.Printf("[adjust] %v for %s, returning unadjusted series", model.ErrAdjustmentDataMissing, symbol)
		return out, nil
	}

	applyFactors(out, recs, mode)
	return out, nil
}

// applyFactors rescales the price columns in place. recs must be sorted
// by ex-date ascending, each carrying the cumulative total factor for
// events at or after its ex-date.
func applyFactors(f *frame.Frame, recs []model.FactorRecord, mode model.AdjustMode) {
	dates := f.Dates()
	n := len(dates)

	// totalAfter[i] = total factor of the earliest ex-date strictly after
	// dates[i], or 1 when no later event exists.
	totalAfter := make([]float64, n)
	for i, d := range dates {
		totalAfter[i] = 1
		for _, rec := range recs {
			if d.Before(rec.ExDate) {
				totalAfter[i] = rec.TotalFactor
				break
			}
		}
	}
	// The full cumulative total, applied to rows past the last ex-date in
	// backward mode.
	totalAll := recs[0].TotalFactor

	for _, col := range model.PriceColumns {
		vals := f.Col(col)
		if vals == nil {
			continue
		}
		for i := 0; i < n; i++ {
			if math.IsNaN(vals[i]) {
				continue
			}
			switch mode {
			case model.AdjustForward:
				vals[i] /= totalAfter[i]
			case model.AdjustBackward:
				vals[i] *= totalAll / totalAfter[i]
			}
		}
	}
}

// FactorsAsOf returns the cumulative total factor applicable to a date,
// for callers that rescale single quotes rather than frames.
func FactorsAsOf(recs []model.FactorRecord, d time.Time) float64 {
	for _, rec := range recs {
		if d.Before(rec.ExDate) {
			return rec.TotalFactor
		}
	}
	return 1
}
