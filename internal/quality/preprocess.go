package quality

import (
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"stockdbv1/internal/frame"
	"stockdbv1/internal/model"
	"stockdbv1/internal/tradecal"
)

// scoredColumns are the price columns whose completeness feeds the score.
var scoredColumns = []string{model.ColOpen, model.ColHigh, model.ColLow, model.ColClose}

// Pipeline cleans and scores raw daily bars before indicator computation.
type Pipeline struct {
	cal *tradecal.Calendar
}

// New creates a pipeline scoring continuity against the given calendar.
func New(cal *tradecal.Calendar) *Pipeline {
	return &Pipeline{cal: cal}
}

// Preprocess deduplicates, sorts, scores, and gap-fills one symbol's bars.
// Invalid-quality input comes back cleaned but unfilled, and the report's
// level tells the caller not to compute on it.
func (p *Pipeline) Preprocess(bars []model.DailyBar, symbol string, r model.DateRange) (*frame.Frame, *model.QualityReport) {
	report := &model.QualityReport{
		Symbol:       symbol,
		Range:        r.String(),
		RowsIn:       len(bars),
		Completeness: make(map[string]float64, len(scoredColumns)),
	}

	if len(bars) == 0 {
		report.Level = model.QualityInvalid
		report.Suggestions = append(report.Suggestions,
			fmt.Sprintf("no bars for %s in %s; backfill the range before computing", symbol, r))
		for _, col := range scoredColumns {
			report.Completeness[col] = 0
		}
		return frame.New(nil), report
	}

	deduped, dups := dedupe(bars)
	report.Duplicates = dups
	report.RowsOut = len(deduped)

	sort.Slice(deduped, func(i, j int) bool { return deduped[i].Date.Before(deduped[j].Date) })

	f := toFrame(deduped)

	// Completeness per scored price column.
	var sum float64
	for _, col := range scoredColumns {
		ratio := presentRatio(f.Col(col))
		report.Completeness[col] = ratio
		sum += ratio
	}

	report.Continuity = p.continuity(f.Dates())
	sum += report.Continuity

	score := sum / float64(len(scoredColumns)+1)
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	report.Score = score
	report.Level = model.LevelForScore(score)
	report.Suggestions = suggestions(report)

	if !report.Usable() {
		log.Printf("[quality] %s %s scored %.2f (%s), skipping fill", symbol, r, score, report.Level)
		return f, report
	}

	report.FilledValues = fill(f)
	derive(f)
	return f, report
}

// dedupe keeps the first bar seen per trade date.
func dedupe(bars []model.DailyBar) ([]model.DailyBar, int) {
	seen := make(map[string]bool, len(bars))
	out := make([]model.DailyBar, 0, len(bars))
	dups := 0
	for _, b := range bars {
		k := b.Key()
		if seen[k] {
			dups++
			continue
		}
		seen[k] = true
		out = append(out, b)
	}
	return out, dups
}

func toFrame(bars []model.DailyBar) *frame.Frame {
	n := len(bars)
	dates := make([]time.Time, n)
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	cls := make([]float64, n)
	vol := make([]float64, n)
	amt := make([]float64, n)
	pre := make([]float64, n)
	for i, b := range bars {
		dates[i] = b.Date
		open[i], high[i], low[i] = b.Open, b.High, b.Low
		cls[i], vol[i], amt[i], pre[i] = b.Close, b.Volume, b.Amount, b.PreClose
	}
	f := frame.New(dates)
	f.MustSet(model.ColOpen, open)
	f.MustSet(model.ColHigh, high)
	f.MustSet(model.ColLow, low)
	f.MustSet(model.ColClose, cls)
	f.MustSet(model.ColVolume, vol)
	f.MustSet(model.ColAmount, amt)
	f.MustSet(model.ColPreClose, pre)
	return f
}

func presentRatio(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	present := 0
	for _, v := range vals {
		if !math.IsNaN(v) {
			present++
		}
	}
	return float64(present) / float64(len(vals))
}

// continuity is the fraction of consecutive date pairs where the second
// date is exactly the next trading day after the first. Single-row input
// has nothing to break, so it scores 1.
func (p *Pipeline) continuity(dates []time.Time) float64 {
	if len(dates) < 2 {
		return 1
	}
	ok := 0
	for i := 1; i < len(dates); i++ {
		if dates[i].Equal(p.cal.NextTradingDay(dates[i-1])) {
			ok++
		}
	}
	return float64(ok) / float64(len(dates)-1)
}

func suggestions(r *model.QualityReport) []string {
	var out []string
	if r.Duplicates > 0 {
		out = append(out, fmt.Sprintf("dropped %d duplicate rows; check the upstream loader", r.Duplicates))
	}
	for _, col := range scoredColumns {
		if ratio := r.Completeness[col]; ratio < 1 {
			out = append(out, fmt.Sprintf("column %s is %.0f%% complete; missing prices will be filled from neighbors", col, ratio*100))
		}
	}
	if r.Continuity < 0.95 {
		out = append(out, fmt.Sprintf("date continuity %.2f; series has trading-day gaps", r.Continuity))
	}
	if r.Level == model.QualityInvalid {
		out = append(out, "quality below the usable threshold; refresh this symbol's data")
	}
	return out
}

// fill forward-fills then back-fills price columns and zero-fills
// volume/amount. Returns the number of values written.
func fill(f *frame.Frame) int {
	filled := 0
	for _, col := range model.PriceColumns {
		vals := f.Col(col)
		if vals == nil {
			continue
		}
		filled += ffill(vals)
		filled += bfill(vals)
	}
	for _, col := range []string{model.ColVolume, model.ColAmount} {
		vals := f.Col(col)
		if vals == nil {
			continue
		}
		for i, v := range vals {
			if math.IsNaN(v) {
				vals[i] = 0
				filled++
			}
		}
	}
	return filled
}

func ffill(vals []float64) int {
	n := 0
	prev := math.NaN()
	for i, v := range vals {
		if math.IsNaN(v) {
			if !math.IsNaN(prev) {
				vals[i] = prev
				n++
			}
			continue
		}
		prev = v
	}
	return n
}

func bfill(vals []float64) int {
	n := 0
	next := math.NaN()
	for i := len(vals) - 1; i >= 0; i-- {
		if math.IsNaN(vals[i]) {
			if !math.IsNaN(next) {
				vals[i] = next
				n++
			}
			continue
		}
		next = vals[i]
	}
	return n
}

// derive adds the convenience columns downstream consumers expect.
func derive(f *frame.Frame) {
	cls := f.Col(model.ColClose)
	high := f.Col(model.ColHigh)
	low := f.Col(model.ColLow)
	vol := f.Col(model.ColVolume)
	n := f.Len()

	f.MustSet("price_change", frame.Diff(cls))
	f.MustSet("price_pct_change", frame.PctChange(cls))
	f.MustSet("sma_5", frame.RollingMean(cls, 5))
	f.MustSet("sma_10", frame.RollingMean(cls, 10))

	rng := make([]float64, n)
	rngPct := make([]float64, n)
	for i := 0; i < n; i++ {
		rng[i] = high[i] - low[i]
		if math.IsNaN(cls[i]) || cls[i] == 0 {
			rngPct[i] = math.NaN()
		} else {
			rngPct[i] = rng[i] / cls[i] * 100
		}
	}
	f.MustSet("price_range", rng)
	f.MustSet("price_range_pct", rngPct)

	volMA := frame.RollingMean(vol, 5)
	volRatio := make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(volMA[i]) || volMA[i] == 0 {
			volRatio[i] = math.NaN()
		} else {
			volRatio[i] = vol[i] / volMA[i]
		}
	}
	f.MustSet("volume_ma_5", volMA)
	f.MustSet("volume_ratio", volRatio)

	dow := make([]float64, n)
	month := make([]float64, n)
	for i, d := range f.Dates() {
		// Monday = 0 through Sunday = 6.
		dow[i] = float64((int(d.Weekday()) + 6) % 7)
		month[i] = float64(d.Month())
	}
	f.MustSet("day_of_week", dow)
	f.MustSet("month", month)
}
