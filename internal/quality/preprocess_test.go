package quality

import (
	"math"
	"testing"
	"time"

	"stockdbv1/internal/model"
	"stockdbv1/internal/tradecal"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func bar(date string, close float64) model.DailyBar {
	return model.DailyBar{
		Symbol: "600519",
		Date:   day(date),
		Open:   close - 1,
		High:   close + 1,
		Low:    close - 2,
		Close:  close,
		Volume: 10000,
		Amount: close * 10000,
	}
}

// weekBars returns clean consecutive weekday bars starting Mon 2024-01-08.
func weekBars(n int) []model.DailyBar {
	cal := tradecal.New(nil)
	bars := make([]model.DailyBar, 0, n)
	d := day("2024-01-08")
	for i := 0; i < n; i++ {
		bars = append(bars, bar(d.Format("2006-01-02"), 100+float64(i)))
		d = cal.NextTradingDay(d)
	}
	return bars
}

func testRange() model.DateRange {
	return model.DateRange{Start: day("2024-01-08"), End: day("2024-03-29")}
}

func TestPreprocess_CleanSeriesScoresExcellent(t *testing.T) {
	p := New(tradecal.New(nil))
	f, report := p.Preprocess(weekBars(10), "600519", testRange())

	if report.Score != 1 {
		t.Errorf("score = %v, want 1 for clean data", report.Score)
	}
	if report.Level != model.QualityExcellent {
		t.Errorf("level = %s, want excellent", report.Level)
	}
	if report.Continuity != 1 {
		t.Errorf("continuity = %v, want 1", report.Continuity)
	}
	if !report.Usable() {
		t.Error("excellent report should be usable")
	}
	if f.Len() != 10 {
		t.Errorf("frame has %d rows, want 10", f.Len())
	}
	for _, col := range []string{"price_change", "sma_5", "volume_ratio", "day_of_week", "month"} {
		if !f.Has(col) {
			t.Errorf("derived column %s missing", col)
		}
	}
	// 2024-01-08 is a Monday.
	if got := f.Col("day_of_week")[0]; got != 0 {
		t.Errorf("day_of_week[0] = %v, want 0", got)
	}
	if got := f.Col("month")[0]; got != 1 {
		t.Errorf("month[0] = %v, want 1", got)
	}
}

func TestPreprocess_EmptyInput(t *testing.T) {
	p := New(tradecal.New(nil))
	f, report := p.Preprocess(nil, "600519", testRange())

	if report.Score != 0 {
		t.Errorf("score = %v, want 0", report.Score)
	}
	if report.Level != model.QualityInvalid {
		t.Errorf("level = %s, want invalid", report.Level)
	}
	if len(report.Suggestions) == 0 {
		t.Error("empty input must produce suggestions")
	}
	if report.Usable() {
		t.Error("invalid report should not be usable")
	}
	if f.Len() != 0 {
		t.Errorf("frame has %d rows, want 0", f.Len())
	}
}

func TestPreprocess_DeduplicatesKeepingFirst(t *testing.T) {
	bars := weekBars(5)
	dup := bars[2]
	dup.Close = 999 // later duplicate must lose
	bars = append(bars, dup)

	p := New(tradecal.New(nil))
	f, report := p.Preprocess(bars, "600519", testRange())

	if report.Duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", report.Duplicates)
	}
	if report.RowsIn != 6 || report.RowsOut != 5 {
		t.Errorf("rows in/out = %d/%d, want 6/5", report.RowsIn, report.RowsOut)
	}
	if got := f.Col(model.ColClose)[2]; got != 102 {
		t.Errorf("close[2] = %v, want first-seen 102", got)
	}
}

func TestPreprocess_SortsByDate(t *testing.T) {
	bars := weekBars(5)
	bars[0], bars[4] = bars[4], bars[0]

	p := New(tradecal.New(nil))
	f, report := p.Preprocess(bars, "600519", testRange())

	if report.Continuity != 1 {
		t.Errorf("continuity = %v after sort, want 1", report.Continuity)
	}
	dates := f.Dates()
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			t.Fatal("frame dates not sorted ascending")
		}
	}
}

func TestPreprocess_FillsMissingValues(t *testing.T) {
	bars := weekBars(10)
	bars[0].Close = math.NaN() // back-filled from row 1
	bars[4].Close = math.NaN() // forward-filled from row 3
	bars[4].Volume = math.NaN()

	p := New(tradecal.New(nil))
	f, report := p.Preprocess(bars, "600519", testRange())

	if !report.Usable() {
		t.Fatalf("level = %s, want usable", report.Level)
	}
	cls := f.Col(model.ColClose)
	if cls[0] != 101 {
		t.Errorf("close[0] = %v, want back-filled 101", cls[0])
	}
	if cls[4] != 103 {
		t.Errorf("close[4] = %v, want forward-filled 103", cls[4])
	}
	if got := f.Col(model.ColVolume)[4]; got != 0 {
		t.Errorf("volume[4] = %v, want zero-filled", got)
	}
	if report.FilledValues != 3 {
		t.Errorf("filled = %d, want 3", report.FilledValues)
	}
	if report.Completeness[model.ColClose] != 0.8 {
		t.Errorf("close completeness = %v, want 0.8", report.Completeness[model.ColClose])
	}
	if len(report.Suggestions) == 0 {
		t.Error("missing values should produce suggestions")
	}
}

func TestPreprocess_GapsLowerContinuity(t *testing.T) {
	cal := tradecal.New(nil)
	bars := weekBars(10)
	// Remove two interior days: 2 of 7 remaining gaps are wrong.
	bars = append(bars[:3], bars[4:]...)
	bars = append(bars[:6], bars[7:]...)

	p := New(cal)
	_, report := p.Preprocess(bars, "600519", testRange())

	want := 5.0 / 7.0
	if math.Abs(report.Continuity-want) > 1e-9 {
		t.Errorf("continuity = %v, want %v", report.Continuity, want)
	}
	if report.Score >= 1 {
		t.Error("gapped series should score below 1")
	}
}

func TestPreprocess_MostlyEmptyIsInvalidAndUnfilled(t *testing.T) {
	bars := weekBars(10)
	for i := 1; i < 10; i++ {
		bars[i].Open = math.NaN()
		bars[i].High = math.NaN()
		bars[i].Low = math.NaN()
		bars[i].Close = math.NaN()
	}
	// Completeness 0.1 per column, continuity 1: score (4*0.1+1)/5 = 0.28.
	p := New(tradecal.New(nil))
	f, report := p.Preprocess(bars, "600519", testRange())

	if report.Level != model.QualityInvalid {
		t.Fatalf("level = %s, want invalid", report.Level)
	}
	if math.Abs(report.Score-0.28) > 1e-9 {
		t.Errorf("score = %v, want 0.28", report.Score)
	}
	// No fill on invalid input: the NaNs stay.
	if !math.IsNaN(f.Col(model.ColClose)[5]) {
		t.Error("invalid input should not be gap-filled")
	}
	if f.Has("sma_5") {
		t.Error("invalid input should not gain derived columns")
	}
}
