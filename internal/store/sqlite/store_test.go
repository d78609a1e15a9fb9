package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"stockdbv1/internal/metrics"
	"stockdbv1/internal/model"

	dto "github.com/prometheus/client_model/go"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestStore_BarRoundTrip(t *testing.T) {
	st, err := New(StoreConfig{DBPath: filepath.Join(t.TempDir(), "bars.db")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	bars := []model.DailyBar{
		{Symbol: "600519", Date: day("2024-01-02"), Open: 1700, High: 1720, Low: 1690, Close: 1710, Volume: 30000, Amount: 5.1e7, PreClose: 1695},
		{Symbol: "600519", Date: day("2024-01-03"), Open: 1710, High: 1730, Low: 1705, Close: 1725, Volume: 28000, Amount: 4.8e7, PreClose: 1710},
		{Symbol: "000001", Date: day("2024-01-02"), Open: 9.1, High: 9.3, Low: 9.0, Close: 9.2, Volume: 1e6, Amount: 9.2e6, PreClose: 9.05},
	}
	if err := st.WriteBars(ctx, bars); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := st.ReadBars(ctx, "600519", model.DateRange{Start: day("2024-01-01"), End: day("2024-01-31")})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d bars, want 2", len(got))
	}
	if !got[0].Date.Before(got[1].Date) {
		t.Error("bars not sorted ascending")
	}
	if got[1].Close != 1725 {
		t.Errorf("close = %v, want 1725", got[1].Close)
	}

	// Range excludes the other symbol and out-of-range dates.
	got, err = st.ReadBars(ctx, "600519", model.DateRange{Start: day("2024-01-03"), End: day("2024-01-03")})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || !got[0].Date.Equal(day("2024-01-03")) {
		t.Fatalf("range filter returned %v", got)
	}
}

func TestStore_UpsertReplaces(t *testing.T) {
	st, err := New(StoreConfig{DBPath: filepath.Join(t.TempDir(), "bars.db")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	bar := model.DailyBar{Symbol: "000001", Date: day("2024-01-02"), Close: 9.2}
	if err := st.WriteBars(ctx, []model.DailyBar{bar}); err != nil {
		t.Fatalf("write: %v", err)
	}
	bar.Close = 9.5
	if err := st.WriteBars(ctx, []model.DailyBar{bar}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	got, err := st.ReadBars(ctx, "000001", model.DateRange{Start: day("2024-01-01"), End: day("2024-01-31")})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("upsert produced %d rows, want 1", len(got))
	}
	if got[0].Close != 9.5 {
		t.Errorf("close = %v, want replaced value 9.5", got[0].Close)
	}
}

func TestStore_MissingFieldsSurviveAsNaN(t *testing.T) {
	st, err := New(StoreConfig{DBPath: filepath.Join(t.TempDir(), "bars.db")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	bar := model.DailyBar{
		Symbol: "000001", Date: day("2024-01-02"),
		Open: 9.1, High: math.NaN(), Low: 9.0, Close: 9.2,
		Volume: math.NaN(), Amount: math.NaN(), PreClose: 9.05,
	}
	if err := st.WriteBars(ctx, []model.DailyBar{bar}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := st.ReadBars(ctx, "000001", model.DateRange{Start: day("2024-01-01"), End: day("2024-01-31")})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("read %d bars, want 1", len(got))
	}
	if !math.IsNaN(got[0].High) || !math.IsNaN(got[0].Volume) {
		t.Errorf("NULL columns did not round-trip to NaN: %+v", got[0])
	}
	if got[0].Open != 9.1 {
		t.Errorf("open = %v, want 9.1", got[0].Open)
	}
}

func TestStore_FactorUpsertAndOrder(t *testing.T) {
	st, err := New(StoreConfig{DBPath: filepath.Join(t.TempDir(), "bars.db")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	recs := []model.FactorRecord{
		{Symbol: "600519", ExDate: day("2024-06-20"), CashDividend: 3.0, SplitRatio: 1,
			ForwardFactor: 0.97, BackwardFactor: 1.031, TotalFactor: 1.031},
		{Symbol: "600519", ExDate: day("2023-06-30"), SharesDividend: 0.2, AllotmentRatio: 0.1,
			AllotmentPrice: 8.5, SplitRatio: 1,
			ForwardFactor: 0.95, BackwardFactor: 1.052, TotalFactor: 1.084},
	}
	if err := st.SaveFactors(ctx, recs); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Re-save one row with a corrected factor.
	recs[0].TotalFactor = 1.04
	if err := st.SaveFactors(ctx, recs[:1]); err != nil {
		t.Fatalf("resave: %v", err)
	}

	got, err := st.ReadFactors(ctx, "600519")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d factors, want 2", len(got))
	}
	if !got[0].ExDate.Before(got[1].ExDate) {
		t.Error("factors not sorted by ex-date ascending")
	}
	if got[1].TotalFactor != 1.04 {
		t.Errorf("total factor = %v, want updated 1.04", got[1].TotalFactor)
	}

	// The event terms round-trip alongside the factors.
	if got[0].SharesDividend != 0.2 || got[0].AllotmentRatio != 0.1 || got[0].AllotmentPrice != 8.5 {
		t.Errorf("event terms did not round-trip: %+v", got[0])
	}
	if got[1].CashDividend != 3.0 || got[1].SplitRatio != 1 {
		t.Errorf("event terms did not round-trip: %+v", got[1])
	}
	for i, rec := range got {
		if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
			t.Errorf("row %d missing timestamps: %+v", i, rec)
		}
		if rec.UpdatedAt.Before(rec.CreatedAt) {
			t.Errorf("row %d updated_at precedes created_at", i)
		}
	}

	none, err := st.ReadFactors(ctx, "999999")
	if err != nil {
		t.Fatalf("read unknown: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("unknown symbol returned %d rows", len(none))
	}
}

func TestCacheStore_TTLAndPurge(t *testing.T) {
	cs, err := NewCacheStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer cs.Close()

	ctx := context.Background()
	now := time.Now()
	live := model.CacheMeta{
		Key: "k-live", Symbol: "600519", Indicator: "rsi",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	dead := model.CacheMeta{
		Key: "k-dead", Symbol: "600519", Indicator: "macd",
		CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}
	if err := cs.Set(ctx, live, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("set live: %v", err)
	}
	if err := cs.Set(ctx, dead, []byte(`{"b":2}`)); err != nil {
		t.Fatalf("set dead: %v", err)
	}

	if _, ok, err := cs.Get(ctx, "k-dead"); err != nil || ok {
		t.Errorf("expired entry returned ok=%v err=%v", ok, err)
	}
	payload, ok, err := cs.Get(ctx, "k-live")
	if err != nil || !ok {
		t.Fatalf("live entry miss: ok=%v err=%v", ok, err)
	}
	if string(payload) != `{"a":1}` {
		t.Errorf("payload = %q", payload)
	}

	// Dead entry was already evicted by the Get above; purge finds nothing more.
	n, err := cs.Purge(ctx, now)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 0 {
		t.Errorf("purge removed %d, want 0", n)
	}

	if err := cs.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := cs.Get(ctx, "k-live"); ok {
		t.Error("entry survived Clear")
	}
}

func TestStore_WriteObservesCommitLatency(t *testing.T) {
	m := metrics.NewMetrics()
	st, err := New(StoreConfig{DBPath: filepath.Join(t.TempDir(), "bars.db"), Metrics: m})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.WriteBars(ctx, []model.DailyBar{
		{Symbol: "600519", Date: day("2024-01-08"), Close: 100},
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var sample dto.Metric
	if err := m.SQLiteCommitDur.Write(&sample); err != nil {
		t.Fatalf("read histogram: %v", err)
	}
	if got := sample.Histogram.GetSampleCount(); got != 1 {
		t.Errorf("commit latency samples = %d, want 1", got)
	}

	// Empty batches skip the transaction and observe nothing.
	if err := st.WriteBars(ctx, nil); err != nil {
		t.Fatalf("empty write: %v", err)
	}
	sample.Reset()
	if err := m.SQLiteCommitDur.Write(&sample); err != nil {
		t.Fatalf("read histogram: %v", err)
	}
	if got := sample.Histogram.GetSampleCount(); got != 1 {
		t.Errorf("commit latency samples after empty batch = %d, want 1", got)
	}
}
