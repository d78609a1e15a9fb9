package frame

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func days(n int) []time.Time {
	out := make([]time.Time, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func TestFrame_SetLengthMismatch(t *testing.T) {
	f := New(days(3))
	if err := f.Set("x", []float64{1, 2}); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestFrame_ColumnOrderStable(t *testing.T) {
	f := New(days(2))
	f.MustSet("b", []float64{1, 2})
	f.MustSet("a", []float64{3, 4})
	f.MustSet("b", []float64{5, 6}) // replace keeps position

	cols := f.Columns()
	if len(cols) != 2 || cols[0] != "b" || cols[1] != "a" {
		t.Fatalf("columns = %v, want [b a]", cols)
	}
	if f.Col("b")[0] != 5 {
		t.Fatalf("replaced column not updated: %v", f.Col("b"))
	}
}

func TestFrame_CopyIsDeep(t *testing.T) {
	f := New(days(2))
	f.MustSet("x", []float64{1, 2})

	cp := f.Copy()
	cp.Col("x")[0] = 99

	if f.Col("x")[0] != 1 {
		t.Fatal("copy shares column storage with original")
	}
}

func TestFrame_MergeFrom_DoesNotOverwrite(t *testing.T) {
	f := New(days(2))
	f.MustSet("close_price", []float64{10, 11})

	src := New(days(2))
	src.MustSet("close_price", []float64{0, 0})
	src.MustSet("RSI", []float64{55, 60})

	if err := f.MergeFrom(src); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if f.Col("close_price")[0] != 10 {
		t.Fatal("merge overwrote an existing column")
	}
	if !f.Has("RSI") || f.Col("RSI")[1] != 60 {
		t.Fatal("merge did not bring in the new column")
	}
}

func TestFrame_MergeFrom_DateMismatch(t *testing.T) {
	f := New(days(2))
	other := New(days(3))
	if err := f.MergeFrom(other); err == nil {
		t.Fatal("expected date index mismatch error")
	}
}

func TestFrame_JSONRoundTrip(t *testing.T) {
	f := New(days(3))
	f.MustSet("close_price", []float64{10, math.NaN(), 12})
	f.MustSet("signal", []float64{0, 1, 0})

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Frame
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if back.Len() != 3 {
		t.Fatalf("len = %d, want 3", back.Len())
	}
	if !back.Date(0).Equal(f.Date(0)) {
		t.Fatalf("date 0 = %v, want %v", back.Date(0), f.Date(0))
	}
	got := back.Col("close_price")
	if got[0] != 10 || !math.IsNaN(got[1]) || got[2] != 12 {
		t.Fatalf("close_price = %v", got)
	}
	cols := back.Columns()
	if cols[0] != "close_price" || cols[1] != "signal" {
		t.Fatalf("column order lost: %v", cols)
	}
}

func TestFrame_UnmarshalRejectsInconsistentPayload(t *testing.T) {
	// Column shorter than the date index must fail, not silently truncate.
	bad := `{"dates":["2024-01-01","2024-01-02"],"order":["x"],"columns":{"x":[1]}}`
	var f Frame
	if err := json.Unmarshal([]byte(bad), &f); err == nil {
		t.Fatal("expected decode error for ragged payload")
	}
}
