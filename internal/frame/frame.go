// Package frame provides a date-indexed column store for daily series plus
// the rolling-window math the indicator units are built from.
//
// Columns are float64 slices aligned to the frame's date index. NaN marks a
// missing value; boolean signal columns hold 0 or 1. Column order is
// preserved so merged output stays deterministic.
package frame

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Frame holds equally-long float64 columns aligned to a shared date index.
type Frame struct {
	dates []time.Time
	cols  map[string][]float64
	order []string
}

// New creates a frame over the given date index. Dates are assumed sorted
// ascending and day-aligned; the slice is not copied.
func New(dates []time.Time) *Frame {
	return &Frame{
		dates: dates,
		cols:  make(map[string][]float64),
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.dates) }

// Dates returns the shared date index. Callers must not mutate it.
func (f *Frame) Dates() []time.Time { return f.dates }

// Date returns the date at row i.
func (f *Frame) Date(i int) time.Time { return f.dates[i] }

// Columns returns column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Has reports whether the named column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Col returns the named column, or nil if absent. The slice is shared;
// use Set to replace values rather than mutating a published frame.
func (f *Frame) Col(name string) []float64 {
	return f.cols[name]
}

// Set stores a column. The slice length must equal the frame length.
// Setting an existing name replaces its values in place in the order.
func (f *Frame) Set(name string, values []float64) error {
	if len(values) != len(f.dates) {
		return fmt.Errorf("frame: column %q has %d values, want %d", name, len(values), len(f.dates))
	}
	if _, exists := f.cols[name]; !exists {
		f.order = append(f.order, name)
	}
	f.cols[name] = values
	return nil
}

// MustSet is Set for columns built internally with a known-correct length.
func (f *Frame) MustSet(name string, values []float64) {
	if err := f.Set(name, values); err != nil {
		panic(err)
	}
}

// Drop removes a column if present.
func (f *Frame) Drop(name string) {
	if _, ok := f.cols[name]; !ok {
		return
	}
	delete(f.cols, name)
	for i, n := range f.order {
		if n == name {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// Copy returns a deep copy sharing nothing with the receiver except the
// date index.
func (f *Frame) Copy() *Frame {
	out := New(f.dates)
	out.order = make([]string, len(f.order))
	copy(out.order, f.order)
	for name, vals := range f.cols {
		dup := make([]float64, len(vals))
		copy(dup, vals)
		out.cols[name] = dup
	}
	return out
}

// Select returns a new frame containing only the named columns, in the
// given order. Unknown names are skipped.
func (f *Frame) Select(names ...string) *Frame {
	out := New(f.dates)
	for _, name := range names {
		vals, ok := f.cols[name]
		if !ok {
			continue
		}
		dup := make([]float64, len(vals))
		copy(dup, vals)
		out.MustSet(name, dup)
	}
	return out
}

// MergeFrom copies src's columns into f, skipping any column name f
// already has. Both frames must share an identical date index.
func (f *Frame) MergeFrom(src *Frame) error {
	if len(src.dates) != len(f.dates) {
		return fmt.Errorf("frame: merge length mismatch %d vs %d", len(src.dates), len(f.dates))
	}
	for i := range f.dates {
		if !f.dates[i].Equal(src.dates[i]) {
			return fmt.Errorf("frame: merge date mismatch at row %d", i)
		}
	}
	for _, name := range src.order {
		if f.Has(name) {
			continue
		}
		vals := src.cols[name]
		dup := make([]float64, len(vals))
		copy(dup, vals)
		f.MustSet(name, dup)
	}
	return nil
}

// wireFrame is the JSON shape. NaN is not representable in JSON, so
// values cross the wire as pointers with null standing in for missing.
type wireFrame struct {
	Dates   []string              `json:"dates"`
	Order   []string              `json:"order"`
	Columns map[string][]*float64 `json:"columns"`
}

const dateLayout = "2006-01-02"

// MarshalJSON encodes the frame for cache payloads.
func (f *Frame) MarshalJSON() ([]byte, error) {
	w := wireFrame{
		Dates:   make([]string, len(f.dates)),
		Order:   f.order,
		Columns: make(map[string][]*float64, len(f.cols)),
	}
	for i, d := range f.dates {
		w.Dates[i] = d.Format(dateLayout)
	}
	for name, vals := range f.cols {
		ptrs := make([]*float64, len(vals))
		for i := range vals {
			if !math.IsNaN(vals[i]) {
				v := vals[i]
				ptrs[i] = &v
			}
		}
		w.Columns[name] = ptrs
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a cached frame. Any structural inconsistency is
// reported as an error so cache readers can treat the entry as corrupt.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	dates := make([]time.Time, len(w.Dates))
	for i, s := range w.Dates {
		d, err := time.Parse(dateLayout, s)
		if err != nil {
			return fmt.Errorf("frame: bad date %q: %w", s, err)
		}
		dates[i] = d
	}
	cols := make(map[string][]float64, len(w.Columns))
	for name, ptrs := range w.Columns {
		if len(ptrs) != len(dates) {
			return fmt.Errorf("frame: column %q has %d values, want %d", name, len(ptrs), len(dates))
		}
		vals := make([]float64, len(ptrs))
		for i, p := range ptrs {
			if p == nil {
				vals[i] = math.NaN()
			} else {
				vals[i] = *p
			}
		}
		cols[name] = vals
	}
	for _, name := range w.Order {
		if _, ok := cols[name]; !ok {
			return fmt.Errorf("frame: order names missing column %q", name)
		}
	}
	f.dates = dates
	f.cols = cols
	f.order = w.Order
	return nil
}
