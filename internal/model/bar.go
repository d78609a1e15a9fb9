package model

import (
	"encoding/json"
	"math"
	"time"
)

// Canonical daily-bar column names. Indicator and pipeline code addresses
// frames by these names; anything else is a derived or indicator column.
const (
	ColOpen     = "open_price"
	ColHigh     = "high_price"
	ColLow      = "low_price"
	ColClose    = "close_price"
	ColVolume   = "volume"
	ColAmount   = "amount"
	ColPreClose = "pre_close"
)

// PriceColumns are the columns the adjustment engine rescales.
var PriceColumns = []string{ColOpen, ColHigh, ColLow, ColClose, ColPreClose}

// DailyBar is one trading day of OHLCV data for a single symbol.
// Missing fields are NaN; volume/amount use NaN too so the quality
// pipeline can distinguish "no data" from a genuine zero-volume day.
type DailyBar struct {
	Symbol   string    `json:"symbol"`
	Date     time.Time `json:"date"` // midnight UTC, day-aligned
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
	Amount   float64   `json:"amount"`
	PreClose float64   `json:"pre_close"`
}

// Key returns a unique key for this bar: "symbol:yyyy-mm-dd".
func (b *DailyBar) Key() string {
	return b.Symbol + ":" + b.Date.Format("2006-01-02")
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *DailyBar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

// DateRange bounds a bar query, inclusive on both ends.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// String renders the range for fingerprints and logs.
func (r DateRange) String() string {
	return r.Start.Format("2006-01-02") + ".." + r.End.Format("2006-01-02")
}

// Missing reports whether v represents an absent value.
func Missing(v float64) bool { return math.IsNaN(v) }
