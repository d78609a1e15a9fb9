package model

import "time"

// CorporateAction is one dividend / bonus / allotment / split event for a
// symbol, keyed by ex-date. All monetary fields are per-share.
type CorporateAction struct {
	Symbol         string    `json:"symbol"`
	ExDate         time.Time `json:"ex_date"`
	CashDividend   float64   `json:"cash_div"`         // cash paid per share, >= 0
	SharesDividend float64   `json:"shares_div"`       // bonus shares per share, >= 0
	AllotmentRatio float64   `json:"allotment_ratio"`  // new shares offered per share, >= 0
	AllotmentPrice float64   `json:"allotment_price"`  // subscription price per new share, >= 0
	SplitRatio     float64   `json:"split_ratio"`      // post/pre share count, > 0, 1 = no split
}

// FactorRecord is one row of the adjustment-factor table: the event terms
// it was computed from plus the cumulative multipliers in effect at its
// ex-date, so a persisted row is auditable and recomputable on its own.
type FactorRecord struct {
	Symbol         string    `json:"symbol"`
	ExDate         time.Time `json:"ex_date"`
	CashDividend   float64   `json:"cash_div"`
	SharesDividend float64   `json:"shares_div"`
	AllotmentRatio float64   `json:"allotment_ratio"`
	AllotmentPrice float64   `json:"allotment_price"`
	SplitRatio     float64   `json:"split_ratio"`
	ForwardFactor  float64   `json:"forward_factor"`  // cumulative forward multiplier
	BackwardFactor float64   `json:"backward_factor"` // cumulative backward multiplier
	TotalFactor    float64   `json:"total_factor"`    // divisor applied by forward adjustment
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AdjustMode selects how historical prices are rescaled around ex-dates.
type AdjustMode string

const (
	AdjustNone     AdjustMode = "none"
	AdjustForward  AdjustMode = "forward"  // rebase history onto the latest price
	AdjustBackward AdjustMode = "backward" // rebase later prices onto the earliest
)

// Valid reports whether m is a recognized adjustment mode.
func (m AdjustMode) Valid() bool {
	switch m {
	case AdjustNone, AdjustForward, AdjustBackward:
		return true
	}
	return false
}
