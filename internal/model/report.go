package model

// Quality levels, ordered best to worst. Computation refuses "invalid"
// input unless the caller forces it.
const (
	QualityExcellent = "excellent" // score >= 0.95
	QualityGood      = "good"      // score >= 0.85
	QualityFair      = "fair"      // score >= 0.70
	QualityPoor      = "poor"      // score >= 0.50
	QualityInvalid   = "invalid"
)

// QualityReport summarizes the data-quality assessment of one symbol's bars
// over a date range.
type QualityReport struct {
	Symbol     string  `json:"symbol"`
	Range      string  `json:"range"`
	RowsIn     int     `json:"rows_in"`
	RowsOut    int     `json:"rows_out"`
	Duplicates int     `json:"duplicates"`

	// Per-price-column ratio of present values, keyed by column name.
	Completeness map[string]float64 `json:"completeness"`
	Continuity   float64            `json:"continuity"`
	FilledValues int                `json:"filled_values"`

	Score       float64  `json:"score"` // in [0,1]
	Level       string   `json:"level"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Usable reports whether downstream computation should accept this data.
func (r *QualityReport) Usable() bool {
	return r.Level != QualityInvalid
}

// LevelForScore maps a quality score onto a level name.
func LevelForScore(score float64) string {
	switch {
	case score >= 0.95:
		return QualityExcellent
	case score >= 0.85:
		return QualityGood
	case score >= 0.70:
		return QualityFair
	case score >= 0.50:
		return QualityPoor
	default:
		return QualityInvalid
	}
}
