package model

import (
	"context"
	"time"
)

// ── Storage Port Interfaces ──
// These interfaces decouple the computation pipeline from concrete storage
// implementations (SQLite, Redis). Each implementation satisfies one or
// more of these interfaces.

// BarReader loads daily bars for the orchestrator.
type BarReader interface {
	// ReadBars returns bars for a symbol within the range, any order.
	// Returns an empty slice (not an error) when nothing is stored.
	ReadBars(ctx context.Context, symbol string, r DateRange) ([]DailyBar, error)

	// Close releases underlying resources.
	Close() error
}

// BarWriter persists daily bars.
type BarWriter interface {
	// WriteBars upserts a batch of bars in a single transaction.
	WriteBars(ctx context.Context, bars []DailyBar) error

	// Close releases underlying resources.
	Close() error
}

// FactorStore reads and writes adjustment-factor rows.
type FactorStore interface {
	// SaveFactors upserts factor rows keyed on (symbol, ex_date).
	SaveFactors(ctx context.Context, recs []FactorRecord) error

	// ReadFactors returns a symbol's factor rows sorted by ex-date ascending.
	// Returns an empty slice when none are stored.
	ReadFactors(ctx context.Context, symbol string) ([]FactorRecord, error)

	// Close releases underlying resources.
	Close() error
}

// CacheMeta describes a stored cache payload without its body.
type CacheMeta struct {
	Key       string    `json:"key"`
	Symbol    string    `json:"symbol"`
	Indicator string    `json:"indicator"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PayloadStore is the persistent cache tier. Payloads are opaque bytes;
// decoding (and corruption detection) belongs to the cache service.
type PayloadStore interface {
	// Get returns the payload for key, or ok=false on miss or expiry.
	Get(ctx context.Context, key string) (payload []byte, ok bool, err error)

	// Set stores a payload with its metadata and TTL.
	Set(ctx context.Context, meta CacheMeta, payload []byte) error

	// Delete removes a single entry. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Purge removes entries expired as of now and returns how many.
	Purge(ctx context.Context, now time.Time) (int, error)

	// Clear drops every entry.
	Clear(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}
