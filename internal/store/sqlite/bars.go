package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math"
	"time"

	"stockdbv1/internal/metrics"
	"stockdbv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// StoreConfig configures the SQLite bar/factor store.
type StoreConfig struct {
	DBPath  string           // path to SQLite database file, e.g. "data/stockdb.db"
	Metrics *metrics.Metrics // optional
}

// Store is a single-writer SQLite store for daily bars and adjustment
// factors. Writes are batched into one transaction per call.
type Store struct {
	db   *sql.DB
	prom *metrics.Metrics
}

var _ model.BarReader = (*Store)(nil)
var _ model.BarWriter = (*Store)(nil)
var _ model.FactorStore = (*Store)(nil)

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the store, initializes WAL mode and the schema.
func New(cfg StoreConfig) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db, prom: cfg.Metrics}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS daily_bars (
			symbol     TEXT    NOT NULL,
			trade_date INTEGER NOT NULL,
			open       REAL,
			high       REAL,
			low        REAL,
			close      REAL,
			volume     REAL,
			amount     REAL,
			pre_close  REAL,
			PRIMARY KEY (symbol, trade_date)
		);

		CREATE TABLE IF NOT EXISTS adjust_factors (
			symbol          TEXT    NOT NULL,
			ex_date         INTEGER NOT NULL,
			cash_div        REAL    NOT NULL DEFAULT 0,
			shares_div      REAL    NOT NULL DEFAULT 0,
			allotment_ratio REAL    NOT NULL DEFAULT 0,
			allotment_price REAL    NOT NULL DEFAULT 0,
			split_ratio     REAL    NOT NULL DEFAULT 1,
			forward_factor  REAL    NOT NULL,
			backward_factor REAL    NOT NULL,
			total_factor    REAL    NOT NULL,
			created_at      INTEGER NOT NULL,
			updated_at      INTEGER NOT NULL,
			PRIMARY KEY (symbol, ex_date)
		);
	`)
	return err
}

// nullable maps NaN (missing) to SQL NULL.
func nullable(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// scanned maps SQL NULL back to NaN.
func scanned(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// WriteBars upserts a batch of bars in a single transaction.
func (s *Store) WriteBars(ctx context.Context, bars []model.DailyBar) error {
	if len(bars) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO daily_bars (symbol, trade_date, open, high, low, close, volume, amount, pre_close)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.Exec(b.Symbol, b.Date.Unix(),
			nullable(b.Open), nullable(b.High), nullable(b.Low), nullable(b.Close),
			nullable(b.Volume), nullable(b.Amount), nullable(b.PreClose))
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	elapsed := time.Since(start)
	if s.prom != nil {
		s.prom.SQLiteCommitDur.Observe(elapsed.Seconds())
	}
	log.Printf("[sqlite] committed %d bars in %v", len(bars), elapsed)
	return nil
}

// ReadBars returns bars for a symbol within the range, ordered by date
// ascending. Returns an empty slice when nothing is stored.
func (s *Store) ReadBars(ctx context.Context, symbol string, r model.DateRange) ([]model.DailyBar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, trade_date, open, high, low, close, volume, amount, pre_close
		FROM daily_bars
		WHERE symbol = ? AND trade_date >= ? AND trade_date <= ?
		ORDER BY trade_date ASC
	`, symbol, r.Start.Unix(), r.End.Unix())
	if err != nil {
		return nil, fmt.Errorf("sqlite query daily_bars: %w", err)
	}
	defer rows.Close()

	var bars []model.DailyBar
	for rows.Next() {
		var b model.DailyBar
		var ts int64
		var open, high, low, cls, vol, amt, pre sql.NullFloat64
		if err := rows.Scan(&b.Symbol, &ts, &open, &high, &low, &cls, &vol, &amt, &pre); err != nil {
			return nil, fmt.Errorf("sqlite scan daily_bars: %w", err)
		}
		b.Date = time.Unix(ts, 0).UTC()
		b.Open = scanned(open)
		b.High = scanned(high)
		b.Low = scanned(low)
		b.Close = scanned(cls)
		b.Volume = scanned(vol)
		b.Amount = scanned(amt)
		b.PreClose = scanned(pre)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// LastDate returns the newest stored trade date for a symbol, or the zero
// time when the symbol has no rows.
func (s *Store) LastDate(ctx context.Context, symbol string) (time.Time, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(trade_date) FROM daily_bars WHERE symbol = ?`,
		symbol,
	).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), nil
}

// Symbols lists the distinct symbols with stored bars.
func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM daily_bars ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("sqlite scan symbol: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
