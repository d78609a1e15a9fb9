package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"stockdbv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// CacheStore is the on-disk cache tier: opaque payloads keyed by
// fingerprint, with TTL expiry enforced on read and by Purge.
type CacheStore struct {
	db *sql.DB
}

var _ model.PayloadStore = (*CacheStore)(nil)

// NewCacheStore opens (and initializes) the cache database.
func NewCacheStore(dbPath string) (*CacheStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open cache: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			cache_key  TEXT PRIMARY KEY,
			symbol     TEXT    NOT NULL,
			indicator  TEXT    NOT NULL,
			payload    BLOB    NOT NULL,
			size       INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries (expires_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite cache schema: %w", err)
	}

	log.Printf("[sqlite-cache] opened %s", dbPath)
	return &CacheStore{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (c *CacheStore) DB() *sql.DB { return c.db }

// Get returns the payload for key. Expired entries are treated as misses
// and removed opportunistically.
func (c *CacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	var expires int64
	err := c.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM cache_entries WHERE cache_key = ?`, key,
	).Scan(&payload, &expires)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite cache get: %w", err)
	}
	if time.Now().Unix() >= expires {
		_ = c.Delete(ctx, key)
		return nil, false, nil
	}
	return payload, true, nil
}

// Set stores a payload with its metadata, replacing any existing entry.
func (c *CacheStore) Set(ctx context.Context, meta model.CacheMeta, payload []byte) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cache_entries (cache_key, symbol, indicator, payload, size, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, meta.Key, meta.Symbol, meta.Indicator, payload, len(payload),
		meta.CreatedAt.Unix(), meta.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("sqlite cache set: %w", err)
	}
	return nil
}

// Delete removes a single entry. Missing keys are not an error.
func (c *CacheStore) Delete(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_key = ?`, key)
	if err != nil {
		return fmt.Errorf("sqlite cache delete: %w", err)
	}
	return nil
}

// Purge removes entries expired as of now and returns how many.
func (c *CacheStore) Purge(ctx context.Context, now time.Time) (int, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("sqlite cache purge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("[sqlite-cache] purged %d expired entries", n)
	}
	return int(n), nil
}

// Clear drops every entry.
func (c *CacheStore) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("sqlite cache clear: %w", err)
	}
	return nil
}

// Count returns the number of stored entries, expired or not.
func (c *CacheStore) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&n)
	return n, err
}

// Close closes the cache database.
func (c *CacheStore) Close() error {
	return c.db.Close()
}
