package sqlite

import (
	"context"
	"fmt"
	"time"

	"stockdbv1/internal/model"
)

// SaveFactors upserts factor rows keyed on (symbol, ex_date) in a single
// transaction. A recomputed row keeps its original created_at and gets a
// fresh updated_at.
func (s *Store) SaveFactors(ctx context.Context, recs []model.FactorRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO adjust_factors (symbol, ex_date,
			cash_div, shares_div, allotment_ratio, allotment_price, split_ratio,
			forward_factor, backward_factor, total_factor,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, ex_date) DO UPDATE SET
			cash_div        = excluded.cash_div,
			shares_div      = excluded.shares_div,
			allotment_ratio = excluded.allotment_ratio,
			allotment_price = excluded.allotment_price,
			split_ratio     = excluded.split_ratio,
			forward_factor  = excluded.forward_factor,
			backward_factor = excluded.backward_factor,
			total_factor    = excluded.total_factor,
			updated_at      = excluded.updated_at
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, rec := range recs {
		_, err := stmt.Exec(rec.Symbol, rec.ExDate.Unix(),
			rec.CashDividend, rec.SharesDividend, rec.AllotmentRatio, rec.AllotmentPrice, rec.SplitRatio,
			rec.ForwardFactor, rec.BackwardFactor, rec.TotalFactor,
			now, now)
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ReadFactors returns a symbol's factor rows sorted by ex-date ascending.
func (s *Store) ReadFactors(ctx context.Context, symbol string) ([]model.FactorRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, ex_date,
			cash_div, shares_div, allotment_ratio, allotment_price, split_ratio,
			forward_factor, backward_factor, total_factor,
			created_at, updated_at
		FROM adjust_factors
		WHERE symbol = ?
		ORDER BY ex_date ASC
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("sqlite query adjust_factors: %w", err)
	}
	defer rows.Close()

	var recs []model.FactorRecord
	for rows.Next() {
		var rec model.FactorRecord
		var ex, created, updated int64
		if err := rows.Scan(&rec.Symbol, &ex,
			&rec.CashDividend, &rec.SharesDividend, &rec.AllotmentRatio, &rec.AllotmentPrice, &rec.SplitRatio,
			&rec.ForwardFactor, &rec.BackwardFactor, &rec.TotalFactor,
			&created, &updated); err != nil {
			return nil, fmt.Errorf("sqlite scan adjust_factors: %w", err)
		}
		rec.ExDate = time.Unix(ex, 0).UTC()
		rec.CreatedAt = time.Unix(created, 0).UTC()
		rec.UpdatedAt = time.Unix(updated, 0).UTC()
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
