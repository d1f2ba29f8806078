package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashcurator/hashcurator/internal/core/aggregation"
)

const (
	queryUpsertCounter = `
		INSERT INTO imphash_counters (imphash, create_date, counter)
		VALUES ($1, $2, $3)
		ON CONFLICT (imphash, create_date)
		DO UPDATE SET counter = imphash_counters.counter + EXCLUDED.counter
	`

	querySelectCountersByDate = `
		SELECT imphash, create_date, counter
		FROM imphash_counters
		WHERE create_date >= $1
		  AND create_date <= $2
		ORDER BY create_date ASC, imphash ASC
		LIMIT $3
	`
)

// CounterAdapter implements storage.CounterStore using PostgreSQL.
// A batch is written in a single transaction: either every counter of a bucket
// lands or none does.
type CounterAdapter struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCounterAdapter creates a new CounterAdapter sharing the given connection.
func NewCounterAdapter(db *sql.DB, logger *slog.Logger) *CounterAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CounterAdapter{db: db, logger: logger}
}

// UpsertBatch adds each counter to the stored value for its (imphash, date) row,
// inserting rows that do not exist yet.
func (a *CounterAdapter) UpsertBatch(ctx context.Context, counters []aggregation.Counter) error {
	if len(counters) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("counter upsert: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	upsertStmt, err := tx.PrepareContext(ctx, queryUpsertCounter)
	if err != nil {
		return fmt.Errorf("counter upsert: prepare: %w", err)
	}
	defer upsertStmt.Close()

	for _, c := range counters {
		if _, err := upsertStmt.ExecContext(ctx, c.Key, c.BucketDate, c.Count); err != nil {
			return fmt.Errorf("counter upsert: %s@%s: %w", c.Key, c.BucketDate.Format(time.DateOnly), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("counter upsert: commit: %w", err)
	}

	a.logger.Info("[CounterAdapter] Upserted counters",
		"counters", len(counters),
		"bucket_date", counters[0].BucketDate.Format(time.DateOnly))
	return nil
}

// SelectByDateRange returns at most limit counters with from <= create_date <= to.
func (a *CounterAdapter) SelectByDateRange(ctx context.Context, from, to time.Time, limit int) ([]aggregation.Counter, error) {
	rows, err := a.db.QueryContext(ctx, querySelectCountersByDate, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query imphash_counters: %w", err)
	}
	defer rows.Close()

	var counters []aggregation.Counter
	for rows.Next() {
		var c aggregation.Counter
		if err := rows.Scan(&c.Key, &c.BucketDate, &c.Count); err != nil {
			return nil, fmt.Errorf("scan counter row: %w", err)
		}
		counters = append(counters, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counter rows: %w", err)
	}

	return counters, nil
}
