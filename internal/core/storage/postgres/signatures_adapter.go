package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/hashcurator/hashcurator/internal/core/storage"
	"github.com/lib/pq"
)

const (
	queryHasSignature = `
		SELECT EXISTS (
			SELECT 1 FROM signatures_imphashes
			WHERE imphash = $1 AND name IS NOT NULL AND name <> ''
		)
	`

	queryHasIgnoreEntry = `
		SELECT EXISTS (
			SELECT 1 FROM signatures_ignores
			WHERE type = $1 AND value = $2
		)
	`

	queryInsertIgnore = `
		INSERT INTO signatures_ignores (type, value, category, source, notes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (type, value) DO NOTHING
	`

	querySumPopularity = `
		SELECT COALESCE(SUM(counter), 0)
		FROM resources_counters
		WHERE sha1 = ANY($1)
	`
)

// SignatureAdapter implements storage.SignatureStore, storage.IgnoreStore and
// storage.PopularityStore on the shared connection.
type SignatureAdapter struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSignatureAdapter creates a new SignatureAdapter sharing the given connection.
func NewSignatureAdapter(db *sql.DB, logger *slog.Logger) *SignatureAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SignatureAdapter{db: db, logger: logger}
}

// HasSignature reports whether a named IMPHash signature exists for key.
func (a *SignatureAdapter) HasSignature(ctx context.Context, key string) (bool, error) {
	var exists bool
	if err := a.db.QueryRowContext(ctx, queryHasSignature, key).Scan(&exists); err != nil {
		return false, fmt.Errorf("check imphash signature %s: %w", key, err)
	}
	return exists, nil
}

func (a *SignatureAdapter) HasIgnoreEntry(ctx context.Context, typ, value string) (bool, error) {
	var exists bool
	if err := a.db.QueryRowContext(ctx, queryHasIgnoreEntry, typ, value).Scan(&exists); err != nil {
		return false, fmt.Errorf("check ignore entry %s/%s: %w", typ, value, err)
	}
	return exists, nil
}

// InsertIgnore writes an ignore decision. An entry that already exists is left untouched.
func (a *SignatureAdapter) InsertIgnore(ctx context.Context, d storage.IgnoreDecision) error {
	result, err := a.db.ExecContext(ctx, queryInsertIgnore, d.Type, d.Value, d.Category, d.Source, d.Notes)
	if err != nil {
		return fmt.Errorf("insert ignore entry %s/%s: %w", d.Type, d.Value, err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		a.logger.Debug("[SignatureAdapter] Ignore entry already present",
			"type", d.Type, "value", d.Value)
	}
	return nil
}

// SumPopularity sums the popularity counters of the given content hashes.
func (a *SignatureAdapter) SumPopularity(ctx context.Context, sha1s []string) (int64, error) {
	if len(sha1s) == 0 {
		return 0, nil
	}

	var total int64
	if err := a.db.QueryRowContext(ctx, querySumPopularity, pq.Array(sha1s)).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum popularity for %d hashes: %w", len(sha1s), err)
	}
	return total, nil
}
