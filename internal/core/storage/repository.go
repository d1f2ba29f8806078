package storage

import (
	"context"
	"time"

	"github.com/hashcurator/hashcurator/internal/core/aggregation"
)

// ResourceStore is the read side of the append-only resource log.
// Cursors are resource IDs and grow with insertion order.
type ResourceStore interface {
	// MaxCursor returns the highest resource ID created at least hoursAgo hours ago.
	// ok is false when the log holds no such resource.
	MaxCursor(ctx context.Context, hoursAgo int) (cursor int64, ok bool, err error)

	// RecordAt returns the first resource whose ID is >= cursor, or nil when the
	// log ends before cursor.
	RecordAt(ctx context.Context, cursor int64) (*Resource, error)

	// GroupedCounts counts resources per IMPHash over the half-open range [lower, upper).
	// Empty hashes are never returned. With excludeIgnored, hashes already on the
	// ignore table are filtered out in the query itself.
	GroupedCounts(ctx context.Context, lower, upper int64, excludeIgnored bool) ([]aggregation.KeyCount, error)

	// RecentByKey returns up to limit resources sharing the IMPHash, newest first.
	RecentByKey(ctx context.Context, key string, limit int) ([]Resource, error)

	// QueryRaw runs an ad-hoc SELECT over the resources table. The statement must
	// project resourceColumns in order.
	QueryRaw(ctx context.Context, query string, args ...any) ([]Resource, error)
}

// SignatureStore answers whether a key already carries a named detection signature.
type SignatureStore interface {
	HasSignature(ctx context.Context, key string) (bool, error)
}

// IgnoreStore is the permanent ignore list.
type IgnoreStore interface {
	HasIgnoreEntry(ctx context.Context, typ, value string) (bool, error)

	// InsertIgnore persists one decision. Inserting an entry that already
	// exists leaves the stored entry unchanged.
	InsertIgnore(ctx context.Context, decision IgnoreDecision) error
}

// CounterStore persists bucket-final counters.
type CounterStore interface {
	// UpsertBatch writes all counters in one transaction. A counter that already
	// exists for (key, bucket_date) has the incoming count added to it.
	UpsertBatch(ctx context.Context, counters []aggregation.Counter) error

	// SelectByDateRange returns up to limit counters with from <= bucket_date <= to.
	SelectByDateRange(ctx context.Context, from, to time.Time, limit int) ([]aggregation.Counter, error)
}

// PopularityStore exposes the per-content-hash prevalence counters.
type PopularityStore interface {
	// SumPopularity returns the summed counter across the given SHA1 hashes.
	// Unknown hashes contribute zero.
	SumPopularity(ctx context.Context, sha1s []string) (int64, error)
}
