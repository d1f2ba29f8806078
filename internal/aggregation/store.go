package aggregation

import (
	"context"
	"errors"
)

var (
	// ErrConfig marks a missing or unreadable starting checkpoint. Aggregation cannot
	// pick a starting point without it.
	ErrConfig = errors.New("checkpoint not configured")

	// ErrInconsistentCursor marks a checkpoint that is ahead of the log, or a log with no cursor.
	ErrInconsistentCursor = errors.New("inconsistent cursor")

	// ErrNothingToDo means the log has not yet closed a full day past the checkpoint.
	// It is not a failure.
	ErrNothingToDo = errors.New("nothing to do")
)

// CheckpointStore holds the aggregation cursor.
//
// Checkpoint Invariant: "Checkpoint cursor N means: counters include every resource
// with ID < N, and none at or after N."
//
// The cursor is written after the counters of a flush, in a separate call. A crash
// between the two replays the flushed range on the next run.
type CheckpointStore interface {
	Load(ctx context.Context) (int64, error)
	Save(ctx context.Context, cursor int64) error
}
