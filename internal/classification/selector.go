package classification

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/hashcurator/hashcurator/internal/core/aggregation"
	"github.com/hashcurator/hashcurator/internal/core/storage"
)

// SelectParams bounds the counters picked for classification.
// Counters become eligible once their bucket has aged FromDaysAgo..ToDaysAgo days.
type SelectParams struct {
	FromDaysAgo int
	ToDaysAgo   int
	Limit       int
}

// DefaultSelectParams returns the production selection window.
func DefaultSelectParams() SelectParams {
	return SelectParams{FromDaysAgo: 15, ToDaysAgo: 10, Limit: 300000}
}

// Shuffler permutes n elements through swap.
type Shuffler func(n int, swap func(i, j int))

// SelectCandidates loads the counters in the eligible date range and shuffles them
// so that consecutive runs reach different keys first when a run is cut short.
func SelectCandidates(
	ctx context.Context,
	counters storage.CounterStore,
	now time.Time,
	p SelectParams,
	shuffle Shuffler,
) ([]aggregation.Counter, error) {
	if p.FromDaysAgo < p.ToDaysAgo {
		return nil, fmt.Errorf("select candidates: from (%d days ago) is after to (%d days ago)", p.FromDaysAgo, p.ToDaysAgo)
	}
	if p.Limit <= 0 {
		return nil, fmt.Errorf("select candidates: limit must be positive, got %d", p.Limit)
	}
	if shuffle == nil {
		shuffle = rand.Shuffle
	}

	today := aggregation.BucketDate(now)
	from := today.AddDate(0, 0, -p.FromDaysAgo)
	to := today.AddDate(0, 0, -p.ToDaysAgo)

	candidates, err := counters.SelectByDateRange(ctx, from, to, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("select candidates: %w", err)
	}

	shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	return candidates, nil
}
