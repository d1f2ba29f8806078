package classification

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashcurator/hashcurator/internal/core/storage"
)

// Job runs one classification pass: select, shuffle, evaluate.
type Job struct {
	counters  storage.CounterStore
	evaluator *Evaluator
	params    SelectParams
	shuffle   Shuffler
	nowFn     func() time.Time
	logger    *slog.Logger
}

// NewJob creates a classification job.
func NewJob(counters storage.CounterStore, evaluator *Evaluator, params SelectParams, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		counters:  counters,
		evaluator: evaluator,
		params:    params,
		nowFn:     time.Now,
		logger:    logger,
	}
}

// Run selects the eligible counters and evaluates them. Errors are returned only
// when the pass could not start or the worker pool failed; per-candidate failures
// are reported in the Report.
func (j *Job) Run(ctx context.Context) (Report, error) {
	candidates, err := SelectCandidates(ctx, j.counters, j.nowFn(), j.params, j.shuffle)
	if err != nil {
		return Report{}, err
	}

	j.logger.Info("[Classification] Selected candidates", "count", len(candidates))
	return j.evaluator.Run(ctx, candidates)
}
