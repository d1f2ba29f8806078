package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashcurator/hashcurator/internal/aggregation"
	"github.com/hashcurator/hashcurator/internal/classification"
	"github.com/hashcurator/hashcurator/internal/stats"
)

// AggregationPhase scans new resources into daily counters.
type AggregationPhase interface {
	Run(ctx context.Context) (aggregation.Report, error)
}

// ClassificationPhase maintains the ignore list from persisted counters.
type ClassificationPhase interface {
	Run(ctx context.Context) (classification.Report, error)
}

// Result describes one complete run.
type Result struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Aggregation       Outcome            `json:"-"`
	AggregationReport aggregation.Report `json:"aggregation_report"`
	AggregationError  string             `json:"aggregation_error,omitempty"`

	Classification       Outcome               `json:"-"`
	ClassificationReport classification.Report `json:"classification_report"`
	ClassificationError  string                `json:"classification_error,omitempty"`

	Outcome Outcome `json:"-"`
}

// Runner executes the aggregation phase followed by the classification phase.
// Classification always runs, whatever aggregation returned. Either phase may be
// nil when disabled.
type Runner struct {
	aggregation    AggregationPhase
	classification ClassificationPhase
	reporter       stats.Reporter
	logger         *slog.Logger
	nowFn          func() time.Time
	newRunID       func() string

	mu   sync.RWMutex
	last *Result
}

// New creates a runner. A nil reporter disables stats.
func New(agg AggregationPhase, cls ClassificationPhase, reporter stats.Reporter, logger *slog.Logger) *Runner {
	if reporter == nil {
		reporter = stats.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		aggregation:    agg,
		classification: cls,
		reporter:       reporter,
		logger:         logger,
		nowFn:          time.Now,
		newRunID:       uuid.NewString,
	}
}

// Run executes both phases and reports the combined outcome to the stats sink.
func (r *Runner) Run(ctx context.Context) Result {
	res := Result{RunID: r.newRunID(), StartedAt: r.nowFn()}
	logger := r.logger.With("run_id", res.RunID)
	logger.Info("[Runner] Run started")

	res.Aggregation = Success
	if r.aggregation != nil {
		report, err := r.aggregation.Run(ctx)
		res.AggregationReport = report
		res.Aggregation = OutcomeOf(err)
		switch res.Aggregation {
		case NothingToDo:
			logger.Warn("[Runner] All up to date, no closed day to aggregate", "reason", err)
		case Failure:
			res.AggregationError = err.Error()
			logger.Error("[Runner] Aggregation failed", "error", err)
		default:
			logger.Info("[Runner] Aggregation finished",
				"windows", report.Windows,
				"flushes", report.Flushes,
				"counters", report.CountersPersisted,
				"checkpoint", report.EndCursor)
		}
	} else {
		logger.Info("[Runner] Aggregation disabled")
	}

	res.Classification = Success
	if r.classification != nil {
		// Classification is not interruptible once started.
		report, err := r.runClassification(context.WithoutCancel(ctx))
		res.ClassificationReport = report
		if err != nil {
			res.Classification = Failure
			res.ClassificationError = err.Error()
			logger.Error("[Runner] Classification failed", "error", err)
		}
	} else {
		logger.Info("[Runner] Classification disabled")
	}

	res.Outcome = Combine(res.Aggregation, res.Classification)
	res.FinishedAt = r.nowFn()

	stats.ReportRun(ctx, r.reporter, res.Outcome != Failure, res.FinishedAt)

	logger.Info("[Runner] Run finished",
		"outcome", res.Outcome.String(),
		"aggregation", res.Aggregation.String(),
		"classification", res.Classification.String(),
		"duration", res.FinishedAt.Sub(res.StartedAt))

	r.mu.Lock()
	r.last = &res
	r.mu.Unlock()

	return res
}

func (r *Runner) runClassification(ctx context.Context) (report classification.Report, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("classification panicked: %v", p)
		}
	}()
	return r.classification.Run(ctx)
}

// LastResult returns the most recent completed run.
func (r *Runner) LastResult() (Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return Result{}, false
	}
	return *r.last, true
}
