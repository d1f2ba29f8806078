package aggregation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	core "github.com/hashcurator/hashcurator/internal/core/aggregation"
	"github.com/hashcurator/hashcurator/internal/core/storage"
)

const defaultWindowWidth = 100000

// JobParameter controls one aggregation run.
type JobParameter struct {
	// WindowWidth is the number of resource IDs scanned per grouped query.
	WindowWidth int64
	// HoursAgo bounds the scan to resources created at least this many hours ago.
	HoursAgo int
	// FlushOpenBucket persists a trailing buffer whose day has not closed yet.
	// Counters of an open day may be split across runs, and a key seen once in
	// each part is then dropped as noise.
	FlushOpenBucket bool
}

// DefaultJobParameter returns the production defaults.
func DefaultJobParameter() JobParameter {
	return JobParameter{WindowWidth: defaultWindowWidth}
}

func (p JobParameter) normalized() JobParameter {
	n := p
	if n.WindowWidth <= 0 {
		n.WindowWidth = defaultWindowWidth
	}
	if n.HoursAgo < 0 {
		n.HoursAgo = 0
	}
	return n
}

// Report summarizes one aggregation run.
type Report struct {
	StartCursor       int64
	MaxCursor         int64
	EndCursor         int64
	Windows           int
	Flushes           int
	CountersPersisted int
	NoiseDropped      int
	Deferred          int
}

// CounterAggregator scans the resource log window by window from the checkpoint,
// accumulates per-IMPHash counts by day and flushes each day as it closes.
// Runs are strictly sequential: flushes happen in cursor order.
type CounterAggregator struct {
	checkpoints CheckpointStore
	resources   storage.ResourceStore
	counters    storage.CounterStore
	param       JobParameter
	logger      *slog.Logger
	nowFn       func() time.Time
}

// NewCounterAggregator wires an aggregator. A nil logger falls back to slog.Default().
func NewCounterAggregator(
	checkpoints CheckpointStore,
	resources storage.ResourceStore,
	counters storage.CounterStore,
	param JobParameter,
	logger *slog.Logger,
) *CounterAggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &CounterAggregator{
		checkpoints: checkpoints,
		resources:   resources,
		counters:    counters,
		param:       param.normalized(),
		logger:      logger,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// Run performs one aggregation pass. It returns ErrNothingToDo when the checkpoint
// sits on the current day, ErrConfig / ErrInconsistentCursor when it cannot start,
// and any query or persistence error wrapped with the window it happened in.
func (a *CounterAggregator) Run(ctx context.Context) (Report, error) {
	var report Report

	last, err := a.checkpoints.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	report.StartCursor = last
	report.EndCursor = last

	current, ok, err := a.resources.MaxCursor(ctx, a.param.HoursAgo)
	if err != nil {
		return report, fmt.Errorf("load current cursor: %w", err)
	}
	if !ok {
		return report, fmt.Errorf("%w: resource log has no current cursor", ErrInconsistentCursor)
	}
	if last > current {
		return report, fmt.Errorf("%w: checkpoint %d is ahead of current cursor %d", ErrInconsistentCursor, last, current)
	}
	report.MaxCursor = current

	a.logger.Info("[Aggregator] Starting counter aggregation",
		"last_cursor", last,
		"current_cursor", current,
		"window_width", a.param.WindowWidth,
	)

	today := core.BucketDate(a.nowFn())
	start, err := a.resources.RecordAt(ctx, last)
	if err != nil {
		return report, fmt.Errorf("resolve checkpoint record %d: %w", last, err)
	}
	if start == nil || !core.BucketDate(start.CreateDate).Before(today) {
		a.logger.Warn("[Aggregator] All up-to-date, run again tomorrow to count the closed day",
			"cursor", last)
		return report, ErrNothingToDo
	}

	buf := core.NewBuffer()
	var (
		prevDate time.Time
		havePrev bool
	)

	for {
		w, ok := core.NextWindow(last, a.param.WindowWidth, current)
		if !ok {
			a.logger.Info("[Aggregator] Reached current cursor", "cursor", current)
			break
		}

		rec, err := a.resources.RecordAt(ctx, w.Lower)
		if err != nil {
			return report, fmt.Errorf("resolve bucket date for window %s: %w", w, err)
		}
		if rec == nil {
			a.logger.Warn("[Aggregator] No resource at or after window start", "window", w.String())
			break
		}
		date := core.BucketDate(rec.CreateDate)

		began := time.Now()
		rows, err := a.resources.GroupedCounts(ctx, w.Lower, w.Upper, true)
		if err != nil {
			return report, fmt.Errorf("grouped counts for window %s: %w", w, err)
		}
		report.Windows++
		a.logger.Debug("[Aggregator] Window scanned",
			"window", w.String(),
			"bucket_date", date.Format(time.DateOnly),
			"keys", len(rows),
			"took", time.Since(began),
		)

		if len(rows) == 0 {
			a.logger.Warn("[Aggregator] No data in window, stopping", "window", w.String())
			last = w.Upper
			break
		}

		// Day rolled over: everything buffered so far belongs to the previous date
		// and ends at this window's lower bound.
		if havePrev && !prevDate.Equal(date) {
			if err := a.flush(ctx, buf, w.Lower, &report); err != nil {
				return report, err
			}
		}

		if err := buf.Merge(date, rows); err != nil {
			return report, fmt.Errorf("merge window %s: %w", w, err)
		}

		prevDate = date
		havePrev = true
		last = w.Upper
	}

	if err := a.finalFlush(ctx, buf, last, today, &report); err != nil {
		return report, err
	}

	a.logger.Info("[Aggregator] Counter aggregation complete",
		"windows", report.Windows,
		"flushes", report.Flushes,
		"counters_persisted", report.CountersPersisted,
		"noise_dropped", report.NoiseDropped,
		"cursor_advanced", fmt.Sprintf("%d -> %d", report.StartCursor, report.EndCursor),
	)
	return report, nil
}

func (a *CounterAggregator) finalFlush(ctx context.Context, buf *core.Buffer, cursor int64, today time.Time, report *Report) error {
	date, ok := buf.Date()
	if !ok {
		return nil
	}

	if !date.Before(today) && !a.param.FlushOpenBucket {
		report.Deferred = buf.Len()
		buf.Drain()
		a.logger.Info("[Aggregator] Deferring open day to the next run",
			"bucket_date", date.Format(time.DateOnly),
			"keys", report.Deferred,
			"checkpoint", report.EndCursor,
		)
		return nil
	}

	return a.flush(ctx, buf, cursor, report)
}

// flush persists the buffered day, then advances the checkpoint to cursor and clears the buffer.
func (a *CounterAggregator) flush(ctx context.Context, buf *core.Buffer, cursor int64, report *Report) error {
	date, _ := buf.Date()
	kept, dropped := buf.Drain()

	a.logger.Info("[Aggregator] Saving counters",
		"bucket_date", date.Format(time.DateOnly),
		"counters", len(kept),
		"noise_dropped", dropped,
		"cursor", cursor,
	)

	if len(kept) > 0 {
		if err := a.counters.UpsertBatch(ctx, kept); err != nil {
			return fmt.Errorf("save counters for %s: %w", date.Format(time.DateOnly), err)
		}
	}
	if err := a.checkpoints.Save(ctx, cursor); err != nil {
		return fmt.Errorf("save checkpoint %d: %w", cursor, err)
	}

	report.Flushes++
	report.CountersPersisted += len(kept)
	report.NoiseDropped += dropped
	report.EndCursor = cursor
	return nil
}
