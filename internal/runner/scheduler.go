package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the job on a cron schedule. A run that is still going when the
// next tick fires causes that tick to be skipped.
type Scheduler struct {
	spec   string
	runner *Runner
	logger *slog.Logger
	cron   *cron.Cron
}

// NewScheduler creates a scheduler for a standard five-field cron expression.
func NewScheduler(spec string, runner *Runner, logger *slog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	))

	return &Scheduler{spec: spec, runner: runner, logger: logger, cron: c}, nil
}

// Start runs the job on every tick until ctx is cancelled, then waits for an
// in-flight run to complete.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runner.Run(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("[Scheduler] Started", "cron", s.spec)

	<-ctx.Done()
	s.logger.Info("[Scheduler] Stopping (context cancelled), waiting for running job")
	<-s.cron.Stop().Done()
	s.logger.Info("[Scheduler] Stopped")
	return nil
}
