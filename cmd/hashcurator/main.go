package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashcurator/hashcurator/internal/aggregation"
	"github.com/hashcurator/hashcurator/internal/checkpoint"
	"github.com/hashcurator/hashcurator/internal/classification"
	corecfg "github.com/hashcurator/hashcurator/internal/core/config"
	"github.com/hashcurator/hashcurator/internal/core/storage/postgres"
	"github.com/hashcurator/hashcurator/internal/migrations"
	"github.com/hashcurator/hashcurator/internal/reputation"
	"github.com/hashcurator/hashcurator/internal/runner"
	"github.com/hashcurator/hashcurator/internal/server"
	"github.com/hashcurator/hashcurator/internal/stats"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to configuration file (optional)")
	flag.Parse()

	// 0. Bootstrap logger until the configured one is available
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		return runner.Failure.ExitCode()
	}

	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		slog.Error("Failed to open log file", "path", cfg.Log.File, "error", err)
		return runner.Failure.ExitCode()
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("Loaded config",
		"checkpoint", cfg.Checkpoint.Path,
		"window_width", cfg.Aggregation.WindowWidth,
		"parallelism", cfg.Classification.Parallelism,
		"schedule", cfg.Schedule.Cron)

	// 2. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.QueryTimeout,
		logger,
	)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return runner.Failure.ExitCode()
	}
	defer dbAdapter.Close()

	// 2.1. Run Database Migrations
	if err := migrations.Run(dbAdapter.DB(), cfg.Database.AutoMigrate, logger); err != nil {
		logger.Error("Failed to run database migrations", "error", err)
		return runner.Failure.ExitCode()
	}
	if err := dbAdapter.ValidateSchema(context.Background()); err != nil {
		logger.Error("Database schema check failed", "error", err)
		return runner.Failure.ExitCode()
	}

	counterStore := postgres.NewCounterAdapter(dbAdapter.DB(), logger)
	signatureStore := postgres.NewSignatureAdapter(dbAdapter.DB(), logger)

	// 3. Aggregation phase
	var aggPhase runner.AggregationPhase
	if cfg.Aggregation.Enabled {
		aggPhase = aggregation.NewCounterAggregator(
			checkpoint.NewFile(cfg.Checkpoint.Path, logger),
			dbAdapter,
			counterStore,
			aggregation.JobParameter{
				WindowWidth:     cfg.Aggregation.WindowWidth,
				HoursAgo:        cfg.Aggregation.HoursAgo,
				FlushOpenBucket: cfg.Aggregation.FlushOpenBucket,
			},
			logger,
		)
	}

	// 4. Classification phase
	var clsPhase runner.ClassificationPhase
	if cfg.Classification.Enabled {
		job, err := newClassificationJob(cfg, dbAdapter, counterStore, signatureStore, logger)
		if err != nil {
			logger.Error("Failed to initialize classification", "error", err)
			return runner.Failure.ExitCode()
		}
		clsPhase = job
	}

	// 5. Stats sink
	var reporter stats.Reporter = stats.Nop{}
	if cfg.Stats.Enabled {
		redisReporter := stats.NewRedisReporter(stats.RedisOpts{
			Addr:     cfg.Stats.Addr,
			Password: cfg.Stats.Password,
			DB:       cfg.Stats.DB,
			Timeout:  cfg.Stats.Timeout,
		}, logger)
		defer redisReporter.Close()
		reporter = redisReporter
	}

	jobRunner := runner.New(aggPhase, clsPhase, reporter, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 6. Run once, or keep running on a schedule
	if cfg.Schedule.Cron == "" {
		res := jobRunner.Run(ctx)
		return res.Outcome.ExitCode()
	}

	scheduler, err := runner.NewScheduler(cfg.Schedule.Cron, jobRunner, logger)
	if err != nil {
		logger.Error("Failed to initialize scheduler", "error", err)
		return runner.Failure.ExitCode()
	}

	if cfg.Server.Enabled {
		srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter.DB(), jobRunner, cfg.Server.Mode, logger)
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("Server stopped with error", "error", err)
				cancel()
			}
		}()
	}

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Scheduler stopped with error", "error", err)
		return runner.Failure.ExitCode()
	}

	logger.Info("Shutdown complete")
	return runner.Success.ExitCode()
}

func newClassificationJob(
	cfg *corecfg.Config,
	resources *postgres.Adapter,
	counters *postgres.CounterAdapter,
	signatures *postgres.SignatureAdapter,
	logger *slog.Logger,
) (*classification.Job, error) {
	signers, err := classification.LoadSignerList(cfg.Classification.SignersFile)
	if err != nil {
		return nil, err
	}

	var rep reputation.Client
	if cfg.Reputation.Enabled {
		client, err := reputation.NewHTTPClient(reputation.Opts{
			BaseURL: cfg.Reputation.BaseURL,
			APIKey:  cfg.Reputation.APIKey,
			Timeout: cfg.Reputation.Timeout,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		rep = client
	} else {
		logger.Info("Reputation lookups disabled, signer rule will never match")
	}

	chain := classification.NewChain(resources, signatures, rep, signers, classification.ChainParams{
		ResourceLimit:       cfg.Classification.ResourceLimit,
		MaxAgeYears:         cfg.Classification.MaxAgeYears,
		PopularityThreshold: cfg.Classification.PopularityThreshold,
		MaxSignerChecks:     cfg.Classification.MaxSignerChecks,
	}, logger)

	evaluator := classification.NewEvaluator(signatures, signatures, chain, cfg.Classification.Parallelism, logger)

	return classification.NewJob(counters, evaluator, classification.SelectParams{
		FromDaysAgo: cfg.Classification.FromDaysAgo,
		ToDaysAgo:   cfg.Classification.ToDaysAgo,
		Limit:       cfg.Classification.CandidateLimit,
	}, logger), nil
}

// newLogger writes to stdout and, when configured, appends to the log file.
func newLogger(cfg corecfg.LogConfig) (*slog.Logger, func(), error) {
	var out io.Writer = os.Stdout
	closeFn := func() {}

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closeFn, err
		}
		out = io.MultiWriter(os.Stdout, f)
		closeFn = func() { _ = f.Close() }
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	return slog.New(handler).With("app", "hashcurator"), closeFn, nil
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
