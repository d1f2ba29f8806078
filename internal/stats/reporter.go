// Package stats publishes job run markers to the shared operations hash.
package stats

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Operations hash fields written after every run.
const (
	OperationsKey    = "STATS_Operations"
	FieldLastRun     = "IMPHashCounterImport"
	FieldLastStatus  = "IMPHashCounterImport_LastStatus"
	StatusSuccess    = "Success"
	StatusFailed     = "Failed"
	defaultOpTimeout = 3 * time.Second
)

// Reporter writes a single hash field.
// Reporting is best-effort: implementations log failures and never return them,
// so a stats outage cannot change the outcome of a run.
type Reporter interface {
	Report(ctx context.Context, key, field, value string)
}

// ReportRun records when the run finished and whether it succeeded.
func ReportRun(ctx context.Context, r Reporter, success bool, finishedAt time.Time) {
	status := StatusFailed
	if success {
		status = StatusSuccess
	}
	r.Report(ctx, OperationsKey, FieldLastRun, strconv.FormatInt(finishedAt.UTC().UnixNano(), 10))
	r.Report(ctx, OperationsKey, FieldLastStatus, status)
}

// Nop discards every report.
type Nop struct{}

func (Nop) Report(context.Context, string, string, string) {}

// RedisOpts configures the Redis reporter.
type RedisOpts struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// RedisReporter writes report fields with HSET.
type RedisReporter struct {
	client  *redis.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewRedisReporter creates a reporter. It does not connect eagerly; an unreachable
// server only shows up as logged warnings when reporting.
func NewRedisReporter(o RedisOpts, logger *slog.Logger) *RedisReporter {
	if o.Timeout <= 0 {
		o.Timeout = defaultOpTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,

		PoolSize:     2,
		MaxRetries:   1,
		DialTimeout:  o.Timeout,
		ReadTimeout:  o.Timeout,
		WriteTimeout: o.Timeout,
	})

	return &RedisReporter{client: rdb, timeout: o.Timeout, logger: logger}
}

// Report sets field on the hash at key. Errors are logged and swallowed.
func (r *RedisReporter) Report(ctx context.Context, key, field, value string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if err := r.client.HSet(ctx, key, field, value).Err(); err != nil {
		r.logger.Warn("[Stats] Failed to write stats field",
			"key", key,
			"field", field,
			"error", err)
	}
}

// Close closes the Redis connection.
func (r *RedisReporter) Close() error {
	return r.client.Close()
}
