package classification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/alitto/pond/v2"
	"github.com/hashcurator/hashcurator/internal/core/aggregation"
	"github.com/hashcurator/hashcurator/internal/core/storage"
)

// DefaultParallelism is the number of candidates evaluated concurrently.
const DefaultParallelism = 50

// Report summarizes one evaluation pass.
type Report struct {
	Candidates       int
	SkippedDuplicate int
	SkippedSignature int
	SkippedIgnored   int
	SkippedPrecheck  int
	Dispatched       int
	Decided          map[Category]int
	NoDecision       int
	Failed           int
}

// DecidedTotal returns the number of ignore entries written.
func (r Report) DecidedTotal() int {
	total := 0
	for _, n := range r.Decided {
		total += n
	}
	return total
}

// Evaluator fans candidates out to a bounded worker pool. The dispatching loop
// runs on the caller's goroutine and is the only writer of the dedup set.
type Evaluator struct {
	signatures  storage.SignatureStore
	ignores     storage.IgnoreStore
	decider     Decider
	parallelism int
	logger      *slog.Logger
}

// NewEvaluator creates an evaluator running at most parallelism decisions at once.
func NewEvaluator(
	signatures storage.SignatureStore,
	ignores storage.IgnoreStore,
	decider Decider,
	parallelism int,
	logger *slog.Logger,
) *Evaluator {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		signatures:  signatures,
		ignores:     ignores,
		decider:     decider,
		parallelism: parallelism,
		logger:      logger,
	}
}

type tally struct {
	mu         sync.Mutex
	decided    map[Category]int
	noDecision atomic.Int64
	failed     atomic.Int64
}

func (t *tally) decide(c Category) {
	t.mu.Lock()
	t.decided[c]++
	t.mu.Unlock()
}

// Run evaluates every candidate and blocks until all dispatched work has finished.
// Failures of a single candidate are logged and counted; they never stop the pass.
func (e *Evaluator) Run(ctx context.Context, candidates []aggregation.Counter) (Report, error) {
	if e.decider == nil || e.signatures == nil || e.ignores == nil {
		return Report{}, errors.New("evaluator: missing collaborator")
	}

	report := Report{Candidates: len(candidates)}
	t := &tally{decided: make(map[Category]int)}

	pool := pond.NewPool(e.parallelism)
	defer pool.StopAndWait()
	group := pool.NewGroup()

	processed := make(map[string]struct{}, len(candidates))
	for i, c := range candidates {
		if _, dup := processed[c.Key]; dup {
			report.SkippedDuplicate++
			continue
		}

		skip, err := e.precheck(ctx, c.Key)
		if err != nil {
			e.logger.Warn("[Evaluator] Pre-check failed, skipping candidate",
				"imphash", c.Key,
				"error", err)
			report.SkippedPrecheck++
			continue
		}
		switch skip {
		case skipSignature:
			report.SkippedSignature++
			continue
		case skipIgnored:
			report.SkippedIgnored++
			continue
		}

		processed[c.Key] = struct{}{}
		report.Dispatched++

		seq, candidate := i, c
		group.Submit(func() {
			e.evaluate(ctx, seq, candidate, t)
		})
	}

	if err := group.Wait(); err != nil {
		// evaluate recovers its own panics, so this only fires on pool failures.
		return report, fmt.Errorf("evaluator: wait for workers: %w", err)
	}

	report.Decided = t.decided
	report.NoDecision = int(t.noDecision.Load())
	report.Failed = int(t.failed.Load())

	e.logger.Info("[Evaluator] Evaluation complete",
		"candidates", report.Candidates,
		"dispatched", report.Dispatched,
		"decided", report.DecidedTotal(),
		"no_decision", report.NoDecision,
		"failed", report.Failed,
		"skipped_duplicate", report.SkippedDuplicate,
		"skipped_signature", report.SkippedSignature,
		"skipped_ignored", report.SkippedIgnored,
		"skipped_precheck", report.SkippedPrecheck)

	return report, nil
}

type skipReason int

const (
	skipNone skipReason = iota
	skipSignature
	skipIgnored
)

func (e *Evaluator) precheck(ctx context.Context, key string) (skipReason, error) {
	signed, err := e.signatures.HasSignature(ctx, key)
	if err != nil {
		return skipNone, err
	}
	if signed {
		return skipSignature, nil
	}

	ignored, err := e.ignores.HasIgnoreEntry(ctx, storage.IgnoreTypeIMPHash, key)
	if err != nil {
		return skipNone, err
	}
	if ignored {
		return skipIgnored, nil
	}
	return skipNone, nil
}

func (e *Evaluator) evaluate(ctx context.Context, seq int, c aggregation.Counter, t *tally) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("[Evaluator] Candidate evaluation panicked",
				"imphash", c.Key,
				"panic", r)
			t.failed.Add(1)
		}
	}()

	category, err := e.decider.Decide(ctx, c.Key)
	if err != nil {
		e.logger.Warn("[Evaluator] Candidate evaluation failed",
			"seq", seq,
			"imphash", c.Key,
			"error", err)
		t.failed.Add(1)
		return
	}

	if category == NoDecision {
		e.logger.Debug("[Evaluator] No decision", "seq", seq, "imphash", c.Key, "counter", c.Count)
		t.noDecision.Add(1)
		return
	}

	if err := e.ignores.InsertIgnore(ctx, storage.NewIMPHashIgnore(c.Key, string(category))); err != nil {
		e.logger.Warn("[Evaluator] Failed to write ignore entry",
			"imphash", c.Key,
			"category", category,
			"error", err)
		t.failed.Add(1)
		return
	}

	e.logger.Info("[Evaluator] Added IMPHash to ignore list",
		"seq", seq,
		"imphash", c.Key,
		"category", category,
		"counter", c.Count)
	t.decide(category)
}
