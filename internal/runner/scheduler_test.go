package runner

import (
	"context"
	"testing"
	"time"

	"github.com/hashcurator/hashcurator/internal/aggregation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signallingAggregation struct {
	ran chan struct{}
}

func (s *signallingAggregation) Run(context.Context) (aggregation.Report, error) {
	select {
	case s.ran <- struct{}{}:
	default:
	}
	return aggregation.Report{}, nil
}

func TestNewScheduler_RejectsInvalidSpec(t *testing.T) {
	_, err := NewScheduler("every tuesday", New(nil, nil, nil, nil), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron spec")
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	s, err := NewScheduler("@every 1h", New(nil, nil, nil, discardLogger()), discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "scheduler did not stop")
	}
}

func TestScheduler_RunsJobUntilCancelled(t *testing.T) {
	logger := discardLogger()
	agg := &signallingAggregation{ran: make(chan struct{}, 1)}
	r := New(agg, nil, nil, logger)

	s, err := NewScheduler("@every 1s", r, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case <-agg.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled job never ran")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	_, ok := r.LastResult()
	assert.True(t, ok)
}
