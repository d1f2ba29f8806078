package runner

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hashcurator/hashcurator/internal/aggregation"
	"github.com/stretchr/testify/assert"
)

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, Success, OutcomeOf(nil))
	assert.Equal(t, NothingToDo, OutcomeOf(fmt.Errorf("checkpoint at 42: %w", aggregation.ErrNothingToDo)))
	assert.Equal(t, Failure, OutcomeOf(fmt.Errorf("%w: missing file", aggregation.ErrConfig)))
	assert.Equal(t, Failure, OutcomeOf(aggregation.ErrInconsistentCursor))
	assert.Equal(t, Failure, OutcomeOf(errors.New("window [0, 100): connection reset")))
}

func TestCombine(t *testing.T) {
	tests := []struct {
		agg, cls, want Outcome
	}{
		{Success, Success, Success},
		{NothingToDo, Success, NothingToDo},
		{Failure, Success, Failure},
		{Success, Failure, Failure},
		{NothingToDo, Failure, Failure},
		{Failure, Failure, Failure},
	}
	for _, tt := range tests {
		t.Run(tt.agg.String()+"+"+tt.cls.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Combine(tt.agg, tt.cls))
		})
	}
}

func TestOutcome_ExitCode(t *testing.T) {
	assert.Equal(t, 0, Success.ExitCode())
	assert.Equal(t, 1, Failure.ExitCode())
	assert.Equal(t, 2, NothingToDo.ExitCode())
	assert.Equal(t, "UNKNOWN", Outcome(9).String())
}
