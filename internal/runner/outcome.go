package runner

import (
	"errors"

	"github.com/hashcurator/hashcurator/internal/aggregation"
)

// Outcome is the result of one phase or of the whole run. Its value is the
// process exit code.
type Outcome int

const (
	Success     Outcome = 0
	Failure     Outcome = 1
	NothingToDo Outcome = 2
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "SUCCESS"
	case Failure:
		return "FAILURE"
	case NothingToDo:
		return "NOTHING_TO_DO"
	default:
		return "UNKNOWN"
	}
}

// ExitCode returns the process exit code for o.
func (o Outcome) ExitCode() int {
	return int(o)
}

// OutcomeOf maps a phase error to its outcome. ErrNothingToDo is not a failure.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, aggregation.ErrNothingToDo):
		return NothingToDo
	default:
		return Failure
	}
}

// Combine folds the two phase outcomes into the run outcome. A classification
// failure wins; otherwise the aggregation outcome stands.
func Combine(aggregationOutcome, classificationOutcome Outcome) Outcome {
	if classificationOutcome == Failure {
		return Failure
	}
	return aggregationOutcome
}
