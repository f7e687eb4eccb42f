package extraction

import (
	"time"

	"cartographer/internal/estimate"
	"cartographer/internal/progress"
	"cartographer/internal/services"
)

// State is how a run ended.
type State string

const (
	// StateRejected means Prepare refused the job; nothing was emitted.
	StateRejected State = "rejected"
	// StateCompleted means at least one category succeeded and JobDone was emitted.
	StateCompleted State = "completed"
	// StateFailed means JobFailed was emitted.
	StateFailed State = "failed"
	// StateCancelled means the run stopped early without a terminal event.
	StateCancelled State = "cancelled"
)

// CategoryResult is the outcome of one category: Outcome when it succeeded,
// Reason and Kind when it failed.
type CategoryResult struct {
	Index    int
	Category string
	Failed   bool
	Outcome  progress.Outcome
	Reason   string
	Kind     services.Kind
	Elapsed  time.Duration

	err error
}

// Summary describes a finished run.
type Summary struct {
	JobID      string
	ClientName string
	Mode       estimate.Mode
	Model      string
	Categories []string
	State      State
	Results    []CategoryResult
	Totals     progress.Totals
	// Reason and Kind explain a rejected or failed job.
	Reason     string
	Kind       services.Kind
	StartedAt  time.Time
	FinishedAt time.Time
}

// Outcomes returns successful category outcomes in job order.
func (s Summary) Outcomes() []progress.Outcome {
	outcomes := make([]progress.Outcome, 0, len(s.Results))
	for _, result := range s.Results {
		if !result.Failed {
			outcomes = append(outcomes, result.Outcome)
		}
	}
	return outcomes
}

// Failures returns failed category results in job order.
func (s Summary) Failures() []CategoryResult {
	var failures []CategoryResult
	for _, result := range s.Results {
		if result.Failed {
			failures = append(failures, result)
		}
	}
	return failures
}
