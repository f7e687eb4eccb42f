package jobs

import (
	"time"

	"cartographer/internal/extraction"
)

// State is the lifecycle of a recorded job.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = State(extraction.StateCompleted)
	StateFailed    State = State(extraction.StateFailed)
	StateCancelled State = State(extraction.StateCancelled)
	// StateInterrupted marks jobs that were still running when the daemon
	// stopped.
	StateInterrupted State = "interrupted"
)

// InterruptedReason is stored on jobs reclaimed at startup.
const InterruptedReason = "Daemon stopped before the job finished"

var allStates = []State{StateRunning, StateCompleted, StateFailed, StateCancelled, StateInterrupted}

// ParseState validates a state name.
func ParseState(value string) (State, bool) {
	for _, state := range allStates {
		if string(state) == value {
			return state, true
		}
	}
	return "", false
}

// Job is one recorded extraction run.
type Job struct {
	ID            string
	ClientName    string
	Mode          string
	Model         string
	State         State
	Categories    []string
	Reason        string
	ErrorKind     string
	InputTokens   int
	OutputTokens  int
	EstimatedCost float64
	CreatedAt     time.Time
	FinishedAt    *time.Time
	// Results is only populated by Get.
	Results []CategoryRecord
}

// Finished reports whether the job reached a final state.
func (j *Job) Finished() bool {
	return j != nil && j.State != StateRunning
}

// CategoryRecord is the stored outcome of one category.
type CategoryRecord struct {
	Index             int
	Category          string
	Failed            bool
	Reason            string
	ErrorKind         string
	PrimaryArtifact   string
	SecondaryArtifact string
	InputTokens       int
	OutputTokens      int
	Elapsed           time.Duration
	FinishedAt        time.Time
}
