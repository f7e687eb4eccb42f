package progress

import "cartographer/internal/services"

// EventType is the wire discriminator carried in every frame's "type" field.
type EventType string

const (
	TypeStarted          EventType = "started"
	TypeCategoryProgress EventType = "category_progress"
	TypeCategoryDone     EventType = "category_done"
	TypeCategoryFailed   EventType = "category_failed"
	TypeJobDone          EventType = "job_done"
	TypeJobFailed        EventType = "job_failed"
)

// Event is one step of an extraction job's lifecycle. The set of
// implementations is closed; switch on the concrete type.
type Event interface {
	Type() EventType
	event()
}

// Terminal reports whether evt ends a run.
func Terminal(evt Event) bool {
	switch evt.(type) {
	case JobDone, JobFailed:
		return true
	default:
		return false
	}
}

// Started is emitted once, before any category work.
type Started struct {
	JobID      string   `json:"job_id,omitempty"`
	Categories []string `json:"categories"`
}

// CategoryProgress is emitted immediately before a category's external call.
// Index is zero-based.
type CategoryProgress struct {
	Category string `json:"category"`
	Index    int    `json:"index"`
	Total    int    `json:"total"`
}

// CategoryDone reports a successful category.
type CategoryDone struct {
	Category     string `json:"category"`
	Index        int    `json:"index"`
	Total        int    `json:"total"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// CategoryFailed reports a category that failed without ending the job.
type CategoryFailed struct {
	Category string        `json:"category"`
	Index    int           `json:"index"`
	Total    int           `json:"total"`
	Reason   string        `json:"reason"`
	Kind     services.Kind `json:"kind"`
}

// Outcome is the successful result of one category.
type Outcome struct {
	Category          string `json:"category"`
	PrimaryArtifact   string `json:"primary_artifact"`
	SecondaryArtifact string `json:"secondary_artifact"`
	InputTokens       int    `json:"input_tokens"`
	OutputTokens      int    `json:"output_tokens"`
}

// Totals aggregates token usage over successful outcomes only.
type Totals struct {
	InputTokens   int     `json:"input_tokens"`
	OutputTokens  int     `json:"output_tokens"`
	EstimatedCost float64 `json:"estimated_cost"`
	Model         string  `json:"model,omitempty"`
}

// JobDone ends a run in which at least one category succeeded.
type JobDone struct {
	Outcomes []Outcome `json:"outcomes"`
	Totals   Totals    `json:"totals"`
}

// JobFailed ends a run in which every category failed, or one hit an error
// that could not be confined to its category.
type JobFailed struct {
	Reason string        `json:"reason"`
	Kind   services.Kind `json:"kind"`
}

func (Started) Type() EventType          { return TypeStarted }
func (CategoryProgress) Type() EventType { return TypeCategoryProgress }
func (CategoryDone) Type() EventType     { return TypeCategoryDone }
func (CategoryFailed) Type() EventType   { return TypeCategoryFailed }
func (JobDone) Type() EventType          { return TypeJobDone }
func (JobFailed) Type() EventType        { return TypeJobFailed }

func (Started) event()          {}
func (CategoryProgress) event() {}
func (CategoryDone) event()     {}
func (CategoryFailed) event()   {}
func (JobDone) event()          {}
func (JobFailed) event()        {}
