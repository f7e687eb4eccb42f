package consumer

import (
	"context"
	"maps"
	"slices"
	"sync"

	"cartographer/internal/progress"
	"cartographer/internal/services"
)

// State is the consumer-side lifecycle of one job.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateComplete  State = "complete"
	StateError     State = "error"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further events change a view in this state.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateError || s == StateCancelled
}

// View is an immutable snapshot of a job as seen by the consumer.
type View struct {
	State      State
	JobID      string
	Categories []string
	// Completed only grows during a run.
	Completed map[string]struct{}
	// Failed maps a category to its failure reason.
	Failed   map[string]string
	Current  string
	Index    int
	Total    int
	Outcomes []progress.Outcome
	Totals   progress.Totals
	Error    string
	Kind     services.Kind
}

// IsCompleted reports whether category finished successfully.
func (v View) IsCompleted(category string) bool {
	_, ok := v.Completed[category]
	return ok
}

// CompletedCategories returns completed categories in job order. Categories
// not announced by Started follow in name order.
func (v View) CompletedCategories() []string {
	out := make([]string, 0, len(v.Completed))
	seen := make(map[string]struct{}, len(v.Completed))
	for _, name := range v.Categories {
		if _, ok := v.Completed[name]; ok {
			out = append(out, name)
			seen[name] = struct{}{}
		}
	}
	var rest []string
	for name := range v.Completed {
		if _, ok := seen[name]; !ok {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

// Finished returns how many categories have an outcome.
func (v View) Finished() int {
	return len(v.Completed) + len(v.Failed)
}

func (v View) clone() View {
	v.Categories = slices.Clone(v.Categories)
	v.Completed = maps.Clone(v.Completed)
	v.Failed = maps.Clone(v.Failed)
	v.Outcomes = slices.Clone(v.Outcomes)
	return v
}

func newView() View {
	return View{
		State:     StateIdle,
		Completed: map[string]struct{}{},
		Failed:    map[string]string{},
	}
}

// Machine folds progress events into a View. Every transition reads the
// latest view and writes the next under one lock, so events arriving in
// bursts from several goroutines are never lost. Folding the same event twice
// leaves the view unchanged, and once the view is terminal further events are
// ignored.
type Machine struct {
	mu     sync.Mutex
	view   View
	cancel context.CancelFunc
}

// NewMachine returns an idle machine.
func NewMachine() *Machine {
	return &Machine{view: newView()}
}

// Begin resets the machine for a new run. cancel is invoked by Cancel and
// should close the run's transport.
func (m *Machine) Begin(cancel context.CancelFunc) View {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view = newView()
	m.cancel = cancel
	return m.view.clone()
}

// Snapshot returns the current view.
func (m *Machine) Snapshot() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view.clone()
}

// Fold applies evt and returns the resulting view.
func (m *Machine) Fold(evt progress.Event) View {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view = fold(m.view, evt)
	return m.view.clone()
}

// Fail moves a live run to StateError, for transport and decode failures.
func (m *Machine) Fail(err error) View {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.view.State.Terminal() && err != nil {
		m.view.State = StateError
		m.view.Error = err.Error()
		m.view.Kind = services.Classify(err)
		m.view.Current = ""
	}
	return m.view.clone()
}

// Cancel stops the run: the transport is closed and the view becomes
// StateCancelled unless a terminal event already arrived.
func (m *Machine) Cancel() View {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	if !m.view.State.Terminal() {
		m.view.State = StateCancelled
		m.view.Current = ""
	}
	view := m.view.clone()
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return view
}

// fold is the pure transition function. It mutates only maps owned by v,
// which callers never share.
func fold(v View, evt progress.Event) View {
	if v.State.Terminal() {
		return v
	}
	switch e := evt.(type) {
	case progress.Started:
		if v.State == StateIdle {
			v.State = StateRunning
			v.JobID = e.JobID
			v.Categories = slices.Clone(e.Categories)
			v.Total = len(e.Categories)
		}
	case progress.CategoryProgress:
		v.State = StateRunning
		v.Current = e.Category
		v.Index = e.Index
		v.Total = e.Total
	case progress.CategoryDone:
		v.State = StateRunning
		if _, failed := v.Failed[e.Category]; !failed {
			v.Completed[e.Category] = struct{}{}
		}
		if v.Current == e.Category {
			v.Current = ""
		}
	case progress.CategoryFailed:
		v.State = StateRunning
		if _, done := v.Completed[e.Category]; !done {
			v.Failed[e.Category] = e.Reason
		}
		if v.Current == e.Category {
			v.Current = ""
		}
	case progress.JobDone:
		v.State = StateComplete
		v.Current = ""
		v.Outcomes = slices.Clone(e.Outcomes)
		v.Totals = e.Totals
		for _, outcome := range e.Outcomes {
			v.Completed[outcome.Category] = struct{}{}
		}
	case progress.JobFailed:
		v.State = StateError
		v.Current = ""
		v.Error = e.Reason
		v.Kind = e.Kind
	}
	return v
}
