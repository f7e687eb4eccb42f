package consumer

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"cartographer/internal/progress"
	"cartographer/internal/services"
)

func TestFoldHappyPath(t *testing.T) {
	m := NewMachine()
	if got := m.Snapshot().State; got != StateIdle {
		t.Fatalf("initial state = %s", got)
	}

	m.Fold(progress.Started{JobID: "j", Categories: []string{"A", "B"}})
	m.Fold(progress.CategoryProgress{Category: "A", Index: 0, Total: 2})
	view := m.Snapshot()
	if view.State != StateRunning || view.Current != "A" || view.Total != 2 {
		t.Fatalf("unexpected running view %+v", view)
	}
	m.Fold(progress.CategoryDone{Category: "A", Index: 0, Total: 2})
	m.Fold(progress.CategoryProgress{Category: "B", Index: 1, Total: 2})
	m.Fold(progress.CategoryFailed{Category: "B", Index: 1, Total: 2, Reason: "rate limited", Kind: services.KindRateLimit})
	view = m.Fold(progress.JobDone{
		Outcomes: []progress.Outcome{{Category: "A", PrimaryArtifact: "rules"}},
		Totals:   progress.Totals{InputTokens: 10},
	})

	if view.State != StateComplete {
		t.Fatalf("state = %s", view.State)
	}
	if got := view.CompletedCategories(); len(got) != 1 || got[0] != "A" {
		t.Fatalf("completed = %v", got)
	}
	if view.Failed["B"] != "rate limited" || view.Finished() != 2 {
		t.Fatalf("unexpected failures %v", view.Failed)
	}
	if len(view.Outcomes) != 1 || view.Totals.InputTokens != 10 || view.Current != "" {
		t.Fatalf("unexpected final view %+v", view)
	}
}

func TestFoldIsIdempotentAndMonotonic(t *testing.T) {
	m := NewMachine()
	done := progress.CategoryDone{Category: "A"}
	m.Fold(progress.Started{Categories: []string{"A", "B"}})
	first := m.Fold(done)
	second := m.Fold(done)
	if len(first.Completed) != 1 || len(second.Completed) != 1 {
		t.Fatalf("duplicate fold changed the view: %v then %v", first.Completed, second.Completed)
	}

	// A late failure for an already completed category never removes it.
	view := m.Fold(progress.CategoryFailed{Category: "A", Reason: "late"})
	if !view.IsCompleted("A") || len(view.Failed) != 0 {
		t.Fatalf("completed set shrank: %+v", view)
	}

	// A repeated Started does not reset progress.
	view = m.Fold(progress.Started{Categories: []string{"X"}})
	if !view.IsCompleted("A") || len(view.Categories) != 2 {
		t.Fatalf("restart reset the view: %+v", view)
	}
}

func TestSnapshotsAreIsolated(t *testing.T) {
	m := NewMachine()
	m.Fold(progress.Started{Categories: []string{"A"}})
	snap := m.Fold(progress.CategoryDone{Category: "A"})
	snap.Completed["injected"] = struct{}{}
	snap.Categories[0] = "changed"
	view := m.Snapshot()
	if view.IsCompleted("injected") || view.Categories[0] != "A" {
		t.Fatalf("snapshot mutation leaked into machine: %+v", view)
	}
}

func TestTerminalViewsIgnoreLaterEvents(t *testing.T) {
	m := NewMachine()
	m.Fold(progress.Started{Categories: []string{"A", "B"}})
	view := m.Fold(progress.JobFailed{Reason: "all 2 categories failed", Kind: services.KindTimeout})
	if view.State != StateError || view.Kind != services.KindTimeout {
		t.Fatalf("unexpected error view %+v", view)
	}
	view = m.Fold(progress.CategoryDone{Category: "A"})
	if view.State != StateError || view.IsCompleted("A") {
		t.Fatalf("terminal view changed: %+v", view)
	}
}

func TestCancelInvokesTransportAndFreezesView(t *testing.T) {
	m := NewMachine()
	cancelled := 0
	m.Begin(func() { cancelled++ })
	m.Fold(progress.Started{Categories: []string{"A", "B"}})
	m.Fold(progress.CategoryProgress{Category: "A"})

	view := m.Cancel()
	if view.State != StateCancelled || cancelled != 1 {
		t.Fatalf("cancel: state=%s calls=%d", view.State, cancelled)
	}
	m.Cancel()
	if cancelled != 1 {
		t.Fatalf("cancel func must run once, ran %d times", cancelled)
	}
	if view := m.Fold(progress.CategoryDone{Category: "A"}); view.State != StateCancelled || view.IsCompleted("A") {
		t.Fatalf("events after cancel must be ignored: %+v", view)
	}
}

func TestCancelAfterCompletionKeepsComplete(t *testing.T) {
	m := NewMachine()
	m.Begin(func() {})
	m.Fold(progress.JobDone{})
	if view := m.Cancel(); view.State != StateComplete {
		t.Fatalf("state = %s", view.State)
	}
}

func TestFailOnlyAffectsLiveRuns(t *testing.T) {
	m := NewMachine()
	m.Fold(progress.Started{Categories: []string{"A"}})
	view := m.Fail(services.Wrap(services.ErrProcessing, "consumer", "read", "bad frame", nil))
	if view.State != StateError || view.Kind != services.KindProcessing {
		t.Fatalf("unexpected view %+v", view)
	}
	m.Begin(nil)
	m.Fold(progress.JobDone{})
	if view := m.Fail(errors.New("late")); view.State != StateComplete {
		t.Fatalf("Fail overrode a terminal view: %+v", view)
	}
}

func TestConcurrentBurstLosesNoUpdates(t *testing.T) {
	const categories = 200
	m := NewMachine()
	names := make([]string, categories)
	for i := range names {
		names[i] = fmt.Sprintf("cat-%03d", i)
	}
	m.Fold(progress.Started{Categories: names})

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			m.Fold(progress.CategoryProgress{Category: name})
			m.Fold(progress.CategoryDone{Category: name})
		}(name)
	}
	wg.Wait()

	view := m.Snapshot()
	if len(view.Completed) != categories {
		t.Fatalf("lost updates: %d of %d completed", len(view.Completed), categories)
	}
	if got := view.CompletedCategories(); got[0] != names[0] || got[categories-1] != names[categories-1] {
		t.Fatalf("completed categories not in job order")
	}
}
