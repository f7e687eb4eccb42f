package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cartographer/internal/extraction"
	"cartographer/internal/jobs"
	"cartographer/internal/progress"
	"cartographer/internal/services"
	"cartographer/internal/testsupport"
)

func TestRecorderLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.StartJob(t, store, "job-1", "general", "faq")

	running, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if running.State != jobs.StateRunning || running.Finished() {
		t.Fatalf("expected running job, got %s", running.State)
	}
	if len(running.Categories) != 2 || running.Categories[1] != "faq" {
		t.Fatalf("unexpected categories %v", running.Categories)
	}

	success := extraction.CategoryResult{
		Index:    0,
		Category: "general",
		Outcome: progress.Outcome{
			Category:          "general",
			PrimaryArtifact:   "module.exports = {};",
			SecondaryArtifact: "# Voice",
			InputTokens:       1200,
			OutputTokens:      300,
		},
		Elapsed: 1500 * time.Millisecond,
	}
	failure := extraction.CategoryResult{
		Index:    1,
		Category: "faq",
		Failed:   true,
		Reason:   "rate limited",
		Kind:     services.KindRateLimit,
	}
	for _, result := range []extraction.CategoryResult{success, failure} {
		if err := store.CategoryFinished(ctx, "job-1", result); err != nil {
			t.Fatalf("CategoryFinished: %v", err)
		}
	}
	summary := extraction.Summary{
		JobID:      "job-1",
		State:      extraction.StateCompleted,
		Totals:     progress.Totals{InputTokens: 1200, OutputTokens: 300, EstimatedCost: 0.0135, Model: "test-model"},
		FinishedAt: time.Now(),
	}
	if err := store.JobFinished(ctx, summary); err != nil {
		t.Fatalf("JobFinished: %v", err)
	}

	job, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.State != jobs.StateCompleted || job.FinishedAt == nil {
		t.Fatalf("unexpected final job %+v", job)
	}
	if job.InputTokens != 1200 || job.OutputTokens != 300 || job.EstimatedCost != 0.0135 {
		t.Fatalf("unexpected totals %+v", job)
	}
	if len(job.Results) != 2 {
		t.Fatalf("expected 2 category records, got %d", len(job.Results))
	}
	first, second := job.Results[0], job.Results[1]
	if first.Failed || first.PrimaryArtifact != "module.exports = {};" || first.Elapsed != 1500*time.Millisecond {
		t.Fatalf("unexpected success record %+v", first)
	}
	if !second.Failed || second.ErrorKind != string(services.KindRateLimit) || second.Reason != "rate limited" {
		t.Fatalf("unexpected failure record %+v", second)
	}
}

func TestGetUnknownJobIsNotFound(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestJobFinishedRequiresRecordedJob(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	err := store.JobFinished(context.Background(), extraction.Summary{JobID: "ghost", State: extraction.StateFailed})
	if err == nil {
		t.Fatal("expected error for unrecorded job")
	}
}

func TestListOrdersNewestFirstAndFilters(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		testsupport.StartJob(t, store, id, "general")
		time.Sleep(2 * time.Millisecond)
	}
	if err := store.JobFinished(ctx, extraction.Summary{JobID: "b", State: extraction.StateFailed, Reason: "all 1 categories failed"}); err != nil {
		t.Fatalf("JobFinished: %v", err)
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Fatalf("unexpected order %v", ids(all))
	}

	limited, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(limited))
	}

	failed, err := store.List(ctx, 0, jobs.StateFailed)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "b" || failed[0].Reason != "all 1 categories failed" {
		t.Fatalf("unexpected failed jobs %v", ids(failed))
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[jobs.StateRunning] != 2 || stats[jobs.StateFailed] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestMarkInterruptedAndPrune(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.StartJob(t, store, "old", "general")
	testsupport.StartJob(t, store, "done", "general")
	if err := store.JobFinished(ctx, extraction.Summary{JobID: "done", State: extraction.StateCompleted}); err != nil {
		t.Fatalf("JobFinished: %v", err)
	}

	n, err := store.MarkInterrupted(ctx)
	if err != nil {
		t.Fatalf("MarkInterrupted: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 interrupted job, got %d", n)
	}
	job, err := store.Get(ctx, "old")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.State != jobs.StateInterrupted || job.Reason != jobs.InterruptedReason {
		t.Fatalf("unexpected interrupted job %+v", job)
	}

	removed, err := store.PruneBefore(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("PruneBefore: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 pruned jobs, got %d", removed)
	}
}

func TestRemoveCascadesCategories(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.StartJob(t, store, "job", "general")
	if err := store.CategoryFinished(ctx, "job", extraction.CategoryResult{Category: "general", Failed: true, Reason: "x", Kind: services.KindTimeout}); err != nil {
		t.Fatalf("CategoryFinished: %v", err)
	}
	removed, err := store.Remove(ctx, "job")
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	removed, err = store.Remove(ctx, "job")
	if err != nil || removed {
		t.Fatalf("second Remove = %v, %v", removed, err)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := jobs.Open(cfg.JobsDBPath())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	testsupport.StartJob(t, store, "persisted", "general")
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	if _, err := reopened.Get(context.Background(), "persisted"); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
}

func ids(list []*jobs.Job) []string {
	out := make([]string, len(list))
	for i, job := range list {
		out[i] = job.ID
	}
	return out
}
