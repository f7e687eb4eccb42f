package testsupport

import (
	"context"
	"testing"

	"cartographer/internal/config"
	"cartographer/internal/estimate"
	"cartographer/internal/extraction"
	"cartographer/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg.JobsDBPath())
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// StartJob records a running job with the given categories.
func StartJob(t testing.TB, store *jobs.Store, id string, categories ...string) extraction.Job {
	t.Helper()

	job := extraction.Job{ID: id, ClientName: "Acme", Mode: estimate.ModeBatch}
	for _, category := range categories {
		job.Categories = append(job.Categories, extraction.DocumentSet{Category: category})
	}
	if err := store.JobStarted(context.Background(), job, "test-model"); err != nil {
		t.Fatalf("store.JobStarted: %v", err)
	}
	return job
}
