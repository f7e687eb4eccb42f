package artifactcache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cartographer/internal/artifactcache"
)

func TestSweepRemovesExpiredAndMalformed(t *testing.T) {
	clock := newFakeClock()
	cache := newCache(t, clock)

	expired, err := cache.Store("old.txt", "old", 1)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	clock.Advance(30 * time.Minute)
	fresh, err := cache.Store("new.txt", "new", 1)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	clock.Advance(31 * time.Minute)

	garbage := filepath.Join(cache.Dir(), "6a1f2f5e-4b7c-4f3e-9d2a-1b2c3d4e5f60.json")
	if err := os.WriteFile(garbage, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	missingField := filepath.Join(cache.Dir(), "notes.json")
	if err := os.WriteFile(missingField, []byte(`{"id":"x","source_name":"n","content":"c"}`), 0o644); err != nil {
		t.Fatalf("write partial: %v", err)
	}

	report, err := cache.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if report.RemovedExpired != 1 {
		t.Fatalf("removed expired = %d, want 1", report.RemovedExpired)
	}
	if report.RemovedMalformed != 2 {
		t.Fatalf("removed malformed = %d, want 2", report.RemovedMalformed)
	}
	if report.Kept != 1 {
		t.Fatalf("kept = %d, want 1", report.Kept)
	}

	for _, path := range []string{garbage, missingField, filepath.Join(cache.Dir(), expired.ID+".json")} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed, stat err %v", path, err)
		}
	}
	if _, err := cache.Get(fresh.ID); err != nil {
		t.Fatalf("fresh record should survive sweep: %v", err)
	}
}

func TestSweepEmptyDirectory(t *testing.T) {
	cache := newCache(t, newFakeClock())
	report, err := cache.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if report != (artifactcache.SweepReport{Elapsed: report.Elapsed}) {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

func TestSweepRemovesStaleTempFiles(t *testing.T) {
	clock := newFakeClock()
	cache := newCache(t, clock)
	tmp := filepath.Join(cache.Dir(), "6a1f2f5e-4b7c-4f3e-9d2a-1b2c3d4e5f60.json.tmp")
	if err := os.WriteFile(tmp, []byte("partial"), 0o644); err != nil {
		t.Fatalf("write tmp: %v", err)
	}
	old := clock.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(tmp, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if _, err := cache.SweepExpired(context.Background()); err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Fatalf("expected stale temp file removed, stat err %v", err)
	}
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	cache := newCache(t, newFakeClock())
	if _, err := cache.Store("a.txt", "a", 1); err != nil {
		t.Fatalf("Store: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := cache.SweepExpired(ctx); err == nil {
		t.Fatal("expected context error")
	}
}

func TestSweeperRunsImmediatelyAndStops(t *testing.T) {
	clock := newFakeClock()
	cache := newCache(t, clock)
	if _, err := cache.Store("a.txt", "a", 1); err != nil {
		t.Fatalf("Store: %v", err)
	}
	clock.Advance(2 * time.Hour)

	sweeper := artifactcache.NewSweeper(cache, time.Hour, nil)
	reports := make(chan artifactcache.SweepReport, 1)
	sweeper.OnSweep(func(r artifactcache.SweepReport) {
		select {
		case reports <- r:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	select {
	case r := <-reports:
		if r.RemovedExpired != 1 {
			t.Fatalf("expected initial sweep to remove 1, got %+v", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not run initial pass")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeperRejectsBadInterval(t *testing.T) {
	cache := newCache(t, newFakeClock())
	if err := artifactcache.NewSweeper(cache, 0, nil).Run(context.Background()); err == nil {
		t.Fatal("expected interval error")
	}
}
