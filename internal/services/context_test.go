package services_test

import (
	"context"
	"testing"

	"cartographer/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "job-1")
	ctx = services.WithCategory(ctx, "legal")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-1" {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if category, ok := services.CategoryFromContext(ctx); !ok || category != "legal" {
		t.Fatalf("unexpected category: %v %v", category, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestCategoryBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithCategory(ctx, "")
	if _, ok := services.CategoryFromContext(ctx); ok {
		t.Fatal("expected no category value")
	}
}
