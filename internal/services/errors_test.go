package services_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"cartographer/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrProcessing, "extraction", "call", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrProcessing) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"extraction", "call", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerIsInternal(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if services.Classify(err) != services.KindInternal {
		t.Fatalf("expected internal kind, got %s", services.Classify(err))
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected default detail, got %q", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want services.Kind
	}{
		{services.Wrap(services.ErrValidation, "api", "", "bad", nil), services.KindValidation},
		{services.Wrap(services.ErrNotFound, "cache", "get", "", nil), services.KindNotFound},
		{services.Wrap(services.ErrRateLimit, "llm", "", "", nil), services.KindRateLimit},
		{services.Wrap(services.ErrProcessing, "llm", "", "", nil), services.KindProcessing},
		{services.Wrap(services.ErrTimeout, "llm", "", "", nil), services.KindTimeout},
		{fmt.Errorf("call: %w", context.DeadlineExceeded), services.KindTimeout},
		{errors.New("mystery"), services.KindUnclassified},
		{nil, services.KindUnclassified},
	}
	for _, tc := range cases {
		if got := services.Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestRecoverable(t *testing.T) {
	if !services.Recoverable(services.Wrap(services.ErrRateLimit, "", "", "", nil)) {
		t.Fatal("rate limit should be recoverable")
	}
	if services.Recoverable(errors.New("unknown")) {
		t.Fatal("unclassified errors must not be recoverable")
	}
	if services.Recoverable(services.Wrap(services.ErrInternal, "", "", "", nil)) {
		t.Fatal("internal errors must not be recoverable")
	}
}

func TestHTTPStatus(t *testing.T) {
	if got := services.HTTPStatus(services.Wrap(services.ErrValidation, "", "", "", nil)); got != http.StatusBadRequest {
		t.Fatalf("got %d want %d", got, http.StatusBadRequest)
	}
	if got := services.HTTPStatus(services.Wrap(services.ErrNotFound, "", "", "", nil)); got != http.StatusNotFound {
		t.Fatalf("got %d want %d", got, http.StatusNotFound)
	}
	if got := services.HTTPStatus(errors.New("x")); got != http.StatusInternalServerError {
		t.Fatalf("got %d want %d", got, http.StatusInternalServerError)
	}
}

func TestMarkerRoundTripsKinds(t *testing.T) {
	for _, kind := range []services.Kind{
		services.KindValidation, services.KindNotFound, services.KindRateLimit,
		services.KindProcessing, services.KindTimeout, services.KindInternal,
	} {
		err := services.Wrap(services.Marker(kind), "remote", "call", "failed", nil)
		if got := services.Classify(err); got != kind {
			t.Fatalf("Classify(Marker(%s)) = %s", kind, got)
		}
	}
	if services.Marker(services.KindUnclassified) != nil {
		t.Fatal("unclassified has no marker")
	}
}
