package progress_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cartographer/internal/progress"
)

func TestChannelPreservesOrder(t *testing.T) {
	ch := progress.NewChannel(2)
	ctx := context.Background()
	go func() {
		defer ch.Close()
		for i := 0; i < 50; i++ {
			if err := ch.Emit(ctx, progress.CategoryProgress{Index: i, Total: 50}); err != nil {
				t.Errorf("Emit %d: %v", i, err)
				return
			}
		}
	}()

	next := 0
	for evt := range ch.Events() {
		got := evt.(progress.CategoryProgress).Index
		if got != next {
			t.Fatalf("received index %d, want %d", got, next)
		}
		next++
	}
	if next != 50 {
		t.Fatalf("received %d events, want 50", next)
	}
}

func TestEmitAfterCancelFails(t *testing.T) {
	ch := progress.NewChannel(1)
	ch.Cancel()
	ch.Cancel()
	if err := ch.Emit(context.Background(), progress.Started{}); !errors.Is(err, progress.ErrClosed) {
		t.Fatalf("Emit = %v, want ErrClosed", err)
	}
}

func TestEmitUnblocksOnCancelWhenFull(t *testing.T) {
	ch := progress.NewChannel(1)
	if err := ch.Emit(context.Background(), progress.Started{}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- ch.Emit(context.Background(), progress.Started{}) }()
	ch.Cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, progress.ErrClosed) {
			t.Fatalf("Emit = %v, want ErrClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Emit stayed blocked after Cancel")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestDrainWriteFailureCancelsChannel(t *testing.T) {
	ch := progress.NewChannel(4)
	if err := ch.Emit(context.Background(), progress.Started{Categories: []string{"a"}}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	err := progress.Drain(context.Background(), ch, failingWriter{}, 0)
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("Drain = %v, want ErrClosedPipe", err)
	}
	select {
	case <-ch.Done():
	default:
		t.Fatal("expected channel cancelled after write failure")
	}
	if err := ch.Emit(context.Background(), progress.CategoryProgress{}); !errors.Is(err, progress.ErrClosed) {
		t.Fatalf("producer should see ErrClosed, got %v", err)
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDrainWritesKeepAlive(t *testing.T) {
	ch := progress.NewChannel(1)
	var out lockedBuffer
	done := make(chan error, 1)
	go func() { done <- progress.Drain(context.Background(), ch, &out, 10*time.Millisecond) }()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), ": keepalive") {
		if time.Now().After(deadline) {
			t.Fatal("no keepalive written")
		}
		time.Sleep(5 * time.Millisecond)
	}
	ch.Close()
	if err := <-done; err != nil {
		t.Fatalf("Drain: %v", err)
	}
}

func TestServeStreamsFramesOverHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ch := progress.NewChannel(8)
		go func() {
			defer ch.Close()
			for _, evt := range sampleEvents() {
				if err := ch.Emit(r.Context(), evt); err != nil {
					return
				}
			}
		}()
		if err := progress.Serve(w, r, ch); err != nil {
			t.Errorf("Serve: %v", err)
		}
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	dec := progress.NewDecoder(resp.Body)
	want := sampleEvents()
	for i := range want {
		evt, err := dec.Next()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if evt.Type() != want[i].Type() {
			t.Fatalf("frame %d type = %s, want %s", i, evt.Type(), want[i].Type())
		}
	}
	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}
