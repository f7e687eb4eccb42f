package progress

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultKeepAlive is how often Serve writes a comment line while idle, so
// a vanished client is noticed during long extraction calls.
const DefaultKeepAlive = 15 * time.Second

// Flusher is satisfied by http.ResponseWriter implementations that support
// streaming.
type Flusher interface {
	Flush()
}

// Drain writes every event from ch to w as frames until the producer closes
// the channel. If a write fails or ctx ends, it cancels ch and returns the
// error; the producer observes that as ErrClosed.
func Drain(ctx context.Context, ch *Channel, w io.Writer, keepAlive time.Duration) error {
	flusher, _ := w.(Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	var tick <-chan time.Time
	if keepAlive > 0 {
		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case evt, ok := <-ch.Events():
			if !ok {
				return nil
			}
			if err := WriteFrame(w, evt); err != nil {
				ch.Cancel()
				return fmt.Errorf("write progress frame: %w", err)
			}
			flush()
		case <-tick:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				ch.Cancel()
				return fmt.Errorf("write keepalive: %w", err)
			}
			flush()
		case <-ctx.Done():
			ch.Cancel()
			return ctx.Err()
		}
	}
}

// Serve prepares w for an event stream and drains ch into it. The request
// context ending (client disconnect) cancels ch.
func Serve(w http.ResponseWriter, r *http.Request, ch *Channel) error {
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return Drain(r.Context(), ch, w, DefaultKeepAlive)
}
