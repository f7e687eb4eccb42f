package progress

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Emit once the consumer side has gone away.
var ErrClosed = errors.New("progress channel closed")

// Channel is a bounded FIFO queue between exactly one producer (the
// orchestrator) and one transport task. The producer calls Emit then Close;
// the transport drains Events and calls Cancel if the consumer disappears.
type Channel struct {
	events     chan Event
	done       chan struct{}
	closeOnce  sync.Once
	cancelOnce sync.Once
}

// NewChannel returns a channel holding up to capacity undelivered events.
func NewChannel(capacity int) *Channel {
	if capacity <= 0 {
		capacity = 1
	}
	return &Channel{
		events: make(chan Event, capacity),
		done:   make(chan struct{}),
	}
}

// Emit enqueues evt, blocking while the queue is full. It fails with
// ErrClosed after Cancel and with the context error if ctx ends first.
func (c *Channel) Emit(ctx context.Context, evt Event) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.events <- evt:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the end of the event stream. Only the producer may call it.
func (c *Channel) Close() {
	c.closeOnce.Do(func() { close(c.events) })
}

// Cancel signals that the consumer is gone. Safe to call repeatedly and
// from any goroutine.
func (c *Channel) Cancel() {
	c.cancelOnce.Do(func() { close(c.done) })
}

// Events returns the receive side of the queue. It is closed by Close.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Done is closed once Cancel has been called.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}
