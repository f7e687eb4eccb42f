package jobaccess

import (
	"context"
	"fmt"

	"cartographer/internal/daemonctl"
	"cartographer/internal/jobs"
)

// Session represents a job history handle and its cleanup function.
type Session struct {
	Access Access
	// Live is true when the daemon answered.
	Live  bool
	close func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback uses the daemon when it answers a health probe, then
// falls back to opening the job store directly.
func OpenWithFallback(
	ctx context.Context,
	client *daemonctl.Client,
	openStore func() (*jobs.Store, error),
) (Session, error) {
	if client != nil {
		if _, err := client.Health(ctx); err == nil {
			return Session{Access: NewDaemonAccess(client), Live: true}, nil
		}
	}

	if openStore == nil {
		return Session{}, fmt.Errorf("open job store: no store opener configured")
	}
	store, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open job store: %w", err)
	}
	return Session{
		Access: NewStoreAccess(store),
		close:  store.Close,
	}, nil
}
