package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"cartographer/internal/artifactcache"
	"cartographer/internal/config"
	"cartographer/internal/extraction"
	"cartographer/internal/jobs"
	"cartographer/internal/logging"
)

// Daemon owns the artifact cache, the job history store and the HTTP API, and
// enforces single-instance execution.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	cache        *artifactcache.Cache
	store        *jobs.Store
	orchestrator *extraction.Orchestrator
	api          *apiServer

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc

	active atomic.Int64
	runs   sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Address      string
	LockFilePath string
	JobsDBPath   string
	ActiveJobs   int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, cache *artifactcache.Cache, store *jobs.Store, orchestrator *extraction.Orchestrator, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || cache == nil || store == nil || orchestrator == nil {
		return nil, errors.New("daemon requires config, cache, job store, and orchestrator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "daemon"),
		cache:        cache,
		store:        store,
		orchestrator: orchestrator,
		lockPath:     cfg.LockPath(),
		lock:         flock.New(cfg.LockPath()),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, marks jobs left running by a previous
// process as interrupted and starts serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another cartographer daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if n, err := d.store.MarkInterrupted(runCtx); err != nil {
		logging.WarnWithContext(d.logger, "failed to mark interrupted jobs", "jobs_interrupt_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the jobs database"),
			logging.String(logging.FieldImpact, "stale jobs keep reporting running"),
		)
	} else if n > 0 {
		d.logger.Info("marked jobs from previous run as interrupted", logging.Int64("count", n))
	}

	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api: %w", err)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("cartographer daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.address()),
	)
	return nil
}

// Stop cancels running jobs, stops the API and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.runs.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("cartographer daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and closes the job store.
func (d *Daemon) Close() error {
	d.Stop()
	d.runs.Wait()
	return d.store.Close()
}

// Address returns the address the API listens on, or "" before Start.
func (d *Daemon) Address() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Address:      d.api.address(),
		LockFilePath: d.lockPath,
		JobsDBPath:   d.store.Path(),
		ActiveJobs:   int(d.active.Load()),
	}
}
