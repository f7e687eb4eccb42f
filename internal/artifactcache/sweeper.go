package artifactcache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cartographer/internal/logging"
)

// Sweeper runs SweepExpired on a fixed interval until its context ends.
type Sweeper struct {
	cache    *Cache
	interval time.Duration
	logger   *slog.Logger
	onSweep  func(SweepReport)
}

// NewSweeper builds a sweeper for cache.
func NewSweeper(cache *Cache, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		cache:    cache,
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "artifact-sweeper"),
	}
}

// OnSweep registers a callback invoked after each completed pass.
func (s *Sweeper) OnSweep(fn func(SweepReport)) {
	s.onSweep = fn
}

// Run sweeps once immediately and then every interval. It returns nil when
// ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.cache == nil {
		return errors.New("sweeper: cache required")
	}
	if s.interval <= 0 {
		return errors.New("sweeper: interval must be positive")
	}

	s.logger.Info("artifact sweeper started",
		logging.Duration("interval", s.interval),
		logging.Duration("ttl", s.cache.TTL()))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("artifact sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	report, err := s.cache.SweepExpired(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.WarnWithContext(s.logger, "artifact sweep failed", "artifact_sweep_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cache directory permissions"),
			logging.String(logging.FieldImpact, "expired documents stay on disk until the next pass"))
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "artifact_sweep_complete"),
		logging.Int("removed_expired", report.RemovedExpired),
		logging.Int("removed_malformed", report.RemovedMalformed),
		logging.Int("kept", report.Kept),
		logging.Int("skipped", report.Skipped),
		logging.Duration("elapsed", report.Elapsed),
	}
	if report.Errors > 0 {
		attrs = append(attrs, logging.Int("errors", report.Errors))
		logging.WarnWithContext(s.logger, "artifact sweep completed with errors", "artifact_sweep_errors", attrs...)
	} else if report.RemovedExpired+report.RemovedMalformed > 0 {
		s.logger.Info("artifact sweep complete", logging.Args(attrs...)...)
	} else {
		s.logger.Debug("artifact sweep complete", logging.Args(attrs...)...)
	}
	if s.onSweep != nil {
		s.onSweep(report)
	}
}
