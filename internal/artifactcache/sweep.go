package artifactcache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cartographer/internal/logging"
)

// SweepOutcome classifies what the sweep did with one record file.
type SweepOutcome string

const (
	OutcomeKept      SweepOutcome = "kept"
	OutcomeExpired   SweepOutcome = "expired"
	OutcomeMalformed SweepOutcome = "malformed"
	OutcomeSkipped   SweepOutcome = "skipped"
	OutcomeError     SweepOutcome = "error"
)

// SweepReport summarizes one pass over the cache directory.
type SweepReport struct {
	RemovedExpired   int           `json:"removed_expired"`
	RemovedMalformed int           `json:"removed_malformed"`
	Kept             int           `json:"kept"`
	Skipped          int           `json:"skipped"`
	Errors           int           `json:"errors"`
	Elapsed          time.Duration `json:"elapsed"`
}

func (r *SweepReport) add(outcome SweepOutcome) {
	switch outcome {
	case OutcomeKept:
		r.Kept++
	case OutcomeExpired:
		r.RemovedExpired++
	case OutcomeMalformed:
		r.RemovedMalformed++
	case OutcomeSkipped:
		r.Skipped++
	default:
		r.Errors++
	}
}

// SweepExpired removes records at or past their TTL and records that cannot
// be decoded. Records whose lock is currently held are skipped and picked up
// by a later pass. At most one record lock is held at any time.
func (c *Cache) SweepExpired(ctx context.Context) (SweepReport, error) {
	start := c.now()
	var report SweepReport

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return report, err
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		switch {
		case strings.HasSuffix(name, recordExt):
			id := strings.TrimSuffix(name, recordExt)
			report.add(c.sweepOne(id))
		case strings.HasSuffix(name, tmpExt):
			c.sweepOrphanTemp(name)
		}
	}
	report.Elapsed = c.now().Sub(start)
	return report, nil
}

func (c *Cache) sweepOne(id string) SweepOutcome {
	unlock, ok := c.locks.tryLock(id)
	if !ok {
		return OutcomeSkipped
	}
	defer unlock()

	path := c.path(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Deleted between listing and locking.
			return OutcomeSkipped
		}
		c.logger.Warn("artifact unreadable during sweep",
			logging.String(logging.FieldEventType, "artifact_sweep_read_failed"),
			logging.String(logging.FieldArtifactID, id),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cache directory permissions"))
		return OutcomeError
	}

	outcome := OutcomeKept
	record, err := decodeRecord(data)
	switch {
	case err != nil:
		outcome = OutcomeMalformed
		c.logger.Warn("removing malformed artifact",
			logging.String(logging.FieldEventType, "artifact_malformed"),
			logging.String(logging.FieldArtifactID, id),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the file was truncated or written by another tool"),
			logging.String(logging.FieldImpact, "the document must be uploaded again"))
	case record.Expired(c.now(), c.ttl):
		outcome = OutcomeExpired
	default:
		return OutcomeKept
	}

	c.memory.Delete(id)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("failed to remove artifact during sweep",
			logging.String(logging.FieldEventType, "artifact_sweep_remove_failed"),
			logging.String(logging.FieldArtifactID, id),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cache directory permissions"))
		return OutcomeError
	}
	return outcome
}

// sweepOrphanTemp removes temp files left behind by a crash mid-write.
func (c *Cache) sweepOrphanTemp(name string) {
	path := filepath.Join(c.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if c.now().Sub(info.ModTime()) < c.ttl {
		return
	}
	if err := os.Remove(path); err == nil {
		c.logger.Debug("removed orphaned temp file", logging.String("path", path))
	}
}
