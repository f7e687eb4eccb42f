package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cartographer/internal/extraction"
)

var _ extraction.Recorder = (*Store)(nil)

// JobStarted records a new running job.
func (s *Store) JobStarted(ctx context.Context, job extraction.Job, model string) error {
	if job.ID == "" {
		return errors.New("jobs: job id required")
	}
	categories, err := json.Marshal(job.CategoryNames())
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO jobs (id, client_name, mode, model, state, categories, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.ClientName, string(job.Mode), nullableString(model), string(StateRunning),
		string(categories), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

// CategoryFinished records one category outcome.
func (s *Store) CategoryFinished(ctx context.Context, jobID string, result extraction.CategoryResult) error {
	var (
		failed                    int
		primary, secondary        string
		inputTokens, outputTokens int
		reason                    = result.Reason
		kind                      = string(result.Kind)
	)
	if result.Failed {
		failed = 1
	} else {
		primary = result.Outcome.PrimaryArtifact
		secondary = result.Outcome.SecondaryArtifact
		inputTokens = result.Outcome.InputTokens
		outputTokens = result.Outcome.OutputTokens
		kind = ""
	}
	_, err := s.execWithRetry(ctx,
		`INSERT OR REPLACE INTO job_categories (
            job_id, idx, category, failed, reason, error_kind, primary_artifact,
            secondary_artifact, input_tokens, output_tokens, elapsed_ms, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		jobID, result.Index, result.Category, failed, nullableString(reason), nullableString(kind),
		nullableString(primary), nullableString(secondary), inputTokens, outputTokens,
		result.Elapsed.Milliseconds(), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert category %q for job %s: %w", result.Category, jobID, err)
	}
	return nil
}

// JobFinished stores the final state and totals of a run.
func (s *Store) JobFinished(ctx context.Context, summary extraction.Summary) error {
	finished := summary.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET state = ?, reason = ?, error_kind = ?, input_tokens = ?, output_tokens = ?,
            estimated_cost = ?, model = COALESCE(?, model), finished_at = ?
         WHERE id = ?`,
		string(summary.State), nullableString(summary.Reason), nullableString(string(summary.Kind)),
		summary.Totals.InputTokens, summary.Totals.OutputTokens, summary.Totals.EstimatedCost,
		nullableString(summary.Totals.Model), formatTime(finished), summary.JobID,
	)
	if err != nil {
		return fmt.Errorf("finish job %s: %w", summary.JobID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish job %s: job was never recorded", summary.JobID)
	}
	return nil
}
