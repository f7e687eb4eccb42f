package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cartographer/internal/services"
)

const jobColumns = `id, client_name, mode, model, state, categories, reason, error_kind,
    input_tokens, output_tokens, estimated_cost, created_at, finished_at`

// Get returns a job with its category results. Unknown ids yield an error
// marked services.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "jobs", "get", fmt.Sprintf("job %q", id), nil)
	}
	if err != nil {
		return nil, err
	}
	results, err := s.categoryRecords(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Results = results
	return job, nil
}

// List returns jobs newest first, optionally filtered by state. A limit of
// zero or less returns every match.
func (s *Store) List(ctx context.Context, limit int, states ...State) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(states)+1)
	if len(states) > 0 {
		query += ` WHERE state IN (` + makePlaceholders(len(states)) + `)`
		for _, state := range states {
			args = append(args, string(state))
		}
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats returns job counts grouped by state.
func (s *Store) Stats(ctx context.Context) (map[State]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[State]int)
	for rows.Next() {
		var state State
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[state] = count
	}
	return stats, rows.Err()
}

// Remove deletes a job and its category results.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PruneBefore deletes finished jobs created before cutoff.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM jobs WHERE state != ? AND created_at < ?`,
		string(StateRunning), formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return res.RowsAffected()
}

// MarkInterrupted moves jobs left running by a previous daemon to
// StateInterrupted. It runs once at startup, before any new job starts.
func (s *Store) MarkInterrupted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET state = ?, reason = ?, finished_at = ? WHERE state = ?`,
		string(StateInterrupted), InterruptedReason, formatTime(time.Now()), string(StateRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) categoryRecords(ctx context.Context, jobID string) ([]CategoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, category, failed, reason, error_kind, primary_artifact, secondary_artifact,
            input_tokens, output_tokens, elapsed_ms, finished_at
         FROM job_categories WHERE job_id = ? ORDER BY idx`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list categories for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var records []CategoryRecord
	for rows.Next() {
		var (
			record                           CategoryRecord
			failed                           int
			reason, kind, primary, secondary sql.NullString
			elapsedMS                        int64
			finishedAt                       string
		)
		if err := rows.Scan(&record.Index, &record.Category, &failed, &reason, &kind, &primary, &secondary,
			&record.InputTokens, &record.OutputTokens, &elapsedMS, &finishedAt); err != nil {
			return nil, err
		}
		record.Failed = failed != 0
		record.Reason = reason.String
		record.ErrorKind = kind.String
		record.PrimaryArtifact = primary.String
		record.SecondaryArtifact = secondary.String
		record.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		if ts, err := parseTimeString(finishedAt); err == nil {
			record.FinishedAt = ts
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job                        Job
		state                      string
		model, reason, kind        sql.NullString
		categoriesJSON, createdRaw string
		finishedRaw                sql.NullString
	)
	if err := scanner.Scan(&job.ID, &job.ClientName, &job.Mode, &model, &state, &categoriesJSON,
		&reason, &kind, &job.InputTokens, &job.OutputTokens, &job.EstimatedCost, &createdRaw, &finishedRaw); err != nil {
		return nil, err
	}
	job.State = State(state)
	job.Model = model.String
	job.Reason = reason.String
	job.ErrorKind = kind.String
	if err := json.Unmarshal([]byte(categoriesJSON), &job.Categories); err != nil {
		return nil, fmt.Errorf("decode categories for job %s: %w", job.ID, err)
	}
	created, err := parseTimeString(createdRaw)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for job %s: %w", job.ID, err)
	}
	job.CreatedAt = created
	if finishedRaw.Valid {
		if ts, err := parseTimeString(finishedRaw.String); err == nil {
			job.FinishedAt = &ts
		}
	}
	return &job, nil
}
