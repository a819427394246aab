package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BeginRun inserts a new run row in the running state and returns its id.
func (s *Store) BeginRun(ctx context.Context) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Status:    RunRunning,
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO ingest_runs (id, started_at, status) VALUES (?, ?, ?)`,
		run.ID,
		run.StartedAt.Format(time.RFC3339Nano),
		string(run.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	return run, nil
}

// FinishRun finalizes a run with its counts and terminal status. Called even
// on partial failure; a run row is never left unfinished by a draining
// orchestrator.
func (s *Store) FinishRun(ctx context.Context, runID string, counts Counts, status RunStatus) error {
	if status != RunCompleted && status != RunAborted {
		return fmt.Errorf("invalid terminal run status %q", status)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE ingest_runs
         SET finished_at = ?, attempted = ?, succeeded = ?, failed = ?, status = ?
         WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		counts.Attempted,
		counts.Succeeded,
		counts.Failed,
		string(status),
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no run with id %s", runID)
	}
	return nil
}

// RecordError appends one item failure to the error ledger. Safe for
// concurrent use by pipeline workers; rows are never updated or deleted.
func (s *Store) RecordError(ctx context.Context, runID, stableID, stage, message string) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("run id is required")
	}
	if strings.TrimSpace(stage) == "" {
		return errors.New("stage is required")
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO ingest_errors (run_id, stable_id, stage, message, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		runID,
		nullableString(stableID),
		stage,
		message,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record error: %w", err)
	}
	return nil
}

// RunByID fetches one run row, or nil when unknown.
func (s *Store) RunByID(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT id, started_at, finished_at, attempted, succeeded, failed, status
         FROM ingest_runs WHERE id = ?`,
		runID,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first, up to limit (unlimited when <= 0).
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT id, started_at, finished_at, attempted, succeeded, failed, status
         FROM ingest_runs ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ErrorsForRun returns the error ledger rows for one run in insertion order.
func (s *Store) ErrorsForRun(ctx context.Context, runID string) ([]*ItemError, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, run_id, stable_id, stage, message, created_at
         FROM ingest_errors WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list errors: %w", err)
	}
	defer rows.Close()

	var items []*ItemError
	for rows.Next() {
		var (
			item       ItemError
			stableID   sql.NullString
			createdRaw sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.RunID, &stableID, &item.Stage, &item.Message, &createdRaw); err != nil {
			return nil, err
		}
		item.StableID = stableID.String
		if created, err := parseTimeString(createdRaw.String); err == nil {
			item.CreatedAt = created
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		startedRaw  string
		finishedRaw sql.NullString
		status      string
	)
	if err := scanner.Scan(&run.ID, &startedRaw, &finishedRaw, &run.Attempted, &run.Succeeded, &run.Failed, &status); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return &run, nil
}
