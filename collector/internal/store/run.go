package store

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertRun records the start of a collection run.
func (s *Store) InsertRun(ctx context.Context, r *RunRecord) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, since, status)
		VALUES (?, ?, ?, ?)`,
		r.ID, r.StartedAt, r.Since, RunStatusRunning)
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}
	return nil
}

// FinishRun closes out a run with its final status and counters.
func (s *Store) FinishRun(ctx context.Context, r *RunRecord) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, new_items = ?,
		scanned = ?, skipped = ?, error_message = ?
		WHERE id = ?`,
		r.FinishedAt, r.Status, r.NewItems, r.Scanned, r.Skipped,
		r.ErrorMessage, r.ID)
	if err != nil {
		return fmt.Errorf("store: finish run: %w", err)
	}
	return nil
}

// RunHistory returns recent runs, newest first.
func (s *Store) RunHistory(ctx context.Context, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, started_at, finished_at, since, status,
		new_items, scanned, skipped, error_message
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: run history: %w", err)
	}
	defer rows.Close()

	var result []*RunRecord
	for rows.Next() {
		var r RunRecord
		var finished sql.NullInt64
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.Since, &r.Status,
			&r.NewItems, &r.Scanned, &r.Skipped, &r.ErrorMessage); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		r.FinishedAt = finished.Int64
		result = append(result, &r)
	}
	return result, rows.Err()
}

// LastRun returns the most recent run, or nil when none exist.
func (s *Store) LastRun(ctx context.Context) (*RunRecord, error) {
	runs, err := s.RunHistory(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}
