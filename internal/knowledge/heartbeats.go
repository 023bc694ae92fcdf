package knowledge

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// RecordHeartbeatRun stores one sweep summary for the ops surface. An
// empty user id marks an all-users sweep.
func (s *Store) RecordHeartbeatRun(ctx context.Context, run *HeartbeatRun) error {
	if run == nil {
		return fmt.Errorf("%w: run is required", ErrInvalidInput)
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	now := timeNow().UTC()
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = now
	}

	const q = `
INSERT INTO heartbeat_runs (id, user_id, started_at, finished_at, findings, tasks_created)
VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.sql.ExecContext(ctx, q,
		run.ID, run.UserID, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.Findings, run.TasksCreated,
	)
	if err != nil {
		return fmt.Errorf("recording heartbeat run: %w", err)
	}
	return nil
}

// ListHeartbeatRuns returns the most recent sweep summaries, newest first.
func (s *Store) ListHeartbeatRuns(ctx context.Context, limit int) ([]*HeartbeatRun, error) {
	if limit <= 0 {
		limit = 20
	}

	const q = `
SELECT id, user_id, started_at, finished_at, findings, tasks_created
FROM heartbeat_runs
ORDER BY started_at DESC
LIMIT ?`

	rows, err := s.db.sql.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("listing heartbeat runs: %w", err)
	}
	defer rows.Close()

	var runs []*HeartbeatRun
	for rows.Next() {
		var r HeartbeatRun
		if err := rows.Scan(&r.ID, &r.UserID, &r.StartedAt, &r.FinishedAt, &r.Findings, &r.TasksCreated); err != nil {
			return nil, fmt.Errorf("scanning heartbeat run: %w", err)
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}
