package knowledge

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// RecordToolFailure bumps the structural failure aggregate for one tool
// and error pattern, creating it on first sight. These are counters, not
// memories: no embedding, no similarity search, just "this tool keeps
// failing this way" for prompt assembly and ops.
func (s *Store) RecordToolFailure(ctx context.Context, userID, toolName, pattern, lastError string) (*ToolFailure, error) {
	ctx, span := tracer.Start(ctx, "knowledge.RecordToolFailure")
	defer span.End()

	if userID == "" || toolName == "" || pattern == "" {
		return nil, fmt.Errorf("%w: user id, tool name, and pattern are required", ErrInvalidInput)
	}

	span.SetAttributes(
		attribute.String("tool_name", toolName),
		attribute.String("pattern", pattern),
	)

	const q = `
INSERT INTO tool_failures (user_id, tool_name, pattern, count, last_error, updated_at)
VALUES (?, ?, ?, 1, ?, ?)
ON CONFLICT (user_id, tool_name, pattern) DO UPDATE SET
    count = count + 1,
    last_error = excluded.last_error,
    updated_at = excluded.updated_at`

	if _, err := s.db.sql.ExecContext(ctx, q, userID, toolName, pattern, lastError, timeNow().UTC()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("recording tool failure: %w", err)
	}

	var f ToolFailure
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT user_id, tool_name, pattern, count, last_error, updated_at
		 FROM tool_failures WHERE user_id = ? AND tool_name = ? AND pattern = ?`,
		userID, toolName, pattern,
	).Scan(&f.UserID, &f.ToolName, &f.Pattern, &f.Count, &f.LastError, &f.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("loading tool failure: %w", err)
	}

	span.SetAttributes(attribute.Int("count", f.Count))
	span.SetStatus(codes.Ok, "success")
	return &f, nil
}

// ListToolFailures returns a user's failure aggregates, optionally for one
// tool (empty means all), highest count first.
func (s *Store) ListToolFailures(ctx context.Context, userID, toolName string) ([]*ToolFailure, error) {
	q := `SELECT user_id, tool_name, pattern, count, last_error, updated_at FROM tool_failures WHERE user_id = ?`
	args := []interface{}{userID}
	if toolName != "" {
		q += ` AND tool_name = ?`
		args = append(args, toolName)
	}
	q += ` ORDER BY count DESC`

	rows, err := s.db.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tool failures: %w", err)
	}
	defer rows.Close()

	var failures []*ToolFailure
	for rows.Next() {
		var f ToolFailure
		if err := rows.Scan(&f.UserID, &f.ToolName, &f.Pattern, &f.Count, &f.LastError, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning tool failure: %w", err)
		}
		failures = append(failures, &f)
	}
	return failures, rows.Err()
}
