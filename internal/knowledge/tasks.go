package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
)

const taskColumns = `id, user_id, category, title, description, recommendation, priority, timeline,
	status, idempotency_key, tool_name, tool_args, decision_id, created_at, updated_at`

// CreateTask inserts a task unless its idempotency key has already been
// seen for the user, in which case it reports created=false so heartbeat
// re-runs over the same finding stay no-ops.
func (s *Store) CreateTask(ctx context.Context, t *Task) (created bool, err error) {
	ctx, span := tracer.Start(ctx, "knowledge.CreateTask")
	defer span.End()

	if t == nil || t.UserID == "" || t.Title == "" || t.Recommendation == "" {
		return false, fmt.Errorf("%w: user id, title, and recommendation are required", ErrInvalidInput)
	}
	if t.IdempotencyKey == "" {
		return false, fmt.Errorf("%w: idempotency key is required", ErrInvalidInput)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Category == "" {
		t.Category = autonomy.CategoryGeneral
	}
	if t.Status == "" {
		t.Status = TaskStatusSuggested
	}
	if !t.Status.Valid() {
		return false, fmt.Errorf("%w: unknown task status %q", ErrInvalidInput, t.Status)
	}
	if t.Priority == "" {
		t.Priority = PriorityNormal
	}
	now := timeNow().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	span.SetAttributes(
		attribute.String("category", string(t.Category)),
		attribute.String("status", string(t.Status)),
	)

	var toolArgs sql.NullString
	if len(t.ToolArgs) > 0 {
		raw, err := json.Marshal(t.ToolArgs)
		if err != nil {
			return false, fmt.Errorf("encoding tool args: %w", err)
		}
		toolArgs = sql.NullString{String: string(raw), Valid: true}
	}
	var toolName sql.NullString
	if t.ToolName != "" {
		toolName = sql.NullString{String: t.ToolName, Valid: true}
	}
	var decisionID sql.NullString
	if t.DecisionID != "" {
		decisionID = sql.NullString{String: t.DecisionID, Valid: true}
	}

	const q = `
INSERT INTO tasks (` + taskColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, idempotency_key) DO NOTHING`

	res, err := s.db.sql.ExecContext(ctx, q,
		t.ID, t.UserID, string(t.Category), t.Title, t.Description,
		t.Recommendation, string(t.Priority), t.Timeline, string(t.Status),
		t.IdempotencyKey, toolName, toolArgs, decisionID,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("creating task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}

	span.SetAttributes(attribute.Bool("created", n == 1))
	span.SetStatus(codes.Ok, "success")
	return n == 1, nil
}

// GetTask loads one task scoped to its owner.
func (s *Store) GetTask(ctx context.Context, userID, id string) (*Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM tasks WHERE id = ? AND user_id = ?`

	t, err := scanTask(s.db.sql.QueryRowContext(ctx, q, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading task: %w", err)
	}
	return t, nil
}

// GetTaskByDecisionID loads the task a decision produced, if any. The
// outcome tracker uses it to recover the acted-on entity for its probes.
func (s *Store) GetTaskByDecisionID(ctx context.Context, userID, decisionID string) (*Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM tasks WHERE decision_id = ? AND user_id = ?`

	t, err := scanTask(s.db.sql.QueryRowContext(ctx, q, decisionID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading task by decision: %w", err)
	}
	return t, nil
}

// ListTasks returns a user's tasks filtered by status and category (empty
// means any), newest first.
func (s *Store) ListTasks(ctx context.Context, userID string, status TaskStatus, category autonomy.Category, limit int) ([]*Task, error) {
	if limit <= 0 {
		limit = 100
	}

	q := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`
	args := []interface{}{userID}
	if status != "" {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown task status %q", ErrInvalidInput, status)
		}
		q += ` AND status = ?`
		args = append(args, string(status))
	}
	if category != "" {
		q += ` AND category = ?`
		args = append(args, string(category))
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// TransitionTask moves a task from one status to another exactly once.
// The conditional UPDATE is the claim: of any concurrent callers, exactly
// one succeeds and the rest get ErrTaskStatusConflict. Approve/reject
// flows rely on this to resolve a pending task a single time.
func (s *Store) TransitionTask(ctx context.Context, userID, taskID string, from, to TaskStatus) (*Task, error) {
	ctx, span := tracer.Start(ctx, "knowledge.TransitionTask")
	defer span.End()

	span.SetAttributes(
		attribute.String("task_id", taskID),
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	)

	if !from.Valid() || !to.Valid() {
		return nil, fmt.Errorf("%w: unknown task status", ErrInvalidInput)
	}

	res, err := s.db.sql.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND user_id = ? AND status = ?`,
		string(to), timeNow().UTC(), taskID, userID, string(from),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("transitioning task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		err = s.db.sql.QueryRowContext(ctx,
			`SELECT 1 FROM tasks WHERE id = ? AND user_id = ?`, taskID, userID,
		).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("checking task: %w", err)
		}
		return nil, ErrTaskStatusConflict
	}

	span.SetStatus(codes.Ok, "success")
	return s.GetTask(ctx, userID, taskID)
}

func scanTask(r rowScanner) (*Task, error) {
	var (
		t          Task
		category   string
		priority   string
		status     string
		toolName   sql.NullString
		toolArgs   sql.NullString
		decisionID sql.NullString
	)
	err := r.Scan(&t.ID, &t.UserID, &category, &t.Title, &t.Description,
		&t.Recommendation, &priority, &t.Timeline, &status, &t.IdempotencyKey,
		&toolName, &toolArgs, &decisionID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Category = autonomy.Category(category)
	t.Priority = TaskPriority(priority)
	t.Status = TaskStatus(status)
	if toolName.Valid {
		t.ToolName = toolName.String
	}
	if toolArgs.Valid {
		if err := json.Unmarshal([]byte(toolArgs.String), &t.ToolArgs); err != nil {
			return nil, fmt.Errorf("decoding tool args: %w", err)
		}
	}
	if decisionID.Valid {
		t.DecisionID = decisionID.String
	}
	return &t, nil
}
