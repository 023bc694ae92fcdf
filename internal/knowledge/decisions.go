package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
	"github.com/fyrsmithlabs/steward/internal/vectorstore"
)

const decisionColumns = `id, user_id, tool_name, category, input_summary, factors, confidence,
	embedding, owner_feedback, feedback_at, was_auto_executed, disposition, conversation_id, created_at`

// InsertDecision stores a decision row and mirrors its embedding into the
// decisions collection. Idempotent on id: the recorder delivers
// at-least-once, so replays of an already-stored decision are no-ops.
func (s *Store) InsertDecision(ctx context.Context, d *Decision) error {
	ctx, span := tracer.Start(ctx, "knowledge.InsertDecision")
	defer span.End()

	if d == nil || d.ID == "" || d.UserID == "" || d.ToolName == "" {
		return fmt.Errorf("%w: decision id, user id, and tool name are required", ErrInvalidInput)
	}
	if err := s.checkEmbedding(d.Embedding, false); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = timeNow().UTC()
	}

	span.SetAttributes(
		attribute.String("decision_id", d.ID),
		attribute.String("tool_name", d.ToolName),
		attribute.String("disposition", string(d.Disposition)),
	)

	var factorsJSON sql.NullString
	if d.Factors != nil {
		raw, err := json.Marshal(d.Factors)
		if err != nil {
			return fmt.Errorf("encoding factors: %w", err)
		}
		factorsJSON = sql.NullString{String: string(raw), Valid: true}
	}
	var confidence sql.NullFloat64
	if d.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *d.Confidence, Valid: true}
	}
	var feedback sql.NullString
	var feedbackAt sql.NullTime
	if d.OwnerFeedback != nil {
		feedback = sql.NullString{String: string(*d.OwnerFeedback), Valid: true}
	}
	if d.FeedbackAt != nil {
		feedbackAt = sql.NullTime{Time: d.FeedbackAt.UTC(), Valid: true}
	}
	var conversationID sql.NullString
	if d.ConversationID != "" {
		conversationID = sql.NullString{String: d.ConversationID, Valid: true}
	}

	const q = `
INSERT INTO decisions (` + decisionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING`

	_, err := s.db.sql.ExecContext(ctx, q,
		d.ID, d.UserID, d.ToolName, string(d.Category), d.InputSummary,
		factorsJSON, confidence, encodeVector(d.Embedding),
		feedback, feedbackAt, d.WasAutoExecuted, string(d.Disposition),
		conversationID, d.CreatedAt.UTC(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("inserting decision: %w", err)
	}

	// An empty input summary yields no vector; the row is stored but never
	// surfaces via similarity.
	if len(d.Embedding) > 0 && d.InputSummary != "" {
		meta := map[string]interface{}{
			"tool_name": d.ToolName,
			"category":  string(d.Category),
		}
		if err := s.indexDocument(ctx, d.UserID, vectorstore.CollectionDecisions, d.ID, d.InputSummary, d.Embedding, meta); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("indexing decision: %w", err)
		}
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// GetDecision loads one decision scoped to its owner.
func (s *Store) GetDecision(ctx context.Context, userID, id string) (*Decision, error) {
	const q = `SELECT ` + decisionColumns + ` FROM decisions WHERE id = ? AND user_id = ?`

	d, err := scanDecision(s.db.sql.QueryRowContext(ctx, q, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading decision: %w", err)
	}
	return d, nil
}

// GetDecisionsByIDs hydrates decisions in the given id order, silently
// skipping ids with no row. Used to resolve vector search hits.
func (s *Store) GetDecisionsByIDs(ctx context.Context, userID string, ids []string) ([]*Decision, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q := `SELECT ` + decisionColumns + ` FROM decisions WHERE user_id = ? AND id IN (` + placeholders(len(ids)) + `)`
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("loading decisions: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Decision, len(ids))
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning decision: %w", err)
		}
		byID[d.ID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]*Decision, 0, len(byID))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			ordered = append(ordered, d)
		}
	}
	return ordered, nil
}

// SetDecisionFeedback records the owner's verdict exactly once. The write
// is a single conditional UPDATE, so concurrent calls for the same
// decision linearize: one wins, the rest get ErrFeedbackAlreadySet.
func (s *Store) SetDecisionFeedback(ctx context.Context, userID, decisionID string, feedback Feedback) error {
	ctx, span := tracer.Start(ctx, "knowledge.SetDecisionFeedback")
	defer span.End()

	span.SetAttributes(
		attribute.String("decision_id", decisionID),
		attribute.String("feedback", string(feedback)),
	)

	if !feedback.Valid() {
		return fmt.Errorf("%w: feedback must be approved or rejected", ErrInvalidInput)
	}

	res, err := s.db.sql.ExecContext(ctx,
		`UPDATE decisions SET owner_feedback = ?, feedback_at = ? WHERE id = ? AND user_id = ? AND owner_feedback IS NULL`,
		string(feedback), timeNow().UTC(), decisionID, userID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("setting owner feedback: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 1 {
		span.SetStatus(codes.Ok, "success")
		return nil
	}

	// Zero rows: the decision is missing for this user, or its feedback is
	// already set. Callers need to tell these apart.
	var exists int
	err = s.db.sql.QueryRowContext(ctx,
		`SELECT 1 FROM decisions WHERE id = ? AND user_id = ?`, decisionID, userID,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking decision: %w", err)
	}
	return ErrFeedbackAlreadySet
}

// ListDecisionsNeedingOutcome returns decisions past the measurement grace
// period with no recorded outcome, oldest first. Decisions older than
// maxAge are abandoned: they stop being returned and never get a synthetic
// outcome.
func (s *Store) ListDecisionsNeedingOutcome(ctx context.Context, grace, maxAge time.Duration, limit int) ([]*Decision, error) {
	if limit <= 0 {
		limit = 100
	}
	now := timeNow().UTC()

	const q = `
SELECT ` + decisionColumns + ` FROM decisions d
WHERE d.created_at <= ? AND d.created_at > ?
  AND NOT EXISTS (SELECT 1 FROM outcomes o WHERE o.decision_id = d.id)
ORDER BY d.created_at ASC
LIMIT ?`

	rows, err := s.db.sql.QueryContext(ctx, q, now.Add(-grace), now.Add(-maxAge), limit)
	if err != nil {
		return nil, fmt.Errorf("listing decisions needing outcome: %w", err)
	}
	defer rows.Close()

	var decisions []*Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning decision: %w", err)
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// HistoricalStats counts measured successes and failures for a tool and
// category. Each decision counts once: a recorded outcome takes precedence
// over owner feedback; unmeasured decisions are excluded.
func (s *Store) HistoricalStats(ctx context.Context, userID, toolName string, category autonomy.Category) (successes, failures int, err error) {
	const q = `
SELECT
    COALESCE(SUM(CASE WHEN verdict = 1 THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN verdict = 0 THEN 1 ELSE 0 END), 0)
FROM (
    SELECT COALESCE(o.success, CASE d.owner_feedback WHEN 'approved' THEN 1 WHEN 'rejected' THEN 0 END) AS verdict
    FROM decisions d
    LEFT JOIN outcomes o ON o.decision_id = d.id
    WHERE d.user_id = ? AND d.tool_name = ? AND d.category = ?
)
WHERE verdict IS NOT NULL`

	err = s.db.sql.QueryRowContext(ctx, q, userID, toolName, string(category)).Scan(&successes, &failures)
	if err != nil {
		return 0, 0, fmt.Errorf("querying historical stats: %w", err)
	}
	return successes, failures, nil
}

// ListOutcomePoints returns the most recent measured outcomes for a tool
// and category, newest first.
func (s *Store) ListOutcomePoints(ctx context.Context, userID, toolName string, category autonomy.Category, limit int) ([]OutcomePoint, error) {
	if limit <= 0 {
		limit = 50
	}

	const q = `
SELECT o.measured_at, o.success
FROM outcomes o
JOIN decisions d ON d.id = o.decision_id
WHERE d.user_id = ? AND d.tool_name = ? AND d.category = ?
ORDER BY o.measured_at DESC
LIMIT ?`

	rows, err := s.db.sql.QueryContext(ctx, q, userID, toolName, string(category), limit)
	if err != nil {
		return nil, fmt.Errorf("listing outcome points: %w", err)
	}
	defer rows.Close()

	var points []OutcomePoint
	for rows.Next() {
		var p OutcomePoint
		if err := rows.Scan(&p.MeasuredAt, &p.Success); err != nil {
			return nil, fmt.Errorf("scanning outcome point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func scanDecision(r rowScanner) (*Decision, error) {
	var (
		d              Decision
		category       string
		disposition    string
		factors        sql.NullString
		confidence     sql.NullFloat64
		embedding      []byte
		feedback       sql.NullString
		feedbackAt     sql.NullTime
		conversationID sql.NullString
	)

	err := r.Scan(&d.ID, &d.UserID, &d.ToolName, &category, &d.InputSummary,
		&factors, &confidence, &embedding, &feedback, &feedbackAt,
		&d.WasAutoExecuted, &disposition, &conversationID, &d.CreatedAt)
	if err != nil {
		return nil, err
	}

	d.Category = autonomy.Category(category)
	d.Disposition = autonomy.Disposition(disposition)
	d.Embedding = decodeVector(embedding)
	if factors.Valid {
		var f ConfidenceFactors
		if err := json.Unmarshal([]byte(factors.String), &f); err != nil {
			return nil, fmt.Errorf("decoding factors: %w", err)
		}
		d.Factors = &f
	}
	if confidence.Valid {
		v := confidence.Float64
		d.Confidence = &v
	}
	if feedback.Valid {
		f := Feedback(feedback.String)
		d.OwnerFeedback = &f
	}
	if feedbackAt.Valid {
		t := feedbackAt.Time
		d.FeedbackAt = &t
	}
	if conversationID.Valid {
		d.ConversationID = conversationID.String
	}
	return &d, nil
}
