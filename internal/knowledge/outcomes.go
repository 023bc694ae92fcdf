package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// InsertOutcome records the measured result of a decision. At most one
// outcome exists per decision; losing a race to another measurement (say,
// owner feedback against a portfolio probe) is not an error, the first
// write wins.
func (s *Store) InsertOutcome(ctx context.Context, o *Outcome) error {
	ctx, span := tracer.Start(ctx, "knowledge.InsertOutcome")
	defer span.End()

	if o == nil || o.DecisionID == "" {
		return fmt.Errorf("%w: decision id is required", ErrInvalidInput)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.MeasuredAt.IsZero() {
		o.MeasuredAt = timeNow().UTC()
	}

	span.SetAttributes(
		attribute.String("decision_id", o.DecisionID),
		attribute.Bool("success", o.Success),
	)

	const q = `
INSERT INTO outcomes (id, decision_id, measured_at, success, detail)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (decision_id) DO NOTHING`

	_, err := s.db.sql.ExecContext(ctx, q,
		o.ID, o.DecisionID, o.MeasuredAt.UTC(), o.Success, o.Detail,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("recording outcome: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// GetOutcome loads the outcome for a decision, or ErrNotFound when the
// decision is still unmeasured.
func (s *Store) GetOutcome(ctx context.Context, decisionID string) (*Outcome, error) {
	const q = `SELECT id, decision_id, measured_at, success, detail FROM outcomes WHERE decision_id = ?`

	var o Outcome
	err := s.db.sql.QueryRowContext(ctx, q, decisionID).Scan(
		&o.ID, &o.DecisionID, &o.MeasuredAt, &o.Success, &o.Detail,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading outcome: %w", err)
	}
	return &o, nil
}
