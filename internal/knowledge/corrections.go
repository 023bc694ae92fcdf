package knowledge

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
	"github.com/fyrsmithlabs/steward/internal/vectorstore"
)

const correctionColumns = `id, user_id, original_action, correction_text, context_snapshot, category, embedding, created_at`

// InsertCorrection stores an owner correction. Corrections are append-only
// and must carry an embedding; they land in the memories collection the
// agent searches while assembling context. Text is expected to be scrubbed
// of secrets before it reaches this layer.
func (s *Store) InsertCorrection(ctx context.Context, c *Correction) error {
	ctx, span := tracer.Start(ctx, "knowledge.InsertCorrection")
	defer span.End()

	if c == nil || c.ID == "" || c.UserID == "" || strings.TrimSpace(c.CorrectionText) == "" {
		return fmt.Errorf("%w: correction id, user id, and text are required", ErrInvalidInput)
	}
	if err := s.checkEmbedding(c.Embedding, true); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if c.Category == "" {
		c.Category = autonomy.CategoryGeneral
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = timeNow().UTC()
	}

	span.SetAttributes(
		attribute.String("correction_id", c.ID),
		attribute.String("category", string(c.Category)),
	)

	meta := map[string]interface{}{
		"kind":     "correction",
		"category": string(c.Category),
	}
	if err := s.indexDocument(ctx, c.UserID, vectorstore.CollectionMemories, c.ID, c.CorrectionText, c.Embedding, meta); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("indexing correction: %w", err)
	}

	const q = `
INSERT INTO corrections (` + correctionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.sql.ExecContext(ctx, q,
		c.ID, c.UserID, c.OriginalAction, c.CorrectionText, c.ContextSnapshot,
		string(c.Category), encodeVector(c.Embedding), c.CreatedAt.UTC(),
	)
	if err != nil {
		s.deleteFromIndex(ctx, c.UserID, vectorstore.CollectionMemories, []string{c.ID})
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("inserting correction: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// GetCorrectionsByIDs hydrates corrections in the given id order, skipping
// ids with no row.
func (s *Store) GetCorrectionsByIDs(ctx context.Context, userID string, ids []string) ([]*Correction, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q := `SELECT ` + correctionColumns + ` FROM corrections WHERE user_id = ? AND id IN (` + placeholders(len(ids)) + `)`
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("loading corrections: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Correction, len(ids))
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning correction: %w", err)
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]*Correction, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

func scanCorrection(r rowScanner) (*Correction, error) {
	var (
		c         Correction
		category  string
		embedding []byte
	)
	err := r.Scan(&c.ID, &c.UserID, &c.OriginalAction, &c.CorrectionText,
		&c.ContextSnapshot, &category, &embedding, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Category = autonomy.Category(category)
	c.Embedding = decodeVector(embedding)
	return &c, nil
}
