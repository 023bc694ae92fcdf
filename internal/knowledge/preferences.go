package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
	"github.com/fyrsmithlabs/steward/internal/vectorstore"
)

const preferenceColumns = `id, user_id, category, preference_key, kind, value, embedding, updated_at`

// UpsertPreference inserts or replaces the preference keyed by
// (user_id, preference_key). On replace the existing row id is kept, so
// the vector index entry is overwritten in place rather than duplicated.
// The atomic read-modify-write is a single ON CONFLICT statement.
func (s *Store) UpsertPreference(ctx context.Context, p *Preference) error {
	ctx, span := tracer.Start(ctx, "knowledge.UpsertPreference")
	defer span.End()

	if p == nil || p.UserID == "" || p.PreferenceKey == "" || p.Value == "" {
		return fmt.Errorf("%w: user id, preference key, and value are required", ErrInvalidInput)
	}
	if !p.Kind.Valid() {
		return fmt.Errorf("%w: unknown preference kind %q", ErrInvalidInput, p.Kind)
	}
	if err := s.checkEmbedding(p.Embedding, true); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Category == "" {
		p.Category = autonomy.CategoryGeneral
	}
	p.UpdatedAt = timeNow().UTC()

	span.SetAttributes(
		attribute.String("preference_key", p.PreferenceKey),
		attribute.String("kind", string(p.Kind)),
	)

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		const q = `
INSERT INTO preferences (` + preferenceColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, preference_key) DO UPDATE SET
    category = excluded.category,
    kind = excluded.kind,
    value = excluded.value,
    embedding = excluded.embedding,
    updated_at = excluded.updated_at`

		if _, err := tx.ExecContext(ctx, q,
			p.ID, p.UserID, string(p.Category), p.PreferenceKey, string(p.Kind),
			p.Value, encodeVector(p.Embedding), p.UpdatedAt,
		); err != nil {
			return fmt.Errorf("upserting preference: %w", err)
		}

		// On conflict the incoming id is discarded; pick up the winner so
		// the vector entry lands under the row's real id.
		return tx.QueryRowContext(ctx,
			`SELECT id FROM preferences WHERE user_id = ? AND preference_key = ?`,
			p.UserID, p.PreferenceKey,
		).Scan(&p.ID)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	meta := map[string]interface{}{
		"kind":           string(p.Kind),
		"category":       string(p.Category),
		"preference_key": p.PreferenceKey,
	}
	if err := s.indexDocument(ctx, p.UserID, vectorstore.CollectionPreferences, p.ID, p.Value, p.Embedding, meta); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("indexing preference: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// GetPreference loads one preference by its upsert key.
func (s *Store) GetPreference(ctx context.Context, userID, preferenceKey string) (*Preference, error) {
	const q = `SELECT ` + preferenceColumns + ` FROM preferences WHERE user_id = ? AND preference_key = ?`

	p, err := scanPreference(s.db.sql.QueryRowContext(ctx, q, userID, preferenceKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading preference: %w", err)
	}
	return p, nil
}

// GetPreferencesByIDs hydrates preferences in the given id order, skipping
// ids with no row.
func (s *Store) GetPreferencesByIDs(ctx context.Context, userID string, ids []string) ([]*Preference, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q := `SELECT ` + preferenceColumns + ` FROM preferences WHERE user_id = ? AND id IN (` + placeholders(len(ids)) + `)`
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("loading preferences: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Preference, len(ids))
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning preference: %w", err)
		}
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]*Preference, 0, len(byID))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

// ListPreferences returns a user's preferences, optionally filtered by
// kind (empty means all), most recently updated first.
func (s *Store) ListPreferences(ctx context.Context, userID string, kind PreferenceKind) ([]*Preference, error) {
	q := `SELECT ` + preferenceColumns + ` FROM preferences WHERE user_id = ?`
	args := []interface{}{userID}
	if kind != "" {
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: unknown preference kind %q", ErrInvalidInput, kind)
		}
		q += ` AND kind = ?`
		args = append(args, string(kind))
	}
	q += ` ORDER BY updated_at DESC`

	rows, err := s.db.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing preferences: %w", err)
	}
	defer rows.Close()

	var prefs []*Preference
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning preference: %w", err)
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

func scanPreference(r rowScanner) (*Preference, error) {
	var (
		p         Preference
		category  string
		kind      string
		embedding []byte
	)
	err := r.Scan(&p.ID, &p.UserID, &category, &p.PreferenceKey, &kind,
		&p.Value, &embedding, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Category = autonomy.Category(category)
	p.Kind = PreferenceKind(kind)
	p.Embedding = decodeVector(embedding)
	return &p, nil
}
