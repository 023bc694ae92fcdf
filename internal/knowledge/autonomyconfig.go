package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
)

// GetAutonomyConfig loads a user's stored autonomy configuration.
// ErrNotFound means the user never customized one; callers fall back to
// the configured default preset.
func (s *Store) GetAutonomyConfig(ctx context.Context, userID string) (*autonomy.Config, error) {
	const q = `SELECT preset, levels, min_confidence, updated_at FROM autonomy_configs WHERE user_id = ?`

	var (
		preset     string
		levelsJSON string
		minJSON    string
		cfg        autonomy.Config
	)
	err := s.db.sql.QueryRowContext(ctx, q, userID).Scan(&preset, &levelsJSON, &minJSON, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading autonomy config: %w", err)
	}

	cfg.UserID = userID
	cfg.Preset = autonomy.Preset(preset)
	if err := json.Unmarshal([]byte(levelsJSON), &cfg.Levels); err != nil {
		return nil, fmt.Errorf("decoding levels: %w", err)
	}
	if err := json.Unmarshal([]byte(minJSON), &cfg.MinConfidence); err != nil {
		return nil, fmt.Errorf("decoding min confidence: %w", err)
	}
	return &cfg, nil
}

// PutAutonomyConfig stores the full configuration record, replacing any
// previous one for the user.
func (s *Store) PutAutonomyConfig(ctx context.Context, cfg *autonomy.Config) error {
	ctx, span := tracer.Start(ctx, "knowledge.PutAutonomyConfig")
	defer span.End()

	if cfg == nil || cfg.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = timeNow().UTC()
	}

	levelsJSON, err := json.Marshal(cfg.Levels)
	if err != nil {
		return fmt.Errorf("encoding levels: %w", err)
	}
	minJSON, err := json.Marshal(cfg.MinConfidence)
	if err != nil {
		return fmt.Errorf("encoding min confidence: %w", err)
	}

	const q = `
INSERT INTO autonomy_configs (user_id, preset, levels, min_confidence, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    preset = excluded.preset,
    levels = excluded.levels,
    min_confidence = excluded.min_confidence,
    updated_at = excluded.updated_at`

	if _, err := s.db.sql.ExecContext(ctx, q,
		cfg.UserID, string(cfg.Preset), string(levelsJSON), string(minJSON), cfg.UpdatedAt.UTC(),
	); err != nil {
		span.RecordError(err)
		return fmt.Errorf("storing autonomy config: %w", err)
	}
	return nil
}
