package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/internal/vectorstore"
)

const ruleColumns = `id, user_id, rule_text, embedding, confidence, active, last_reinforced_at, created_at`

// InsertRule stores a learned rule. The embedding is mandatory: a rule
// that cannot be found by similarity can never fire and dedup would
// recreate it forever, so the index write happens first and a failed row
// insert rolls it back.
func (s *Store) InsertRule(ctx context.Context, r *Rule) error {
	ctx, span := tracer.Start(ctx, "knowledge.InsertRule")
	defer span.End()

	if r == nil || r.ID == "" || r.UserID == "" || strings.TrimSpace(r.RuleText) == "" {
		return fmt.Errorf("%w: rule id, user id, and text are required", ErrInvalidInput)
	}
	if err := s.checkEmbedding(r.Embedding, true); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be in [0,1]", ErrInvalidInput)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = timeNow().UTC()
	}
	if r.LastReinforcedAt.IsZero() {
		r.LastReinforcedAt = r.CreatedAt
	}
	r.Active = true

	span.SetAttributes(attribute.String("rule_id", r.ID))

	if err := s.indexDocument(ctx, r.UserID, vectorstore.CollectionRules, r.ID, r.RuleText, r.Embedding, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("indexing rule: %w", err)
	}

	const q = `
INSERT INTO rules (` + ruleColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.sql.ExecContext(ctx, q,
		r.ID, r.UserID, r.RuleText, encodeVector(r.Embedding),
		r.Confidence, r.Active, r.LastReinforcedAt.UTC(), r.CreatedAt.UTC(),
	)
	if err != nil {
		s.deleteFromIndex(ctx, r.UserID, vectorstore.CollectionRules, []string{r.ID})
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("inserting rule: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// GetRule loads one rule scoped to its owner.
func (s *Store) GetRule(ctx context.Context, userID, id string) (*Rule, error) {
	const q = `SELECT ` + ruleColumns + ` FROM rules WHERE id = ? AND user_id = ?`

	r, err := scanRule(s.db.sql.QueryRowContext(ctx, q, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading rule: %w", err)
	}
	return r, nil
}

// GetRulesByIDs hydrates rules in the given id order, silently skipping
// ids with no row. Used to resolve vector search hits.
func (s *Store) GetRulesByIDs(ctx context.Context, userID string, ids []string) ([]*Rule, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q := `SELECT ` + ruleColumns + ` FROM rules WHERE user_id = ? AND id IN (` + placeholders(len(ids)) + `)`
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Rule, len(ids))
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		byID[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]*Rule, 0, len(byID))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			ordered = append(ordered, r)
		}
	}
	return ordered, nil
}

// ListActiveRules returns a user's active rules, newest reinforcement
// first.
func (s *Store) ListActiveRules(ctx context.Context, userID string, limit int) ([]*Rule, error) {
	if limit <= 0 {
		limit = 100
	}

	const q = `SELECT ` + ruleColumns + ` FROM rules
WHERE user_id = ? AND active = 1
ORDER BY last_reinforced_at DESC
LIMIT ?`

	rows, err := s.db.sql.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing active rules: %w", err)
	}
	defer rows.Close()

	var rules []*Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// ListRuleUsers returns the ids of users holding at least one active rule,
// so maintenance sweeps know whom to visit.
func (s *Store) ListRuleUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.sql.QueryContext(ctx, `SELECT DISTINCT user_id FROM rules WHERE active = 1`)
	if err != nil {
		return nil, fmt.Errorf("listing rule users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scanning user id: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ReinforceRule bumps an active rule's confidence, capped at 1.0, and
// refreshes its staleness clock. The bump is one atomic UPDATE.
func (s *Store) ReinforceRule(ctx context.Context, userID, ruleID string, bump float64) (*Rule, error) {
	ctx, span := tracer.Start(ctx, "knowledge.ReinforceRule")
	defer span.End()

	span.SetAttributes(attribute.String("rule_id", ruleID))

	if bump <= 0 {
		bump = 0.1
	}

	res, err := s.db.sql.ExecContext(ctx, `
UPDATE rules SET
    confidence = MIN(1.0, confidence + ?),
    last_reinforced_at = ?
WHERE id = ? AND user_id = ? AND active = 1`,
		bump, timeNow().UTC(), ruleID, userID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("reinforcing rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}

	span.SetStatus(codes.Ok, "success")
	return s.GetRule(ctx, userID, ruleID)
}

// DecayStaleRules lowers confidence on every active rule not reinforced
// within daysThreshold days. Confidence floors at zero; a rule that
// reaches zero is deactivated, never deleted. Rules that survive a decay
// step have their staleness clock restarted, so one stale period costs
// exactly one step; deactivated rules keep their original timestamp for
// retention accounting.
func (s *Store) DecayStaleRules(ctx context.Context, userID string, daysThreshold int, decayAmount float64) (int, error) {
	ctx, span := tracer.Start(ctx, "knowledge.DecayStaleRules")
	defer span.End()

	// Zero is a valid threshold: everything not reinforced right now is
	// stale. Defaults live in outcome.Config, not here.
	if daysThreshold < 0 {
		return 0, fmt.Errorf("%w: days threshold must not be negative", ErrInvalidInput)
	}
	if decayAmount <= 0 {
		return 0, fmt.Errorf("%w: decay amount must be positive", ErrInvalidInput)
	}

	now := timeNow().UTC()
	cutoff := now.AddDate(0, 0, -daysThreshold)

	span.SetAttributes(
		attribute.Int("days_threshold", daysThreshold),
		attribute.Float64("decay_amount", decayAmount),
	)

	res, err := s.db.sql.ExecContext(ctx, `
UPDATE rules SET
    confidence = MAX(0.0, confidence - ?),
    active = CASE WHEN confidence - ? <= 0.0 THEN 0 ELSE 1 END,
    last_reinforced_at = CASE WHEN confidence - ? <= 0.0 THEN last_reinforced_at ELSE ? END
WHERE user_id = ? AND active = 1 AND last_reinforced_at <= ?`,
		decayAmount, decayAmount, decayAmount, now, userID, cutoff,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("decaying rules: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}

	if n > 0 {
		s.logger.Info("decayed stale rules",
			zap.String("user_id", userID),
			zap.Int64("count", n),
		)
	}

	span.SetAttributes(attribute.Int64("decayed", n))
	span.SetStatus(codes.Ok, "success")
	return int(n), nil
}

func scanRule(r rowScanner) (*Rule, error) {
	var (
		rule      Rule
		embedding []byte
	)
	err := r.Scan(&rule.ID, &rule.UserID, &rule.RuleText, &embedding,
		&rule.Confidence, &rule.Active, &rule.LastReinforcedAt, &rule.CreatedAt)
	if err != nil {
		return nil, err
	}
	rule.Embedding = decodeVector(embedding)
	return &rule, nil
}

// placeholders builds "?, ?, ?" for IN clauses.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
