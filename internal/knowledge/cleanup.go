package knowledge

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/internal/vectorstore"
)

// CleanupResult reports how many rows a retention sweep removed.
type CleanupResult struct {
	CorrectionsDeleted int `json:"corrections_deleted"`
	RulesDeleted       int `json:"rules_deleted"`
}

// CleanupOldLearningData deletes corrections older than the retention
// window and rules that decayed to inactive and stayed that way past
// the window. Decisions and outcomes are kept; they back the accuracy
// factor and stay useful indefinitely. Vector index entries for the
// deleted rows are pruned after the transaction commits.
func (s *Store) CleanupOldLearningData(ctx context.Context, retentionDays int) (*CleanupResult, error) {
	ctx, span := tracer.Start(ctx, "knowledge.CleanupOldLearningData")
	defer span.End()

	if retentionDays <= 0 {
		retentionDays = 365
	}
	cutoff := timeNow().UTC().AddDate(0, 0, -retentionDays)
	span.SetAttributes(attribute.Int("retention_days", retentionDays))

	type doomed struct {
		id     string
		userID string
	}
	var corrections, rules []doomed

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		collect := func(q string, into *[]doomed) error {
			rows, err := tx.QueryContext(ctx, q, cutoff)
			if err != nil {
				return err
			}
			defer rows.Close()
			for rows.Next() {
				var d doomed
				if err := rows.Scan(&d.id, &d.userID); err != nil {
					return err
				}
				*into = append(*into, d)
			}
			return rows.Err()
		}

		if err := collect(`SELECT id, user_id FROM corrections WHERE created_at <= ?`, &corrections); err != nil {
			return fmt.Errorf("selecting stale corrections: %w", err)
		}
		if err := collect(`SELECT id, user_id FROM rules WHERE active = 0 AND last_reinforced_at <= ?`, &rules); err != nil {
			return fmt.Errorf("selecting dead rules: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM corrections WHERE created_at <= ?`, cutoff); err != nil {
			return fmt.Errorf("deleting stale corrections: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM rules WHERE active = 0 AND last_reinforced_at <= ?`, cutoff); err != nil {
			return fmt.Errorf("deleting dead rules: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Index pruning is best effort. SQLite already dropped the rows, so
	// a leftover vector can never surface: hydration filters it out.
	byUser := func(ds []doomed) map[string][]string {
		m := make(map[string][]string)
		for _, d := range ds {
			m[d.userID] = append(m[d.userID], d.id)
		}
		return m
	}
	for userID, ids := range byUser(corrections) {
		s.deleteFromIndex(ctx, userID, vectorstore.CollectionMemories, ids)
	}
	for userID, ids := range byUser(rules) {
		s.deleteFromIndex(ctx, userID, vectorstore.CollectionRules, ids)
	}

	res := &CleanupResult{
		CorrectionsDeleted: len(corrections),
		RulesDeleted:       len(rules),
	}
	if res.CorrectionsDeleted > 0 || res.RulesDeleted > 0 {
		s.logger.Info("retention sweep removed learning data",
			zap.Int("corrections", res.CorrectionsDeleted),
			zap.Int("rules", res.RulesDeleted),
			zap.Int("retention_days", retentionDays))
	}
	span.SetAttributes(
		attribute.Int("corrections_deleted", res.CorrectionsDeleted),
		attribute.Int("rules_deleted", res.RulesDeleted),
	)
	return res, nil
}
