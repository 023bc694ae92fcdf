package knowledge

import (
	"context"
	"fmt"
)

// Stats is an operational snapshot of the knowledge store, served on the
// ops endpoint and rendered by the monitor.
type Stats struct {
	DecisionsTotal         int            `json:"decisions_total"`
	DecisionsByDisposition map[string]int `json:"decisions_by_disposition"`
	TasksByStatus          map[string]int `json:"tasks_by_status"`
	ActiveRules            int            `json:"active_rules"`
	AvgRuleConfidence      float64        `json:"avg_rule_confidence"`
	Preferences            int            `json:"preferences"`
	Corrections            int            `json:"corrections"`
	OutcomesMeasured       int            `json:"outcomes_measured"`
	HeartbeatRuns          int            `json:"heartbeat_runs"`
	HeartbeatFindings      int            `json:"heartbeat_findings"`
}

// Stats aggregates row counts across the store. All-users; the ops
// surface is operator-facing, not owner-facing.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		DecisionsByDisposition: make(map[string]int),
		TasksByStatus:          make(map[string]int),
	}

	groupCount := func(q string, into map[string]int) error {
		rows, err := s.db.sql.QueryContext(ctx, q)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var key string
			var n int
			if err := rows.Scan(&key, &n); err != nil {
				return err
			}
			into[key] = n
		}
		return rows.Err()
	}

	if err := groupCount(`SELECT disposition, COUNT(*) FROM decisions GROUP BY disposition`, st.DecisionsByDisposition); err != nil {
		return nil, fmt.Errorf("counting decisions by disposition: %w", err)
	}
	for _, n := range st.DecisionsByDisposition {
		st.DecisionsTotal += n
	}

	if err := groupCount(`SELECT status, COUNT(*) FROM tasks GROUP BY status`, st.TasksByStatus); err != nil {
		return nil, fmt.Errorf("counting tasks by status: %w", err)
	}

	err := s.db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(confidence), 0.0) FROM rules WHERE active = 1`,
	).Scan(&st.ActiveRules, &st.AvgRuleConfidence)
	if err != nil {
		return nil, fmt.Errorf("counting active rules: %w", err)
	}

	err = s.db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM preferences`).Scan(&st.Preferences)
	if err != nil {
		return nil, fmt.Errorf("counting preferences: %w", err)
	}
	err = s.db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM corrections`).Scan(&st.Corrections)
	if err != nil {
		return nil, fmt.Errorf("counting corrections: %w", err)
	}
	err = s.db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM outcomes`).Scan(&st.OutcomesMeasured)
	if err != nil {
		return nil, fmt.Errorf("counting outcomes: %w", err)
	}
	err = s.db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(findings), 0) FROM heartbeat_runs`,
	).Scan(&st.HeartbeatRuns, &st.HeartbeatFindings)
	if err != nil {
		return nil, fmt.Errorf("counting heartbeat runs: %w", err)
	}

	return st, nil
}
