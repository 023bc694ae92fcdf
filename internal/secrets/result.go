package secrets

import "time"

// Result contains the scrubbing result.
type Result struct {
	// Original is the original input content.
	Original string `json:"-"`

	// Scrubbed is the content with secrets redacted.
	Scrubbed string `json:"scrubbed"`

	// Findings describes the detected secrets, without their values.
	Findings []Finding `json:"findings,omitempty"`

	// TotalFindings is the count of secrets found.
	TotalFindings int `json:"total_findings"`

	// ByRule maps rule IDs to finding counts.
	ByRule map[string]int `json:"by_rule,omitempty"`

	// Duration is how long scrubbing took.
	Duration time.Duration `json:"duration"`
}

// Finding locates one detected secret. The matched value itself is never
// carried; the whole point is not to leak it onward.
type Finding struct {
	// RuleID identifies the gitleaks rule that matched.
	RuleID string `json:"rule_id"`

	// Description explains what was found.
	Description string `json:"description"`

	// Line is the 1-indexed line number.
	Line int `json:"line,omitempty"`
}

// HasFindings reports whether any secrets were found.
func (r *Result) HasFindings() bool {
	return r.TotalFindings > 0
}

// RuleIDs returns the unique rule IDs that matched.
func (r *Result) RuleIDs() []string {
	ids := make([]string, 0, len(r.ByRule))
	for id := range r.ByRule {
		ids = append(ids, id)
	}
	return ids
}
