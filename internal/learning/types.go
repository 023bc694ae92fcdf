package learning

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
)

// ErrorType classifies what went wrong with an agent action. The set is
// closed: adding a class means extending the switch in ClassifyAndLearn,
// which the compiler's exhaustiveness habits make visible in review.
type ErrorType string

const (
	// FactualError means the agent acted on a wrong fact.
	FactualError ErrorType = "FACTUAL_ERROR"

	// ReasoningError means the facts were right but the reasoning wasn't.
	ReasoningError ErrorType = "REASONING_ERROR"

	// ToolMisuse means the agent called a tool wrongly (bad arguments,
	// wrong tool for the job).
	ToolMisuse ErrorType = "TOOL_MISUSE"

	// ContextMissing means the agent acted without context it should
	// have gathered first.
	ContextMissing ErrorType = "CONTEXT_MISSING"
)

var validErrorTypes = map[ErrorType]bool{
	FactualError:   true,
	ReasoningError: true,
	ToolMisuse:     true,
	ContextMissing: true,
}

// Valid reports whether the error type is recognized.
func (e ErrorType) Valid() bool {
	return validErrorTypes[e]
}

// ParseErrorType normalizes and validates an error type string.
func ParseErrorType(s string) (ErrorType, error) {
	e := ErrorType(strings.ToUpper(strings.TrimSpace(s)))
	if !e.Valid() {
		return "", fmt.Errorf("unknown error type %q", s)
	}
	return e, nil
}

// ArtifactType names what kind of knowledge a learning pass produced.
type ArtifactType string

const (
	// ArtifactRule is a newly inserted rule.
	ArtifactRule ArtifactType = "rule"

	// ArtifactRuleDedup is a reinforcement of an existing near-duplicate
	// rule instead of an insert.
	ArtifactRuleDedup ArtifactType = "rule_dedup"

	// ArtifactPromptGuidance is an upserted prompt-guidance preference.
	ArtifactPromptGuidance ArtifactType = "prompt_guidance"

	// ArtifactToolGenome is an update to a tool's failure aggregate.
	ArtifactToolGenome ArtifactType = "tool_genome_update"

	// ArtifactContextPattern is an upserted context-pattern preference.
	ArtifactContextPattern ArtifactType = "context_pattern"
)

// CorrectionInput is an explicit owner correction to record.
type CorrectionInput struct {
	UserID          string            `json:"user_id"`
	OriginalAction  string            `json:"original_action"`
	Correction      string            `json:"correction"`
	ContextSnapshot string            `json:"context_snapshot,omitempty"`
	Category        autonomy.Category `json:"category,omitempty"`
}

// LearnInput is one classified error to learn from.
type LearnInput struct {
	UserID       string            `json:"user_id"`
	ErrorType    ErrorType         `json:"error_type"`
	ToolName     string            `json:"tool_name"`
	ErrorMessage string            `json:"error_message"`
	InputSummary string            `json:"input_summary,omitempty"`
	Category     autonomy.Category `json:"category,omitempty"`
}

// Result reports what a learning pass produced. Learned=false with a
// Reason is a normal outcome, not an error.
type Result struct {
	Learned      bool         `json:"learned"`
	ArtifactType ArtifactType `json:"artifact_type,omitempty"`
	ArtifactID   string       `json:"artifact_id,omitempty"`
	Reason       string       `json:"reason,omitempty"`
}
