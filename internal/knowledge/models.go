package knowledge

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
)

// Feedback is the owner's verdict on a recorded decision. It is written
// exactly once: null until the owner reacts, then approved or rejected
// forever.
type Feedback string

const (
	FeedbackApproved Feedback = "approved"
	FeedbackRejected Feedback = "rejected"
)

// Valid reports whether the feedback value is one of the two verdicts.
func (f Feedback) Valid() bool {
	return f == FeedbackApproved || f == FeedbackRejected
}

// TaskStatus tracks a task through its lifecycle.
type TaskStatus string

const (
	TaskStatusSuggested       TaskStatus = "suggested"
	TaskStatusPendingApproval TaskStatus = "pending_approval"
	TaskStatusExecuted        TaskStatus = "executed"
	TaskStatusRejected        TaskStatus = "rejected"
	TaskStatusDismissed       TaskStatus = "dismissed"
)

var validTaskStatuses = map[TaskStatus]bool{
	TaskStatusSuggested:       true,
	TaskStatusPendingApproval: true,
	TaskStatusExecuted:        true,
	TaskStatusRejected:        true,
	TaskStatusDismissed:       true,
}

// Valid reports whether the status is recognized.
func (s TaskStatus) Valid() bool {
	return validTaskStatuses[s]
}

// TaskPriority orders tasks for the owner.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityNormal TaskPriority = "normal"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// PreferenceKind distinguishes what a stored preference steers.
type PreferenceKind string

const (
	// KindPreference is an explicit owner preference.
	KindPreference PreferenceKind = "preference"

	// KindPromptGuidance adjusts how the agent reasons, learned from
	// reasoning errors.
	KindPromptGuidance PreferenceKind = "prompt_guidance"

	// KindContextPattern records context the agent should have gathered,
	// learned from context-missing errors.
	KindContextPattern PreferenceKind = "context_pattern"
)

var validPreferenceKinds = map[PreferenceKind]bool{
	KindPreference:     true,
	KindPromptGuidance: true,
	KindContextPattern: true,
}

// Valid reports whether the kind is recognized.
func (k PreferenceKind) Valid() bool {
	return validPreferenceKinds[k]
}

// ConfidenceFactors are the six scored signals and their composite for one
// candidate action. All values are in [0,1]. Computed by
// internal/confidence and persisted verbatim with the decision; decisions
// on exempt tool kinds carry none.
type ConfidenceFactors struct {
	HistoricalAccuracy float64 `json:"historical_accuracy"`
	SourceQuality      float64 `json:"source_quality"`
	PrecedentAlignment float64 `json:"precedent_alignment"`
	RuleAlignment      float64 `json:"rule_alignment"`
	GoldenAlignment    float64 `json:"golden_alignment"`
	OutcomeTrack       float64 `json:"outcome_track"`
	Composite          float64 `json:"composite"`
}

// Decision is one evaluated candidate action: what the agent wanted to do,
// how confident it was, and what the gate decided. Immutable once written
// except for owner feedback.
type Decision struct {
	ID              string               `json:"id"`
	UserID          string               `json:"user_id"`
	ToolName        string               `json:"tool_name"`
	Category        autonomy.Category    `json:"category"`
	InputSummary    string               `json:"input_summary"`
	Factors         *ConfidenceFactors   `json:"factors,omitempty"`
	Confidence      *float64             `json:"confidence,omitempty"`
	Embedding       []float32            `json:"embedding,omitempty"`
	OwnerFeedback   *Feedback            `json:"owner_feedback,omitempty"`
	FeedbackAt      *time.Time           `json:"feedback_at,omitempty"`
	WasAutoExecuted bool                 `json:"was_auto_executed"`
	Disposition     autonomy.Disposition `json:"disposition"`
	ConversationID  string               `json:"conversation_id,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

// Rule is a learned fact born from a factual-error correction. Confidence
// rises on reinforcement and decays with disuse; at zero the rule is
// deactivated but never deleted by decay.
type Rule struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	RuleText         string    `json:"rule_text"`
	Embedding        []float32 `json:"-"`
	Confidence       float64   `json:"confidence"`
	Active           bool      `json:"active"`
	LastReinforcedAt time.Time `json:"last_reinforced_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// Preference is an upserted per-user setting keyed by preference_key.
type Preference struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	Category      autonomy.Category `json:"category"`
	PreferenceKey string            `json:"preference_key"`
	Kind          PreferenceKind    `json:"kind"`
	Value         string            `json:"value"`
	Embedding     []float32         `json:"-"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Correction is an owner's explicit "that was wrong" record. Append-only,
// scrubbed of secrets before it gets here, always embedded.
type Correction struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	OriginalAction  string            `json:"original_action"`
	CorrectionText  string            `json:"correction_text"`
	ContextSnapshot string            `json:"context_snapshot,omitempty"`
	Category        autonomy.Category `json:"category"`
	Embedding       []float32         `json:"-"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Outcome is the measured result of a decision. At most one per decision.
type Outcome struct {
	ID         string    `json:"id"`
	DecisionID string    `json:"decision_id"`
	MeasuredAt time.Time `json:"measured_at"`
	Success    bool      `json:"success"`
	Detail     string    `json:"detail,omitempty"`
}

// OutcomePoint is a single dated success/failure sample, used for
// recency-weighted track records.
type OutcomePoint struct {
	MeasuredAt time.Time `json:"measured_at"`
	Success    bool      `json:"success"`
}

// Task is a unit of proposed or pending work surfaced to the owner, mostly
// synthesized by the heartbeat. The idempotency key makes repeated sweeps
// over the same finding a no-op.
type Task struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"user_id"`
	Category       autonomy.Category      `json:"category"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description,omitempty"`
	Recommendation string                 `json:"recommendation"`
	Priority       TaskPriority           `json:"priority"`
	Timeline       string                 `json:"timeline,omitempty"`
	Status         TaskStatus             `json:"status"`
	IdempotencyKey string                 `json:"idempotency_key"`
	ToolName       string                 `json:"tool_name,omitempty"`
	ToolArgs       map[string]interface{} `json:"tool_args,omitempty"`
	DecisionID     string                 `json:"decision_id,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// ToolFailure is the structural failure aggregate for one tool and error
// pattern. Counted, not embedded.
type ToolFailure struct {
	UserID    string    `json:"user_id"`
	ToolName  string    `json:"tool_name"`
	Pattern   string    `json:"pattern"`
	Count     int       `json:"count"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HeartbeatRun summarizes one sweep for the ops surface.
type HeartbeatRun struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Findings     int       `json:"findings"`
	TasksCreated int       `json:"tasks_created"`
}

// DecisionMatch is a similarity hit hydrated from the decisions table.
type DecisionMatch struct {
	Decision   Decision `json:"decision"`
	Similarity float64  `json:"similarity"`
}

// RuleMatch is a similarity hit against the user's active rules.
type RuleMatch struct {
	Rule       Rule    `json:"rule"`
	Similarity float64 `json:"similarity"`
}

// PreferenceMatch is a similarity hit against the user's preferences.
type PreferenceMatch struct {
	Preference Preference `json:"preference"`
	Similarity float64    `json:"similarity"`
}

// CorrectionMatch is a similarity hit against the user's corrections.
type CorrectionMatch struct {
	Correction Correction `json:"correction"`
	Similarity float64    `json:"similarity"`
}

// encodeVector packs a float32 vector into little-endian bytes for BLOB
// storage. SQLite holds the durable copy; the vector index is rebuildable
// from it.
func encodeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector is the inverse of encodeVector. Malformed blobs decode to
// nil rather than a truncated vector.
func decodeVector(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
