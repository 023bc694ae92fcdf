package learning

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
	"github.com/fyrsmithlabs/steward/internal/knowledge"
	"github.com/fyrsmithlabs/steward/internal/secrets"
	"github.com/fyrsmithlabs/steward/internal/vectorstore"
)

var tracer = otel.Tracer("steward.learning")

var (
	// ErrInvalidInput indicates missing required fields.
	ErrInvalidInput = errors.New("invalid learning input")

	// ErrFeedbackSet is returned on a second feedback write for the same
	// decision.
	ErrFeedbackSet = knowledge.ErrFeedbackAlreadySet
)

// Store is the slice of the knowledge store the pipeline writes.
type Store interface {
	Dimension() int
	InsertCorrection(ctx context.Context, c *knowledge.Correction) error
	InsertRule(ctx context.Context, r *knowledge.Rule) error
	ReinforceRule(ctx context.Context, userID, ruleID string, bump float64) (*knowledge.Rule, error)
	SearchSimilarRules(ctx context.Context, queryEmbedding []float32, userID string, threshold float64, count int) ([]knowledge.RuleMatch, error)
	UpsertPreference(ctx context.Context, p *knowledge.Preference) error
	RecordToolFailure(ctx context.Context, userID, toolName, pattern, lastError string) (*knowledge.ToolFailure, error)
	SetDecisionFeedback(ctx context.Context, userID, decisionID string, feedback knowledge.Feedback) error
	InsertOutcome(ctx context.Context, o *knowledge.Outcome) error
}

// Config tunes the pipeline.
type Config struct {
	// DedupThreshold is the similarity above which a new factual rule is
	// treated as a duplicate of an existing one and reinforces it.
	DedupThreshold float64

	// RuleStartConfidence is the confidence new rules are born with.
	RuleStartConfidence float64

	// ReinforceBump is how much a reinforcement raises confidence.
	ReinforceBump float64

	// SearchCount caps dedup similarity search results.
	SearchCount int
}

// DefaultConfig returns production tuning.
func DefaultConfig() Config {
	return Config{
		DedupThreshold:      0.92,
		RuleStartConfidence: 0.5,
		ReinforceBump:       0.1,
		SearchCount:         3,
	}
}

// Service is the learning pipeline.
type Service struct {
	store    Store
	embedder vectorstore.Embedder
	scrubber secrets.Scrubber
	cfg      Config
	logger   *zap.Logger

	// userLocks serializes dedup-or-reinforce per user, so two near-
	// identical concurrent corrections cannot both miss the duplicate
	// check and insert twin rules.
	userLocks sync.Map
}

// NewService builds the pipeline. scrubber may be nil to disable
// scrubbing (tests only; production passes one).
func NewService(store Store, embedder vectorstore.Embedder, scrubber secrets.Scrubber, cfg Config, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidInput)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidInput)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DedupThreshold <= 0 || cfg.DedupThreshold > 1 {
		cfg.DedupThreshold = DefaultConfig().DedupThreshold
	}
	if cfg.RuleStartConfidence <= 0 || cfg.RuleStartConfidence > 1 {
		cfg.RuleStartConfidence = DefaultConfig().RuleStartConfidence
	}
	if cfg.ReinforceBump <= 0 {
		cfg.ReinforceBump = DefaultConfig().ReinforceBump
	}
	if cfg.SearchCount <= 0 {
		cfg.SearchCount = DefaultConfig().SearchCount
	}
	return &Service{
		store:    store,
		embedder: embedder,
		scrubber: scrubber,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// scrub returns the text with secrets redacted.
func (s *Service) scrub(text string) string {
	if s.scrubber == nil || text == "" {
		return text
	}
	return s.scrubber.Scrub(text).Scrubbed
}

// embed produces the mandatory embedding for a learning write. A failed
// embedding call fails the whole write; no record is stored without one.
func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding learning text: %w", err)
	}
	if len(vec) != s.store.Dimension() {
		return nil, fmt.Errorf("%w: embedder returned %d dims, store wants %d",
			knowledge.ErrBadDimension, len(vec), s.store.Dimension())
	}
	return vec, nil
}

// RecordCorrection stores an explicit owner correction and returns its
// id. The correction text is scrubbed before embedding and persistence.
func (s *Service) RecordCorrection(ctx context.Context, in *CorrectionInput) (string, error) {
	ctx, span := tracer.Start(ctx, "learning.RecordCorrection")
	defer span.End()

	if in == nil || in.UserID == "" || strings.TrimSpace(in.Correction) == "" {
		return "", fmt.Errorf("%w: user id and correction text are required", ErrInvalidInput)
	}
	category := in.Category
	if category == "" {
		category = autonomy.CategoryGeneral
	}

	correction := &knowledge.Correction{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		OriginalAction:  s.scrub(in.OriginalAction),
		CorrectionText:  s.scrub(in.Correction),
		ContextSnapshot: s.scrub(in.ContextSnapshot),
		Category:        category,
	}

	vec, err := s.embed(ctx, correction.CorrectionText)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	correction.Embedding = vec

	if err := s.store.InsertCorrection(ctx, correction); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(attribute.String("correction_id", correction.ID))
	span.SetStatus(codes.Ok, "success")
	return correction.ID, nil
}

// ClassifyAndLearn routes a classified error to its artifact type.
// Unclassifiable input yields Learned=false with a reason, never an
// error; storage and embedding failures do error.
func (s *Service) ClassifyAndLearn(ctx context.Context, in *LearnInput) (*Result, error) {
	ctx, span := tracer.Start(ctx, "learning.ClassifyAndLearn")
	defer span.End()

	if in == nil || in.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.ErrorMessage) == "" {
		return &Result{Learned: false, Reason: "empty error message"}, nil
	}
	if !in.ErrorType.Valid() {
		return &Result{Learned: false, Reason: fmt.Sprintf("unknown error type %q", in.ErrorType)}, nil
	}
	span.SetAttributes(
		attribute.String("error_type", string(in.ErrorType)),
		attribute.String("tool_name", in.ToolName),
	)

	var (
		res *Result
		err error
	)
	switch in.ErrorType {
	case FactualError:
		res, err = s.learnRule(ctx, in)
	case ReasoningError:
		res, err = s.learnPreference(ctx, in, knowledge.KindPromptGuidance, ArtifactPromptGuidance)
	case ToolMisuse:
		res, err = s.learnToolFailure(ctx, in)
	case ContextMissing:
		res, err = s.learnPreference(ctx, in, knowledge.KindContextPattern, ArtifactContextPattern)
	default:
		// Valid() above makes this unreachable; keep the typed result
		// shape anyway.
		res = &Result{Learned: false, Reason: fmt.Sprintf("unhandled error type %q", in.ErrorType)}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Bool("learned", res.Learned))
	span.SetStatus(codes.Ok, "success")
	return res, nil
}

// userLock returns the per-user mutex for atomic dedup-or-reinforce.
func (s *Service) userLock(userID string) *sync.Mutex {
	v, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// learnRule inserts a new rule from a factual error, unless a
// near-duplicate already exists, in which case it reinforces that rule.
func (s *Service) learnRule(ctx context.Context, in *LearnInput) (*Result, error) {
	ruleText := s.scrub(strings.TrimSpace(in.ErrorMessage))
	vec, err := s.embed(ctx, ruleText)
	if err != nil {
		return nil, err
	}

	mu := s.userLock(in.UserID)
	mu.Lock()
	defer mu.Unlock()

	matches, err := s.store.SearchSimilarRules(ctx, vec, in.UserID, s.cfg.DedupThreshold, s.cfg.SearchCount)
	if err != nil {
		return nil, fmt.Errorf("rule dedup search: %w", err)
	}
	if len(matches) > 0 {
		existing := matches[0].Rule
		if _, err := s.store.ReinforceRule(ctx, in.UserID, existing.ID, s.cfg.ReinforceBump); err != nil {
			return nil, fmt.Errorf("reinforcing rule: %w", err)
		}
		s.logger.Debug("reinforced near-duplicate rule",
			zap.String("user_id", in.UserID),
			zap.String("rule_id", existing.ID),
			zap.Float64("similarity", matches[0].Similarity),
		)
		return &Result{Learned: true, ArtifactType: ArtifactRuleDedup, ArtifactID: existing.ID}, nil
	}

	rule := &knowledge.Rule{
		ID:         uuid.NewString(),
		UserID:     in.UserID,
		RuleText:   ruleText,
		Embedding:  vec,
		Confidence: s.cfg.RuleStartConfidence,
	}
	if err := s.store.InsertRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("inserting rule: %w", err)
	}
	return &Result{Learned: true, ArtifactType: ArtifactRule, ArtifactID: rule.ID}, nil
}

// learnPreference upserts a guidance preference keyed by tool and kind,
// so repeated lessons about the same tool converge on one row.
func (s *Service) learnPreference(ctx context.Context, in *LearnInput, kind knowledge.PreferenceKind, artifact ArtifactType) (*Result, error) {
	value := s.scrub(strings.TrimSpace(in.ErrorMessage))
	vec, err := s.embed(ctx, value)
	if err != nil {
		return nil, err
	}

	category := in.Category
	if category == "" {
		category = autonomy.CategoryGeneral
	}
	tool := in.ToolName
	if tool == "" {
		tool = "general"
	}

	pref := &knowledge.Preference{
		UserID:        in.UserID,
		Category:      category,
		PreferenceKey: fmt.Sprintf("%s:%s", kind, tool),
		Kind:          kind,
		Value:         value,
		Embedding:     vec,
	}
	if err := s.store.UpsertPreference(ctx, pref); err != nil {
		return nil, fmt.Errorf("upserting %s preference: %w", kind, err)
	}
	return &Result{Learned: true, ArtifactType: artifact, ArtifactID: pref.ID}, nil
}

// learnToolFailure bumps the structural failure aggregate for a tool.
// No embedding: the aggregate is keyed by pattern, not meaning.
func (s *Service) learnToolFailure(ctx context.Context, in *LearnInput) (*Result, error) {
	if in.ToolName == "" {
		return &Result{Learned: false, Reason: "tool misuse without a tool name"}, nil
	}
	pattern := failurePattern(in.ErrorMessage)
	tf, err := s.store.RecordToolFailure(ctx, in.UserID, in.ToolName, pattern, s.scrub(in.ErrorMessage))
	if err != nil {
		return nil, fmt.Errorf("recording tool failure: %w", err)
	}
	return &Result{
		Learned:      true,
		ArtifactType: ArtifactToolGenome,
		ArtifactID:   fmt.Sprintf("%s/%s", tf.ToolName, tf.Pattern),
	}, nil
}

var (
	numberRun = regexp.MustCompile(`\d+`)
	spaceRun  = regexp.MustCompile(`\s+`)
)

// failurePattern normalizes an error message into an aggregation key:
// lowercased, numbers collapsed, truncated. "timeout after 30s" and
// "timeout after 45s" land on the same pattern.
func failurePattern(msg string) string {
	p := strings.ToLower(strings.TrimSpace(msg))
	p = numberRun.ReplaceAllString(p, "N")
	p = spaceRun.ReplaceAllString(p, " ")
	if r := []rune(p); len(r) > 120 {
		p = string(r[:120])
	}
	return p
}

// ProcessFeedback records the owner's verdict on a decision exactly once
// and synchronously feeds the outcome track. A second call for the same
// decision returns ErrFeedbackSet.
func (s *Service) ProcessFeedback(ctx context.Context, userID, decisionID string, feedback knowledge.Feedback, category autonomy.Category) error {
	ctx, span := tracer.Start(ctx, "learning.ProcessFeedback")
	defer span.End()

	if userID == "" || decisionID == "" {
		return fmt.Errorf("%w: user id and decision id are required", ErrInvalidInput)
	}
	if !feedback.Valid() {
		return fmt.Errorf("%w: feedback must be approved or rejected", ErrInvalidInput)
	}
	span.SetAttributes(
		attribute.String("decision_id", decisionID),
		attribute.String("feedback", string(feedback)),
	)

	if err := s.store.SetDecisionFeedback(ctx, userID, decisionID, feedback); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	outcome := &knowledge.Outcome{
		ID:         uuid.NewString(),
		DecisionID: decisionID,
		Success:    feedback == knowledge.FeedbackApproved,
		Detail:     "owner feedback",
	}
	if err := s.store.InsertOutcome(ctx, outcome); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("recording feedback outcome: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}
