package confidence

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
	"github.com/fyrsmithlabs/steward/internal/knowledge"
)

var tracer = otel.Tracer("steward.confidence")

var (
	// ErrInvalidCandidate indicates a candidate missing required fields.
	ErrInvalidCandidate = errors.New("invalid candidate")

	// ErrScoringFailed wraps any retrieval failure during scoring. The
	// caller must treat the candidate as unscored; no partial factors are
	// ever returned.
	ErrScoringFailed = errors.New("confidence scoring failed")
)

// Source describes the provenance of the data a candidate action is based
// on. Fresher provenance scores higher.
type Source string

const (
	// SourceLive means the action is based on a live backend query.
	SourceLive Source = "live"

	// SourceCache means the action is based on possibly stale cached data.
	SourceCache Source = "cache"

	// SourceInferred means the action is based on model inference alone.
	SourceInferred Source = "inferred"
)

// sourceQuality maps provenance to its factor value.
var sourceQuality = map[Source]float64{
	SourceLive:     0.95,
	SourceCache:    0.7,
	SourceInferred: 0.4,
}

// Candidate is one proposed tool invocation to score.
type Candidate struct {
	UserID       string
	ToolName     string
	Category     autonomy.Category
	InputSummary string
	Source       Source

	// Embedding of the input summary. Optional: without one the
	// similarity factors fall back to their neutral values, since there
	// is nothing to compare against.
	Embedding []float32
}

// Validate checks the candidate's required fields.
func (c *Candidate) Validate() error {
	if c.UserID == "" || c.ToolName == "" {
		return fmt.Errorf("%w: user id and tool name are required", ErrInvalidCandidate)
	}
	if _, ok := sourceQuality[c.Source]; !ok {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidCandidate, c.Source)
	}
	return nil
}

// Retriever is the slice of the knowledge store the scorer reads.
type Retriever interface {
	HistoricalStats(ctx context.Context, userID, toolName string, category autonomy.Category) (successes, failures int, err error)
	SearchSimilarDecisions(ctx context.Context, queryEmbedding []float32, userID string, threshold float64, count int) ([]knowledge.DecisionMatch, error)
	SearchSimilarRules(ctx context.Context, queryEmbedding []float32, userID string, threshold float64, count int) ([]knowledge.RuleMatch, error)
	ListOutcomePoints(ctx context.Context, userID, toolName string, category autonomy.Category, limit int) ([]knowledge.OutcomePoint, error)
}

// GoldenIndex answers similarity queries against the curated goldens.
type GoldenIndex interface {
	// MaxSimilarity returns the best similarity against goldens in the
	// category, and whether any golden exists to compare with.
	MaxSimilarity(ctx context.Context, category autonomy.Category, vector []float32) (score float64, found bool, err error)
}

// Weights are the composite blend weights. They are normalized to sum to
// one at scorer construction.
type Weights struct {
	Historical float64
	Precedent  float64
	Source     float64
	Rule       float64
	Outcome    float64
	Golden     float64
}

// DefaultWeights is the fixed production blend.
var DefaultWeights = Weights{
	Historical: 0.25,
	Precedent:  0.20,
	Source:     0.15,
	Rule:       0.15,
	Outcome:    0.15,
	Golden:     0.10,
}

func (w Weights) sum() float64 {
	return w.Historical + w.Precedent + w.Source + w.Rule + w.Outcome + w.Golden
}

// normalize scales the weights to sum to one. Zero weights are replaced
// with the defaults rather than dividing by zero.
func (w Weights) normalize() Weights {
	s := w.sum()
	if s <= 0 {
		w = DefaultWeights
		s = w.sum()
	}
	return Weights{
		Historical: w.Historical / s,
		Precedent:  w.Precedent / s,
		Source:     w.Source / s,
		Rule:       w.Rule / s,
		Outcome:    w.Outcome / s,
		Golden:     w.Golden / s,
	}
}

const (
	// neutral is the factor value used when no evidence exists either way.
	neutral = 0.5

	// outcomeHalfLife controls the recency weighting of the outcome
	// track: a 30-day-old outcome counts half as much as one from today.
	outcomeHalfLife = 30 * 24 * time.Hour

	searchThreshold = 0.25
	searchCount     = 5
	outcomeWindow   = 50
)

// Scorer computes confidence factors for candidate actions.
type Scorer struct {
	retriever Retriever
	goldens   GoldenIndex
	weights   Weights
	now       func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithWeights overrides the composite blend. The weights are normalized.
func WithWeights(w Weights) Option {
	return func(s *Scorer) { s.weights = w }
}

// WithClock overrides the scorer's clock for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// NewScorer builds a Scorer. goldens may be nil, in which case the golden
// factor is always neutral.
func NewScorer(retriever Retriever, goldens GoldenIndex, opts ...Option) (*Scorer, error) {
	if retriever == nil {
		return nil, errors.New("retriever is required")
	}
	s := &Scorer{
		retriever: retriever,
		goldens:   goldens,
		weights:   DefaultWeights,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.weights = s.weights.normalize()
	return s, nil
}

// Score computes all six factors and the composite for a candidate. Any
// retrieval failure aborts the whole computation with ErrScoringFailed;
// partial factor sets are never returned.
func (s *Scorer) Score(ctx context.Context, cand *Candidate) (*knowledge.ConfidenceFactors, error) {
	ctx, span := tracer.Start(ctx, "confidence.Score")
	defer span.End()

	if cand == nil {
		return nil, fmt.Errorf("%w: candidate is nil", ErrInvalidCandidate)
	}
	if err := cand.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("tool_name", cand.ToolName),
		attribute.String("category", string(cand.Category)),
	)

	historical, err := s.historicalAccuracy(ctx, cand)
	if err != nil {
		return nil, s.fail(span, "historical_accuracy", err)
	}
	precedent, err := s.precedentAlignment(ctx, cand)
	if err != nil {
		return nil, s.fail(span, "precedent_alignment", err)
	}
	rule, err := s.ruleAlignment(ctx, cand)
	if err != nil {
		return nil, s.fail(span, "rule_alignment", err)
	}
	golden, err := s.goldenAlignment(ctx, cand)
	if err != nil {
		return nil, s.fail(span, "golden_alignment", err)
	}
	outcome, err := s.outcomeTrack(ctx, cand)
	if err != nil {
		return nil, s.fail(span, "outcome_track", err)
	}

	f := &knowledge.ConfidenceFactors{
		HistoricalAccuracy: historical,
		SourceQuality:      sourceQuality[cand.Source],
		PrecedentAlignment: precedent,
		RuleAlignment:      rule,
		GoldenAlignment:    golden,
		OutcomeTrack:       outcome,
	}
	f.Composite = clamp01(s.weights.Historical*f.HistoricalAccuracy +
		s.weights.Precedent*f.PrecedentAlignment +
		s.weights.Source*f.SourceQuality +
		s.weights.Rule*f.RuleAlignment +
		s.weights.Outcome*f.OutcomeTrack +
		s.weights.Golden*f.GoldenAlignment)

	span.SetAttributes(attribute.Float64("composite", f.Composite))
	span.SetStatus(codes.Ok, "success")
	return f, nil
}

func (s *Scorer) fail(span trace.Span, factor string, err error) error {
	wrapped := fmt.Errorf("%w: %s: %v", ErrScoringFailed, factor, err)
	span.RecordError(wrapped)
	span.SetStatus(codes.Error, wrapped.Error())
	return wrapped
}

// historicalAccuracy is the measured success rate of past decisions for
// the same tool and category. With no history the factor is neutral.
func (s *Scorer) historicalAccuracy(ctx context.Context, cand *Candidate) (float64, error) {
	successes, failures, err := s.retriever.HistoricalStats(ctx, cand.UserID, cand.ToolName, cand.Category)
	if err != nil {
		return 0, err
	}
	total := successes + failures
	if total == 0 {
		return neutral, nil
	}
	return clamp01(float64(successes) / float64(total)), nil
}

// precedentAlignment is the best similarity against previously successful
// decisions. Failed precedents do not count in favor of repeating them.
func (s *Scorer) precedentAlignment(ctx context.Context, cand *Candidate) (float64, error) {
	if len(cand.Embedding) == 0 {
		return neutral, nil
	}
	matches, err := s.retriever.SearchSimilarDecisions(ctx, cand.Embedding, cand.UserID, searchThreshold, searchCount)
	if err != nil {
		return 0, err
	}
	best := 0.0
	found := false
	for _, m := range matches {
		d := m.Decision
		rejected := d.OwnerFeedback != nil && *d.OwnerFeedback == knowledge.FeedbackRejected
		if rejected {
			continue
		}
		found = true
		if m.Similarity > best {
			best = m.Similarity
		}
	}
	if !found {
		return neutral, nil
	}
	return clamp01(best), nil
}

// ruleAlignment is the strength of matching active rules: the best
// product of similarity and rule confidence. No matching rules is
// neutral, not negative.
func (s *Scorer) ruleAlignment(ctx context.Context, cand *Candidate) (float64, error) {
	if len(cand.Embedding) == 0 {
		return neutral, nil
	}
	matches, err := s.retriever.SearchSimilarRules(ctx, cand.Embedding, cand.UserID, searchThreshold, searchCount)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return neutral, nil
	}
	best := 0.0
	for _, m := range matches {
		strength := m.Similarity * m.Rule.Confidence
		if strength > best {
			best = strength
		}
	}
	return clamp01(best), nil
}

// goldenAlignment is the best similarity against the curated goldens for
// the category. Neutral when no goldens exist or no index is wired.
func (s *Scorer) goldenAlignment(ctx context.Context, cand *Candidate) (float64, error) {
	if s.goldens == nil || len(cand.Embedding) == 0 {
		return neutral, nil
	}
	score, found, err := s.goldens.MaxSimilarity(ctx, cand.Category, cand.Embedding)
	if err != nil {
		return 0, err
	}
	if !found {
		return neutral, nil
	}
	return clamp01(score), nil
}

// outcomeTrack is the recency-weighted average of measured outcome
// success for the tool and category. Old outcomes fade with a 30-day
// half-life; no outcomes at all is neutral.
func (s *Scorer) outcomeTrack(ctx context.Context, cand *Candidate) (float64, error) {
	points, err := s.retriever.ListOutcomePoints(ctx, cand.UserID, cand.ToolName, cand.Category, outcomeWindow)
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return neutral, nil
	}

	now := s.now()
	var weighted, total float64
	for _, p := range points {
		age := now.Sub(p.MeasuredAt)
		if age < 0 {
			age = 0
		}
		w := math.Exp2(-age.Hours() / outcomeHalfLife.Hours())
		total += w
		if p.Success {
			weighted += w
		}
	}
	if total == 0 {
		return neutral, nil
	}
	return clamp01(weighted / total), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
