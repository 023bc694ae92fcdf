package confidence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
	"github.com/fyrsmithlabs/steward/internal/knowledge"
)

type fakeRetriever struct {
	successes, failures int
	statsErr            error

	decisions    []knowledge.DecisionMatch
	decisionsErr error

	rules    []knowledge.RuleMatch
	rulesErr error

	outcomes    []knowledge.OutcomePoint
	outcomesErr error
}

func (f *fakeRetriever) HistoricalStats(ctx context.Context, userID, toolName string, category autonomy.Category) (int, int, error) {
	return f.successes, f.failures, f.statsErr
}

func (f *fakeRetriever) SearchSimilarDecisions(ctx context.Context, vec []float32, userID string, threshold float64, count int) ([]knowledge.DecisionMatch, error) {
	return f.decisions, f.decisionsErr
}

func (f *fakeRetriever) SearchSimilarRules(ctx context.Context, vec []float32, userID string, threshold float64, count int) ([]knowledge.RuleMatch, error) {
	return f.rules, f.rulesErr
}

func (f *fakeRetriever) ListOutcomePoints(ctx context.Context, userID, toolName string, category autonomy.Category, limit int) ([]knowledge.OutcomePoint, error) {
	return f.outcomes, f.outcomesErr
}

type fakeGoldens struct {
	score float64
	found bool
	err   error
}

func (f *fakeGoldens) MaxSimilarity(ctx context.Context, category autonomy.Category, vec []float32) (float64, bool, error) {
	return f.score, f.found, f.err
}

func testCandidate() *Candidate {
	return &Candidate{
		UserID:       "owner-1",
		ToolName:     "send_rent_reminder",
		Category:     autonomy.CategoryRentCollection,
		InputSummary: "send a rent reminder to the overdue tenancy",
		Source:       SourceLive,
		Embedding:    make([]float32, 384),
	}
}

func TestScore_NoHistoryIsNeutral(t *testing.T) {
	s, err := NewScorer(&fakeRetriever{}, nil)
	require.NoError(t, err)

	f, err := s.Score(context.Background(), testCandidate())
	require.NoError(t, err)

	assert.Equal(t, 0.5, f.HistoricalAccuracy)
	assert.Equal(t, 0.95, f.SourceQuality)
	assert.Equal(t, 0.5, f.PrecedentAlignment)
	assert.Equal(t, 0.5, f.RuleAlignment)
	assert.Equal(t, 0.5, f.GoldenAlignment)
	assert.Equal(t, 0.5, f.OutcomeTrack)
	assert.InDelta(t, 0.5675, f.Composite, 0.0001)
}

func TestScore_AllFactorsInRange(t *testing.T) {
	rejected := knowledge.FeedbackRejected
	r := &fakeRetriever{
		successes: 8,
		failures:  2,
		decisions: []knowledge.DecisionMatch{
			{Decision: knowledge.Decision{ID: "d1"}, Similarity: 0.9},
			{Decision: knowledge.Decision{ID: "d2", OwnerFeedback: &rejected}, Similarity: 0.99},
		},
		rules: []knowledge.RuleMatch{
			{Rule: knowledge.Rule{ID: "r1", Confidence: 0.8}, Similarity: 0.7},
		},
		outcomes: []knowledge.OutcomePoint{
			{MeasuredAt: time.Now(), Success: true},
			{MeasuredAt: time.Now().Add(-24 * time.Hour), Success: false},
		},
	}
	s, err := NewScorer(r, &fakeGoldens{score: 0.85, found: true})
	require.NoError(t, err)

	f, err := s.Score(context.Background(), testCandidate())
	require.NoError(t, err)

	for name, v := range map[string]float64{
		"historical": f.HistoricalAccuracy,
		"source":     f.SourceQuality,
		"precedent":  f.PrecedentAlignment,
		"rule":       f.RuleAlignment,
		"golden":     f.GoldenAlignment,
		"outcome":    f.OutcomeTrack,
		"composite":  f.Composite,
	} {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.LessOrEqual(t, v, 1.0, name)
	}

	assert.Equal(t, 0.8, f.HistoricalAccuracy)
	// The rejected precedent is excluded even though it scored highest.
	assert.Equal(t, 0.9, f.PrecedentAlignment)
	assert.InDelta(t, 0.56, f.RuleAlignment, 0.0001)
	assert.Equal(t, 0.85, f.GoldenAlignment)
}

func TestScore_CompositeMatchesWeights(t *testing.T) {
	s, err := NewScorer(&fakeRetriever{successes: 1}, nil)
	require.NoError(t, err)

	f, err := s.Score(context.Background(), testCandidate())
	require.NoError(t, err)

	want := 0.25*f.HistoricalAccuracy + 0.20*f.PrecedentAlignment +
		0.15*f.SourceQuality + 0.15*f.RuleAlignment +
		0.15*f.OutcomeTrack + 0.10*f.GoldenAlignment
	assert.InDelta(t, want, f.Composite, 0.0001)
}

func TestScore_RetrievalFailureFailsClosed(t *testing.T) {
	cases := map[string]*fakeRetriever{
		"stats":     {statsErr: errors.New("db down")},
		"decisions": {decisionsErr: errors.New("index down")},
		"rules":     {rulesErr: errors.New("index down")},
		"outcomes":  {outcomesErr: errors.New("db down")},
	}
	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := NewScorer(r, nil)
			require.NoError(t, err)

			f, err := s.Score(context.Background(), testCandidate())
			assert.ErrorIs(t, err, ErrScoringFailed)
			assert.Nil(t, f)
		})
	}
}

func TestScore_GoldenFailureFailsClosed(t *testing.T) {
	s, err := NewScorer(&fakeRetriever{}, &fakeGoldens{err: errors.New("index down")})
	require.NoError(t, err)

	_, err = s.Score(context.Background(), testCandidate())
	assert.ErrorIs(t, err, ErrScoringFailed)
}

func TestScore_NoEmbeddingUsesNeutralSimilarity(t *testing.T) {
	r := &fakeRetriever{
		decisions: []knowledge.DecisionMatch{{Similarity: 0.99}},
		rules:     []knowledge.RuleMatch{{Rule: knowledge.Rule{Confidence: 1}, Similarity: 0.99}},
	}
	s, err := NewScorer(r, &fakeGoldens{score: 0.99, found: true})
	require.NoError(t, err)

	cand := testCandidate()
	cand.Embedding = nil
	f, err := s.Score(context.Background(), cand)
	require.NoError(t, err)

	assert.Equal(t, 0.5, f.PrecedentAlignment)
	assert.Equal(t, 0.5, f.RuleAlignment)
	assert.Equal(t, 0.5, f.GoldenAlignment)
}

func TestScore_SourceQualityLevels(t *testing.T) {
	s, err := NewScorer(&fakeRetriever{}, nil)
	require.NoError(t, err)

	for source, want := range map[Source]float64{
		SourceLive:     0.95,
		SourceCache:    0.7,
		SourceInferred: 0.4,
	} {
		cand := testCandidate()
		cand.Source = source
		f, err := s.Score(context.Background(), cand)
		require.NoError(t, err)
		assert.Equal(t, want, f.SourceQuality, string(source))
	}

	cand := testCandidate()
	cand.Source = "divination"
	_, err = s.Score(context.Background(), cand)
	assert.ErrorIs(t, err, ErrInvalidCandidate)
}

func TestScore_OutcomeTrackRecencyWeighting(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	r := &fakeRetriever{
		outcomes: []knowledge.OutcomePoint{
			{MeasuredAt: now, Success: true},
			// One half-life old: counts half as much.
			{MeasuredAt: now.Add(-30 * 24 * time.Hour), Success: false},
		},
	}
	s, err := NewScorer(r, nil, WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	f, err := s.Score(context.Background(), testCandidate())
	require.NoError(t, err)

	// weighted = 1.0 success / (1.0 + 0.5) total.
	assert.InDelta(t, 1.0/1.5, f.OutcomeTrack, 0.0001)
}

func TestNewScorer_NormalizesWeights(t *testing.T) {
	s, err := NewScorer(&fakeRetriever{}, nil, WithWeights(Weights{
		Historical: 2, Precedent: 2, Source: 2, Rule: 2, Outcome: 1, Golden: 1,
	}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s.weights.sum(), 0.0001)
	assert.InDelta(t, 0.2, s.weights.Historical, 0.0001)
}
