package knowledge_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
	"github.com/fyrsmithlabs/steward/internal/knowledge"
)

func testDecision(id, userID string) *knowledge.Decision {
	conf := 0.82
	return &knowledge.Decision{
		ID:           id,
		UserID:       userID,
		ToolName:     "create_maintenance_job",
		Category:     autonomy.CategoryMaintenance,
		InputSummary: "book plumber for leaking tap in unit 4",
		Factors: &knowledge.ConfidenceFactors{
			HistoricalAccuracy: 0.9,
			SourceQuality:      0.95,
			PrecedentAlignment: 0.8,
			RuleAlignment:      0.7,
			GoldenAlignment:    0.6,
			OutcomeTrack:       0.85,
			Composite:          0.82,
		},
		Confidence:     &conf,
		Embedding:      testVector("book plumber for leaking tap in unit 4"),
		Disposition:    autonomy.DispositionSuggest,
		ConversationID: "conv-1",
	}
}

func TestInsertDecision_Roundtrip(t *testing.T) {
	store := newTestKnowledgeStore(t)
	ctx := context.Background()

	d := testDecision("dec-1", "alice")
	require.NoError(t, store.InsertDecision(ctx, d))

	got, err := store.GetDecision(ctx, "alice", "dec-1")
	require.NoError(t, err)
	assert.Equal(t, "create_maintenance_job", got.ToolName)
	assert.Equal(t, autonomy.CategoryMaintenance, got.Category)
	assert.Equal(t, autonomy.DispositionSuggest, got.Disposition)
	assert.Equal(t, "conv-1", got.ConversationID)
	require.NotNil(t, got.Confidence)
	assert.InDelta(t, 0.82, *got.Confidence, 0.0001)
	require.NotNil(t, got.Factors)
	assert.InDelta(t, 0.95, got.Factors.SourceQuality, 0.0001)
	assert.Len(t, got.Embedding, testDims)
	assert.Nil(t, got.OwnerFeedback)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestInsertDecision_IdempotentOnID(t *testing.T) {
	store := newTestKnowledgeStore(t)
	ctx := context.Background()

	d := testDecision("dec-1", "alice")
	require.NoError(t, store.InsertDecision(ctx, d))

	// Redelivery carries different field values; the stored row wins.
	replay := testDecision("dec-1", "alice")
	replay.ToolName = "something_else"
	require.NoError(t, store.InsertDecision(ctx, replay))

	got, err := store.GetDecision(ctx, "alice", "dec-1")
	require.NoError(t, err)
	assert.Equal(t, "create_maintenance_job", got.ToolName)
}

func TestInsertDecision_RejectsBadDimension(t *testing.T) {
	store := newTestKnowledgeStore(t)

	d := testDecision("dec-1", "alice")
	d.Embedding = []float32{0.1, 0.2}
	err := store.InsertDecision(context.Background(), d)
	assert.ErrorIs(t, err, knowledge.ErrBadDimension)
}

func TestInsertDecision_AllowsVectorlessRow(t *testing.T) {
	store := newTestKnowledgeStore(t)
	ctx := context.Background()

	d := testDecision("dec-1", "alice")
	d.Embedding = nil
	require.NoError(t, store.InsertDecision(ctx, d))

	got, err := store.GetDecision(ctx, "alice", "dec-1")
	require.NoError(t, err)
	assert.Nil(t, got.Embedding)

	// The row is durable but invisible to similarity search.
	matches, err := store.SearchSimilarDecisions(ctx, testVector(d.InputSummary), "alice", 0.0, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestGetDecision_ScopedToUser(t *testing.T) {
	store := newTestKnowledgeStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertDecision(ctx, testDecision("dec-1", "alice")))

	_, err := store.GetDecision(ctx, "bob", "dec-1")
	assert.ErrorIs(t, err, knowledge.ErrNotFound)
}

func TestSetDecisionFeedback_ExactlyOnce(t *testing.T) {
	store := newTestKnowledgeStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertDecision(ctx, testDecision("dec-1", "alice")))

	require.NoError(t, store.SetDecisionFeedback(ctx, "alice", "dec-1", knowledge.FeedbackApproved))

	got, err := store.GetDecision(ctx, "alice", "dec-1")
	require.NoError(t, err)
	require.NotNil(t, got.OwnerFeedback)
	assert.Equal(t, knowledge.FeedbackApproved, *got.OwnerFeedback)
	require.NotNil(t, got.FeedbackAt)

	// Feedback never flips, not even to the same value.
	err = store.SetDecisionFeedback(ctx, "alice", "dec-1", knowledge.FeedbackRejected)
	assert.ErrorIs(t, err, knowledge.ErrFeedbackAlreadySet)
	err = store.SetDecisionFeedback(ctx, "alice", "dec-1", knowledge.FeedbackApproved)
	assert.ErrorIs(t, err, knowledge.ErrFeedbackAlreadySet)

	got, err = store.GetDecision(ctx, "alice", "dec-1")
	require.NoError(t, err)
	assert.Equal(t, knowledge.FeedbackApproved, *got.OwnerFeedback)
}

func TestSetDecisionFeedback_Errors(t *testing.T) {
	store := newTestKnowledgeStore(t)
	ctx := context.Background()

	err := store.SetDecisionFeedback(ctx, "alice", "missing", knowledge.FeedbackApproved)
	assert.ErrorIs(t, err, knowledge.ErrNotFound)

	require.NoError(t, store.InsertDecision(ctx, testDecision("dec-1", "alice")))
	err = store.SetDecisionFeedback(ctx, "bob", "dec-1", knowledge.FeedbackApproved)
	assert.ErrorIs(t, err, knowledge.ErrNotFound)

	err = store.SetDecisionFeedback(ctx, "alice", "dec-1", knowledge.Feedback("maybe"))
	assert.ErrorIs(t, err, knowledge.ErrInvalidInput)
}

func TestHistoricalStats_OutcomeTakesPrecedence(t *testing.T) {
	store := newTestKnowledgeStore(t)
	ctx := context.Background()

	// Approved by the owner, then measured as a failure: counts once, as
	// a failure.
	d1 := testDecision("dec-1", "alice")
	require.NoError(t, store.InsertDecision(ctx, d1))
	require.NoError(t, store.SetDecisionFeedback(ctx, "alice", "dec-1", knowledge.FeedbackApproved))
	require.NoError(t, store.InsertOutcome(ctx, &knowledge.Outcome{DecisionID: "dec-1", Success: false}))

	// Feedback only.
	d2 := testDecision("dec-2", "alice")
	require.NoError(t, store.InsertDecision(ctx, d2))
	require.NoError(t, store.SetDecisionFeedback(ctx, "alice", "dec-2", knowledge.FeedbackApproved))

	// Outcome only.
	d3 := testDecision("dec-3", "alice")
	require.NoError(t, store.InsertDecision(ctx, d3))
	require.NoError(t, store.InsertOutcome(ctx, &knowledge.Outcome{DecisionID: "dec-3", Success: true}))

	// Unmeasured: excluded entirely.
	require.NoError(t, store.InsertDecision(ctx, testDecision("dec-4", "alice")))

	successes, failures, err := store.HistoricalStats(ctx, "alice", "create_maintenance_job", autonomy.CategoryMaintenance)
	require.NoError(t, err)
	assert.Equal(t, 2, successes)
	assert.Equal(t, 1, failures)
}

func TestListDecisionsNeedingOutcome_Window(t *testing.T) {
	store := newTestKnowledgeStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	past := testDecision("dec-old-enough", "alice")
	past.CreatedAt = now.Add(-100 * time.Hour)
	require.NoError(t, store.InsertDecision(ctx, past))

	fresh := testDecision("dec-fresh", "alice")
	fresh.CreatedAt = now.Add(-10 * time.Hour)
	require.NoError(t, store.InsertDecision(ctx, fresh))

	abandoned := testDecision("dec-abandoned", "alice")
	abandoned.CreatedAt = now.Add(-40 * 24 * time.Hour)
	require.NoError(t, store.InsertDecision(ctx, abandoned))

	measured := testDecision("dec-measured", "alice")
	measured.CreatedAt = now.Add(-90 * time.Hour)
	require.NoError(t, store.InsertDecision(ctx, measured))
	require.NoError(t, store.InsertOutcome(ctx, &knowledge.Outcome{DecisionID: "dec-measured", Success: true}))

	pending, err := store.ListDecisionsNeedingOutcome(ctx, 72*time.Hour, 30*24*time.Hour, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "dec-old-enough", pending[0].ID)
}

func TestInsertOutcome_FirstWriteWins(t *testing.T) {
	store := newTestKnowledgeStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertDecision(ctx, testDecision("dec-1", "alice")))

	require.NoError(t, store.InsertOutcome(ctx, &knowledge.Outcome{DecisionID: "dec-1", Success: true, Detail: "job completed"}))
	require.NoError(t, store.InsertOutcome(ctx, &knowledge.Outcome{DecisionID: "dec-1", Success: false, Detail: "late duplicate"}))

	got, err := store.GetOutcome(ctx, "dec-1")
	require.NoError(t, err)
	assert.True(t, got.Success)
	assert.Equal(t, "job completed", got.Detail)

	_, err = store.GetOutcome(ctx, "unmeasured")
	assert.ErrorIs(t, err, knowledge.ErrNotFound)
}

func TestListOutcomePoints_NewestFirst(t *testing.T) {
	store := newTestKnowledgeStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, id := range []string{"dec-1", "dec-2", "dec-3"} {
		d := testDecision(id, "alice")
		require.NoError(t, store.InsertDecision(ctx, d))
		require.NoError(t, store.InsertOutcome(ctx, &knowledge.Outcome{
			DecisionID: id,
			MeasuredAt: now.Add(time.Duration(-i) * time.Hour),
			Success:    i != 1,
		}))
	}

	points, err := store.ListOutcomePoints(ctx, "alice", "create_maintenance_job", autonomy.CategoryMaintenance, 10)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.True(t, points[0].Success)
	assert.False(t, points[1].Success)
	assert.True(t, points[0].MeasuredAt.After(points[1].MeasuredAt))
}
