package knowledge_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/steward/internal/knowledge"
)

func testRule(id, userID, text string) *knowledge.Rule {
	return &knowledge.Rule{
		ID:         id,
		UserID:     userID,
		RuleText:   text,
		Embedding:  testVector(text),
		Confidence: 0.5,
	}
}

func TestInsertRule_RequiresEmbedding(t *testing.T) {
	store := newTestKnowledgeStore(t)

	r := testRule("rule-1", "alice", "always use ace plumbing for unit 4")
	r.Embedding = nil
	err := store.InsertRule(context.Background(), r)
	assert.ErrorIs(t, err, knowledge.ErrMissingEmbedding)

	r.Embedding = []float32{0.5}
	err = store.InsertRule(context.Background(), r)
	assert.ErrorIs(t, err, knowledge.ErrBadDimension)
}

func TestInsertRule_Roundtrip(t *testing.T) {
	store := newTestKnowledgeStore(t)
	ctx := context.Background()

	r := testRule("rule-1", "alice", "always use ace plumbing for unit 4")
	require.NoError(t, store.InsertRule(ctx, r))

	got, err := store.GetRule(ctx, "alice", "rule-1")
	require.NoError(t, err)
	assert.Equal(t, "always use ace plumbing for unit 4", got.RuleText)
	assert.InDelta(t, 0.5, got.Confidence, 0.0001)
	assert.True(t, got.Active)
	assert.False(t, got.LastReinforcedAt.IsZero())
	assert.Len(t, got.Embedding, testDims)
}

func TestReinforceRule_CapsAtOne(t *testing.T) {
	store := newTestKnowledgeStore(t)
	ctx := context.Background()

	r := testRule("rule-1", "alice", "rent reminders go out on the 3rd")
	r.Confidence = 0.95
	require.NoError(t, store.InsertRule(ctx, r))

	got, err := store.ReinforceRule(ctx, "alice", "rule-1", 0.1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got.Confidence, 0.0001)

	// A second bump stays pinned at the ceiling.
	got, err = store.ReinforceRule(ctx, "alice", "rule-1", 0.1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got.Confidence, 0.0001)

	_, err = store.ReinforceRule(ctx, "alice", "missing", 0.1)
	assert.ErrorIs(t, err, knowledge.ErrNotFound)
}

func TestDecayStaleRules(t *testing.T) {
	store := newTestKnowledgeStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stale := testRule("rule-stale", "alice", "inspect smoke alarms quarterly")
	stale.LastReinforcedAt = now.Add(-40 * 24 * time.Hour)
	stale.CreatedAt = stale.LastReinforcedAt
	require.NoError(t, store.InsertRule(ctx, stale))

	fresh := testRule("rule-fresh", "alice", "water the garden weekly")
	require.NoError(t, store.InsertRule(ctx, fresh))

	n, err := store.DecayStaleRules(ctx, "alice", 30, 0.1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetRule(ctx, "alice", "rule-stale")
	require.NoError(t, err)
	assert.InDelta(t, 0.4, got.Confidence, 0.0001)
	assert.True(t, got.Active)

	got, err = store.GetRule(ctx, "alice", "rule-fresh")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got.Confidence, 0.0001, "fresh rule must not decay")

	// Survivors restart their staleness clock; an immediate second sweep
	// touches nothing.
	n, err = store.DecayStaleRules(ctx, "alice", 30, 0.1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDecayStaleRules_ZeroThreshold(t *testing.T) {
	store := newTestKnowledgeStore(t)
	ctx := context.Background()

	r := testRule("rule-1", "alice", "chase arrears after seven days")
	r.LastReinforcedAt = time.Now().UTC().Add(-24 * time.Hour)
	r.CreatedAt = r.LastReinforcedAt
	require.NoError(t, store.InsertRule(ctx, r))

	// Threshold zero means anything not reinforced right now is stale.
	n, err := store.DecayStaleRules(ctx, "alice", 0, 0.1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetRule(ctx, "alice", "rule-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.4, got.Confidence, 0.0001)
	assert.True(t, got.Active)
}

func TestDecayStaleRules_RejectsBadInput(t *testing.T) {
	store := newTestKnowledgeStore(t)
	ctx := context.Background()

	_, err := store.DecayStaleRules(ctx, "alice", -1, 0.1)
	assert.ErrorIs(t, err, knowledge.ErrInvalidInput)

	_, err = store.DecayStaleRules(ctx, "alice", 30, 0)
	assert.ErrorIs(t, err, knowledge.ErrInvalidInput)
}

func TestDecayStaleRules_DeactivatesAtZero(t *testing.T) {
	store := newTestKnowledgeStore(t)
	ctx := context.Background()
	staleClock := time.Now().UTC().Add(-400 * 24 * time.Hour)

	r := testRule("rule-dying", "alice", "the old gardener handles hedges")
	r.Confidence = 0.1
	r.LastReinforcedAt = staleClock
	r.CreatedAt = staleClock
	require.NoError(t, store.InsertRule(ctx, r))

	n, err := store.DecayStaleRules(ctx, "alice", 30, 0.1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetRule(ctx, "alice", "rule-dying")
	require.NoError(t, err)
	assert.Zero(t, got.Confidence)
	assert.False(t, got.Active, "rule at zero confidence is deactivated, not deleted")
	assert.WithinDuration(t, staleClock, got.LastReinforcedAt, time.Second,
		"deactivated rules keep their timestamp for retention accounting")

	// Inactive rules are immune to further decay and to reinforcement.
	n, err = store.DecayStaleRules(ctx, "alice", 30, 0.1)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = store.ReinforceRule(ctx, "alice", "rule-dying", 0.1)
	assert.ErrorIs(t, err, knowledge.ErrNotFound)
}

func TestListActiveRules_And_Users(t *testing.T) {
	store := newTestKnowledgeStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertRule(ctx, testRule("rule-a", "alice", "use ace plumbing")))
	require.NoError(t, store.InsertRule(ctx, testRule("rule-b", "bob", "bob prefers email")))

	rules, err := store.ListActiveRules(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "rule-a", rules[0].ID)

	users, err := store.ListRuleUsers(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, users)
}

func TestGetRulesByIDs_PreservesOrder(t *testing.T) {
	store := newTestKnowledgeStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertRule(ctx, testRule("rule-1", "alice", "first rule")))
	require.NoError(t, store.InsertRule(ctx, testRule("rule-2", "alice", "second rule")))
	require.NoError(t, store.InsertRule(ctx, testRule("rule-3", "alice", "third rule")))

	rules, err := store.GetRulesByIDs(ctx, "alice", []string{"rule-3", "missing", "rule-1"})
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "rule-3", rules[0].ID)
	assert.Equal(t, "rule-1", rules[1].ID)
}
