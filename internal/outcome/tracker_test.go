package outcome_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
	"github.com/fyrsmithlabs/steward/internal/knowledge"
	"github.com/fyrsmithlabs/steward/internal/outcome"
	"github.com/fyrsmithlabs/steward/internal/portfolio"
	"github.com/fyrsmithlabs/steward/internal/vectorstore"
)

const (
	testDims = 384
	owner    = "owner-1"
)

func testVector(text string) []float32 {
	vec := make([]float32, testDims)
	hash := 0
	for _, c := range text {
		hash = (hash*31 + int(c)) % 1000
	}
	var sumSq float32
	for i := range vec {
		vec[i] = float32((hash+i)%100) / 100.0
		sumSq += vec[i] * vec[i]
	}
	if sumSq > 0 {
		norm := float32(1.0) / sqrt32(sumSq)
		for i := range vec {
			vec[i] *= norm
		}
	}
	return vec
}

func sqrt32(x float32) float32 {
	if x <= 0 {
		return 0
	}
	z := x / 2
	for i := 0; i < 10; i++ {
		z = (z + x/z) / 2
	}
	return z
}

type hashEmbedder struct{}

func (hashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = testVector(t)
	}
	return out, nil
}

func (hashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return testVector(text), nil
}

func newTestStore(t *testing.T) *knowledge.Store {
	t.Helper()

	db, err := knowledge.OpenDB(filepath.Join(t.TempDir(), "knowledge.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	index, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       t.TempDir(),
		VectorSize: testDims,
		Isolation:  vectorstore.NewPayloadIsolation(),
	}, hashEmbedder{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	store, err := knowledge.NewStore(db, index, testDims, zap.NewNop())
	require.NoError(t, err)
	return store
}

func newTracker(t *testing.T, store *knowledge.Store, fix *portfolio.Fixture) *outcome.Tracker {
	t.Helper()
	tr, err := outcome.NewTracker(store, fix, outcome.Config{}, zap.NewNop())
	require.NoError(t, err)
	return tr
}

// seedDecision inserts a decision at the given age with a linked task
// carrying the probe arguments.
func seedDecision(t *testing.T, store *knowledge.Store, category autonomy.Category, toolName string, args map[string]interface{}, age time.Duration) string {
	t.Helper()
	ctx := context.Background()

	decisionID := uuid.NewString()
	err := store.InsertDecision(ctx, &knowledge.Decision{
		ID:           decisionID,
		UserID:       owner,
		ToolName:     toolName,
		Category:     category,
		InputSummary: "heartbeat finding",
		Disposition:  autonomy.DispositionAutoNotice,
		CreatedAt:    time.Now().UTC().Add(-age),
	})
	require.NoError(t, err)

	if args != nil {
		_, err = store.CreateTask(ctx, &knowledge.Task{
			UserID:         owner,
			Category:       category,
			Title:          "probe target",
			Recommendation: "seeded for outcome measurement",
			Status:         knowledge.TaskStatusExecuted,
			IdempotencyKey: uuid.NewString(),
			ToolName:       toolName,
			ToolArgs:       args,
			DecisionID:     decisionID,
		})
		require.NoError(t, err)
	}
	return decisionID
}

func TestMeasurePrefersOwnerFeedback(t *testing.T) {
	store := newTestStore(t)
	fix := portfolio.NewFixture()
	tr := newTracker(t, store, fix)
	ctx := context.Background()

	approved := seedDecision(t, store, autonomy.CategoryGeneral, "notify_owner", nil, 4*24*time.Hour)
	rejected := seedDecision(t, store, autonomy.CategoryGeneral, "notify_owner", nil, 4*24*time.Hour)
	require.NoError(t, store.SetDecisionFeedback(ctx, owner, approved, knowledge.FeedbackApproved))
	require.NoError(t, store.SetDecisionFeedback(ctx, owner, rejected, knowledge.FeedbackRejected))

	measured, skipped, err := tr.MeasureOutcomes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, measured)
	assert.Equal(t, 0, skipped)

	good, err := store.GetOutcome(ctx, approved)
	require.NoError(t, err)
	assert.True(t, good.Success)
	assert.Equal(t, "owner feedback", good.Detail)

	bad, err := store.GetOutcome(ctx, rejected)
	require.NoError(t, err)
	assert.False(t, bad.Success)
}

func TestMeasureArrearsProbe(t *testing.T) {
	store := newTestStore(t)
	fix := portfolio.NewFixture()
	fix.AddArrears(portfolio.Arrears{
		TenancyID: "ten-1", UserID: owner, PropertyID: "prop-1",
		TenantName: "J. Chen", AmountOwed: 900, OverdueDays: 9,
	})
	tr := newTracker(t, store, fix)
	ctx := context.Background()

	id := seedDecision(t, store, autonomy.CategoryRentCollection, "send_rent_reminder",
		map[string]interface{}{"tenancy_id": "ten-1"}, 4*24*time.Hour)

	// Tenant has not paid yet: nothing to measure.
	measured, skipped, err := tr.MeasureOutcomes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, measured)
	assert.Equal(t, 1, skipped)

	_, err = store.GetOutcome(ctx, id)
	assert.ErrorIs(t, err, knowledge.ErrNotFound)

	// Rent comes in: the next run measures success.
	fix.ClearArrears(owner, "ten-1")
	measured, _, err = tr.MeasureOutcomes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, measured)

	o, err := store.GetOutcome(ctx, id)
	require.NoError(t, err)
	assert.True(t, o.Success)
	assert.Equal(t, "arrears cleared", o.Detail)
}

func TestMeasureMaintenanceProbe(t *testing.T) {
	store := newTestStore(t)
	fix := portfolio.NewFixture()
	fix.AddMaintenanceRequest(portfolio.MaintenanceRequest{
		ID: "mr-1", UserID: owner, PropertyID: "prop-1",
		Issue: "Leaking roof", Status: "open",
		OpenedAt: time.Now().Add(-12 * 24 * time.Hour),
	})
	tr := newTracker(t, store, fix)
	ctx := context.Background()

	id := seedDecision(t, store, autonomy.CategoryMaintenance, "request_trade_quote",
		map[string]interface{}{"request_id": "mr-1"}, 4*24*time.Hour)

	measured, skipped, err := tr.MeasureOutcomes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, measured)
	assert.Equal(t, 1, skipped)

	fix.AssignTrade(owner, "mr-1", "trade-9")
	measured, _, err = tr.MeasureOutcomes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, measured)

	o, err := store.GetOutcome(ctx, id)
	require.NoError(t, err)
	assert.True(t, o.Success)
	assert.Equal(t, "trade engaged", o.Detail)
}

func TestMeasureClosedRequestCountsAsSuccess(t *testing.T) {
	store := newTestStore(t)
	fix := portfolio.NewFixture()
	tr := newTracker(t, store, fix)
	ctx := context.Background()

	// The request is absent from the open set entirely.
	id := seedDecision(t, store, autonomy.CategoryMaintenance, "request_trade_quote",
		map[string]interface{}{"request_id": "mr-gone"}, 4*24*time.Hour)

	measured, _, err := tr.MeasureOutcomes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, measured)

	o, err := store.GetOutcome(ctx, id)
	require.NoError(t, err)
	assert.True(t, o.Success)
	assert.Equal(t, "request closed", o.Detail)
}

func TestMeasureLeaseProbe(t *testing.T) {
	store := newTestStore(t)
	fix := portfolio.NewFixture()
	fix.AddLease(portfolio.Lease{
		ID: "lease-1", UserID: owner, PropertyID: "prop-1",
		EndDate: time.Now().Add(40 * 24 * time.Hour),
	})
	tr := newTracker(t, store, fix)
	ctx := context.Background()

	id := seedDecision(t, store, autonomy.CategoryLeaseManagement, "draft_lease_renewal",
		map[string]interface{}{"lease_id": "lease-1"}, 4*24*time.Hour)

	measured, skipped, err := tr.MeasureOutcomes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, measured)
	assert.Equal(t, 1, skipped)

	fix.StartRenewal(owner, "lease-1")
	measured, _, err = tr.MeasureOutcomes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, measured)

	o, err := store.GetOutcome(ctx, id)
	require.NoError(t, err)
	assert.True(t, o.Success)
	assert.Equal(t, "renewal in progress", o.Detail)
}

func TestMeasureUnmeasurableCategorySkips(t *testing.T) {
	store := newTestStore(t)
	fix := portfolio.NewFixture()
	tr := newTracker(t, store, fix)
	ctx := context.Background()

	id := seedDecision(t, store, autonomy.CategoryCompliance, "book_compliance_check",
		map[string]interface{}{"certificate_id": "cert-1"}, 4*24*time.Hour)

	measured, skipped, err := tr.MeasureOutcomes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, measured)
	assert.Equal(t, 1, skipped)

	_, err = store.GetOutcome(ctx, id)
	assert.ErrorIs(t, err, knowledge.ErrNotFound)
}

func TestMeasureRespectsGraceAndMaxAge(t *testing.T) {
	store := newTestStore(t)
	fix := portfolio.NewFixture()
	tr := newTracker(t, store, fix)
	ctx := context.Background()

	// Too fresh to measure, and too old to bother: neither is visited.
	fresh := seedDecision(t, store, autonomy.CategoryMaintenance, "request_trade_quote",
		map[string]interface{}{"request_id": "mr-a"}, time.Hour)
	ancient := seedDecision(t, store, autonomy.CategoryMaintenance, "request_trade_quote",
		map[string]interface{}{"request_id": "mr-b"}, 45*24*time.Hour)

	measured, skipped, err := tr.MeasureOutcomes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, measured)
	assert.Equal(t, 0, skipped)

	for _, id := range []string{fresh, ancient} {
		_, err = store.GetOutcome(ctx, id)
		assert.ErrorIs(t, err, knowledge.ErrNotFound)
	}
}

func TestDecayRules(t *testing.T) {
	store := newTestStore(t)
	fix := portfolio.NewFixture()
	tr := newTracker(t, store, fix)
	ctx := context.Background()

	stale := &knowledge.Rule{
		ID:               uuid.NewString(),
		UserID:           owner,
		RuleText:         "unit 4B prefers SMS over email",
		Embedding:        testVector("unit 4B prefers SMS over email"),
		Confidence:       0.6,
		LastReinforcedAt: time.Now().UTC().AddDate(0, 0, -60),
	}
	require.NoError(t, store.InsertRule(ctx, stale))

	fresh := &knowledge.Rule{
		ID:         uuid.NewString(),
		UserID:     owner,
		RuleText:   "the owner reviews quotes above five hundred dollars",
		Embedding:  testVector("the owner reviews quotes above five hundred dollars"),
		Confidence: 0.6,
	}
	require.NoError(t, store.InsertRule(ctx, fresh))

	require.NoError(t, tr.DecayRules(ctx))

	decayed, err := store.GetRule(ctx, owner, stale.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, decayed.Confidence, 1e-9)

	kept, err := store.GetRule(ctx, owner, fresh.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, kept.Confidence, 1e-9, "recently reinforced rules do not decay")
}

func TestCleanupPrunesOldCorrections(t *testing.T) {
	store := newTestStore(t)
	fix := portfolio.NewFixture()
	tr := newTracker(t, store, fix)
	ctx := context.Background()

	old := &knowledge.Correction{
		ID:             uuid.NewString(),
		UserID:         owner,
		OriginalAction: "scheduled inspection on a public holiday",
		CorrectionText: "never schedule inspections on public holidays",
		Embedding:      testVector("never schedule inspections on public holidays"),
		CreatedAt:      time.Now().UTC().AddDate(-2, 0, 0),
	}
	require.NoError(t, store.InsertCorrection(ctx, old))

	recent := &knowledge.Correction{
		ID:             uuid.NewString(),
		UserID:         owner,
		OriginalAction: "quoted the wrong plumber",
		CorrectionText: "use the plumber from the approved trades list",
		Embedding:      testVector("use the plumber from the approved trades list"),
	}
	require.NoError(t, store.InsertCorrection(ctx, recent))

	require.NoError(t, tr.Cleanup(ctx))

	got, err := store.GetCorrectionsByIDs(ctx, owner, []string{old.ID, recent.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, recent.ID, got[0].ID)
}

func TestJobsOrder(t *testing.T) {
	store := newTestStore(t)
	tr := newTracker(t, store, portfolio.NewFixture())

	jobs := tr.Jobs()
	require.Len(t, jobs, 3)
	assert.Equal(t, "outcome-measure", jobs[0].Name)
	assert.Equal(t, "rule-decay", jobs[1].Name)
	assert.Equal(t, "retention-cleanup", jobs[2].Name)
	for _, j := range jobs {
		require.NotNil(t, j.Run)
	}
}
