package goldens_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
	"github.com/fyrsmithlabs/steward/internal/goldens"
	"github.com/fyrsmithlabs/steward/internal/vectorstore"
)

const testDims = 384

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

func newTestStore(t *testing.T) vectorstore.Store {
	t.Helper()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       t.TempDir(),
		VectorSize: testDims,
		Isolation:  vectorstore.NewPayloadIsolation(),
	}, hashEmbedder{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func writeGoldenFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

const sampleGoldens = `goldens:
  - id: rent-reminder-polite
    category: rent_collection
    title: Polite first reminder
    action: Send a friendly rent reminder noting the amount and due date, offering a payment plan discussion.
  - id: maintenance-urgent-plumber
    category: maintenance
    title: Urgent leak response
    action: For an active water leak, request an emergency plumber quote the same day and notify the owner.
`

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeGoldenFile(t, dir, "set.yaml", sampleGoldens)
	writeGoldenFile(t, dir, "notes.txt", "ignored")

	loaded, err := goldens.LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "maintenance-urgent-plumber", loaded[0].ID)
	assert.Equal(t, autonomy.CategoryRentCollection, loaded[1].Category)
}

func TestLoadDir_RejectsBadGoldens(t *testing.T) {
	t.Run("unknown category", func(t *testing.T) {
		dir := t.TempDir()
		writeGoldenFile(t, dir, "bad.yaml", "goldens:\n  - id: x\n    category: gardening\n    action: mow\n")
		_, err := goldens.LoadDir(dir)
		assert.ErrorIs(t, err, goldens.ErrInvalidGolden)
	})

	t.Run("missing action", func(t *testing.T) {
		dir := t.TempDir()
		writeGoldenFile(t, dir, "bad.yaml", "goldens:\n  - id: x\n    category: maintenance\n    action: \"  \"\n")
		_, err := goldens.LoadDir(dir)
		assert.ErrorIs(t, err, goldens.ErrInvalidGolden)
	})

	t.Run("duplicate id across files", func(t *testing.T) {
		dir := t.TempDir()
		writeGoldenFile(t, dir, "a.yaml", "goldens:\n  - id: dup\n    category: maintenance\n    action: one\n")
		writeGoldenFile(t, dir, "b.yaml", "goldens:\n  - id: dup\n    category: maintenance\n    action: two\n")
		_, err := goldens.LoadDir(dir)
		assert.ErrorIs(t, err, goldens.ErrInvalidGolden)
	})
}

func TestIndex_MaxSimilarity(t *testing.T) {
	dir := t.TempDir()
	writeGoldenFile(t, dir, "set.yaml", sampleGoldens)

	idx, err := goldens.NewIndex(context.Background(), dir, newTestStore(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	assert.Equal(t, 2, idx.Count())

	// Querying with the exact golden text lands on similarity ~1.
	vec := testVector("Send a friendly rent reminder noting the amount and due date, offering a payment plan discussion.")
	score, found, err := idx.MaxSimilarity(context.Background(), autonomy.CategoryRentCollection, vec)
	require.NoError(t, err)
	assert.True(t, found)
	assert.InDelta(t, 1.0, score, 0.01)

	// A category with no goldens reports found=false.
	_, found, err = idx.MaxSimilarity(context.Background(), autonomy.CategoryBonds, vec)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIndex_SyncRemovesDeletedGoldens(t *testing.T) {
	dir := t.TempDir()
	writeGoldenFile(t, dir, "set.yaml", sampleGoldens)

	idx, err := goldens.NewIndex(context.Background(), dir, newTestStore(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	writeGoldenFile(t, dir, "set.yaml", `goldens:
  - id: maintenance-urgent-plumber
    category: maintenance
    title: Urgent leak response
    action: For an active water leak, request an emergency plumber quote the same day and notify the owner.
`)
	require.NoError(t, idx.Sync(context.Background()))
	assert.Equal(t, 1, idx.Count())

	vec := testVector("Send a friendly rent reminder noting the amount and due date, offering a payment plan discussion.")
	_, found, err := idx.MaxSimilarity(context.Background(), autonomy.CategoryRentCollection, vec)
	require.NoError(t, err)
	assert.False(t, found, "deleted golden's category must stop matching")
}

func TestIndex_BadReloadKeepsLastGoodSet(t *testing.T) {
	dir := t.TempDir()
	writeGoldenFile(t, dir, "set.yaml", sampleGoldens)

	idx, err := goldens.NewIndex(context.Background(), dir, newTestStore(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	writeGoldenFile(t, dir, "set.yaml", "goldens:\n  - id: broken\n    category: nope\n    action: x\n")
	assert.Error(t, idx.Sync(context.Background()))
	assert.Equal(t, 2, idx.Count(), "failed reload must not clobber the index")
}

func TestIndex_WatchResyncs(t *testing.T) {
	dir := t.TempDir()
	writeGoldenFile(t, dir, "set.yaml", sampleGoldens)

	idx, err := goldens.NewIndex(context.Background(), dir, newTestStore(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	require.NoError(t, idx.Watch())

	writeGoldenFile(t, dir, "extra.yaml", `goldens:
  - id: listing-refresh
    category: listings
    title: Stale listing refresh
    action: Refresh photos and adjust the asking rent after three weeks without inquiries.
`)

	require.Eventually(t, func() bool {
		return idx.Count() == 3
	}, 5*time.Second, 50*time.Millisecond)
}
