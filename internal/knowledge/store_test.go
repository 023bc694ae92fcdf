package knowledge_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/internal/knowledge"
	"github.com/fyrsmithlabs/steward/internal/vectorstore"
)

const testDims = 384

// testVector returns a deterministic normalized vector for a text, so
// identical texts always land on the same point and different texts land
// apart. Mirrors the hash embedder used in the vectorstore tests.
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

// hashEmbedder satisfies vectorstore.Embedder for the index backing the
// test store. The knowledge layer always passes precomputed vectors, so
// this only runs if a test forgets one.
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

func newTestKnowledgeStore(t *testing.T) *knowledge.Store {
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

func TestNewStore_RequiresBackends(t *testing.T) {
	db, err := knowledge.OpenDB(filepath.Join(t.TempDir(), "knowledge.db"), zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	index, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       t.TempDir(),
		VectorSize: testDims,
	}, hashEmbedder{}, zap.NewNop())
	require.NoError(t, err)
	defer index.Close()

	_, err = knowledge.NewStore(nil, index, testDims, nil)
	assert.ErrorIs(t, err, knowledge.ErrInvalidInput)

	_, err = knowledge.NewStore(db, nil, testDims, nil)
	assert.ErrorIs(t, err, knowledge.ErrInvalidInput)

	store, err := knowledge.NewStore(db, index, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, knowledge.DefaultDimension, store.Dimension())
}

func TestStore_Health(t *testing.T) {
	store := newTestKnowledgeStore(t)
	assert.NoError(t, store.Health(context.Background()))
}
