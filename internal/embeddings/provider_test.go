package embeddings_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/steward/internal/embeddings"
	"github.com/fyrsmithlabs/steward/internal/vectorstore"
)

func TestNewProvider_UnknownProvider(t *testing.T) {
	_, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: "cohere",
		Model:    "embed-english-v3.0",
	})
	assert.ErrorIs(t, err, embeddings.ErrInvalidConfig)
}

func TestNewProvider_TEIDefault(t *testing.T) {
	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: "tei",
		BaseURL:  "http://localhost:8080",
		Model:    "BAAI/bge-small-en-v1.5",
	})
	require.NoError(t, err)
	defer provider.Close()

	assert.Equal(t, 384, provider.Dimension())
}

func TestNewProvider_DimensionMismatchRejected(t *testing.T) {
	// bge-small produces 384-dim vectors; demanding 768 must fail at
	// construction, not at first write.
	_, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  "tei",
		BaseURL:   "http://localhost:8080",
		Model:     "BAAI/bge-small-en-v1.5",
		Dimension: 768,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, embeddings.ErrInvalidConfig)
}

func TestNewProvider_DimensionMatchAccepted(t *testing.T) {
	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  "tei",
		BaseURL:   "http://localhost:8080",
		Model:     "BAAI/bge-small-en-v1.5",
		Dimension: 384,
	})
	require.NoError(t, err)
	defer provider.Close()
}

func TestProviderSatisfiesEmbedder(t *testing.T) {
	provider, err := embeddings.NewTEIProvider(embeddings.TEIConfig{
		BaseURL: "http://localhost:8080",
		Model:   "BAAI/bge-small-en-v1.5",
	})
	require.NoError(t, err)

	var _ vectorstore.Embedder = provider
}
