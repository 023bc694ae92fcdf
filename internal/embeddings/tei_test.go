package embeddings_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/steward/internal/embeddings"
)

func newTEIServer(t *testing.T, vectors [][]float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req struct {
			Inputs   interface{} `json:"inputs"`
			Truncate bool        `json:"truncate"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Truncate)

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(vectors))
	}))
}

func TestTEIProvider_EmbedDocuments(t *testing.T) {
	want := [][]float32{{0.1, 0.2}, {0.3, 0.4}}
	srv := newTEIServer(t, want)
	defer srv.Close()

	provider, err := embeddings.NewTEIProvider(embeddings.TEIConfig{
		BaseURL: srv.URL,
		Model:   "BAAI/bge-small-en-v1.5",
	})
	require.NoError(t, err)

	got, err := provider.EmbedDocuments(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTEIProvider_EmbedQuery(t *testing.T) {
	srv := newTEIServer(t, [][]float32{{0.5, 0.6}})
	defer srv.Close()

	provider, err := embeddings.NewTEIProvider(embeddings.TEIConfig{
		BaseURL: srv.URL,
		Model:   "BAAI/bge-small-en-v1.5",
	})
	require.NoError(t, err)

	got, err := provider.EmbedQuery(context.Background(), "query text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.6}, got)
}

func TestTEIProvider_EmptyInput(t *testing.T) {
	provider, err := embeddings.NewTEIProvider(embeddings.TEIConfig{
		BaseURL: "http://localhost:1",
		Model:   "BAAI/bge-small-en-v1.5",
	})
	require.NoError(t, err)

	_, err = provider.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, embeddings.ErrEmptyInput)

	_, err = provider.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, embeddings.ErrEmptyInput)
}

func TestTEIProvider_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	provider, err := embeddings.NewTEIProvider(embeddings.TEIConfig{
		BaseURL: srv.URL,
		Model:   "BAAI/bge-small-en-v1.5",
	})
	require.NoError(t, err)

	_, err = provider.EmbedQuery(context.Background(), "query")
	assert.ErrorIs(t, err, embeddings.ErrEmbeddingFailed)
}

func TestTEIProvider_RequiresBaseURL(t *testing.T) {
	_, err := embeddings.NewTEIProvider(embeddings.TEIConfig{Model: "BAAI/bge-small-en-v1.5"})
	assert.ErrorIs(t, err, embeddings.ErrInvalidConfig)
}

func TestTEIProvider_Dimension(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"BAAI/bge-small-en-v1.5", 384},
		{"BAAI/bge-base-en-v1.5", 768},
		{"sentence-transformers/all-MiniLM-L6-v2", 384},
		{"some-large-model", 1024},
		{"totally-unknown", 384},
	}

	for _, tt := range tests {
		provider, err := embeddings.NewTEIProvider(embeddings.TEIConfig{
			BaseURL: "http://localhost:8080",
			Model:   tt.model,
		})
		require.NoError(t, err)
		assert.Equal(t, tt.want, provider.Dimension(), "model %s", tt.model)
	}
}
