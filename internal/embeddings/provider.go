package embeddings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/steward/internal/vectorstore"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider is the interface for embedding providers.
type Provider interface {
	vectorstore.Embedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is the provider type: "tei", "openai", or "fastembed".
	Provider string
	// Model is the embedding model name.
	Model string
	// BaseURL is the API base URL (TEI and openai providers).
	BaseURL string
	// APIKey authenticates against OpenAI-compatible APIs. Optional for TEI.
	APIKey string
	// Dimension is the expected embedding dimension. When non-zero the
	// factory rejects providers whose model produces a different size.
	Dimension int
	// Timeout bounds individual embedding requests (HTTP providers).
	Timeout time.Duration
	// CacheDir is the model cache directory (fastembed only).
	CacheDir string
}

// detectDimensionFromModel returns the embedding dimension for a model name.
// Falls back to 384 if the model is unknown.
func detectDimensionFromModel(model string) int {
	if dim, ok := fastEmbedModelDimension(model); ok {
		return dim
	}
	switch model {
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "text-embedding-3-large":
		return 3072
	}
	// Common model dimension patterns.
	switch {
	case strings.Contains(model, "base"):
		return 768
	case strings.Contains(model, "large"):
		return 1024
	case strings.Contains(model, "small"), strings.Contains(model, "mini"):
		return 384
	default:
		return 384 // safe default for bge-small
	}
}

// NewProvider creates an embedding provider based on the configuration.
//
// When cfg.Dimension is set, the provider's model dimension must match it;
// a mismatch is a startup error so bad vectors never reach the index.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	var provider Provider
	var err error

	switch cfg.Provider {
	case "tei", "":
		provider, err = NewTEIProvider(TEIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
	case "openai":
		provider, err = NewOpenAIProvider(OpenAIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		})
	case "fastembed":
		provider, err = NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Dimension > 0 && provider.Dimension() != cfg.Dimension {
		_ = provider.Close()
		return nil, fmt.Errorf("%w: model %q produces %d-dim vectors, configured dimension is %d",
			ErrInvalidConfig, cfg.Model, provider.Dimension(), cfg.Dimension)
	}

	return provider, nil
}
