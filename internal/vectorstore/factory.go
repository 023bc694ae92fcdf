package vectorstore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/internal/config"
)

// StoreOption configures a Store before it is returned by NewStore.
type StoreOption func(cfg *storeOptions)

type storeOptions struct {
	isolation IsolationMode
}

// WithIsolation overrides the isolation mode.
// Use NewNoIsolation() for testing only; production stores default to
// payload isolation.
func WithIsolation(mode IsolationMode) StoreOption {
	return func(cfg *storeOptions) {
		cfg.isolation = mode
	}
}

// NewStore creates a Store based on the configuration.
//
// Providers:
//   - "embedded" (default): chromem-go, persisted locally, no external deps
//   - "qdrant": external Qdrant server over gRPC
//
// All stores default to payload isolation; operations require a user in
// context (see ContextWithUser) or fail with ErrMissingUser.
func NewStore(cfg *config.Config, embedder Embedder, logger *zap.Logger, opts ...StoreOption) (Store, error) {
	var so storeOptions
	for _, opt := range opts {
		opt(&so)
	}

	switch cfg.VectorStore.Provider {
	case "embedded", "":
		chromemCfg := ChromemConfig{
			Path:       cfg.VectorStore.Path,
			Compress:   cfg.VectorStore.Compress,
			VectorSize: cfg.Embeddings.Dimension,
			Isolation:  so.isolation,
		}
		return NewChromemStore(chromemCfg, embedder, logger)

	case "qdrant":
		qdrantCfg := QdrantConfig{
			Host:       cfg.VectorStore.Qdrant.Host,
			Port:       cfg.VectorStore.Qdrant.Port,
			UseTLS:     cfg.VectorStore.Qdrant.UseTLS,
			VectorSize: uint64(cfg.Embeddings.Dimension),
			// The default collection is only a fallback; knowledge
			// collections are created explicitly at startup.
			CollectionName: CollectionMemories,
			Isolation:      so.isolation,
		}
		return NewQdrantStore(qdrantCfg, embedder)

	default:
		return nil, fmt.Errorf("unsupported vectorstore provider: %s (supported: embedded, qdrant)", cfg.VectorStore.Provider)
	}
}
