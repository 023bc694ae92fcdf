package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists is returned when attempting to create an existing collection.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to Qdrant")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrDimensionMismatch is returned when a vector's dimension does not
	// match the configured index dimension. Enforced on every write.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Embedder generates vector embeddings from text.
//
// Implementations can use a local model (fastembed), a TEI server, or any
// OpenAI-compatible API. Queries and documents may embed differently; BGE
// models prefix them distinctly.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Document is a text to index, keyed by the id of the knowledge row it
// mirrors.
type Document struct {
	// ID is the unique identifier, shared with the knowledge store row.
	ID string

	// Content is the text to embed and index.
	Content string

	// Metadata contains key-value pairs for filtering.
	// Common fields: kind, category, user_id (injected by isolation).
	Metadata map[string]interface{}

	// Collection is the target collection name for this document.
	// If empty, the store's default collection is used.
	Collection string

	// Embedding is an optional precomputed vector. When empty the store
	// embeds Content itself. Either way the dimension is validated
	// against the configured index dimension before the write.
	Embedding []float32
}

// SearchResult is a similarity hit.
type SearchResult struct {
	// ID is the document identifier.
	ID string

	// Content is the indexed text.
	Content string

	// Score is the similarity score (higher = more similar).
	Score float32

	// Metadata contains the document metadata.
	Metadata map[string]interface{}
}

// CollectionInfo contains metadata about a vector collection.
type CollectionInfo struct {
	// Name is the collection name.
	Name string `json:"name"`

	// PointCount is the number of vectors in the collection.
	PointCount int `json:"point_count"`

	// VectorSize is the dimensionality of vectors in this collection.
	VectorSize int `json:"vector_size"`
}

// Store is the interface for similarity index operations.
//
// Implementations must enforce the configured isolation mode: with payload
// isolation (the default) every write stamps the user id into metadata and
// every search filters by it, failing closed with ErrMissingUser when the
// context carries no user.
//
// Implementations:
//   - ChromemStore: embedded chromem-go (default)
//   - QdrantStore: external Qdrant gRPC client
type Store interface {
	// AddDocuments embeds (if needed) and indexes documents.
	//
	// All documents in one call must target the same collection. Vector
	// dimensions are validated against the configured index dimension;
	// a mismatch fails the whole batch with ErrDimensionMismatch.
	//
	// Returns the ids of the indexed documents.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Search performs similarity search in a collection.
	//
	// Returns up to k results ordered by similarity score (highest
	// first). Filters match document metadata exactly; the user filter
	// is injected on top per the isolation mode.
	Search(ctx context.Context, collection, query string, k int, filters map[string]interface{}) ([]SearchResult, error)

	// SearchVector is Search with a precomputed query vector, so callers
	// that already hold an embedding do not pay for a second embedding
	// round trip. The vector dimension is validated against the index.
	SearchVector(ctx context.Context, collection string, vector []float32, k int, filters map[string]interface{}) ([]SearchResult, error)

	// DeleteDocuments deletes documents by id from a collection.
	DeleteDocuments(ctx context.Context, collection string, ids []string) error

	// EnsureCollection creates a collection if it does not exist.
	// Idempotent; safe to call on every startup.
	EnsureCollection(ctx context.Context, collection string) error

	// ListCollections returns all collection names.
	ListCollections(ctx context.Context) ([]string, error)

	// GetCollectionInfo returns point count and vector size for a
	// collection, or ErrCollectionNotFound.
	GetCollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error)

	// IsolationMode returns the store's isolation mode.
	IsolationMode() IsolationMode

	// Close releases resources held by the store.
	Close() error
}
