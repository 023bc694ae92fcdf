package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/internal/vectorstore"
)

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("steward.knowledge")

// DefaultDimension is the embedding dimensionality enforced on writes when
// none is configured (bge-small class models).
const DefaultDimension = 384

// Sentinel errors for knowledge store operations.
var (
	// ErrNotFound is returned when a row does not exist for the user.
	ErrNotFound = errors.New("record not found")

	// ErrBadDimension is returned when an embedding's length does not
	// match the store's configured dimensionality.
	ErrBadDimension = errors.New("embedding dimension does not match store dimension")

	// ErrMissingEmbedding is returned when a write that mandates an
	// embedding arrives without one. No null-embedding row is ever stored
	// for rules, preferences, or corrections.
	ErrMissingEmbedding = errors.New("a non-empty embedding is required")

	// ErrFeedbackAlreadySet is returned on a second feedback write for
	// the same decision. Owner feedback never flips.
	ErrFeedbackAlreadySet = errors.New("owner feedback already recorded for this decision")

	// ErrTaskStatusConflict is returned when a task transition finds the
	// task in a different status than required.
	ErrTaskStatusConflict = errors.New("task is not in the required status")

	// ErrInvalidInput indicates missing or malformed arguments.
	ErrInvalidInput = errors.New("invalid input")
)

// Store is the knowledge layer over sqlite plus the derived vector index.
type Store struct {
	db     *DB
	index  vectorstore.Store
	dims   int
	logger *zap.Logger
}

// NewStore builds a Store. dimension <= 0 falls back to DefaultDimension.
func NewStore(db *DB, index vectorstore.Store, dimension int, logger *zap.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: db is required", ErrInvalidInput)
	}
	if index == nil {
		return nil, fmt.Errorf("%w: vector index is required", ErrInvalidInput)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Store{db: db, index: index, dims: dimension, logger: logger}, nil
}

// Dimension returns the embedding dimensionality enforced on writes.
func (s *Store) Dimension() int {
	return s.dims
}

// Health verifies the underlying database connection.
func (s *Store) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}

// checkEmbedding gates every write. Empty is allowed only where the model
// allows a vectorless row (decisions); anything non-empty must match the
// configured dimension exactly.
func (s *Store) checkEmbedding(vec []float32, required bool) error {
	if len(vec) == 0 {
		if required {
			return ErrMissingEmbedding
		}
		return nil
	}
	if len(vec) != s.dims {
		return fmt.Errorf("%w: got %d, want %d", ErrBadDimension, len(vec), s.dims)
	}
	return nil
}

// userCtx stamps the owning user onto the context for the vector index,
// which fails closed without one.
func (s *Store) userCtx(ctx context.Context, userID string) context.Context {
	return vectorstore.ContextWithUser(ctx, &vectorstore.UserInfo{UserID: userID})
}

// indexDocument mirrors one row into the vector index.
func (s *Store) indexDocument(ctx context.Context, userID, collection, id, content string, embedding []float32, metadata map[string]interface{}) error {
	_, err := s.index.AddDocuments(s.userCtx(ctx, userID), []vectorstore.Document{{
		ID:         id,
		Content:    content,
		Collection: collection,
		Embedding:  embedding,
		Metadata:   metadata,
	}})
	return err
}

// deleteFromIndex removes rows from the vector index, best effort. A miss
// here only leaves invisible orphans: search hits are always hydrated from
// sqlite, so ids without rows drop out.
func (s *Store) deleteFromIndex(ctx context.Context, userID, collection string, ids []string) {
	if len(ids) == 0 {
		return
	}
	if err := s.index.DeleteDocuments(s.userCtx(ctx, userID), collection, ids); err != nil {
		s.logger.Warn("vector index delete failed",
			zap.String("collection", collection),
			zap.Int("ids", len(ids)),
			zap.Error(err),
		)
	}
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}
