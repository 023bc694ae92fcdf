package vectorstore

import (
	"context"
	"fmt"
)

// IsolationMode defines how user isolation is enforced in vector stores.
//
// Security: all implementations must enforce fail-closed behavior.
type IsolationMode interface {
	// InjectFilter adds user filtering to search filters.
	// Must fail with ErrMissingUser if user context is absent.
	InjectFilter(ctx context.Context, filters map[string]interface{}) (map[string]interface{}, error)

	// InjectMetadata adds user metadata to documents before storage.
	// Must fail with ErrMissingUser if user context is absent.
	InjectMetadata(ctx context.Context, docs []Document) error

	// ValidateUser checks that user context is present and valid.
	ValidateUser(ctx context.Context) error

	// Mode returns the isolation mode name for logging.
	Mode() string
}

// PayloadIsolation implements IsolationMode using metadata filtering.
//
// All documents share one collection per entity kind; user_id is stored as
// document metadata and every query is filtered by the user in context.
// Missing user context is an error, never an unfiltered query.
type PayloadIsolation struct{}

// NewPayloadIsolation creates a new PayloadIsolation mode.
func NewPayloadIsolation() *PayloadIsolation {
	return &PayloadIsolation{}
}

// InjectFilter adds the user filter to existing query filters.
func (p *PayloadIsolation) InjectFilter(ctx context.Context, filters map[string]interface{}) (map[string]interface{}, error) {
	user, err := UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	return ApplyUserFilter(filters, user.UserFilter())
}

// InjectMetadata adds user metadata to all documents.
func (p *PayloadIsolation) InjectMetadata(ctx context.Context, docs []Document) error {
	user, err := UserFromContext(ctx)
	if err != nil {
		return err
	}
	if err := user.Validate(); err != nil {
		return err
	}

	userMeta := user.UserMetadata()
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = make(map[string]interface{})
		}
		// Overwrites any caller-provided user_id for security.
		for k, v := range userMeta {
			docs[i].Metadata[k] = v
		}
	}
	return nil
}

// ValidateUser checks user context is present and valid.
func (p *PayloadIsolation) ValidateUser(ctx context.Context) error {
	user, err := UserFromContext(ctx)
	if err != nil {
		return err
	}
	return user.Validate()
}

// Mode returns "payload" for this isolation mode.
func (p *PayloadIsolation) Mode() string {
	return "payload"
}

// NoIsolation provides no user isolation - for testing only.
//
// WARNING: this mode provides no security guarantees.
type NoIsolation struct{}

// NewNoIsolation creates a new NoIsolation mode (testing only).
func NewNoIsolation() *NoIsolation {
	return &NoIsolation{}
}

// InjectFilter passes through filters unchanged.
func (n *NoIsolation) InjectFilter(ctx context.Context, filters map[string]interface{}) (map[string]interface{}, error) {
	return filters, nil
}

// InjectMetadata is a no-op.
func (n *NoIsolation) InjectMetadata(ctx context.Context, docs []Document) error {
	return nil
}

// ValidateUser always succeeds.
func (n *NoIsolation) ValidateUser(ctx context.Context) error {
	return nil
}

// Mode returns "none" for this isolation mode.
func (n *NoIsolation) Mode() string {
	return "none"
}

// Ensure implementations satisfy IsolationMode interface.
var (
	_ IsolationMode = (*PayloadIsolation)(nil)
	_ IsolationMode = (*NoIsolation)(nil)
)

// IsolationModeFromString creates an IsolationMode from a string name.
func IsolationModeFromString(mode string) (IsolationMode, error) {
	switch mode {
	case "payload", "":
		return NewPayloadIsolation(), nil
	case "none":
		return NewNoIsolation(), nil
	default:
		return nil, fmt.Errorf("unknown isolation mode: %s", mode)
	}
}
