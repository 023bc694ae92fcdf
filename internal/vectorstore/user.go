package vectorstore

import (
	"context"
	"errors"
)

// User isolation error types - fail closed security model.
var (
	// ErrMissingUser is returned when user info is missing from context.
	// This triggers fail-closed behavior: no cross-user results, just errors.
	ErrMissingUser = errors.New("user info missing from context")

	// ErrInvalidUser is returned when the user identifier is invalid.
	ErrInvalidUser = errors.New("invalid user identifier")
)

// userContextKey is the context key for UserInfo.
type userContextKey struct{}

// UserInfo holds the owning user for filtering and isolation.
//
// Every knowledge entity belongs to exactly one user (a landlord or
// property manager account). All index reads and writes are scoped to
// that user.
type UserInfo struct {
	// UserID is the owning account identifier (required).
	UserID string
}

// Validate checks that required fields are present and valid.
func (u *UserInfo) Validate() error {
	if u.UserID == "" {
		return ErrInvalidUser
	}
	return nil
}

// ContextWithUser adds UserInfo to a context.
func ContextWithUser(ctx context.Context, user *UserInfo) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext extracts UserInfo from a context.
// Returns ErrMissingUser if not present - fail closed.
func UserFromContext(ctx context.Context) (*UserInfo, error) {
	val := ctx.Value(userContextKey{})
	if val == nil {
		return nil, ErrMissingUser
	}
	user, ok := val.(*UserInfo)
	if !ok || user == nil {
		return nil, ErrMissingUser
	}
	return user, nil
}

// HasUser checks if UserInfo is present in context without error.
func HasUser(ctx context.Context) bool {
	_, err := UserFromContext(ctx)
	return err == nil
}

// UserMetadata returns user info as a metadata map for document storage.
func (u *UserInfo) UserMetadata() map[string]interface{} {
	return map[string]interface{}{
		"user_id": u.UserID,
	}
}

// UserFilter returns filter conditions that match this user's scope.
func (u *UserInfo) UserFilter() map[string]interface{} {
	return map[string]interface{}{
		"user_id": u.UserID,
	}
}
