package vectorstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/steward/internal/vectorstore"
)

func TestPayloadIsolation_InjectFilter(t *testing.T) {
	iso := vectorstore.NewPayloadIsolation()
	ctx := vectorstore.ContextWithUser(context.Background(), &vectorstore.UserInfo{UserID: "user-1"})

	filters, err := iso.InjectFilter(ctx, map[string]interface{}{"kind": "rule"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", filters["user_id"])
	assert.Equal(t, "rule", filters["kind"])
}

func TestPayloadIsolation_InjectFilterMissingUser(t *testing.T) {
	iso := vectorstore.NewPayloadIsolation()

	_, err := iso.InjectFilter(context.Background(), nil)
	assert.ErrorIs(t, err, vectorstore.ErrMissingUser)
}

func TestPayloadIsolation_InjectFilterRejectsSpoofedUser(t *testing.T) {
	iso := vectorstore.NewPayloadIsolation()
	ctx := vectorstore.ContextWithUser(context.Background(), &vectorstore.UserInfo{UserID: "user-1"})

	_, err := iso.InjectFilter(ctx, map[string]interface{}{"user_id": "user-2"})
	assert.ErrorIs(t, err, vectorstore.ErrUserFilterReserved)
}

func TestPayloadIsolation_InjectMetadataOverwrites(t *testing.T) {
	iso := vectorstore.NewPayloadIsolation()
	ctx := vectorstore.ContextWithUser(context.Background(), &vectorstore.UserInfo{UserID: "user-1"})

	docs := []vectorstore.Document{
		{ID: "a", Content: "x", Metadata: map[string]interface{}{"user_id": "user-evil"}},
		{ID: "b", Content: "y"},
	}

	require.NoError(t, iso.InjectMetadata(ctx, docs))
	assert.Equal(t, "user-1", docs[0].Metadata["user_id"], "context user must win over caller metadata")
	assert.Equal(t, "user-1", docs[1].Metadata["user_id"])
}

func TestPayloadIsolation_InvalidUser(t *testing.T) {
	iso := vectorstore.NewPayloadIsolation()
	ctx := vectorstore.ContextWithUser(context.Background(), &vectorstore.UserInfo{UserID: ""})

	err := iso.ValidateUser(ctx)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidUser)
}

func TestNoIsolation_PassesThrough(t *testing.T) {
	iso := vectorstore.NewNoIsolation()

	filters, err := iso.InjectFilter(context.Background(), map[string]interface{}{"kind": "rule"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"kind": "rule"}, filters)
	assert.NoError(t, iso.ValidateUser(context.Background()))
}

func TestIsolationModeFromString(t *testing.T) {
	tests := []struct {
		in       string
		wantMode string
		wantErr  bool
	}{
		{"payload", "payload", false},
		{"", "payload", false},
		{"none", "none", false},
		{"filesystem", "", true},
	}

	for _, tt := range tests {
		mode, err := vectorstore.IsolationModeFromString(tt.in)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.wantMode, mode.Mode())
	}
}

func TestUserFromContext(t *testing.T) {
	_, err := vectorstore.UserFromContext(context.Background())
	assert.ErrorIs(t, err, vectorstore.ErrMissingUser)

	ctx := vectorstore.ContextWithUser(context.Background(), &vectorstore.UserInfo{UserID: "user-9"})
	user, err := vectorstore.UserFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-9", user.UserID)
	assert.True(t, vectorstore.HasUser(ctx))
	assert.False(t, vectorstore.HasUser(context.Background()))
}
