package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
	"github.com/fyrsmithlabs/steward/internal/confidence"
)

func noopRun(ctx context.Context, userID string, args map[string]interface{}) (string, error) {
	return "ok", nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Tool{
		Name:     "send_rent_reminder",
		Kind:     KindExternal,
		Category: autonomy.CategoryRentCollection,
		Run:      noopRun,
	}))

	tool, err := r.Get("send_rent_reminder")
	require.NoError(t, err)
	assert.Equal(t, KindExternal, tool.Kind)
	assert.Equal(t, confidence.SourceLive, tool.Source, "source defaults to live")

	_, err = r.Get("no_such_tool")
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestRegistryEnforcesExemptFlag(t *testing.T) {
	r := NewRegistry()

	err := r.Register(&Tool{Name: "sneaky_query", Kind: KindQuery, Exempt: false, Run: noopRun})
	assert.ErrorIs(t, err, ErrExemptMismatch)

	err = r.Register(&Tool{
		Name:     "sneaky_action",
		Kind:     KindAction,
		Category: autonomy.CategoryGeneral,
		Exempt:   true,
		Run:      noopRun,
	})
	assert.ErrorIs(t, err, ErrExemptMismatch)
}

func TestRegistryScoredToolNeedsCategory(t *testing.T) {
	r := NewRegistry()
	err := r.Register(&Tool{Name: "uncategorized", Kind: KindAction, Run: noopRun})
	assert.ErrorIs(t, err, ErrInvalidTool)

	err = r.Register(&Tool{
		Name:     "bad_category",
		Kind:     KindAction,
		Category: autonomy.Category("astrology"),
		Run:      noopRun,
	})
	assert.ErrorIs(t, err, ErrInvalidTool)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	tool := Tool{Name: "list_rent_arrears", Kind: KindQuery, Exempt: true, Run: noopRun}
	require.NoError(t, r.Register(&tool))

	dup := tool
	err := r.Register(&dup)
	assert.ErrorIs(t, err, ErrInvalidTool)
}

func TestRegistrySpecsStableAndSchemaDefaulted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Tool{Name: "zeta", Kind: KindQuery, Exempt: true, Run: noopRun}))
	require.NoError(t, r.Register(&Tool{Name: "alpha", Kind: KindMemory, Exempt: true, Run: noopRun}))

	specs := r.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "alpha", specs[0].Name)
	assert.Equal(t, "zeta", specs[1].Name)
	assert.Equal(t, map[string]interface{}{"type": "object"}, specs[0].Parameters)
}

func TestExemptKind(t *testing.T) {
	assert.True(t, ExemptKind(KindQuery))
	assert.True(t, ExemptKind(KindMemory))
	assert.False(t, ExemptKind(KindAction))
	assert.False(t, ExemptKind(KindGenerate))
	assert.False(t, ExemptKind(KindExternal))
	assert.False(t, ExemptKind(KindIntegration))
}
