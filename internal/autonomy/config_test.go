package autonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewConfig_ExpandsPreset verifies the preset expands to a full vector
// covering every category.
func TestNewConfig_ExpandsPreset(t *testing.T) {
	cfg := NewConfig("user-1", PresetBalanced)

	assert.Equal(t, PresetBalanced, cfg.Preset)
	assert.Len(t, cfg.Levels, len(Categories))
	for _, cat := range Categories {
		assert.True(t, cfg.Level(cat).Valid(), "category %s", cat)
	}
}

// TestNewConfig_UnknownPresetFallsBack verifies bad preset names land on
// balanced rather than failing.
func TestNewConfig_UnknownPresetFallsBack(t *testing.T) {
	cfg := NewConfig("user-1", Preset("yolo"))
	assert.Equal(t, PresetBalanced, cfg.Preset)
}

// TestSetLevel_FlipsToCustom verifies changing one category on a named
// preset switches the whole config to custom and preserves the rest.
func TestSetLevel_FlipsToCustom(t *testing.T) {
	cfg := NewConfig("user-1", PresetHandsOff)
	before := cfg.Level(CategoryListings)

	require.NoError(t, cfg.SetLevel(CategoryMaintenance, LevelSuggest))

	assert.Equal(t, PresetCustom, cfg.Preset)
	assert.Equal(t, LevelSuggest, cfg.Level(CategoryMaintenance))
	assert.Equal(t, before, cfg.Level(CategoryListings))
}

// TestSetLevel_RejectsInvalidInput verifies level and category validation.
func TestSetLevel_RejectsInvalidInput(t *testing.T) {
	cfg := NewConfig("user-1", PresetBalanced)

	assert.ErrorIs(t, cfg.SetLevel(CategoryMaintenance, Level(9)), ErrInvalidLevel)
	assert.ErrorIs(t, cfg.SetLevel(Category("gardening"), LevelSuggest), ErrInvalidCategory)
	assert.Equal(t, PresetBalanced, cfg.Preset, "failed set must not flip preset")
}

// TestApplyPreset_ReplacesVector verifies switching presets rewrites levels.
func TestApplyPreset_ReplacesVector(t *testing.T) {
	cfg := NewConfig("user-1", PresetCautious)
	require.NoError(t, cfg.ApplyPreset(PresetHandsOff))

	assert.Equal(t, PresetHandsOff, cfg.Preset)
	assert.Equal(t, LevelAutoNotice, cfg.Level(CategoryMaintenance))
	assert.Equal(t, LevelSuggest, cfg.Level(CategoryCompliance))

	assert.ErrorIs(t, cfg.ApplyPreset(Preset("nope")), ErrInvalidPreset)
}

// TestParseLevel_RoundTrip verifies storage names survive a round trip.
func TestParseLevel_RoundTrip(t *testing.T) {
	for _, l := range []Level{LevelDisabled, LevelSuggest, LevelDraft, LevelAutoNotice, LevelAutoSilent} {
		got, err := ParseLevel(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}

	_, err := ParseLevel("sleepy")
	assert.Error(t, err)
}
