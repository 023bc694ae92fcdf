package autonomy

// Preset names a pre-built autonomy level vector. Named presets keep all
// categories in lockstep; only PresetCustom allows independent per-category
// levels.
type Preset string

const (
	// PresetCautious keeps every category at suggest-only.
	PresetCautious Preset = "cautious"

	// PresetBalanced drafts routine work, suggests sensitive work.
	PresetBalanced Preset = "balanced"

	// PresetHandsOff auto-executes routine work with notice and drafts
	// sensitive work. Compliance never rises above suggest.
	PresetHandsOff Preset = "hands_off"

	// PresetCustom carries an explicit per-category vector.
	PresetCustom Preset = "custom"
)

// ValidPresets maps valid preset strings to their typed values.
var ValidPresets = map[string]Preset{
	"cautious":  PresetCautious,
	"balanced":  PresetBalanced,
	"hands_off": PresetHandsOff,
	"custom":    PresetCustom,
}

// IsValidPreset returns true if the string is a recognized preset.
func IsValidPreset(s string) bool {
	_, ok := ValidPresets[s]
	return ok
}

// presetVectors holds the level assignment each named preset expands to.
// PresetCustom starts from the balanced vector and diverges from there.
var presetVectors = map[Preset]map[Category]Level{
	PresetCautious: {
		CategoryMaintenance:     LevelSuggest,
		CategoryTenantFinding:   LevelSuggest,
		CategoryLeaseManagement: LevelSuggest,
		CategoryRentCollection:  LevelSuggest,
		CategoryCompliance:      LevelSuggest,
		CategoryListings:        LevelSuggest,
		CategoryInspections:     LevelSuggest,
		CategoryInsurance:       LevelSuggest,
		CategoryBonds:           LevelSuggest,
		CategoryGeneral:         LevelSuggest,
	},
	PresetBalanced: {
		CategoryMaintenance:     LevelDraft,
		CategoryTenantFinding:   LevelSuggest,
		CategoryLeaseManagement: LevelSuggest,
		CategoryRentCollection:  LevelDraft,
		CategoryCompliance:      LevelSuggest,
		CategoryListings:        LevelDraft,
		CategoryInspections:     LevelDraft,
		CategoryInsurance:       LevelSuggest,
		CategoryBonds:           LevelSuggest,
		CategoryGeneral:         LevelDraft,
	},
	PresetHandsOff: {
		CategoryMaintenance:     LevelAutoNotice,
		CategoryTenantFinding:   LevelDraft,
		CategoryLeaseManagement: LevelDraft,
		CategoryRentCollection:  LevelAutoNotice,
		CategoryCompliance:      LevelSuggest,
		CategoryListings:        LevelAutoNotice,
		CategoryInspections:     LevelAutoNotice,
		CategoryInsurance:       LevelDraft,
		CategoryBonds:           LevelDraft,
		CategoryGeneral:         LevelAutoNotice,
	},
}

// PresetLevels returns a copy of the level vector for a named preset.
// PresetCustom (and anything unrecognized) yields the balanced vector as
// a starting point.
func PresetLevels(p Preset) map[Category]Level {
	src, ok := presetVectors[p]
	if !ok {
		src = presetVectors[PresetBalanced]
	}
	out := make(map[Category]Level, len(src))
	for c, l := range src {
		out[c] = l
	}
	return out
}

// defaultMinConfidence holds the per-category composite threshold below
// which the gate demotes the effective level. Sensitive categories carry
// higher floors.
var defaultMinConfidence = map[Category]float64{
	CategoryMaintenance:     0.65,
	CategoryTenantFinding:   0.70,
	CategoryLeaseManagement: 0.75,
	CategoryRentCollection:  0.70,
	CategoryCompliance:      0.80,
	CategoryListings:        0.65,
	CategoryInspections:     0.65,
	CategoryInsurance:       0.75,
	CategoryBonds:           0.80,
	CategoryGeneral:         0.60,
}

// DefaultMinConfidence returns a copy of the default per-category
// confidence thresholds.
func DefaultMinConfidence() map[Category]float64 {
	out := make(map[Category]float64, len(defaultMinConfidence))
	for c, v := range defaultMinConfidence {
		out[c] = v
	}
	return out
}
