package autonomy

import (
	"errors"
	"time"
)

var (
	// ErrInvalidLevel indicates a level outside L0..L4.
	ErrInvalidLevel = errors.New("invalid autonomy level")

	// ErrInvalidPreset indicates an unrecognized preset name.
	ErrInvalidPreset = errors.New("invalid autonomy preset")

	// ErrInvalidCategory indicates an unrecognized domain category.
	ErrInvalidCategory = errors.New("invalid domain category")
)

// Config is one user's autonomy configuration: the active preset, the
// per-category level vector it expands to, and per-category minimum
// confidence thresholds. It is an explicit record loaded from storage and
// passed into the gate; nothing here is process-global.
type Config struct {
	UserID        string               `json:"user_id"`
	Preset        Preset               `json:"preset"`
	Levels        map[Category]Level   `json:"levels"`
	MinConfidence map[Category]float64 `json:"min_confidence"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// NewConfig builds a configuration for a user from a named preset.
func NewConfig(userID string, preset Preset) *Config {
	if !IsValidPreset(string(preset)) {
		preset = PresetBalanced
	}
	return &Config{
		UserID:        userID,
		Preset:        preset,
		Levels:        PresetLevels(preset),
		MinConfidence: DefaultMinConfidence(),
		UpdatedAt:     time.Now().UTC(),
	}
}

// Level returns the configured level for a category. Categories missing
// from the vector fall back to disabled: absence of configuration must
// never grant autonomy.
func (c *Config) Level(cat Category) Level {
	if c == nil || c.Levels == nil {
		return LevelDisabled
	}
	if l, ok := c.Levels[cat]; ok && l.Valid() {
		return l
	}
	return LevelDisabled
}

// MinFor returns the minimum composite confidence for a category,
// defaulting to the package default when unset.
func (c *Config) MinFor(cat Category) float64 {
	if c != nil && c.MinConfidence != nil {
		if v, ok := c.MinConfidence[cat]; ok {
			return v
		}
	}
	return defaultMinConfidence[cat]
}

// ApplyPreset switches the whole vector to a named preset.
func (c *Config) ApplyPreset(preset Preset) error {
	if !IsValidPreset(string(preset)) {
		return ErrInvalidPreset
	}
	c.Preset = preset
	c.Levels = PresetLevels(preset)
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// SetLevel overrides the level for one category. Changing any single
// category while on a named preset implicitly flips the configuration to
// custom; the rest of the vector is preserved.
func (c *Config) SetLevel(cat Category, level Level) error {
	if !level.Valid() {
		return ErrInvalidLevel
	}
	if !IsValidCategory(string(cat)) {
		return ErrInvalidCategory
	}
	if c.Levels == nil {
		c.Levels = PresetLevels(c.Preset)
	}
	if c.Preset != PresetCustom {
		c.Preset = PresetCustom
	}
	c.Levels[cat] = level
	c.UpdatedAt = time.Now().UTC()
	return nil
}
