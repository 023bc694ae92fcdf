package autonomy

import "fmt"

// Level is the configured ceiling on agent independence for one category.
// Levels are ordered: a numerically higher level permits everything a
// lower level permits plus more.
type Level int

const (
	// LevelDisabled (L0) rejects every candidate action outright.
	LevelDisabled Level = iota

	// LevelSuggest (L1) surfaces a suggestion only; nothing is drafted.
	LevelSuggest

	// LevelDraft (L2) prepares the action and waits for explicit approval.
	LevelDraft

	// LevelAutoNotice (L3) executes, then notifies the owner.
	LevelAutoNotice

	// LevelAutoSilent (L4) executes without notification.
	LevelAutoSilent
)

// levelNames maps levels to their wire/storage names.
var levelNames = map[Level]string{
	LevelDisabled:   "disabled",
	LevelSuggest:    "suggest",
	LevelDraft:      "draft_approve",
	LevelAutoNotice: "auto_notice",
	LevelAutoSilent: "auto_silent",
}

// String returns the storage name for the level, or "unknown".
func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return "unknown"
}

// Valid reports whether the level is one of L0 through L4.
func (l Level) Valid() bool {
	return l >= LevelDisabled && l <= LevelAutoSilent
}

// ParseLevel converts a storage name back to a Level.
func ParseLevel(s string) (Level, error) {
	for l, name := range levelNames {
		if name == s {
			return l, nil
		}
	}
	return LevelDisabled, fmt.Errorf("unknown autonomy level %q", s)
}
