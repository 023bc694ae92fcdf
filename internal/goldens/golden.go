package goldens

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
)

// ErrInvalidGolden indicates a golden file failed validation.
var ErrInvalidGolden = errors.New("invalid golden")

// Golden is one vetted example action.
type Golden struct {
	// ID is unique across the whole golden set.
	ID string `yaml:"id"`

	// Category scopes the example to one action category.
	Category autonomy.Category `yaml:"category"`

	// Title is a short operator-facing label.
	Title string `yaml:"title"`

	// Action is the exemplary action text; this is what gets embedded.
	Action string `yaml:"action"`

	// Rationale explains why the example is correct. Not embedded.
	Rationale string `yaml:"rationale,omitempty"`
}

// Validate checks required fields.
func (g *Golden) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidGolden)
	}
	if !autonomy.IsValidCategory(string(g.Category)) {
		return fmt.Errorf("%w: golden %s: unknown category %q", ErrInvalidGolden, g.ID, g.Category)
	}
	if strings.TrimSpace(g.Action) == "" {
		return fmt.Errorf("%w: golden %s: action text is required", ErrInvalidGolden, g.ID)
	}
	return nil
}

// goldenFile is the on-disk YAML shape.
type goldenFile struct {
	Goldens []Golden `yaml:"goldens"`
}

// LoadDir reads every .yaml/.yml file in dir and returns the combined,
// validated golden set sorted by id. Duplicate ids across files fail the
// whole load; a half-loaded golden set would skew scoring silently.
func LoadDir(dir string) ([]Golden, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading goldens dir: %w", err)
	}

	var all []Golden
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var file goldenFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		for _, g := range file.Goldens {
			if err := g.Validate(); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			if prev, dup := seen[g.ID]; dup {
				return nil, fmt.Errorf("%w: id %s appears in both %s and %s",
					ErrInvalidGolden, g.ID, prev, path)
			}
			seen[g.ID] = path
			all = append(all, g)
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}
