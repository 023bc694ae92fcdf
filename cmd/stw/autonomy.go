package main

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
)

var (
	// autonomy command flags
	autonomyPreset     string
	autonomyLevels     []string
	autonomyOutputJSON bool
)

func init() {
	rootCmd.AddCommand(autonomyCmd)
	autonomyCmd.AddCommand(autonomyGetCmd)
	autonomyCmd.AddCommand(autonomySetCmd)

	autonomyCmd.PersistentFlags().BoolVar(&autonomyOutputJSON, "json", false, "Output results as JSON")

	autonomySetCmd.Flags().StringVar(&autonomyPreset, "preset", "", "Apply a preset (cautious, balanced, hands_off)")
	autonomySetCmd.Flags().StringArrayVar(&autonomyLevels, "level", nil, "Per-category override as category=level (repeatable)")
}

var autonomyCmd = &cobra.Command{
	Use:   "autonomy",
	Short: "Inspect and tune autonomy levels",
	Long: `Inspect and tune how much the steward is allowed to do on its own,
per category.

Levels, from most to least restrictive:
  disabled       never act, never suggest
  suggest        surface findings only
  draft_approve  draft the action, wait for approval
  auto_notice    act, then notify
  auto_silent    act silently

Examples:
  # Show current configuration
  stw autonomy get

  # Apply a preset
  stw autonomy set --preset cautious

  # Override a single category
  stw autonomy set --level maintenance=auto_notice

  # Preset plus overrides in one call
  stw autonomy set --preset balanced --level compliance=suggest --level rent_collection=draft_approve`,
}

var autonomyGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the current autonomy configuration",
	RunE:  runAutonomyGet,
}

var autonomySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update the autonomy configuration",
	RunE:  runAutonomySet,
}

// AutonomyUpdateRequest matches internal/httpapi/handlers.go AutonomyUpdateRequest
type AutonomyUpdateRequest struct {
	Preset string            `json:"preset,omitempty"`
	Levels map[string]string `json:"levels,omitempty"`
}

func runAutonomyGet(cmd *cobra.Command, args []string) error {
	var cfg autonomy.Config
	if err := apiDo(http.MethodGet, "/api/v1/autonomy", nil, &cfg, nil); err != nil {
		return err
	}

	return printAutonomyConfig(&cfg)
}

func runAutonomySet(cmd *cobra.Command, args []string) error {
	if autonomyPreset == "" && len(autonomyLevels) == 0 {
		return fmt.Errorf("nothing to set: pass --preset and/or --level")
	}

	levels, err := parseLevelAssignments(autonomyLevels)
	if err != nil {
		return err
	}

	req := AutonomyUpdateRequest{
		Preset: autonomyPreset,
		Levels: levels,
	}

	var cfg autonomy.Config
	if err := apiDo(http.MethodPut, "/api/v1/autonomy", req, &cfg, nil); err != nil {
		return err
	}

	return printAutonomyConfig(&cfg)
}

// parseLevelAssignments turns repeated category=level flags into the map the
// server expects. Values are validated server-side; only the shape is checked
// here.
func parseLevelAssignments(assignments []string) (map[string]string, error) {
	if len(assignments) == 0 {
		return nil, nil
	}
	levels := make(map[string]string, len(assignments))
	for _, a := range assignments {
		category, level, ok := strings.Cut(a, "=")
		category = strings.TrimSpace(category)
		level = strings.TrimSpace(level)
		if !ok || category == "" || level == "" {
			return nil, fmt.Errorf("invalid --level %q: expected category=level", a)
		}
		levels[category] = level
	}
	return levels, nil
}

func printAutonomyConfig(cfg *autonomy.Config) error {
	if autonomyOutputJSON {
		return printJSON(cfg)
	}

	fmt.Printf("Preset: %s\n\n", cfg.Preset)

	categories := make([]string, 0, len(cfg.Levels))
	for cat := range cfg.Levels {
		categories = append(categories, string(cat))
	}
	sort.Strings(categories)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tLEVEL\tMIN CONFIDENCE")
	for _, cat := range categories {
		fmt.Fprintf(w, "%s\t%s\t%.2f\n", cat,
			cfg.Levels[autonomy.Category(cat)],
			cfg.MinConfidence[autonomy.Category(cat)])
	}

	return w.Flush()
}
