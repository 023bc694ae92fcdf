package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/steward/internal/knowledge"
)

var (
	statsOutputJSON bool
	statsSecret     string
)

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsOutputJSON, "json", false, "Output results as JSON")
	statsCmd.Flags().StringVar(&statsSecret, "secret", os.Getenv("STEWARD_SCHEDULER_SECRET"), "Operator secret for the stats endpoint (defaults to STEWARD_SCHEDULER_SECRET)")
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show operational statistics",
	Long: `Show a one-shot snapshot of stewardd operational statistics.

For a live view use "stw monitor" instead.

Examples:
  stw stats
  stw stats --json`,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	var stats knowledge.Stats
	var headers map[string]string
	if statsSecret != "" {
		headers = map[string]string{"X-Scheduler-Secret": statsSecret}
	}
	if err := apiDo(http.MethodGet, "/api/v1/ops/stats", nil, &stats, headers); err != nil {
		return err
	}

	if statsOutputJSON {
		return printJSON(stats)
	}

	fmt.Printf("Decisions: %d\n", stats.DecisionsTotal)
	for disp, n := range stats.DecisionsByDisposition {
		fmt.Printf("  %s: %d\n", disp, n)
	}
	fmt.Printf("Tasks:\n")
	for status, n := range stats.TasksByStatus {
		fmt.Printf("  %s: %d\n", status, n)
	}
	fmt.Printf("Heartbeat: %d run(s), %d finding(s)\n", stats.HeartbeatRuns, stats.HeartbeatFindings)
	fmt.Printf("Learning: %d rule(s) avg confidence %.2f, %d preference(s), %d correction(s)\n",
		stats.ActiveRules, stats.AvgRuleConfidence, stats.Preferences, stats.Corrections)
	fmt.Printf("Outcomes measured: %d\n", stats.OutcomesMeasured)

	return nil
}
