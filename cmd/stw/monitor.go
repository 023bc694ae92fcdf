package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/steward/internal/monitor"
)

var (
	monitorInterval time.Duration
	monitorSecret   string
)

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 5*time.Second, "Poll interval")
	monitorCmd.Flags().StringVar(&monitorSecret, "secret", os.Getenv("STEWARD_SCHEDULER_SECRET"), "Operator secret for the stats endpoint (defaults to STEWARD_SCHEDULER_SECRET)")
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch live steward activity",
	Long: `Watch live steward activity in a full-screen terminal dashboard.

The dashboard polls stewardd's stats endpoint and shows decision throughput,
task queues, heartbeat activity, and learning progress. Press q to quit,
r to refresh immediately.

Examples:
  stw monitor
  stw monitor --interval 10s --server http://prod-host:8787`,
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if monitorInterval < time.Second {
		return fmt.Errorf("interval must be at least 1s")
	}

	model := monitor.NewModel(serverURL, monitorSecret, monitorInterval)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("monitor failed: %w", err)
	}

	return nil
}
