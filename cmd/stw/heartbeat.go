package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/steward/internal/heartbeat"
)

var (
	// heartbeat command flags
	heartbeatSecret     string
	heartbeatUser       string
	heartbeatOutputJSON bool
)

func init() {
	rootCmd.AddCommand(heartbeatCmd)
	heartbeatCmd.Flags().StringVar(&heartbeatSecret, "secret", os.Getenv("STEWARD_SCHEDULER_SECRET"), "Scheduler secret (defaults to STEWARD_SCHEDULER_SECRET)")
	heartbeatCmd.Flags().StringVar(&heartbeatUser, "sweep-user", "", "Sweep a single user instead of everyone")
	heartbeatCmd.Flags().BoolVar(&heartbeatOutputJSON, "json", false, "Output the sweep summary as JSON")
}

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Trigger a heartbeat sweep",
	Long: `Trigger a heartbeat sweep on the stewardd server.

The sweep runs every detector over the portfolio and queues or executes the
resulting actions according to each user's autonomy configuration. The
endpoint is scheduler-only, so the scheduler secret is required.

Examples:
  # Sweep everyone
  STEWARD_SCHEDULER_SECRET=s3cret stw heartbeat

  # Sweep one user
  stw heartbeat --secret s3cret --sweep-user alice`,
	RunE: runHeartbeat,
}

// HeartbeatResponse matches internal/httpapi/handlers.go HeartbeatResponse
type HeartbeatResponse struct {
	OK      bool               `json:"ok"`
	Summary *heartbeat.Summary `json:"summary"`
}

func runHeartbeat(cmd *cobra.Command, args []string) error {
	if heartbeatSecret == "" {
		return fmt.Errorf("scheduler secret is required: pass --secret or set STEWARD_SCHEDULER_SECRET")
	}

	path := "/api/v1/agent/heartbeat"
	if heartbeatUser != "" {
		path += "?user_id=" + url.QueryEscape(heartbeatUser)
	}

	var resp HeartbeatResponse
	headers := map[string]string{"X-Scheduler-Secret": heartbeatSecret}
	if err := apiDo(http.MethodPost, path, nil, &resp, headers); err != nil {
		return err
	}

	if heartbeatOutputJSON {
		return printJSON(resp)
	}

	s := resp.Summary
	if s == nil {
		fmt.Println("Sweep completed.")
		return nil
	}

	fmt.Printf("Swept %d user(s) in %s\n", s.Users, s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	fmt.Printf("Findings: %d  Tasks created: %d  Executed: %d\n", s.Findings, s.TasksCreated, s.Executed)
	for cat, n := range s.ByCategory {
		fmt.Printf("  %s: %d\n", cat, n)
	}

	return nil
}
