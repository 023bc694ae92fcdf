package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/steward/internal/knowledge"
)

var (
	// tasks command flags
	taskStatus     string
	taskCategory   string
	taskLimit      int
	taskOutputJSON bool
)

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksApproveCmd)
	tasksCmd.AddCommand(tasksRejectCmd)

	tasksCmd.PersistentFlags().BoolVar(&taskOutputJSON, "json", false, "Output results as JSON")

	tasksListCmd.Flags().StringVar(&taskStatus, "status", "", "Filter by status (suggested, pending_approval, executed, rejected, dismissed)")
	tasksListCmd.Flags().StringVar(&taskCategory, "category", "", "Filter by category")
	tasksListCmd.Flags().IntVar(&taskLimit, "limit", 50, "Maximum number of tasks to return")
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Review and resolve steward tasks",
	Long: `Review tasks the steward has queued and approve or reject the ones
awaiting a decision.

Approving a task executes the stored action exactly once and records the
approval as owner feedback; rejecting records the rejection so the steward
learns from it.

Examples:
  # What is waiting on me?
  stw tasks list --status pending_approval

  # Approve a queued action
  stw tasks approve task_123

  # Reject one
  stw tasks reject task_123`,
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List tasks for the current owner, newest first.

Examples:
  # All recent tasks
  stw tasks list

  # Only those awaiting approval
  stw tasks list --status pending_approval

  # Maintenance tasks as JSON
  stw tasks list --category maintenance --json`,
	RunE: runTasksList,
}

var tasksApproveCmd = &cobra.Command{
	Use:   "approve <task-id>",
	Short: "Approve a pending task and execute its action",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksApprove,
}

var tasksRejectCmd = &cobra.Command{
	Use:   "reject <task-id>",
	Short: "Reject a pending task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksReject,
}

// TaskListResponse matches internal/httpapi/handlers.go TaskListResponse
type TaskListResponse struct {
	Tasks []*knowledge.Task `json:"tasks"`
	Count int               `json:"count"`
}

// TaskResolutionResponse matches internal/httpapi/handlers.go TaskResolutionResponse
type TaskResolutionResponse struct {
	Task   *knowledge.Task `json:"task"`
	Result string          `json:"result,omitempty"`
}

func runTasksList(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	if taskStatus != "" {
		q.Set("status", taskStatus)
	}
	if taskCategory != "" {
		q.Set("category", taskCategory)
	}
	q.Set("limit", fmt.Sprintf("%d", taskLimit))

	var resp TaskListResponse
	if err := apiDo(http.MethodGet, "/api/v1/tasks?"+q.Encode(), nil, &resp, nil); err != nil {
		return err
	}

	if taskOutputJSON {
		return printJSON(resp)
	}

	if resp.Count == 0 {
		fmt.Println("No tasks found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tCATEGORY\tPRIORITY\tCREATED\tTITLE")
	for _, t := range resp.Tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Status, t.Category, t.Priority,
			t.CreatedAt.Format("2006-01-02 15:04"), truncate(t.Title, 60))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d task(s)\n", resp.Count)

	return nil
}

func runTasksApprove(cmd *cobra.Command, args []string) error {
	var resp TaskResolutionResponse
	path := fmt.Sprintf("/api/v1/tasks/%s/approve", url.PathEscape(args[0]))
	if err := apiDo(http.MethodPost, path, nil, &resp, nil); err != nil {
		return err
	}

	if taskOutputJSON {
		return printJSON(resp)
	}

	fmt.Printf("Approved: %s\n", resp.Task.Title)
	if resp.Result != "" {
		fmt.Printf("Result: %s\n", truncate(resp.Result, 500))
	}

	return nil
}

func runTasksReject(cmd *cobra.Command, args []string) error {
	var resp TaskResolutionResponse
	path := fmt.Sprintf("/api/v1/tasks/%s/reject", url.PathEscape(args[0]))
	if err := apiDo(http.MethodPost, path, nil, &resp, nil); err != nil {
		return err
	}

	if taskOutputJSON {
		return printJSON(resp)
	}

	fmt.Printf("Rejected: %s\n", resp.Task.Title)

	return nil
}

// truncate shortens s to at most maxLen runes, ending with "..." when cut.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
