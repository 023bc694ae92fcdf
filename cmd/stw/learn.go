package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/steward/internal/learning"
)

var (
	// learn command flags
	learnOriginal   string
	learnCorrection string
	learnContext    string
	learnCategory   string
	learnErrorType  string
	learnToolName   string
	learnSummary    string
	learnOutputJSON bool
)

func init() {
	rootCmd.AddCommand(learnCmd)
	learnCmd.AddCommand(learnCorrectCmd)
	learnCmd.AddCommand(learnErrorCmd)

	learnCmd.PersistentFlags().StringVar(&learnCategory, "category", "", "Decision category the lesson applies to")
	learnCmd.PersistentFlags().BoolVar(&learnOutputJSON, "json", false, "Output results as JSON")

	learnCorrectCmd.Flags().StringVar(&learnOriginal, "original", "", "What the steward did (required)")
	learnCorrectCmd.Flags().StringVar(&learnCorrection, "correction", "", "What it should have done (required)")
	learnCorrectCmd.Flags().StringVar(&learnContext, "context", "", "Snapshot of the situation, for retrieval")
	_ = learnCorrectCmd.MarkFlagRequired("original")
	_ = learnCorrectCmd.MarkFlagRequired("correction")

	learnErrorCmd.Flags().StringVar(&learnErrorType, "type", "", "Error type: FACTUAL_ERROR, REASONING_ERROR, TOOL_MISUSE, or CONTEXT_MISSING (required)")
	learnErrorCmd.Flags().StringVar(&learnToolName, "tool", "", "Tool involved, if any")
	learnErrorCmd.Flags().StringVar(&learnSummary, "input", "", "Summary of the input that triggered the error")
	_ = learnErrorCmd.MarkFlagRequired("type")
}

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Teach the steward from mistakes",
	Long: `Teach the steward from mistakes so it does better next time.

Corrections become retrievable lessons; classified errors become rules or
preferences depending on the error type.

Examples:
  # Record a correction
  stw learn correct \
    --original "escalated the leak to an emergency plumber" \
    --correction "our contract plumber covers after-hours calls" \
    --category maintenance

  # Classify an observed error
  stw learn error --type TOOL_MISUSE --tool send_notice "sent the notice to the guarantor instead of the tenant"`,
}

var learnCorrectCmd = &cobra.Command{
	Use:   "correct",
	Short: "Record an owner correction",
	RunE:  runLearnCorrect,
}

var learnErrorCmd = &cobra.Command{
	Use:   "error <message>",
	Short: "Classify an error and learn from it",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLearnError,
}

// LearningRequest matches internal/httpapi/handlers.go LearningRequest
type LearningRequest struct {
	Action string `json:"action"`

	OriginalAction  string `json:"original_action,omitempty"`
	Correction      string `json:"correction,omitempty"`
	ContextSnapshot string `json:"context_snapshot,omitempty"`

	ErrorType    string `json:"error_type,omitempty"`
	ToolName     string `json:"tool_name,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	InputSummary string `json:"input_summary,omitempty"`

	Category string `json:"category,omitempty"`
}

func runLearnCorrect(cmd *cobra.Command, args []string) error {
	req := LearningRequest{
		Action:          "record_correction",
		OriginalAction:  learnOriginal,
		Correction:      learnCorrection,
		ContextSnapshot: learnContext,
		Category:        learnCategory,
	}

	var resp struct {
		CorrectionID string `json:"correction_id"`
	}
	if err := apiDo(http.MethodPost, "/api/v1/agent/learning", req, &resp, nil); err != nil {
		return err
	}

	if learnOutputJSON {
		return printJSON(resp)
	}

	fmt.Printf("Correction recorded: %s\n", resp.CorrectionID)

	return nil
}

func runLearnError(cmd *cobra.Command, args []string) error {
	message := args[0]
	for _, a := range args[1:] {
		message += " " + a
	}

	req := LearningRequest{
		Action:       "classify_and_learn",
		ErrorType:    learnErrorType,
		ToolName:     learnToolName,
		ErrorMessage: message,
		InputSummary: learnSummary,
		Category:     learnCategory,
	}

	var resp learning.Result
	if err := apiDo(http.MethodPost, "/api/v1/agent/learning", req, &resp, nil); err != nil {
		return err
	}

	if learnOutputJSON {
		return printJSON(resp)
	}

	if !resp.Learned {
		fmt.Printf("Nothing learned: %s\n", resp.Reason)
		return nil
	}
	fmt.Printf("Learned %s %s\n", resp.ArtifactType, resp.ArtifactID)

	return nil
}
