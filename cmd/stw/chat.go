package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/steward/internal/agent"
)

var (
	// chat command flags
	chatConversationID string
	chatOutputJSON     bool
)

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatConversationID, "conversation", "", "Continue an existing conversation")
	chatCmd.Flags().BoolVar(&chatOutputJSON, "json", false, "Output the full response as JSON")
}

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send a message to the steward agent",
	Long: `Send a message to the steward agent and print its reply.

The agent may consult the portfolio, record decisions, and queue tasks for
approval as part of the turn. Pending actions created during the turn are
listed after the reply.

Examples:
  # Ask a question
  stw chat "which tenants are behind on rent?"

  # Continue a conversation
  stw chat --conversation conv_123 "and what about unit 4B?"

  # Raw JSON output
  stw chat --json "summarise open maintenance"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

// ChatRequest matches internal/httpapi/handlers.go ChatRequest
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
}

func runChat(cmd *cobra.Command, args []string) error {
	message := strings.TrimSpace(strings.Join(args, " "))
	if message == "" {
		return fmt.Errorf("no message to send")
	}

	req := ChatRequest{
		Message:        message,
		ConversationID: chatConversationID,
	}

	var resp agent.ChatResponse
	if err := apiDo(http.MethodPost, "/api/v1/agent/chat", req, &resp, nil); err != nil {
		return err
	}

	if chatOutputJSON {
		return printJSON(resp)
	}

	fmt.Println(resp.Message)
	if len(resp.PendingActions) > 0 {
		fmt.Fprintf(os.Stderr, "\n%d action(s) awaiting approval:\n", len(resp.PendingActions))
		for _, pa := range resp.PendingActions {
			fmt.Fprintf(os.Stderr, "  %s  [%s] %s: %s\n", pa.ID, pa.Category, pa.ToolName, truncate(pa.Description, 80))
		}
		fmt.Fprintf(os.Stderr, "Approve with: stw tasks approve <task-id>\n")
	}
	fmt.Fprintf(os.Stderr, "\n[conversation %s, %d tokens]\n", resp.ConversationID, resp.TokensUsed)

	return nil
}
