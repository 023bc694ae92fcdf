// Package main implements the stw CLI for manual operations against the stewardd HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the stewardd HTTP server
	serverURL string
	// userID is sent as the X-User-ID header on owner-scoped requests
	userID string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stw",
	Short: "CLI for stewardd HTTP server operations",
	Long: `stw is a command-line interface for interacting with the stewardd HTTP server.
It provides commands for chatting with the steward agent, reviewing pending tasks,
tuning autonomy levels, recording corrections, and watching live activity.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8787", "stewardd server URL")
	rootCmd.PersistentFlags().StringVar(&userID, "user", defaultUserID(), "owner user ID sent as X-User-ID")
	rootCmd.AddCommand(healthCmd)
}

// defaultUserID resolves the owner identity from the environment so day-to-day
// usage does not require --user on every invocation.
func defaultUserID() string {
	if uid := os.Getenv("STEWARD_USER"); uid != "" {
		return uid
	}
	return "demo"
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check stewardd server health",
	Long: `Check the health status of the stewardd HTTP server.

Examples:
  # Check health
  stw health

  # Check health on a different server
  stw health --server http://localhost:8080`,
	RunE: runHealth,
}

// HealthResponse matches internal/httpapi/server.go HealthResponse
type HealthResponse struct {
	Status string `json:"status"`
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	var healthResp HealthResponse
	if err := apiDo(http.MethodGet, "/health", nil, &healthResp, nil); err != nil {
		return err
	}

	fmt.Printf("Server Status: %s\n", healthResp.Status)
	fmt.Printf("Server URL: %s\n", serverURL)

	return nil
}

// apiDo issues a JSON request against stewardd and decodes the response into
// out. The X-User-ID header is always sent; extra headers override nothing and
// are added verbatim.
func apiDo(method, path string, body any, out any, headers map[string]string) error {
	var reqBody io.Reader
	if body != nil {
		reqJSON, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	url := serverURL + path
	httpReq, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-User-ID", userID)
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	client := &http.Client{
		Timeout: 60 * time.Second,
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
