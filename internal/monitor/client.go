// Package monitor renders a terminal dashboard over the steward ops
// endpoint.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/steward/internal/knowledge"
)

// StatsClient fetches operational snapshots from a running stewardd.
type StatsClient struct {
	baseURL string
	secret  string
	client  *http.Client
}

// NewStatsClient creates a client for the given stewardd base URL. The
// secret matches the server's scheduler secret; leave it empty against a
// dev instance that has none configured.
func NewStatsClient(baseURL, secret string) *StatsClient {
	return &StatsClient{
		baseURL: baseURL,
		secret:  secret,
		client: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

// Fetch retrieves the current ops snapshot.
func (c *StatsClient) Fetch(ctx context.Context) (*knowledge.Stats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/ops/stats", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.secret != "" {
		req.Header.Set("X-Scheduler-Secret", c.secret)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	var stats knowledge.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &stats, nil
}
