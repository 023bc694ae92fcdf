package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = 500 * time.Millisecond
)

// HTTPConfig configures the platform API client.
type HTTPConfig struct {
	// BaseURL is the platform API root, e.g. https://api.example.com.
	BaseURL string

	// TokenURL is the OAuth2 token endpoint for client credentials.
	TokenURL string

	// ClientID and ClientSecret authenticate steward as a service.
	ClientID     string
	ClientSecret string

	// Timeout bounds individual requests. Zero means defaultTimeout.
	Timeout time.Duration

	// MaxRetries bounds retry attempts on transient failures.
	MaxRetries int
}

// Validate checks the required connection settings.
func (c HTTPConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base url is required", ErrInvalidInput)
	}
	if c.TokenURL == "" {
		return fmt.Errorf("%w: token url is required", ErrInvalidInput)
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("%w: client credentials are required", ErrInvalidInput)
	}
	return nil
}

// HTTPClient implements Reader and Executor against the platform backend.
//
// Authentication is OAuth2 client credentials; the token source refreshes
// transparently. Transient failures (429, 502/503/504, transport errors)
// are retried with doubling backoff up to a fixed budget; everything else
// fails immediately.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *zap.Logger
}

var (
	_ Reader   = (*HTTPClient)(nil)
	_ Executor = (*HTTPClient)(nil)
)

// NewHTTPClient builds a platform API client.
func NewHTTPClient(cfg HTTPConfig, logger *zap.Logger) (*HTTPClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	client := creds.Client(context.Background())
	client.Timeout = timeout

	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: client,
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

// retryableError marks a failure worth retrying.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// do runs one request with the retry taxonomy. The response body is
// decoded into out when out is non-nil.
func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := defaultBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := c.doOnce(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
		c.logger.Warn("portfolio request retrying",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *HTTPClient) doOnce(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("reading response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		return &retryableError{err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(data, 200))}
	case resp.StatusCode >= 400:
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(data, 200))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n]
	}
	return s
}

// list fetches a user-scoped collection endpoint.
func list[T any](ctx context.Context, c *HTTPClient, userID, path string) ([]T, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	var out []T
	q := url.Values{"user_id": {userID}}
	if err := c.do(ctx, http.MethodGet, path+"?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListUsers returns every owner id the backend manages.
func (c *HTTPClient) ListUsers(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.do(ctx, http.MethodGet, "/v1/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) OpenMaintenanceRequests(ctx context.Context, userID string) ([]MaintenanceRequest, error) {
	return list[MaintenanceRequest](ctx, c, userID, "/v1/maintenance/open")
}

func (c *HTTPClient) VacantProperties(ctx context.Context, userID string) ([]Property, error) {
	return list[Property](ctx, c, userID, "/v1/properties/vacant")
}

func (c *HTTPClient) ActiveListings(ctx context.Context, userID string) ([]Listing, error) {
	return list[Listing](ctx, c, userID, "/v1/listings/active")
}

func (c *HTTPClient) PendingApplications(ctx context.Context, userID string) ([]Application, error) {
	return list[Application](ctx, c, userID, "/v1/applications/pending")
}

func (c *HTTPClient) CurrentLeases(ctx context.Context, userID string) ([]Lease, error) {
	return list[Lease](ctx, c, userID, "/v1/leases/current")
}

func (c *HTTPClient) RentArrears(ctx context.Context, userID string) ([]Arrears, error) {
	return list[Arrears](ctx, c, userID, "/v1/rent/arrears")
}

func (c *HTTPClient) Certificates(ctx context.Context, userID string) ([]Certificate, error) {
	return list[Certificate](ctx, c, userID, "/v1/compliance/certificates")
}

func (c *HTTPClient) Inspections(ctx context.Context, userID string) ([]Inspection, error) {
	return list[Inspection](ctx, c, userID, "/v1/inspections")
}

func (c *HTTPClient) Policies(ctx context.Context, userID string) ([]Policy, error) {
	return list[Policy](ctx, c, userID, "/v1/insurance/policies")
}

func (c *HTTPClient) UnreleasedBonds(ctx context.Context, userID string) ([]Bond, error) {
	return list[Bond](ctx, c, userID, "/v1/bonds/unreleased")
}

func (c *HTTPClient) Tenancies(ctx context.Context, userID string) ([]Tenancy, error) {
	return list[Tenancy](ctx, c, userID, "/v1/tenancies")
}

// actionResult is the platform's generic action acknowledgement.
type actionResult struct {
	Message string `json:"message"`
}

// act posts a side-effecting action and returns the acknowledgement text.
func (c *HTTPClient) act(ctx context.Context, userID, path string, payload map[string]string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if payload == nil {
		payload = map[string]string{}
	}
	payload["user_id"] = userID
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding action: %w", err)
	}
	var out actionResult
	if err := c.do(ctx, http.MethodPost, path, strings.NewReader(string(body)), &out); err != nil {
		return "", err
	}
	if out.Message == "" {
		out.Message = "done"
	}
	return out.Message, nil
}

func (c *HTTPClient) SendRentReminder(ctx context.Context, userID, tenancyID string) (string, error) {
	return c.act(ctx, userID, "/v1/rent/reminders", map[string]string{"tenancy_id": tenancyID})
}

func (c *HTTPClient) RequestTradeQuote(ctx context.Context, userID, requestID, note string) (string, error) {
	return c.act(ctx, userID, "/v1/maintenance/quotes", map[string]string{"request_id": requestID, "note": note})
}

func (c *HTTPClient) DraftLeaseRenewal(ctx context.Context, userID, leaseID string) (string, error) {
	return c.act(ctx, userID, "/v1/leases/renewals", map[string]string{"lease_id": leaseID})
}

func (c *HTTPClient) ScheduleInspection(ctx context.Context, userID, propertyID string) (string, error) {
	return c.act(ctx, userID, "/v1/inspections/schedule", map[string]string{"property_id": propertyID})
}

func (c *HTTPClient) BookComplianceCheck(ctx context.Context, userID, certificateID string) (string, error) {
	return c.act(ctx, userID, "/v1/compliance/bookings", map[string]string{"certificate_id": certificateID})
}

func (c *HTTPClient) RequestListingReview(ctx context.Context, userID, listingID string) (string, error) {
	return c.act(ctx, userID, "/v1/listings/reviews", map[string]string{"listing_id": listingID})
}

func (c *HTTPClient) NotifyOwner(ctx context.Context, userID, subject, body string) (string, error) {
	return c.act(ctx, userID, "/v1/notifications/owner", map[string]string{"subject": subject, "body": body})
}

func (c *HTTPClient) InitiateBondRelease(ctx context.Context, userID, bondID string) (string, error) {
	return c.act(ctx, userID, "/v1/bonds/releases", map[string]string{"bond_id": bondID})
}
