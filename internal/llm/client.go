package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	defaultOpenAIBaseURL    = "https://api.openai.com"
	defaultOpenAIModel      = "gpt-4o"
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-3-5-sonnet-20241022"

	defaultMaxTokens   = 4096
	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = 1 * time.Second

	// Conservative defaults that stay under typical API quotas.
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

// Client generates chat completions with tool calling.
type Client interface {
	// Chat sends the conversation and tool specs and returns the model's
	// reply, which may contain tool calls instead of (or alongside) text.
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (*Response, error)
}

// Config configures a client.
type Config struct {
	Provider          string
	BaseURL           string
	Model             string
	APIKey            string
	MaxTokens         int
	RequestsPerSecond float64
	MaxRetries        int
	Timeout           time.Duration
}

// New builds a client for the configured provider.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return newOpenAIClient(cfg)
	case ProviderAnthropic:
		return newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func newLimiter(cfg Config) *rate.Limiter {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRateLimit
	}
	return rate.NewLimiter(rate.Limit(rps), defaultBurst)
}

func newHTTPClient(cfg Config) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func maxRetries(cfg Config) int {
	if cfg.MaxRetries > 0 {
		return cfg.MaxRetries
	}
	return defaultMaxRetries
}

func maxTokens(cfg Config) int {
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return defaultMaxTokens
}

// retryableError marks transient failures worth another attempt.
type retryableError struct {
	err error
}

func (r *retryableError) Error() string { return r.err.Error() }
func (r *retryableError) Unwrap() error { return r.err }

func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// retryStatus reports whether an HTTP status is worth retrying.
func retryStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// withRetries runs attempt under the limiter with doubling backoff,
// failing fast on non-retryable errors.
func withRetries(ctx context.Context, limiter *rate.Limiter, retries int, attempt func(context.Context) (*Response, error)) (*Response, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var lastErr error
	for try := 0; try <= retries; try++ {
		if try > 0 {
			backoff := defaultBaseBackoff * time.Duration(1<<(try-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := attempt(ctx)
		if err == nil {
			return resp, nil
		}
		if !isRetryableError(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
