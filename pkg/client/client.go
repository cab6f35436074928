// Package client provides the resilient JSON-over-POST requester: every
// attempt is paced by a shared rate limiter, transient failures are retried
// with backoff, and 429 responses slow down all concurrent callers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/bulkfetch/pkg/logging"
	"github.com/Sternrassler/bulkfetch/pkg/ratelimit"
	"github.com/rs/zerolog"
)

// ErrMalformedBody is wrapped in a TransportError when a 2xx body is not JSON.
var ErrMalformedBody = errors.New("malformed response body")

// maxErrorBody bounds how much of an error response ends up in StatusError.
const maxErrorBody = 512

// Client issues authenticated POST requests for one endpoint class.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is prepended to every endpoint path.
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout bounds one attempt, not the whole retry loop.
	Timeout time.Duration

	// Retry controls attempts and backoff.
	Retry RetryPolicy

	// Headers adds session credentials. Optional.
	Headers HeaderSource

	// HTTPClient overrides the transport (tests). Timeout is ignored when set.
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "bulkfetch/1.0",
		Timeout:   60 * time.Second,
		Retry:     DefaultRetryPolicy(),
	}
}

// New creates a client paced by limiter. The limiter is shared with every
// other client of the same endpoint class and must not be nil.
func New(cfg Config, limiter *ratelimit.Limiter) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("max_attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient: httpClient,
		limiter:    limiter,
		config:     cfg,
		logger:     logging.NewLogger(logging.ComponentClient).With().Str("limiter", limiter.Name()).Logger(),
	}, nil
}

// Call POSTs payload as JSON to endpoint and returns the parsed body.
//
// Every attempt first waits on the limiter. Statuses 403, 429, 500, 502,
// 503 and 504 as well as transport failures are retried up to
// Retry.MaxAttempts; any other status fails immediately with *StatusError.
// A 429 with Retry-After additionally raises the limiter interval and pushes
// its cursor by the computed sleep so every worker backs off.
func (c *Client) Call(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	var result json.RawMessage
	err = retryWithBackoff(ctx, c.logger, endpoint, c.config.Retry, func(attempt int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}

		data, err := c.do(ctx, endpoint, body)
		if err != nil {
			return err
		}

		c.limiter.OnSuccess()
		result = data
		return nil
	}, func(attempt int, err error, sleep time.Duration) {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests && se.RetryAfter > 0 {
			c.limiter.ThrottleTo(sleep)
			c.limiter.Penalize(sleep)
		}
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Limiter returns the limiter pacing this client.
func (c *Client) Limiter() *ratelimit.Limiter {
	return c.limiter
}

// do performs exactly one HTTP attempt.
func (c *Client) do(ctx context.Context, endpoint string, body []byte) (json.RawMessage, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	url := strings.TrimRight(c.config.BaseURL, "/") + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.Headers != nil {
		c.config.Headers.Apply(req.Header)
	}

	c.logger.Debug().Str("endpoint", endpoint).Msg("Executing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("read body: %w", err)}
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		class := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()
		return nil, &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			Body:       truncate(string(data), maxErrorBody),
		}
	}

	if !json.Valid(data) {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &TransportError{Endpoint: endpoint, Err: ErrMalformedBody}
	}

	return json.RawMessage(data), nil
}

// parseRetryAfter accepts delta-seconds (fractions allowed) or an HTTP-date.
// Returns 0 when the header is absent, unparsable or in the past.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
