// Package api is the JSON-over-HTTP client for the mai service. It carries
// no session state of its own; authorization is injected through the
// http.Client's transport.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tuankiet2640/mai-client/internal/observability/metrics"
	"github.com/tuankiet2640/mai-client/internal/reliability/circuitbreaker"
)

// ErrCircuitOpen is returned when the breaker is rejecting requests after
// repeated backend failures.
var ErrCircuitOpen = errors.New("backend circuit open")

// Error is a structured request failure: the HTTP status and the server's
// message when one was given, or the transport error text as fallback.
type Error struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
}

// IsRejection reports whether the error is a definitive server-side
// rejection (4xx) rather than a transient transport or server failure.
func (e *Error) IsRejection() bool {
	return e.Status >= 400 && e.Status < 500
}

// errorBody matches the server's error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// Client issues JSON requests against one base URL. A circuit breaker
// guards the data path; auth endpoints bypass it so a recovering backend
// can still re-authenticate.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// New creates a client. httpClient may be nil, in which case a default
// client with a 30s timeout is used.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		baseURL: baseURL,
		http:    httpClient,
		breaker: circuitbreaker.New(5, 2, 30*time.Second),
		logger:  logger,
	}
	c.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warn("api circuit state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	return c
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string { return c.baseURL }

// HTTPClient exposes the underlying client for callers that need the same
// transport (e.g. websocket dialing reuses its authorization).
func (c *Client) HTTPClient() *http.Client { return c.http }

type callOptions struct {
	bypassBreaker bool
}

// Get issues a GET and decodes the JSON response into T.
func Get[T any](ctx context.Context, c *Client, path string) (T, error) {
	return do[T](ctx, c, http.MethodGet, path, nil, callOptions{})
}

// Post issues a POST with a JSON payload and decodes the response into T.
func Post[T any](ctx context.Context, c *Client, path string, payload any) (T, error) {
	return do[T](ctx, c, http.MethodPost, path, payload, callOptions{})
}

// Put issues a PUT with a JSON payload and decodes the response into T.
func Put[T any](ctx context.Context, c *Client, path string, payload any) (T, error) {
	return do[T](ctx, c, http.MethodPut, path, payload, callOptions{})
}

// Delete issues a DELETE. Most delete endpoints answer 204; use struct{}
// for T in that case.
func Delete[T any](ctx context.Context, c *Client, path string) (T, error) {
	return do[T](ctx, c, http.MethodDelete, path, nil, callOptions{})
}

func do[T any](ctx context.Context, c *Client, method, path string, payload any, opts callOptions) (T, error) {
	var zero T

	if !opts.bypassBreaker && !c.breaker.AllowRequest() {
		metrics.ObserveAPIRequest(method+" "+path, "circuit_open")
		return zero, fmt.Errorf("%s %s: %w", method, path, ErrCircuitOpen)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return zero, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return zero, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if !opts.bypassBreaker {
			c.breaker.RecordFailure()
		}
		metrics.ObserveAPIRequest(method+" "+path, "error")
		return zero, &Error{Status: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		// Server errors count against the breaker; client errors (including
		// 401s the transport already retried) do not.
		if !opts.bypassBreaker && resp.StatusCode >= 500 {
			c.breaker.RecordFailure()
		}
		metrics.ObserveAPIRequest(method+" "+path, "error")
		return zero, decodeError(resp)
	}

	if !opts.bypassBreaker {
		c.breaker.RecordSuccess()
	}
	metrics.ObserveAPIRequest(method+" "+path, "success")

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("read response: %w", err)
	}
	if len(data) == 0 || resp.StatusCode == http.StatusNoContent {
		return zero, nil
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// decodeError prefers the server's error message, falling back to the
// generic status text.
func decodeError(resp *http.Response) *Error {
	apiErr := &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}
	var eb errorBody
	if jsonErr := json.Unmarshal(data, &eb); jsonErr == nil && eb.Error != "" {
		apiErr.Message = eb.Error
	}
	return apiErr
}
