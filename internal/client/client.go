// Package client is the console's HTTP client for the shop backend API. It
// attaches the stored bearer token, resolves the target host, and turns
// non-2xx responses into classified errors.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/shopdesk/shopdesk/internal/storage"
)

// DefaultBaseURL is the compiled-in API address. A stored override equal to
// it is treated as "no override".
const DefaultBaseURL = "http://localhost:8080"

// AdminProbePath is readable only by administrators.
const AdminProbePath = "/api/orders/all"

// Client talks to the shop backend. It is safe for concurrent use.
type Client struct {
	http    *http.Client
	timeout time.Duration
	store   storage.Store
	origin  string
	logger  *slog.Logger
	history *History
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout. It applies whichever http.Client
// the client ends up with, without modifying one passed to WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client. origin is the console's own origin, used when no
// base-URL override is stored.
func New(store storage.Store, origin string, opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		store:   store,
		origin:  origin,
		logger:  slog.Default(),
		history: NewHistory(HistorySize),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c
}

// ResolveBaseURL picks the request host: a non-empty override that differs
// from DefaultBaseURL wins, otherwise the console origin is used.
func ResolveBaseURL(override, origin string) string {
	override = strings.TrimRight(strings.TrimSpace(override), "/")
	if override != "" && override != DefaultBaseURL {
		return override
	}
	return strings.TrimRight(strings.TrimSpace(origin), "/")
}

// BaseURL resolves the host for the next request from stored state.
func (c *Client) BaseURL(ctx context.Context) (string, error) {
	override, err := c.store.Get(ctx, storage.KeyBaseURL)
	if err != nil {
		return "", fmt.Errorf("reading base URL override: %w", err)
	}
	return ResolveBaseURL(override, c.origin), nil
}

// History returns the most recent calls, newest first.
func (c *Client) History() []Call {
	return c.history.Calls()
}

// Get issues a GET and decodes the JSON response into out (may be nil).
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// PostText posts a JSON body and returns the trimmed plain-text response, as
// the login endpoint answers with a raw token.
func (c *Client) PostText(ctx context.Context, path string, body any) (string, error) {
	var text string
	if err := c.Do(ctx, http.MethodPost, path, body, &text); err != nil {
		return "", err
	}
	return text, nil
}

// ProbeAdmin reports whether token can read the admin-only order listing.
// It authenticates with the given token rather than the stored one, so a
// token can be checked before it is persisted.
func (c *Client) ProbeAdmin(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodGet, AdminProbePath, nil, nil, &token)
}

// Do performs a single request. There is no retry: failures surface to the
// caller. A *string out receives the raw body; any other non-nil out is
// JSON-decoded.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, body, out, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, token *string) error {
	base, err := c.BaseURL(ctx)
	if err != nil {
		return err
	}

	bearer := ""
	if token != nil {
		bearer = *token
	} else {
		stored, err := c.store.Get(ctx, storage.KeyToken)
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		bearer = stored
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return fmt.Errorf("building %s %s: %w", method, path, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json, text/plain")
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	call := Call{Time: start, Method: method, Path: path, RequestID: reqID}
	defer func() {
		call.Duration = time.Since(start)
		c.history.Add(call)
	}()

	resp, err := c.http.Do(req)
	if err != nil {
		call.Err = err.Error()
		c.logger.Debug("request failed", "method", method, "path", path, "request_id", reqID, "err", err)
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()
	call.Status = resp.StatusCode

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		call.Err = err.Error()
		return fmt.Errorf("%w: reading %s %s: %w", ErrTransport, method, path, err)
	}

	c.logger.Debug("request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", reqID,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    ExtractMessage(data),
			Body:       data,
		}
		call.Err = apiErr.Error()
		return apiErr
	}

	switch dst := out.(type) {
	case nil:
		return nil
	case *string:
		*dst = strings.TrimSpace(string(data))
		return nil
	default:
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding %s %s response: %w", method, path, err)
		}
		return nil
	}
}
