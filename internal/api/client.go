package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AdminKeyHeader carries the admin key on /api/admin calls.
const AdminKeyHeader = "x-admin-key"

// RequestIDHeader is set on every request for server-side correlation.
const RequestIDHeader = "X-Request-ID"

// TokenSource supplies the bearer token for authenticated endpoints.
// An empty token means the request is sent anonymously.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// RequestObserver is notified after every HTTP round trip. Status is 0 when
// the request never produced a response.
type RequestObserver interface {
	ObserveRequest(operation string, status int, elapsed time.Duration)
}

// Client is a high-level client for the NovaPress API.
type Client struct {
	baseURL    string
	adminKey   string
	tokens     TokenSource
	httpClient *http.Client
	logger     *slog.Logger
	observer   RequestObserver
}

// Option configures the Client during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
	adminKey   string
	tokens     TokenSource
	observer   RequestObserver
}

// New creates a new Client for the given API base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("api: baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("api: invalid baseURL: %w", err)
	}

	cfg := &clientConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL:    baseURL,
		adminKey:   cfg.adminKey,
		tokens:     cfg.tokens,
		httpClient: httpClient,
		logger:     logger,
		observer:   cfg.observer,
	}, nil
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithTimeout sets a timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		if d < 0 {
			return fmt.Errorf("api: negative timeout %s", d)
		}
		cfg.timeout = d
		return nil
	}
}

// WithAdminKey sets the key used by Admin().
func WithAdminKey(key string) Option {
	return func(cfg *clientConfig) error {
		cfg.adminKey = strings.TrimSpace(key)
		return nil
	}
}

// WithTokenSource attaches a bearer token provider.
func WithTokenSource(ts TokenSource) Option {
	return func(cfg *clientConfig) error {
		cfg.tokens = ts
		return nil
	}
}

// WithObserver attaches a request observer (metrics).
func WithObserver(o RequestObserver) Option {
	return func(cfg *clientConfig) error {
		cfg.observer = o
		return nil
	}
}

// BaseURL returns the normalized API base.
func (c *Client) BaseURL() string { return c.baseURL }

// SetTokenSource replaces the bearer token provider after construction.
// The session manager needs a client before it can act as a source.
func (c *Client) SetTokenSource(ts TokenSource) { c.tokens = ts }

// headerFunc decorates an outgoing request.
type headerFunc func(ctx context.Context, req *http.Request) error

func adminHeader(key string) headerFunc {
	return func(_ context.Context, req *http.Request) error {
		if key != "" {
			req.Header.Set(AdminKeyHeader, key)
		}
		return nil
	}
}

func (c *Client) bearer() headerFunc {
	return func(ctx context.Context, req *http.Request) error {
		if c.tokens == nil {
			return nil
		}
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		return nil
	}
}

// url joins the base URL, a path and optional query parameters.
func (c *Client) url(path string, params url.Values) string {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// doJSON executes an HTTP request and decodes the JSON response into dst.
// body, when non-nil, is marshalled as the JSON request payload.
// If the response has an error status, it returns an *APIError.
func (c *Client) doJSON(ctx context.Context, method, u, operation string, body any, dst any, headers ...headerFunc) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		if err := h(ctx, req); err != nil {
			return fmt.Errorf("%s: %w", operation, err)
		}
	}

	c.logger.InfoContext(ctx, "API request", "operation", operation, "method", method, "url", u)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(operation, 0, start)
		return fmt.Errorf("%s: do request: %w", operation, err)
	}
	defer resp.Body.Close()
	c.observe(operation, resp.StatusCode, start)

	c.logger.DebugContext(ctx, "API response", "operation", operation, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return errorFromResponse(operation, resp, respBody)
	}

	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("%s: decode response: %w", operation, err)
		}
	}
	return nil
}

func (c *Client) observe(operation string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveRequest(operation, status, time.Since(start))
	}
}

func errorFromResponse(operation string, resp *http.Response, body []byte) *APIError {
	var eb ErrorBody
	if json.Unmarshal(body, &eb) == nil {
		if msg := eb.text(); msg != "" {
			return newAPIError(operation, resp.StatusCode, eb.Code, msg)
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = resp.Status
	}
	return newAPIError(operation, resp.StatusCode, "", msg)
}
