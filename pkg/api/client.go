// Package api is the HTTP transport for the bmusic remote service. It knows
// the endpoints, headers and status handling; interpreting bodies beyond the
// login token is left to callers.
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
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yosida95/uritemplate/v3"
)

const (
	// DefaultBaseURL is the production service.
	DefaultBaseURL = "https://dsm-moviles.onrender.com"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 15 * time.Second

	// RequestIDHeader carries the per-request correlation ID.
	RequestIDHeader = "X-Request-Id"

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 1 << 20

	contentTypeJSON = "application/json"
)

// Endpoint names.
const (
	EndpointLogin     = "login"
	EndpointSignup    = "signup"
	EndpointProfile   = "profile"
	EndpointPlaylists = "playlists"
)

// endpointTemplates maps endpoint names to URI templates expanded against
// the base URL.
var endpointTemplates = map[string]string{
	EndpointLogin:     "{+base}/users/login",
	EndpointSignup:    "{+base}/users/signup",
	EndpointProfile:   "{+base}/users/profile",
	EndpointPlaylists: "{+base}/playlists",
}

// ErrNoToken is returned when a successful login response carries no token.
var ErrNoToken = errors.New("login response has no token")

// Config configures the API client.
type Config struct {
	// BaseURL is the service root, without trailing slash.
	BaseURL string

	// Timeout bounds each request when HTTPClient is nil.
	Timeout time.Duration

	// UserAgent is sent on every request when non-empty.
	UserAgent string

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Client talks to the remote service.
type Client struct {
	base      string
	userAgent string
	http      *http.Client
	templates map[string]*uritemplate.Template
}

// New creates an API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	templates := make(map[string]*uritemplate.Template, len(endpointTemplates))
	for name, raw := range endpointTemplates {
		tmpl, err := uritemplate.New(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing %s endpoint template: %w", name, err)
		}
		templates[name] = tmpl
	}

	return &Client{
		base:      strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      hc,
		templates: templates,
	}, nil
}

// URL returns the absolute URL of a named endpoint.
func (c *Client) URL(endpoint string) (string, error) {
	tmpl, ok := c.templates[endpoint]
	if !ok {
		return "", fmt.Errorf("unknown endpoint: %s", endpoint)
	}
	values := uritemplate.Values{}
	values.Set("base", uritemplate.String(c.base))
	u, err := tmpl.Expand(values)
	if err != nil {
		return "", fmt.Errorf("expanding %s endpoint: %w", endpoint, err)
	}
	return u, nil
}

// LoginRequest is the body of POST /users/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest is the body of POST /users/signup.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	City     string `json:"city"`
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (string, error) {
	body, err := c.do(ctx, http.MethodPost, EndpointLogin, "", req)
	if err != nil {
		return "", err
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parsing login response: %w", err)
	}
	if resp.Token == "" {
		return "", ErrNoToken
	}
	return resp.Token, nil
}

// Signup creates an account and returns the created user document.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodPost, EndpointSignup, "", req)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// Profile fetches the raw profile document for token.
func (c *Client) Profile(ctx context.Context, token string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, EndpointProfile, token, nil)
}

// Playlists fetches the raw playlists document for token.
func (c *Client) Playlists(ctx context.Context, token string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, EndpointPlaylists, token, nil)
}

// do performs a request and returns the body of a 2xx response. Non-2xx
// responses are returned as *StatusError.
func (c *Client) do(ctx context.Context, method, endpoint, token string, payload any) ([]byte, error) {
	target, err := c.URL(endpoint)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", endpoint, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set(RequestIDHeader, requestID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		slog.Debug("api request failed", "endpoint", endpoint, "request_id", requestID, "error", err)
		return nil, fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", endpoint, err)
	}

	slog.Debug("api request",
		"endpoint", endpoint,
		"method", method,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, newStatusError(endpoint, resp.StatusCode, body)
	}
	return body, nil
}
