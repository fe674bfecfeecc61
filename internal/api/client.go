// Package api is the HTTP client for the CogniLearn backend.
//
// The client carries the bearer token of the current session. Only the
// session manager sets or clears it.
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
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/me/cognilearn/internal/logging"
	"github.com/me/cognilearn/pkg/model"
)

// maxResponseBody caps how much of a response body is read.
const maxResponseBody = 1 << 20

// RequestIDHeader carries a per-request uuid for correlating client and server logs.
const RequestIDHeader = "X-Request-ID"

// Client is a CogniLearn API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	validate   *validator.Validate

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets a per-request timeout. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = logging.Component(l, "api") }
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     logging.Component(nil, "api"),
		validate:   validator.New(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string { return c.baseURL }

// SetToken makes every following request carry "Authorization: Bearer <token>".
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearToken removes the authorization header from following requests.
func (c *Client) ClearToken() {
	c.SetToken("")
}

// AuthHeader returns the current Authorization header value, or "" when logged out.
func (c *Client) AuthHeader() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return ""
	}
	return "Bearer " + c.token
}

func (c *Client) authenticated() bool {
	return c.AuthHeader() != ""
}

// do sends a JSON request and decodes a 2xx JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	if h := c.AuthHeader(); h != "" {
		req.Header.Set("Authorization", h)
	}

	logger := c.logger.With("method", method, "path", path, "request_id", reqID)
	logger.Debug("HTTP request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	logger.Debug("HTTP response", "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newHTTPError(resp.StatusCode, respBody)
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

func (c *Client) check(ctx context.Context, v any) error {
	if err := c.validate.StructCtx(ctx, v); err != nil {
		return fromValidator(err)
	}
	return nil
}

// Login posts credentials to /login.
func (c *Client) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	req := model.LoginRequest{Email: email, Password: password}
	if err := c.check(ctx, req); err != nil {
		return nil, err
	}
	var resp model.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/login", req, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.ID == "" {
		return nil, fmt.Errorf("login response missing access_token or id")
	}
	return &resp, nil
}

// Register posts a new account to /register. The response body is not used.
func (c *Client) Register(ctx context.Context, email, password string, role model.Role) error {
	req := model.RegisterRequest{Email: email, Password: password, Role: role}
	if err := c.check(ctx, req); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/register", req, nil)
}

// Dashboard fetches the role-specific dashboard for userID.
func (c *Client) Dashboard(ctx context.Context, userID string) (*model.Dashboard, error) {
	var d model.Dashboard
	if err := c.getAuthed(ctx, "/dashboard/", userID, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Cognitive fetches the cognitive profile for userID.
func (c *Client) Cognitive(ctx context.Context, userID string) (*model.Cognitive, error) {
	var cg model.Cognitive
	if err := c.getAuthed(ctx, "/cognitive/", userID, &cg); err != nil {
		return nil, err
	}
	return &cg, nil
}

// Report fetches the weekly or monthly report for userID.
func (c *Client) Report(ctx context.Context, period model.ReportPeriod, userID string) (*model.Report, error) {
	var prefix string
	switch period {
	case model.PeriodWeekly:
		prefix = "/weekly-report/"
	case model.PeriodMonthly:
		prefix = "/monthly-report/"
	default:
		return nil, fmt.Errorf("unknown report period %q", period)
	}
	var r model.Report
	if err := c.getAuthed(ctx, prefix, userID, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// LogBehavior posts a learning behavior record.
func (c *Client) LogBehavior(ctx context.Context, entry model.BehaviorLog) error {
	if !c.authenticated() {
		return ErrNotAuthenticated
	}
	if err := c.check(ctx, entry); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/behavior-log", entry, nil)
}

func (c *Client) getAuthed(ctx context.Context, prefix, userID string, out any) error {
	if !c.authenticated() {
		return ErrNotAuthenticated
	}
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	return c.do(ctx, http.MethodGet, prefix+url.PathEscape(userID), nil, out)
}
