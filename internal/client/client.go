// Package client talks to the adofly HTTP API: it submits ad requests and
// follows their event streams.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/harsh7800/adofly/internal/creative"
	"github.com/harsh7800/adofly/internal/runs"
)

// Client is an HTTP client for the generation API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying *http.Client. Event streams stay
// open for a whole run, so it should not set a short overall Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client for the API served at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status     int
	Message    string
	Violations []string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("client: HTTP %d: %s", e.Status, e.Message)
	if len(e.Violations) > 0 {
		msg += " (" + strings.Join(e.Violations, "; ") + ")"
	}
	return msg
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("client: marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("client: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends req and decodes a JSON response into out, which may be nil.
func (c *Client) do(req *http.Request, want int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error      string   `json:"error"`
		Violations []string `json:"violations"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Violations = body.Violations
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

// Submit starts a run for req and returns its id.
func (c *Client) Submit(ctx context.Context, req creative.AdRequest) (string, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/ad-generation", req)
	if err != nil {
		return "", err
	}
	var out struct {
		RunID string `json:"runId"`
	}
	if err := c.do(httpReq, http.StatusAccepted, &out); err != nil {
		return "", err
	}
	return out.RunID, nil
}

// Stream subscribes to a run's events. The server replays the run from its
// first event, so calling Stream again after a dropped connection is safe.
func (c *Client) Stream(ctx context.Context, runID string) (<-chan Update, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/ad-generation/"+url.PathEscape(runID)+"/events", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: stream %s: %w", runID, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return ReadEvents(ctx, resp.Body), nil
}

// Snapshot fetches the server-side projection of a run.
func (c *Client) Snapshot(ctx context.Context, runID string) (*runs.Snapshot, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/ad-generation/"+url.PathEscape(runID), nil)
	if err != nil {
		return nil, err
	}
	var snap runs.Snapshot
	if err := c.do(req, http.StatusOK, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Cancel asks the server to stop an in-flight run.
func (c *Client) Cancel(ctx context.Context, runID string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/ad-generation/"+url.PathEscape(runID)+"/cancel", nil)
	if err != nil {
		return err
	}
	return c.do(req, http.StatusAccepted, nil)
}
