// Package remote implements ports.Responder over the carecall backend wire
// protocol, so one carecall server can answer turns for another.
package remote

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

	"github.com/aretw0/carecall/pkg/api"
	"github.com/aretw0/carecall/pkg/ports"
)

// ErrInvalidSession is returned when the backend no longer knows the session.
var ErrInvalidSession = errors.New("remote session is invalid")

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

// StatusError reports a non-2xx answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote returned %d: %s", e.Code, e.Body)
}

// Client talks to a carecall-compatible backend.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

var (
	_ ports.Responder     = (*Client)(nil)
	_ ports.HealthChecker = (*Client)(nil)
)

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// NewClient creates a client for the backend at baseURL. Deadlines come from
// the caller's context.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open starts a remote session. The /start-session message is the greeting.
func (c *Client) Open(ctx context.Context, scenarioID string) (string, *ports.RemoteReply, error) {
	var resp api.StartSessionResponse
	if err := c.do(ctx, http.MethodPost, "/start-session", api.StartSessionRequest{ScenarioID: scenarioID}, &resp); err != nil {
		return "", nil, err
	}
	if resp.SessionID == "" {
		return "", nil, fmt.Errorf("start-session: empty session id")
	}
	c.logger.Debug("remote session opened", "remote_session_id", resp.SessionID, "scenario_id", scenarioID)
	return resp.SessionID, &ports.RemoteReply{Message: resp.Message}, nil
}

// Reply forwards one user turn.
func (c *Client) Reply(ctx context.Context, turn ports.RemoteTurn) (*ports.RemoteReply, error) {
	req := api.ChatRequest{
		Message:    turn.Message,
		SessionID:  turn.RemoteSessionID,
		ScenarioID: turn.ScenarioID,
	}
	if len(turn.Context) > 0 {
		req.ContextData = make(map[string]any, len(turn.Context))
		for k, v := range turn.Context {
			req.ContextData[k] = v
		}
	}

	var resp api.ChatResponse
	if err := c.do(ctx, http.MethodPost, "/chat", req, &resp); err != nil {
		return nil, err
	}
	if resp.IsComplete && resp.Message == api.InvalidSessionMessage {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSession, turn.RemoteSessionID)
	}
	return &ports.RemoteReply{
		Message:       resp.Message,
		Completed:     resp.IsComplete,
		ExtractedData: resp.ExtractedData,
		Context:       resp.ContextData,
	}, nil
}

// UpdateContext pushes a context patch.
func (c *Client) UpdateContext(ctx context.Context, remoteSessionID string, patch map[string]string) error {
	data := make(map[string]any, len(patch))
	for k, v := range patch {
		data[k] = v
	}
	req := api.UpdateContextRequest{SessionID: remoteSessionID, ContextData: data}
	return c.do(ctx, http.MethodPost, "/update-context", req, nil)
}

// Close clears the remote session.
func (c *Client) Close(ctx context.Context, remoteSessionID string) error {
	return c.do(ctx, http.MethodPost, "/reset-session-context", api.ResetRequest{SessionID: remoteSessionID}, nil)
}

// Health probes GET /health.
func (c *Client) Health(ctx context.Context) error {
	var resp api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "healthy" {
		return fmt.Errorf("remote reports status %q", resp.Status)
	}
	return nil
}

// Scenarios lists the backend's scenarios.
func (c *Client) Scenarios(ctx context.Context) ([]api.ScenarioInfo, error) {
	var resp []api.ScenarioInfo
	if err := c.do(ctx, http.MethodGet, "/scenarios", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(payload))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
