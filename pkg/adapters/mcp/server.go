// Package mcp exposes carecall calls as Model Context Protocol tools, so an
// assistant can role-play the caregiver side of a scripted call.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/carecall"
	"github.com/aretw0/carecall/pkg/api"
	"github.com/aretw0/carecall/pkg/domain"
	"github.com/aretw0/carecall/pkg/runner"
	"github.com/aretw0/carecall/pkg/session"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const scenariosURI = "carecall://scenarios"

// TurnResult is the structured answer of every call tool.
type TurnResult struct {
	SessionID  string            `json:"session_id" jsonschema_description:"Session to pass to later calls"`
	ScenarioID string            `json:"scenario_id,omitempty"`
	Message    string            `json:"message" jsonschema_description:"What the agent says"`
	StepID     string            `json:"step_id,omitempty"`
	Status     domain.Status     `json:"status"`
	Completed  bool              `json:"is_complete" jsonschema_description:"True once the call has ended"`
	Backend    domain.Backend    `json:"backend,omitempty"`
	Context    map[string]string `json:"context_data,omitempty"`
}

// ScenarioList wraps the listing; structured tool output must be an object.
type ScenarioList struct {
	Scenarios []api.ScenarioInfo `json:"scenarios"`
}

type StartArgs struct {
	ScenarioID string `json:"scenario_id"`
	SessionID  string `json:"session_id"`
}

type SubmitArgs struct {
	SessionID   string         `json:"session_id"`
	Message     string         `json:"message"`
	ContextData map[string]any `json:"context_data"`
}

type ContextArgs struct {
	SessionID   string         `json:"session_id"`
	ContextData map[string]any `json:"context_data"`
}

type SessionArgs struct {
	SessionID string `json:"session_id"`
}

// Server wraps the Engine and exposes it as an MCP Server.
type Server struct {
	engine    *carecall.Engine
	sessions  *session.Manager
	mcpServer *server.MCPServer
	logger    *slog.Logger
	maxInput  int
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMaxInputSize bounds the submitted message length. Zero keeps the runner default.
func WithMaxInputSize(n int) Option {
	return func(s *Server) {
		s.maxInput = n
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine *carecall.Engine, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		sessions:  sessions,
		mcpServer: server.NewMCPServer("carecall-mcp", carecall.Version),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening (sse)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_scenarios",
		mcp.WithDescription("List the available call scripts and the context fields each one uses."),
		mcp.WithOutputSchema[ScenarioList](),
	), mcp.NewStructuredToolHandler(s.handleListScenarios))

	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start a scripted call. Returns the agent's first line and the session id."),
		mcp.WithString("scenario_id", mcp.Required(), mcp.Description("Scenario to run, see list_scenarios")),
		mcp.WithString("session_id", mcp.Description("Reuse or choose a session id (optional)")),
		mcp.WithOutputSchema[TurnResult](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("submit",
		mcp.WithDescription("Answer the agent as the caregiver. Unrecognized answers are re-prompted."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session from start_session")),
		mcp.WithString("message", mcp.Required(), mcp.Description("The caregiver's reply")),
		mcp.WithObject("context_data", mcp.Description("Context values to merge before the turn (optional)")),
		mcp.WithOutputSchema[TurnResult](),
	), mcp.NewStructuredToolHandler(s.handleSubmit))

	s.mcpServer.AddTool(mcp.NewTool("update_context",
		mcp.WithDescription("Merge values such as client_name or office_state into the session context."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session from start_session")),
		mcp.WithObject("context_data", mcp.Required(), mcp.Description("Field values keyed by name")),
		mcp.WithOutputSchema[TurnResult](),
	), mcp.NewStructuredToolHandler(s.handleUpdateContext))

	s.mcpServer.AddTool(mcp.NewTool("reset_session",
		mcp.WithDescription("End the call and clear the session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to reset")),
		mcp.WithOutputSchema[TurnResult](),
	), mcp.NewStructuredToolHandler(s.handleReset))

	s.mcpServer.AddTool(mcp.NewTool("get_transcript",
		mcp.WithDescription("Return the messages exchanged so far."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to read")),
	), s.handleTranscript)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(scenariosURI, "Call scripts",
		mcp.WithResourceDescription("Scenario catalog with fields and steps"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids := s.engine.Catalog().IDs()
		scenarios := make([]*domain.Scenario, 0, len(ids))
		for _, id := range ids {
			if sc, ok := s.engine.Scenario(id); ok {
				scenarios = append(scenarios, sc)
			}
		}
		data, err := json.Marshal(scenarios)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      scenariosURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func (s *Server) handleListScenarios(ctx context.Context, request mcp.CallToolRequest, _ struct{}) (ScenarioList, error) {
	summaries := s.engine.Scenarios()
	out := ScenarioList{Scenarios: make([]api.ScenarioInfo, 0, len(summaries))}
	for _, sum := range summaries {
		out.Scenarios = append(out.Scenarios, api.FromSummary(sum))
	}
	return out, nil
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest, args StartArgs) (TurnResult, error) {
	sessionID := args.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var (
		state *domain.State
		reply *domain.Reply
	)
	err := s.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		if old, err := s.sessions.Store().Load(ctx, sessionID); err == nil {
			s.engine.Reset(ctx, old)
		} else if !errors.Is(err, domain.ErrSessionNotFound) {
			return err
		}

		var err error
		state, reply, err = s.engine.Start(ctx, sessionID, args.ScenarioID)
		if err != nil {
			return err
		}
		return s.sessions.Store().Save(ctx, sessionID, state)
	})
	if err != nil {
		return TurnResult{}, err
	}
	return turnResult(state, reply), nil
}

func (s *Server) handleSubmit(ctx context.Context, request mcp.CallToolRequest, args SubmitArgs) (TurnResult, error) {
	clean, err := runner.Sanitize(args.Message, s.maxInput)
	if err != nil {
		s.logger.Warn("mcp submit: input rejected", "err", err, "size", len(args.Message))
		return TurnResult{}, fmt.Errorf("input rejected: %w", err)
	}
	patch, err := api.DecodeContext(args.ContextData)
	if err != nil {
		return TurnResult{}, err
	}

	var reply *domain.Reply
	next, err := s.sessions.Update(ctx, args.SessionID, func(state *domain.State) (*domain.State, error) {
		if len(patch) > 0 {
			state = s.engine.UpdateContext(ctx, state, patch)
		}
		var err error
		state, reply, err = s.engine.Submit(ctx, state, clean)
		return state, err
	})
	if err != nil {
		return TurnResult{}, err
	}
	return turnResult(next, reply), nil
}

func (s *Server) handleUpdateContext(ctx context.Context, request mcp.CallToolRequest, args ContextArgs) (TurnResult, error) {
	patch, err := api.DecodeContext(args.ContextData)
	if err != nil {
		return TurnResult{}, err
	}
	next, err := s.sessions.Update(ctx, args.SessionID, func(state *domain.State) (*domain.State, error) {
		return s.engine.UpdateContext(ctx, state, patch), nil
	})
	if err != nil {
		return TurnResult{}, err
	}
	return turnResult(next, &domain.Reply{Message: "Context updated successfully"}), nil
}

func (s *Server) handleReset(ctx context.Context, request mcp.CallToolRequest, args SessionArgs) (TurnResult, error) {
	next, err := s.sessions.Update(ctx, args.SessionID, func(state *domain.State) (*domain.State, error) {
		return s.engine.Reset(ctx, state), nil
	})
	if err != nil {
		return TurnResult{}, err
	}
	return turnResult(next, &domain.Reply{Message: "Session context reset"}), nil
}

func (s *Server) handleTranscript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	state, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
	}

	var lines []string
	for _, m := range state.Messages {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Sender, m.Text))
	}
	data, _ := json.Marshal(lines)
	return mcp.NewToolResultText(string(data)), nil
}

func turnResult(state *domain.State, reply *domain.Reply) TurnResult {
	return TurnResult{
		SessionID:  state.SessionID,
		ScenarioID: state.ScenarioID,
		Message:    reply.Message,
		StepID:     reply.StepID,
		Status:     state.Status,
		Completed:  state.Status == domain.StatusCompleted,
		Backend:    state.Backend,
		Context:    state.Context,
	}
}
