// Package http serves the carecall backend protocol over chi.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/carecall"
	"github.com/aretw0/carecall/pkg/api"
	"github.com/aretw0/carecall/pkg/domain"
	"github.com/aretw0/carecall/pkg/observability"
	"github.com/aretw0/carecall/pkg/runner"
	"github.com/aretw0/carecall/pkg/session"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	msgContextUpdated = "Context updated successfully"
	msgContextReset   = "Session context reset"
)

// Server exposes an Engine and a session Manager over HTTP.
type Server struct {
	engine   *carecall.Engine
	sessions *session.Manager
	streams  *StreamManager
	metrics  *observability.Metrics
	logger   *slog.Logger
	origins  []string
	maxInput int
	validate bool

	handler http.Handler
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics records request durations and mounts GET /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithAllowedOrigins sets the CORS allow list. "*" allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithMaxInputSize bounds the chat message length.
func WithMaxInputSize(n int) Option {
	return func(s *Server) {
		s.maxInput = n
	}
}

// WithRequestValidation toggles validation of request bodies against the
// embedded OpenAPI document. It is on by default.
func WithRequestValidation(on bool) Option {
	return func(s *Server) {
		s.validate = on
	}
}

// WithStreams shares a StreamManager, e.g. with a second listener.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.streams = sm
	}
}

// NewServer builds the router.
func NewServer(engine *carecall.Engine, sessions *session.Manager, opts ...Option) (*Server, error) {
	s := &Server{
		engine:   engine,
		sessions: sessions,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		origins:  []string{"*"},
		maxInput: runner.DefaultMaxInputSize,
		validate: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.streams == nil {
		s.streams = NewStreamManager(s.logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)
	if s.metrics != nil {
		r.Use(s.instrument)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.RawSpec())
	})

	var validator func(http.Handler) http.Handler
	if s.validate {
		v, err := newValidator()
		if err != nil {
			return nil, err
		}
		validator = v
	}

	r.Group(func(r chi.Router) {
		if validator != nil {
			r.Use(validator)
		}
		r.Get("/health", s.GetHealth)
		r.Get("/scenarios", s.ListScenarios)
		r.Post("/start-session", s.StartSession)
		r.Post("/chat", s.Chat)
		r.Post("/update-context", s.UpdateContext)
		r.Post("/reset-session-context", s.ResetSessionContext)
		r.Get("/events", s.SubscribeEvents)
	})

	s.handler = r
	return s, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Streams returns the SSE fan-out used by this server.
func (s *Server) Streams() *StreamManager {
	return s.streams
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthResponse{Status: "healthy"})
}

// ListScenarios handles GET /scenarios.
func (s *Server) ListScenarios(w http.ResponseWriter, r *http.Request) {
	summaries := s.engine.Scenarios()
	out := make([]api.ScenarioInfo, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, api.FromSummary(sum))
	}
	writeJSON(w, http.StatusOK, out)
}

// StartSession handles POST /start-session. A session that already exists is
// reset before the new call starts.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var body api.StartSessionRequest
	if !s.decode(w, r, &body) {
		return
	}
	sessionID := body.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx := r.Context()
	var (
		prev, state *domain.State
		reply       *domain.Reply
	)
	err := s.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		old, err := s.sessions.Store().Load(ctx, sessionID)
		switch {
		case err == nil:
			prev = s.engine.Reset(ctx, old)
		case errors.Is(err, domain.ErrSessionNotFound):
			prev = domain.NewState(sessionID)
		default:
			return err
		}

		state, reply, err = s.engine.Start(ctx, sessionID, body.ScenarioID)
		if err != nil {
			return err
		}
		return s.sessions.Store().Save(ctx, sessionID, state)
	})
	if err != nil {
		s.fail(w, "start-session", err)
		return
	}

	s.broadcast(prev, state)
	s.logger.Info("session started", "session_id", sessionID, "scenario_id", body.ScenarioID, "backend", state.Backend)
	writeJSON(w, http.StatusOK, api.StartSessionResponse{
		SessionID:  sessionID,
		ScenarioID: state.ScenarioID,
		Message:    reply.Message,
	})
}

// Chat handles POST /chat. A session that was reset is started on
// scenario_id before the message is answered.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var body api.ChatRequest
	if !s.decode(w, r, &body) {
		return
	}

	text, err := runner.Sanitize(body.Message, s.maxInput)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	patch, err := api.DecodeContext(body.ContextData)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var (
		prev  *domain.State
		reply *domain.Reply
	)
	next, err := s.sessions.Update(r.Context(), body.SessionID, func(state *domain.State) (*domain.State, error) {
		prev = state
		var err error
		if state.Status == domain.StatusNotStarted && body.ScenarioID != "" {
			kept := state.Context
			state, _, err = s.engine.Start(r.Context(), state.SessionID, body.ScenarioID)
			if err != nil {
				return nil, err
			}
			if len(kept) > 0 {
				state = s.engine.UpdateContext(r.Context(), state, kept)
			}
		}
		if len(patch) > 0 {
			state = s.engine.UpdateContext(r.Context(), state, patch)
		}
		state, reply, err = s.engine.Submit(r.Context(), state, text)
		return state, err
	})
	if errors.Is(err, domain.ErrSessionNotFound) {
		writeJSON(w, http.StatusOK, api.ChatResponse{Message: api.InvalidSessionMessage, IsComplete: true})
		return
	}
	if err != nil {
		s.fail(w, "chat", err)
		return
	}

	s.broadcast(prev, next)
	writeJSON(w, http.StatusOK, api.ChatResponse{
		Message:       reply.Message,
		SessionID:     body.SessionID,
		IsComplete:    next.Status == domain.StatusCompleted,
		ExtractedData: reply.ExtractedData,
		ContextData:   next.Context,
	})
}

// UpdateContext handles POST /update-context.
func (s *Server) UpdateContext(w http.ResponseWriter, r *http.Request) {
	var body api.UpdateContextRequest
	if !s.decode(w, r, &body) {
		return
	}
	patch, err := api.DecodeContext(body.ContextData)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var prev *domain.State
	next, err := s.sessions.Update(r.Context(), body.SessionID, func(state *domain.State) (*domain.State, error) {
		prev = state
		return s.engine.UpdateContext(r.Context(), state, patch), nil
	})
	if err != nil {
		s.fail(w, "update-context", err)
		return
	}

	s.broadcast(prev, next)
	writeJSON(w, http.StatusOK, api.UpdateContextResponse{
		SessionID:   body.SessionID,
		ContextData: next.Context,
		Message:     msgContextUpdated,
	})
}

// ResetSessionContext handles POST /reset-session-context.
func (s *Server) ResetSessionContext(w http.ResponseWriter, r *http.Request) {
	var body api.ResetRequest
	if !s.decode(w, r, &body) {
		return
	}

	var prev *domain.State
	next, err := s.sessions.Update(r.Context(), body.SessionID, func(state *domain.State) (*domain.State, error) {
		prev = state
		return s.engine.Reset(r.Context(), state), nil
	})
	if err != nil {
		s.fail(w, "reset-session-context", err)
		return
	}

	s.broadcast(prev, next)
	writeJSON(w, http.StatusOK, api.ResetResponse{SessionID: body.SessionID, Message: msgContextReset})
}

// SubscribeEvents handles GET /events (SSE). Each event is a JSON StateDiff.
// The optional watch parameter (context, history, status, messages, backend)
// drops diffs that touch none of the listed fields.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, errors.New("session_id is required"))
		return
	}
	var watch []string
	if raw := r.URL.Query().Get("watch"); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			watch = append(watch, strings.TrimSpace(f))
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.streams.Subscribe(sessionID)
	defer cancel()

	s.logger.Debug("sse subscribed", "session_id", sessionID)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("sse client disconnected", "session_id", sessionID)
			return
		case diff, ok := <-ch:
			if !ok {
				return
			}
			if !wants(diff, watch) {
				continue
			}
			data, err := json.Marshal(diff)
			if err != nil {
				s.logger.Error("sse encode failed", "session_id", sessionID, "err", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func wants(diff *domain.StateDiff, watch []string) bool {
	if len(watch) == 0 {
		return true
	}
	for _, field := range watch {
		switch field {
		case "context":
			if len(diff.Context) > 0 {
				return true
			}
		case "history":
			if diff.History != nil || diff.CurrentStepID != nil {
				return true
			}
		case "status":
			if diff.Status != nil {
				return true
			}
		case "messages":
			if len(diff.Messages) > 0 {
				return true
			}
		case "backend":
			if diff.Backend != nil {
				return true
			}
		}
	}
	return false
}

func (s *Server) broadcast(prev, next *domain.State) {
	if diff := domain.Diff(prev, next); diff != nil {
		s.streams.Broadcast(next.SessionID, diff)
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

// fail maps domain errors to status codes.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownScenario), errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrInvalidSessionState), errors.Is(err, domain.ErrSessionBusy):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		s.logger.Error("request failed", "op", op, "err", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			if slices.Contains(s.origins, "*") {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if slices.Contains(s.origins, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		if route == "/events" || route == "/metrics" {
			return
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTP(route, r.Method, strconv.Itoa(status), time.Since(start))
	})
}

// newValidator checks request bodies and parameters against the embedded
// OpenAPI document. Routes it does not describe pass through untouched.
func newValidator() (func(http.Handler) http.Handler, error) {
	doc, err := api.Spec()
	if err != nil {
		return nil, err
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build openapi router: %w", err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, params, err := router.FindRoute(r)
			if err != nil {
				if errors.Is(err, routers.ErrPathNotFound) || errors.Is(err, routers.ErrMethodNotAllowed) {
					next.ServeHTTP(w, r)
					return
				}
				writeError(w, http.StatusBadRequest, err)
				return
			}
			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: params,
				Route:      route,
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, api.ErrorResponse{Error: err.Error()})
}
