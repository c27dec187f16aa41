package carecall

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/aretw0/carecall/internal/runtime"
	"github.com/aretw0/carecall/pkg/domain"
	"github.com/google/uuid"
)

// Session owns exactly one dialogue and serializes the operations on it.
//
// Turns are not queued: a Submit that arrives while another turn is still being
// answered (typically waiting on the remote responder) fails with domain.ErrSessionBusy.
// Start, UpdateContext and Reset wait for the running operation instead.
type Session struct {
	engine *Engine

	op       sync.Mutex // serializes mutating operations
	inflight atomic.Bool

	mu    sync.RWMutex // guards state
	state *domain.State
}

// NewSession creates an idle session handle with a generated id.
func (e *Engine) NewSession() *Session {
	return e.NewSessionWithID(uuid.NewString())
}

// NewSessionWithID creates an idle session handle with the given id.
func (e *Engine) NewSessionWithID(id string) *Session {
	return &Session{
		engine: e,
		state:  domain.NewState(id),
	}
}

// ResumeSession wraps a stored state, e.g. one loaded from a SessionStore.
func (e *Engine) ResumeSession(state *domain.State) *Session {
	return &Session{
		engine: e,
		state:  runtime.CloneState(state),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.snapshot().SessionID
}

// Start begins scenarioID, discarding any previous call and its context.
func (s *Session) Start(ctx context.Context, scenarioID string) (*domain.Reply, error) {
	s.op.Lock()
	defer s.op.Unlock()

	current := s.snapshot()
	if current.Status != domain.StatusNotStarted {
		current = s.engine.Reset(ctx, current)
	}

	next, reply, err := s.engine.Start(ctx, current.SessionID, scenarioID)
	if err != nil {
		return nil, err
	}
	s.set(next)
	return reply, nil
}

// Submit answers one user turn.
func (s *Session) Submit(ctx context.Context, text string) (*domain.Reply, error) {
	if !s.inflight.CompareAndSwap(false, true) {
		return nil, domain.ErrSessionBusy
	}
	defer s.inflight.Store(false)

	s.op.Lock()
	defer s.op.Unlock()

	next, reply, err := s.engine.Submit(ctx, s.snapshot(), text)
	if err != nil {
		return nil, err
	}
	s.set(next)
	return reply, nil
}

// UpdateContext merges a partial field patch into the live context.
func (s *Session) UpdateContext(ctx context.Context, patch map[string]string) {
	s.op.Lock()
	defer s.op.Unlock()

	s.set(s.engine.UpdateContext(ctx, s.snapshot(), patch))
}

// Reset ends the call and clears the context and transcript.
func (s *Session) Reset(ctx context.Context) {
	s.op.Lock()
	defer s.op.Unlock()

	s.set(s.engine.Reset(ctx, s.snapshot()))
}

// State returns a copy of the current dialogue state.
func (s *Session) State() *domain.State {
	return runtime.CloneState(s.snapshot())
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []domain.Message {
	return append([]domain.Message(nil), s.snapshot().Messages...)
}

// Status returns the lifecycle status.
func (s *Session) Status() domain.Status {
	return s.snapshot().Status
}

// Backend returns who currently answers the turns.
func (s *Session) Backend() domain.Backend {
	return s.snapshot().Backend
}

// Render returns the current agent line.
func (s *Session) Render() (string, error) {
	return s.engine.Render(s.snapshot())
}

func (s *Session) snapshot() *domain.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) set(state *domain.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}
