package carecall

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/carecall/internal/runtime"
	"github.com/aretw0/carecall/pkg/catalog"
	"github.com/aretw0/carecall/pkg/domain"
	"github.com/aretw0/carecall/pkg/ports"
	"github.com/google/uuid"
)

// DefaultRemoteTimeout bounds every remote call unless WithRemoteTimeout says otherwise.
const DefaultRemoteTimeout = 10 * time.Second

// Engine is the high-level entry point of carecall.
// It runs call scripts locally and optionally delegates turns to a remote Responder.
type Engine struct {
	machine       *runtime.Machine
	catalog       *catalog.Catalog
	loader        ports.ScenarioLoader
	responder     ports.Responder
	remoteTimeout time.Duration
	hooks         domain.LifecycleHooks
	logger        *slog.Logger
	now           func() time.Time
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithCatalog runs the given catalog instead of the built-in one.
func WithCatalog(c *catalog.Catalog) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

// WithLoader loads the catalog from a custom source (e.g. a Loam directory).
func WithLoader(l ports.ScenarioLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithResponder delegates turns to a remote responder. Sessions fall back to the
// local script on the first remote failure.
func WithResponder(r ports.Responder) Option {
	return func(e *Engine) {
		e.responder = r
	}
}

// WithRemoteTimeout bounds each remote call. Zero disables the bound.
func WithRemoteTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.remoteTimeout = d
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithClock overrides the time source for transcript timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New initializes an Engine. Without WithCatalog or WithLoader it runs the built-in scripts.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		remoteTimeout: DefaultRemoteTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	if eng.catalog == nil {
		if eng.loader != nil {
			c, err := catalog.FromLoader(context.Background(), eng.loader)
			if err != nil {
				return nil, err
			}
			eng.catalog = c
		} else {
			eng.catalog = catalog.Default()
		}
	}

	eng.machine = runtime.NewMachine(eng.catalog,
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithClock(eng.now),
	)
	return eng, nil
}

// MustNew is like New but panics on error.
func MustNew(opts ...Option) *Engine {
	eng, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return eng
}

// Catalog returns the scripts the engine runs.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Scenarios lists the available scenarios. The listing always comes from the local catalog.
func (e *Engine) Scenarios() []domain.Summary {
	return e.catalog.Scenarios()
}

// Scenario returns a scenario definition by id.
func (e *Engine) Scenario(id string) (*domain.Scenario, bool) {
	return e.catalog.Scenario(id)
}

// RemoteEnabled reports whether new sessions try the remote responder first.
func (e *Engine) RemoteEnabled() bool {
	return e.responder != nil
}

// Start begins a call on a fresh state. An empty sessionID gets a generated one.
//
// The local state machine is always initialized, so that a later remote failure
// can resume from the local step pointer.
func (e *Engine) Start(ctx context.Context, sessionID, scenarioID string) (*domain.State, *domain.Reply, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	state, reply, err := e.machine.Start(ctx, domain.NewState(sessionID), scenarioID)
	if err != nil {
		return nil, nil, err
	}
	if e.responder == nil {
		return state, reply, nil
	}

	state.Backend = domain.BackendRemote
	remoteReply, err := e.openRemote(ctx, state)
	if err != nil {
		e.fallback(ctx, state, "start", err)
		return state, reply, nil
	}

	state.Messages = []domain.Message{{Sender: domain.SenderAgent, Text: remoteReply.Message, Timestamp: e.now()}}
	e.applyRemoteContext(state, remoteReply)
	if remoteReply.Completed {
		state.Status = domain.StatusCompleted
	}
	return state, e.remoteDomainReply(remoteReply), nil
}

// Submit answers one user turn and returns the advanced state.
// Remote failures are absorbed: the session switches to the local script for good
// and the same input is answered locally.
func (e *Engine) Submit(ctx context.Context, state *domain.State, text string) (*domain.State, *domain.Reply, error) {
	if state == nil || !state.Active() {
		return e.machine.Submit(ctx, state, text)
	}

	if state.Backend == domain.BackendRemote && e.responder != nil {
		next, reply, err := e.submitRemote(ctx, state, text)
		if err == nil {
			return next, reply, nil
		}
		state = runtime.CloneState(state)
		e.fallback(ctx, state, "submit", err)
	}

	return e.machine.Submit(ctx, state, text)
}

// UpdateContext merges patch into the session context. Keys are normalized to snake_case.
// Remote sessions get the patch forwarded; a failure there only ends delegation.
func (e *Engine) UpdateContext(ctx context.Context, state *domain.State, patch map[string]string) *domain.State {
	next := e.machine.UpdateContext(state, patch)
	if next.Backend != domain.BackendRemote || e.responder == nil || next.RemoteSessionID == "" || len(patch) == 0 {
		return next
	}

	rctx, cancel := e.remoteContext(ctx)
	defer cancel()
	if err := e.responder.UpdateContext(rctx, next.RemoteSessionID, runtime.NormalizeContext(patch)); err != nil {
		e.fallback(ctx, next, "update_context", remoteErr(err))
	}
	return next
}

// Reset ends the call and returns a not started state for the same session.
// A remote session is closed on a best-effort basis.
func (e *Engine) Reset(ctx context.Context, state *domain.State) *domain.State {
	if state.Backend == domain.BackendRemote && e.responder != nil && state.RemoteSessionID != "" {
		rctx, cancel := e.remoteContext(ctx)
		defer cancel()
		if err := e.responder.Close(rctx, state.RemoteSessionID); err != nil {
			e.logger.Warn("failed to close remote session",
				"session_id", state.SessionID,
				"remote_session_id", state.RemoteSessionID,
				"err", err,
			)
		}
	}
	return e.machine.Reset(state)
}

// Render resolves the agent line of the current local step.
func (e *Engine) Render(state *domain.State) (string, error) {
	return e.machine.Render(state)
}

// CheckRemote probes the remote responder.
func (e *Engine) CheckRemote(ctx context.Context) error {
	if e.responder == nil {
		return fmt.Errorf("%w: no responder configured", domain.ErrRemoteUnavailable)
	}
	hc, ok := e.responder.(ports.HealthChecker)
	if !ok {
		return nil
	}
	rctx, cancel := e.remoteContext(ctx)
	defer cancel()
	if err := hc.Health(rctx); err != nil {
		return remoteErr(err)
	}
	return nil
}

func (e *Engine) openRemote(ctx context.Context, state *domain.State) (*ports.RemoteReply, error) {
	rctx, cancel := e.remoteContext(ctx)
	defer cancel()

	remoteID, greeting, err := e.responder.Open(rctx, state.ScenarioID)
	if err != nil {
		return nil, remoteErr(err)
	}
	if greeting == nil {
		return nil, remoteErr(errors.New("remote session opened without a greeting"))
	}
	state.RemoteSessionID = remoteID
	return greeting, nil
}

func (e *Engine) submitRemote(ctx context.Context, state *domain.State, text string) (*domain.State, *domain.Reply, error) {
	rctx, cancel := e.remoteContext(ctx)
	defer cancel()

	remoteReply, err := e.responder.Reply(rctx, ports.RemoteTurn{
		RemoteSessionID: state.RemoteSessionID,
		ScenarioID:      state.ScenarioID,
		Message:         text,
		Context:         state.Context,
	})
	if err != nil {
		return nil, nil, remoteErr(err)
	}

	next := runtime.CloneState(state)
	now := e.now()
	next.Messages = append(next.Messages,
		domain.Message{Sender: domain.SenderUser, Text: text, Timestamp: now},
		domain.Message{Sender: domain.SenderAgent, Text: remoteReply.Message, Timestamp: now},
	)
	e.applyRemoteContext(next, remoteReply)
	if remoteReply.Completed {
		next.Status = domain.StatusCompleted
	}
	return next, e.remoteDomainReply(remoteReply), nil
}

func (e *Engine) applyRemoteContext(state *domain.State, reply *ports.RemoteReply) {
	for k, v := range runtime.NormalizeContext(reply.Context) {
		state.Context[k] = v
	}
}

func (e *Engine) remoteDomainReply(r *ports.RemoteReply) *domain.Reply {
	return &domain.Reply{
		Message:       r.Message,
		Matched:       true,
		Completed:     r.Completed,
		ExtractedData: r.ExtractedData,
		Backend:       domain.BackendRemote,
	}
}

// fallback switches state to the local backend. It never switches back.
func (e *Engine) fallback(ctx context.Context, state *domain.State, op string, err error) {
	state.Backend = domain.BackendLocal
	e.logger.Warn("remote responder failed, continuing locally",
		"session_id", state.SessionID,
		"scenario_id", state.ScenarioID,
		"op", op,
		"err", err,
	)
	if e.hooks.OnFallback != nil {
		e.hooks.OnFallback(ctx, &domain.FallbackEvent{
			EventBase: domain.EventBase{
				Timestamp:  e.now(),
				Type:       domain.EventFallback,
				SessionID:  state.SessionID,
				ScenarioID: state.ScenarioID,
			},
			Operation: op,
			Err:       err,
		})
	}
}

func (e *Engine) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.remoteTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.remoteTimeout)
}

func remoteErr(err error) error {
	if errors.Is(err, domain.ErrRemoteUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, err)
}
