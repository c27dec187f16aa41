package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/carecall/pkg/catalog"
	"github.com/aretw0/carecall/pkg/domain"
)

const (
	// RepromptMessage answers a reply that fits none of the accepted categories.
	RepromptMessage = "I didn't understand that. Could you please rephrase your response?"

	// ClosingMessage ends a call whose last step accepted a reply but names no successor.
	ClosingMessage = "Thank you for your time. Have a great day!"
)

// Machine runs scenarios from a catalog.
type Machine struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
	now     func() time.Time
}

// Option configures the Machine.
type Option func(*Machine)

// WithLogger sets the machine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Machine) {
		m.hooks = hooks
	}
}

// WithClock overrides the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMachine creates a machine over the given catalog.
func NewMachine(cat *catalog.Catalog, opts ...Option) *Machine {
	m := &Machine{
		catalog: cat,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Catalog returns the catalog the machine runs.
func (m *Machine) Catalog() *catalog.Catalog {
	return m.catalog
}

// Start begins scenarioID on a copy of state. The context is cleared and the
// first step's line is returned. A scenario whose first step is terminal
// completes immediately.
func (m *Machine) Start(ctx context.Context, state *domain.State, scenarioID string) (*domain.State, *domain.Reply, error) {
	scenario, ok := m.catalog.Scenario(scenarioID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrUnknownScenario, scenarioID)
	}

	next := CloneState(state)
	next.ScenarioID = scenario.ID
	next.Status = domain.StatusInProgress
	next.Context = make(map[string]string)
	next.History = nil
	next.Messages = nil

	m.logger.Debug("scenario started", "session_id", next.SessionID, "scenario_id", scenario.ID)

	reply := m.enter(ctx, next, scenario, 0)
	return next, reply, nil
}

// Submit classifies text against the current step and advances on a match.
// Unmatched text is answered with RepromptMessage and leaves the step unchanged.
func (m *Machine) Submit(ctx context.Context, state *domain.State, text string) (*domain.State, *domain.Reply, error) {
	if state == nil || !state.Active() {
		status := domain.StatusNotStarted
		if state != nil {
			status = state.Status
		}
		return nil, nil, fmt.Errorf("%w: cannot submit while %s", domain.ErrInvalidSessionState, status)
	}

	scenario, step, err := m.locate(state)
	if err != nil {
		return nil, nil, err
	}

	next := CloneState(state)
	next.Messages = append(next.Messages, m.message(domain.SenderUser, text))

	category, ok := Classify(m.catalog.Categories(), step.Accepts, text)
	if !ok {
		m.logger.Debug("reply not matched",
			"session_id", next.SessionID,
			"scenario_id", scenario.ID,
			"step_id", step.ID,
		)
		m.emitStep(ctx, m.hooks.OnNoMatch, domain.EventNoMatch, next, step.ID, "", text)
		next.Messages = append(next.Messages, m.message(domain.SenderAgent, RepromptMessage))
		return next, &domain.Reply{
			Message: RepromptMessage,
			StepID:  step.ID,
			Backend: domain.BackendLocal,
		}, nil
	}

	m.emitStep(ctx, m.hooks.OnStepLeave, domain.EventStepLeave, next, step.ID, category, text)
	extracted := map[string]any{"category": category, "step": step.ID}

	if step.Next == "" {
		next.Status = domain.StatusCompleted
		next.Messages = append(next.Messages, m.message(domain.SenderAgent, ClosingMessage))
		m.emitStep(ctx, m.hooks.OnComplete, domain.EventComplete, next, step.ID, category, "")
		m.logger.Debug("scenario completed", "session_id", next.SessionID, "scenario_id", scenario.ID)
		return next, &domain.Reply{
			Message:       ClosingMessage,
			StepID:        step.ID,
			Category:      category,
			Matched:       true,
			Completed:     true,
			ExtractedData: extracted,
			Backend:       domain.BackendLocal,
		}, nil
	}

	reply := m.enter(ctx, next, scenario, scenario.StepIndex(step.Next))
	reply.Category = category
	reply.Matched = true
	reply.ExtractedData = extracted
	return next, reply, nil
}

// UpdateContext merges patch into a copy of state's context. Keys are normalized.
// It is allowed in any status.
func (m *Machine) UpdateContext(state *domain.State, patch map[string]string) *domain.State {
	next := CloneState(state)
	for k, v := range NormalizeContext(patch) {
		next.Context[k] = v
	}
	return next
}

// Reset returns a fresh, not started state for the same session.
func (m *Machine) Reset(state *domain.State) *domain.State {
	return domain.NewState(state.SessionID)
}

// Render resolves the agent line of the current step.
func (m *Machine) Render(state *domain.State) (string, error) {
	if state == nil || state.Status == domain.StatusNotStarted {
		return "", fmt.Errorf("%w: nothing to render", domain.ErrInvalidSessionState)
	}
	_, step, err := m.locate(state)
	if err != nil {
		return "", err
	}
	return Resolve(step.Agent, state.Context), nil
}

// enter moves state onto the step at idx and renders its line.
func (m *Machine) enter(ctx context.Context, state *domain.State, scenario *domain.Scenario, idx int) *domain.Reply {
	step := scenario.Steps[idx]
	state.StepIndex = idx
	state.CurrentStepID = step.ID
	state.History = append(state.History, step.ID)

	line := Resolve(step.Agent, state.Context)
	state.Messages = append(state.Messages, m.message(domain.SenderAgent, line))
	m.emitStep(ctx, m.hooks.OnStepEnter, domain.EventStepEnter, state, step.ID, "", "")

	reply := &domain.Reply{
		Message: line,
		StepID:  step.ID,
		Backend: domain.BackendLocal,
	}

	if step.Terminal() {
		state.Status = domain.StatusCompleted
		reply.Completed = true
		m.emitStep(ctx, m.hooks.OnComplete, domain.EventComplete, state, step.ID, "", "")
		m.logger.Debug("scenario completed", "session_id", state.SessionID, "scenario_id", scenario.ID)
	}
	return reply
}

// locate finds the scenario and current step of state.
func (m *Machine) locate(state *domain.State) (*domain.Scenario, *domain.Step, error) {
	scenario, ok := m.catalog.Scenario(state.ScenarioID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrUnknownScenario, state.ScenarioID)
	}
	idx := state.StepIndex
	if idx < 0 || idx >= len(scenario.Steps) || scenario.Steps[idx].ID != state.CurrentStepID {
		// Stored states may only carry the step id.
		idx = scenario.StepIndex(state.CurrentStepID)
	}
	if idx < 0 {
		return nil, nil, fmt.Errorf("%w: step %q not in scenario %s", domain.ErrInvalidSessionState, state.CurrentStepID, scenario.ID)
	}
	return scenario, &scenario.Steps[idx], nil
}

func (m *Machine) message(sender domain.Sender, text string) domain.Message {
	return domain.Message{Sender: sender, Text: text, Timestamp: m.now()}
}

func (m *Machine) emitStep(ctx context.Context, hook func(context.Context, *domain.StepEvent), typ domain.EventType, state *domain.State, stepID, category, input string) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.StepEvent{
		EventBase: domain.EventBase{
			Timestamp:  m.now(),
			Type:       typ,
			SessionID:  state.SessionID,
			ScenarioID: state.ScenarioID,
		},
		StepID:   stepID,
		Category: category,
		Input:    input,
	})
}

// CloneState copies state deeply enough that the copy can be mutated freely.
func CloneState(src *domain.State) *domain.State {
	if src == nil {
		return domain.NewState("")
	}
	next := *src
	next.Context = make(map[string]string, len(src.Context))
	for k, v := range src.Context {
		next.Context[k] = v
	}
	next.History = append([]string(nil), src.History...)
	next.Messages = append([]domain.Message(nil), src.Messages...)
	return &next
}
