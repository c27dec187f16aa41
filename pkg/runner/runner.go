package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/carecall"
	"github.com/aretw0/carecall/pkg/domain"
	"github.com/aretw0/carecall/pkg/ports"
)

// Console commands. Anything else starting with "/" is rejected.
const (
	CommandQuit    = "/quit"
	CommandReset   = "/reset"
	CommandContext = "/context"
)

const (
	contextUpdatedMessage = "Context updated successfully"
	resetMessage          = "Session context reset"
	completedMessage      = "Call completed."
)

// Runner handles the console loop of one call using the provided IO.
// This allows for easy testing and integration with different frontends (terminal, pipes).
type Runner struct {
	// Handler is the strategy for IO. If nil, a TextHandler over Stdin/Stdout is used.
	Handler IOHandler

	// Logger is used for internal debug logging.
	// If nil, a no-op logger is used.
	Logger *slog.Logger

	// Store persists the session after every turn.
	// If nil, sessions are ephemeral.
	Store ports.SessionStore

	// MaxInputSize bounds a single reply. Zero uses the sanitizer default.
	MaxInputSize int
}

// NewRunner creates a new Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.Logger == nil {
		r.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r
}

// Run drives a call until it completes, the input ends or the caregiver quits.
// An empty scenarioID resumes the session where it stands.
func (r *Runner) Run(ctx context.Context, session *carecall.Session, scenarioID string) error {
	handler := r.resolveHandler()

	if err := r.open(ctx, handler, session, scenarioID); err != nil {
		return err
	}

	for session.Status() == domain.StatusInProgress {
		text, err := handler.Input(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if text == "" {
			continue
		}

		clean, err := r.sanitize(text)
		if err != nil {
			if err := handler.SystemOutput(ctx, fmt.Sprintf("Error: %v. Please try again.", err)); err != nil {
				return fmt.Errorf("output error: %w", err)
			}
			continue
		}

		if strings.HasPrefix(clean, "/") {
			quit, err := r.command(ctx, handler, session, clean)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
			continue
		}

		reply, err := session.Submit(ctx, clean)
		if err != nil {
			return fmt.Errorf("turn failed: %w", err)
		}
		if err := r.present(ctx, handler, session, reply); err != nil {
			return err
		}
	}

	if err := handler.SystemOutput(ctx, completedMessage); err != nil {
		return fmt.Errorf("output error: %w", err)
	}
	return nil
}

func (r *Runner) open(ctx context.Context, handler IOHandler, session *carecall.Session, scenarioID string) error {
	if scenarioID == "" {
		state := session.State()
		if state.Status != domain.StatusInProgress {
			return fmt.Errorf("%w: session %s has no call in progress", domain.ErrInvalidSessionState, state.SessionID)
		}
		line, err := session.Render()
		if err != nil {
			return fmt.Errorf("render error: %w", err)
		}
		r.Logger.Debug("session resumed", "session_id", state.SessionID, "step_id", state.CurrentStepID)
		return handler.Output(ctx, &domain.Reply{
			Message: line,
			StepID:  state.CurrentStepID,
			Backend: state.Backend,
		}, state)
	}

	reply, err := session.Start(ctx, scenarioID)
	if err != nil {
		return err
	}
	return r.present(ctx, handler, session, reply)
}

// present outputs reply and commits the session.
func (r *Runner) present(ctx context.Context, handler IOHandler, session *carecall.Session, reply *domain.Reply) error {
	state := session.State()
	if err := handler.Output(ctx, reply, state); err != nil {
		return fmt.Errorf("output error: %w", err)
	}
	return r.saveState(ctx, state)
}

func (r *Runner) command(ctx context.Context, handler IOHandler, session *carecall.Session, line string) (bool, error) {
	name, args, _ := strings.Cut(line, " ")
	switch name {
	case CommandQuit:
		return true, r.saveState(ctx, session.State())

	case CommandReset:
		scenarioID := session.State().ScenarioID
		if err := handler.SystemOutput(ctx, resetMessage); err != nil {
			return false, fmt.Errorf("output error: %w", err)
		}
		reply, err := session.Start(ctx, scenarioID)
		if err != nil {
			return false, err
		}
		return false, r.present(ctx, handler, session, reply)

	case CommandContext:
		patch, err := ParseAssignments(args)
		if err != nil {
			return false, handler.SystemOutput(ctx, fmt.Sprintf("Error: %v. Usage: %s key=value ...", err, CommandContext))
		}
		session.UpdateContext(ctx, patch)
		if err := handler.SystemOutput(ctx, contextUpdatedMessage); err != nil {
			return false, fmt.Errorf("output error: %w", err)
		}
		return false, r.saveState(ctx, session.State())

	default:
		return false, handler.SystemOutput(ctx, fmt.Sprintf("Unknown command %s. Commands: %s key=value, %s, %s",
			name, CommandContext, CommandReset, CommandQuit))
	}
}

// ParseAssignments reads "key=value" pairs. A word without "=" continues the
// previous value, so `client_name=John Doe office=Bronx` sets two fields.
func ParseAssignments(args string) (map[string]string, error) {
	words := strings.Fields(args)
	if len(words) == 0 {
		return nil, errors.New("no assignments given")
	}

	patch := make(map[string]string)
	last := ""
	for _, w := range words {
		key, value, ok := strings.Cut(w, "=")
		if !ok {
			if last == "" {
				return nil, fmt.Errorf("expected key=value, got %q", w)
			}
			patch[last] += " " + w
			continue
		}
		if key == "" {
			return nil, fmt.Errorf("empty key in %q", w)
		}
		patch[key] = value
		last = key
	}
	return patch, nil
}

func (r *Runner) sanitize(text string) (string, error) {
	if r.MaxInputSize > 0 {
		return Sanitize(text, r.MaxInputSize)
	}
	return SanitizeInput(text)
}

func (r *Runner) saveState(ctx context.Context, state *domain.State) error {
	if r.Store == nil {
		return nil
	}
	if err := r.Store.Save(ctx, state.SessionID, state); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	r.Logger.Debug("state saved", "session_id", state.SessionID, "step_id", state.CurrentStepID)
	return nil
}

// resolveHandler ensures a valid IOHandler is set.
func (r *Runner) resolveHandler() IOHandler {
	if r.Handler == nil {
		// Memoized so a second Run keeps reading from the same pump.
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r.Handler
}
