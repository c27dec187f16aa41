package runner

import (
	"context"

	"github.com/aretw0/carecall/pkg/domain"
)

// IOHandler defines the strategy for interacting with the caregiver.
// This allows switching between Text (terminal) and JSON (structured) modes.
type IOHandler interface {
	// Output presents one agent reply. state is the session after the reply.
	Output(ctx context.Context, reply *domain.Reply, state *domain.State) error

	// Input reads the next line typed by the caregiver.
	// It returns io.EOF when the input is exhausted.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message (command feedback, errors).
	// This is distinct from agent lines.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer is a function that transforms an agent line before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)
