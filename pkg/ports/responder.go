package ports

import "context"

// RemoteTurn is one user turn forwarded to a Responder.
type RemoteTurn struct {
	RemoteSessionID string
	ScenarioID      string
	Message         string
	Context         map[string]string
}

// RemoteReply is what a Responder answers.
type RemoteReply struct {
	Message       string
	Completed     bool
	ExtractedData map[string]any
	// Context is the responder's view of the session context, if it returns one.
	Context map[string]string
}

// Responder is a remote backend that generates agent replies in place of the
// local script. Any error makes the engine fall back to the script for the rest
// of the session.
type Responder interface {
	// Open creates a remote session for the scenario and returns its id
	// together with the agent's greeting for the first turn.
	Open(ctx context.Context, scenarioID string) (string, *RemoteReply, error)

	// Reply answers one user turn.
	Reply(ctx context.Context, turn RemoteTurn) (*RemoteReply, error)

	// UpdateContext pushes a context patch to the remote session.
	UpdateContext(ctx context.Context, remoteSessionID string, patch map[string]string) error

	// Close clears the remote session context.
	Close(ctx context.Context, remoteSessionID string) error
}

// HealthChecker is implemented by responders that can be probed.
type HealthChecker interface {
	Health(ctx context.Context) error
}
