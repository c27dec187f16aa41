package domain

import "time"

// Status is the lifecycle position of a dialogue.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Backend names who answers the turns of a session.
type Backend string

const (
	BackendLocal  Backend = "local"  // Scripted state machine
	BackendRemote Backend = "remote" // Delegated to a Responder
)

// Sender tags a message in the transcript.
type Sender string

const (
	SenderAgent Sender = "agent"
	SenderUser  Sender = "user"
)

// Message is one transcript entry.
type Message struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// State represents the current snapshot of a dialogue.
type State struct {
	SessionID  string `json:"session_id"`
	ScenarioID string `json:"scenario_id,omitempty"`

	// CurrentStepID and StepIndex point at the same step of the scenario.
	CurrentStepID string `json:"current_step_id,omitempty"`
	StepIndex     int    `json:"step_index"`

	Status Status `json:"status"`

	// Backend starts as configured and only ever moves from remote to local.
	Backend         Backend `json:"backend"`
	RemoteSessionID string  `json:"remote_session_id,omitempty"`

	// Context holds field values keyed in snake_case.
	Context map[string]string `json:"context"`

	// History is the path of step ids visited.
	History []string `json:"history,omitempty"`

	// Messages is the transcript, including unmatched replies.
	Messages []Message `json:"messages,omitempty"`
}

// NewState creates an idle state for the given session.
func NewState(sessionID string) *State {
	return &State{
		SessionID: sessionID,
		Status:    StatusNotStarted,
		Backend:   BackendLocal,
		Context:   make(map[string]string),
	}
}

// Active reports whether the dialogue accepts turns.
func (s *State) Active() bool {
	return s.Status == StatusInProgress
}
