package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepEnter EventType = "step_enter"
	EventStepLeave EventType = "step_leave"
	EventNoMatch   EventType = "no_match"
	EventFallback  EventType = "fallback"
	EventComplete  EventType = "complete"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"type"`
	SessionID  string    `json:"session_id"`
	ScenarioID string    `json:"scenario_id"`
}

// StepEvent represents entry into, exit from, or a failed match on a step.
type StepEvent struct {
	EventBase
	StepID   string `json:"step_id"`
	Category string `json:"category,omitempty"`
	Input    string `json:"input,omitempty"`
}

// FallbackEvent is emitted when a session abandons the remote responder.
type FallbackEvent struct {
	EventBase
	Operation string `json:"operation"`
	Err       error  `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnStepEnter func(context.Context, *StepEvent)
	OnStepLeave func(context.Context, *StepEvent)
	OnNoMatch   func(context.Context, *StepEvent)
	OnComplete  func(context.Context, *StepEvent)
	OnFallback  func(context.Context, *FallbackEvent)
}
