package domain

import "errors"

var (
	// ErrUnknownScenario is returned when a scenario id is not in the catalog.
	ErrUnknownScenario = errors.New("scenario not found")

	// ErrInvalidSessionState is returned when an operation is not allowed in the current status,
	// e.g. submitting a turn before Start or after completion.
	ErrInvalidSessionState = errors.New("invalid session state")

	// ErrSessionBusy is returned when a turn is submitted while another one is still in flight.
	ErrSessionBusy = errors.New("session busy")

	// ErrRemoteUnavailable wraps failures of the remote responder.
	// It triggers the local fallback and is never returned by the engine.
	ErrRemoteUnavailable = errors.New("remote responder unavailable")

	// ErrSessionNotFound is returned when a session ID cannot be found in the store.
	ErrSessionNotFound = errors.New("session not found")
)
