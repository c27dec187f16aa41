// Package api holds the JSON wire types of the carecall backend protocol and
// its OpenAPI description. The HTTP adapter serves these types and the remote
// adapter consumes them.
package api

import (
	"context"
	_ "embed"
	"fmt"
	"sync"

	"github.com/aretw0/carecall/pkg/domain"
	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var rawSpec []byte

// Version of the wire protocol, kept in sync with info.version in openapi.yaml.
const Version = "1.0.0"

// InvalidSessionMessage is the chat reply for an unknown session id.
const InvalidSessionMessage = "Invalid session"

// RawSpec returns the embedded OpenAPI document.
func RawSpec() []byte {
	return rawSpec
}

var loadSpec = sync.OnceValues(func() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi spec: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid openapi spec: %w", err)
	}
	return doc, nil
})

// Spec parses and validates the embedded OpenAPI document once.
func Spec() (*openapi3.T, error) {
	return loadSpec()
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ScenarioInfo struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	ContextFields []string       `json:"context_fields"`
	Fields        []domain.Field `json:"fields,omitempty"`
}

type StartSessionRequest struct {
	ScenarioID string `json:"scenario_id"`
	// SessionID is optional; the server generates one when empty.
	SessionID string `json:"session_id,omitempty"`
}

type StartSessionResponse struct {
	SessionID  string `json:"session_id"`
	ScenarioID string `json:"scenario_id"`
	Message    string `json:"message"`
}

// ChatRequest carries one user turn. ContextData is loosely typed on the wire
// and decoded into strings by the server.
type ChatRequest struct {
	Message     string         `json:"message"`
	SessionID   string         `json:"session_id"`
	// ScenarioID starts a session that is not in a call before the turn is answered.
	ScenarioID  string         `json:"scenario_id,omitempty"`
	ContextData map[string]any `json:"context_data,omitempty"`
}

type ChatResponse struct {
	Message       string            `json:"message"`
	SessionID     string            `json:"session_id,omitempty"`
	IsComplete    bool              `json:"is_complete"`
	ExtractedData map[string]any    `json:"extracted_data,omitempty"`
	ContextData   map[string]string `json:"context_data,omitempty"`
}

type UpdateContextRequest struct {
	SessionID   string         `json:"session_id"`
	ContextData map[string]any `json:"context_data"`
}

type UpdateContextResponse struct {
	SessionID   string            `json:"session_id"`
	ContextData map[string]string `json:"context_data"`
	Message     string            `json:"message"`
}

type ResetRequest struct {
	SessionID string `json:"session_id"`
}

type ResetResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FromSummary converts a catalog summary to its wire form.
func FromSummary(s domain.Summary) ScenarioInfo {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return ScenarioInfo{
		ID:            s.ID,
		Name:          s.Name,
		Description:   s.Description,
		ContextFields: names,
		Fields:        s.Fields,
	}
}
