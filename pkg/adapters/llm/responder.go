// Package llm answers call turns with an OpenAI-compatible chat model, using
// each scenario's system prompt to keep the model on script.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/carecall/pkg/catalog"
	"github.com/aretw0/carecall/pkg/ports"
	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultModel       = openai.GPT4o
	DefaultTemperature = float32(0.4)

	// Opener is the caller line sent to the model to obtain its greeting.
	Opener = "Hello, I need help with my issue"

	// GeneralPrompt is used for scenarios without a system prompt.
	GeneralPrompt = "You are a helpful and friendly AI assistant. Be conversational and helpful."
)

// ErrUnknownSession is returned for turns on a session this responder never opened.
var ErrUnknownSession = errors.New("llm session not found")

// ChatCompleter is the slice of the go-openai client the responder needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type conversation struct {
	scenarioID string
	context    map[string]string
	history    []openai.ChatCompletionMessage
}

// Responder implements ports.Responder on top of chat completions.
// Conversations live in memory and are dropped on Close.
type Responder struct {
	client      ChatCompleter
	catalog     *catalog.Catalog
	model       string
	temperature float32
	maxHistory  int
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*conversation
}

var _ ports.Responder = (*Responder)(nil)

type Option func(*Responder)

func WithModel(model string) Option {
	return func(r *Responder) {
		r.model = model
	}
}

func WithTemperature(t float32) Option {
	return func(r *Responder) {
		r.temperature = t
	}
}

// WithCatalog sets where system prompts are read from.
func WithCatalog(c *catalog.Catalog) Option {
	return func(r *Responder) {
		r.catalog = c
	}
}

// WithMaxHistory caps how many past messages are replayed to the model. Zero keeps all.
func WithMaxHistory(n int) Option {
	return func(r *Responder) {
		r.maxHistory = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Responder) {
		r.logger = logger
	}
}

// New wraps an existing chat client.
func New(client ChatCompleter, opts ...Option) *Responder {
	r := &Responder{
		client:      client,
		model:       DefaultModel,
		temperature: DefaultTemperature,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		sessions:    make(map[string]*conversation),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.catalog == nil {
		r.catalog = catalog.Default()
	}
	return r
}

// NewFromKey builds a go-openai client. An empty baseURL keeps the OpenAI default.
func NewFromKey(apiKey, baseURL string, opts ...Option) *Responder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return New(openai.NewClientWithConfig(cfg), opts...)
}

// Open registers a new conversation and asks the model for its greeting by
// sending Opener as the first caller line.
func (r *Responder) Open(ctx context.Context, scenarioID string) (string, *ports.RemoteReply, error) {
	id := uuid.NewString()

	r.mu.Lock()
	r.sessions[id] = &conversation{
		scenarioID: scenarioID,
		context:    make(map[string]string),
	}
	r.mu.Unlock()

	greeting, err := r.Reply(ctx, ports.RemoteTurn{RemoteSessionID: id, ScenarioID: scenarioID, Message: Opener})
	if err != nil {
		r.mu.Lock()
		delete(r.sessions, id)
		r.mu.Unlock()
		return "", nil, err
	}

	r.logger.Debug("llm conversation opened", "remote_session_id", id, "scenario_id", scenarioID)
	return id, greeting, nil
}

// Reply sends the system prompt, the context, the replayed history and the
// new user line, and records the exchange.
func (r *Responder) Reply(ctx context.Context, turn ports.RemoteTurn) (*ports.RemoteReply, error) {
	r.mu.Lock()
	conv, ok := r.sessions[turn.RemoteSessionID]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, turn.RemoteSessionID)
	}
	for k, v := range turn.Context {
		conv.context[k] = v
	}
	scenarioID := conv.scenarioID
	if turn.ScenarioID != "" {
		scenarioID = turn.ScenarioID
	}
	messages := r.buildMessages(scenarioID, conv, turn.Message)
	r.mu.Unlock()

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Messages:    messages,
		Temperature: r.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)

	r.mu.Lock()
	defer r.mu.Unlock()
	// The conversation may have been closed while the request was in flight.
	if conv, ok = r.sessions[turn.RemoteSessionID]; ok {
		conv.history = append(conv.history,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: turn.Message},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: answer},
		)
	}

	r.logger.Debug("llm reply", "remote_session_id", turn.RemoteSessionID, "model", r.model, "tokens", resp.Usage.TotalTokens)
	return &ports.RemoteReply{
		Message: answer,
		Context: copyContext(conv),
	}, nil
}

// UpdateContext merges a patch into the conversation context.
func (r *Responder) UpdateContext(ctx context.Context, remoteSessionID string, patch map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.sessions[remoteSessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, remoteSessionID)
	}
	for k, v := range patch {
		conv.context[k] = v
	}
	return nil
}

// Close forgets the conversation. Closing an unknown session is not an error.
func (r *Responder) Close(ctx context.Context, remoteSessionID string) error {
	r.mu.Lock()
	delete(r.sessions, remoteSessionID)
	r.mu.Unlock()
	return nil
}

// Len reports how many conversations are open.
func (r *Responder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// buildMessages must be called with r.mu held.
func (r *Responder) buildMessages(scenarioID string, conv *conversation, text string) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: r.systemPrompt(scenarioID)},
	}
	if line := ContextLine(conv.context); line != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: line})
	}

	history := conv.history
	if r.maxHistory > 0 && len(history) > r.maxHistory {
		history = history[len(history)-r.maxHistory:]
	}
	messages = append(messages, history...)

	return append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text})
}

func (r *Responder) systemPrompt(scenarioID string) string {
	if sc, ok := r.catalog.Scenario(scenarioID); ok && sc.SystemPrompt != "" {
		return sc.SystemPrompt
	}
	return GeneralPrompt
}

// ContextLine renders non-empty context values as "Context information: k: v, ...",
// sorted by key. It returns "" when there is nothing to say.
func ContextLine(ctx map[string]string) string {
	keys := make([]string, 0, len(ctx))
	for k, v := range ctx {
		if v != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + ctx[k]
	}
	return "Context information: " + strings.Join(parts, ", ")
}

func copyContext(conv *conversation) map[string]string {
	if conv == nil {
		return nil
	}
	out := make(map[string]string, len(conv.context))
	for k, v := range conv.context {
		out[k] = v
	}
	return out
}
