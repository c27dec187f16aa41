package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/aretw0/carecall/pkg/api"
	"github.com/aretw0/carecall/pkg/domain"
)

// SystemEvent is the JSON line emitted for meta-messages.
type SystemEvent struct {
	System string `json:"system"`
}

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
// Every agent reply is one api.ChatResponse line, the same shape the HTTP backend answers with.
type JSONHandler struct {
	Reader  *bufio.Reader
	Writer  io.Writer
	Encoder *json.Encoder
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Output(ctx context.Context, reply *domain.Reply, state *domain.State) error {
	return h.Encoder.Encode(api.ChatResponse{
		Message:       reply.Message,
		SessionID:     state.SessionID,
		IsComplete:    reply.Completed,
		ExtractedData: reply.ExtractedData,
		ContextData:   state.Context,
	})
}

// Input accepts either a JSON string ("yes") or a raw line (yes).
func (h *JSONHandler) Input(ctx context.Context) (string, error) {
	text, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || text == "") {
		return "", err
	}
	text = strings.TrimSpace(text)

	var val string
	if err := json.Unmarshal([]byte(text), &val); err == nil {
		return val, nil
	}
	return text, nil
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.Encoder.Encode(SystemEvent{System: msg})
}
