package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/carecall"
	"github.com/aretw0/carecall/pkg/api"
	"github.com/aretw0/carecall/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONHandler_Output(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := NewJSONHandler(strings.NewReader(""), buf)

	state := domain.NewState("s1")
	state.Context["client_name"] = "Smith"
	reply := &domain.Reply{
		Message:       "Thank you for confirming, Is this your regular schedule?",
		Matched:       true,
		ExtractedData: map[string]any{"category": "client_confirmation", "step": "confirm_client"},
	}
	require.NoError(t, handler.Output(context.Background(), reply, state))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "one JSON line per reply")

	var decoded api.ChatResponse
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
	assert.Equal(t, "s1", decoded.SessionID)
	assert.Equal(t, reply.Message, decoded.Message)
	assert.False(t, decoded.IsComplete)
	assert.Equal(t, "client_confirmation", decoded.ExtractedData["category"])
	assert.Equal(t, "Smith", decoded.ContextData["client_name"])
}

func TestJSONHandler_Input(t *testing.T) {
	handler := NewJSONHandler(strings.NewReader("\"Hello World\"\njust plain text\n\"unterminated"), &bytes.Buffer{})

	val, err := handler.Input(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello World", val)

	val, err = handler.Input(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "just plain text", val)

	val, err = handler.Input(context.Background())
	require.NoError(t, err, "a last line without newline is still read")
	assert.Equal(t, `"unterminated`, val)

	_, err = handler.Input(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestJSONHandler_DrivesRunner(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewRunner(WithInputHandler(NewJSONHandler(strings.NewReader("\"hello\"\n/context caregiver=Ann\n"), out)))

	session := carecall.MustNew().NewSession()
	require.NoError(t, r.Run(context.Background(), session, "no_schedule"))

	dec := json.NewDecoder(out)
	var first, second api.ChatResponse
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	assert.Contains(t, first.Message, "how are you doing today?")
	assert.Equal(t, "greeting_response", second.ExtractedData["category"])

	var sys SystemEvent
	require.NoError(t, dec.Decode(&sys))
	assert.Equal(t, "Context updated successfully", sys.System)
}
