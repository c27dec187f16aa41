package middleware_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/aretw0/carecall/pkg/adapters/memory"
	"github.com/aretw0/carecall/pkg/domain"
	"github.com/aretw0/carecall/pkg/persistence/middleware"
	"github.com/aretw0/carecall/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func piiState(sessionID string) *domain.State {
	state := domain.NewState(sessionID)
	state.ScenarioID = "no_schedule"
	state.Status = domain.StatusInProgress
	state.Context["client_name"] = "Smith"
	state.Context["caregiver_phone"] = "555-0100"
	state.Context["office_location"] = "Brooklyn"
	state.Messages = []domain.Message{
		{Sender: domain.SenderAgent, Text: "Are you working with Mr.Smith today?"},
		{Sender: domain.SenderUser, Text: "yes, call me at 555-0100"},
	}
	return state
}

func TestPIIMiddleware_Masking(t *testing.T) {
	underlyingStore := NewMockStore()
	secureStore := middleware.NewPIIMiddleware([]string{"name", "phone"})(underlyingStore)

	ctx := context.Background()
	state := piiState("pii-session")

	require.NoError(t, secureStore.Save(ctx, "pii-session", state))

	assert.Equal(t, "Smith", state.Context["client_name"], "middleware must not modify the caller's state")
	assert.Equal(t, "Are you working with Mr.Smith today?", state.Messages[0].Text)

	stored, err := underlyingStore.Load(ctx, "pii-session")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, stored.Context["client_name"])
	assert.Equal(t, middleware.Mask, stored.Context["caregiver_phone"])
	assert.Equal(t, "Brooklyn", stored.Context["office_location"])
	assert.Equal(t, "Are you working with Mr.*** today?", stored.Messages[0].Text)
	assert.Equal(t, "yes, call me at ***", stored.Messages[1].Text)
}

func TestPIIMiddleware_MaskOnLoad(t *testing.T) {
	underlyingStore := NewMockStore()
	view := middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns, middleware.MaskOnLoad())(underlyingStore)

	ctx := context.Background()
	require.NoError(t, view.Save(ctx, "s1", piiState("s1")))

	stored, err := underlyingStore.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Smith", stored.Context["client_name"], "store keeps the real values")

	loaded, err := view.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.Context["client_name"])
	assert.Equal(t, "Are you working with Mr.*** today?", loaded.Messages[0].Text)

	_, err = view.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMaskState_LongestValueFirst(t *testing.T) {
	state := domain.NewState("s")
	state.Context["first_name"] = "John"
	state.Context["full_name"] = "John Doe"
	state.Messages = []domain.Message{{Sender: domain.SenderUser, Text: "I work with John Doe, John is nice"}}

	masked := middleware.MaskState(state, []*regexp.Regexp{regexp.MustCompile("name")})
	assert.Equal(t, "I work with ***, *** is nice", masked.Messages[0].Text)
}

func TestPIIMiddleware_Passthrough(t *testing.T) {
	store := middleware.NewPIIMiddleware([]string{"secret"})(memory.NewStore())
	ports.RunSessionStoreContract(t, store)
}
