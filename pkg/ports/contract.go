package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/carecall/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewState(sessionID)
		state.ScenarioID = "no_schedule"
		state.CurrentStepID = "confirm_client"
		state.StepIndex = 1
		state.Status = domain.StatusInProgress
		state.Context["client_name"] = "John Doe"
		state.History = []string{"greeting", "confirm_client"}
		state.Messages = []domain.Message{
			{Sender: domain.SenderAgent, Text: "Hello", Timestamp: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
		}

		err := store.Save(ctx, sessionID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.CurrentStepID, loaded.CurrentStepID)
		assert.Equal(t, state.StepIndex, loaded.StepIndex)
		assert.Equal(t, domain.StatusInProgress, loaded.Status)
		assert.Equal(t, "John Doe", loaded.Context["client_name"])
		assert.Equal(t, state.History, loaded.History)
		require.Len(t, loaded.Messages, 1)
		assert.Equal(t, "Hello", loaded.Messages[0].Text)
		assert.True(t, state.Messages[0].Timestamp.Equal(loaded.Messages[0].Timestamp))
	})

	t.Run("Load Returns Independent Copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Context["client_name"] = "mutated"

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "John Doe", again.Context["client_name"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewState(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, id1, domain.NewState(id1)))
		require.NoError(t, store.Save(ctx, id2, domain.NewState(id2)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
