package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"io"
	"testing"

	"github.com/aretw0/carecall/pkg/adapters/memory"
	"github.com/aretw0/carecall/pkg/domain"
	"github.com/aretw0/carecall/pkg/persistence/middleware"
	"github.com/aretw0/carecall/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := NewMockStore()
	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)

	ctx := context.Background()
	sessionID := "test-session"
	original := domain.NewState(sessionID)
	original.ScenarioID = "no_schedule"
	original.Status = domain.StatusInProgress
	original.CurrentStepID = "greeting"
	original.Context["client_name"] = "Smith"
	original.History = []string{"greeting"}

	require.NoError(t, secureStore.Save(ctx, sessionID, original))

	stored, err := underlyingStore.Load(ctx, sessionID)
	require.NoError(t, err)
	assert.NotContains(t, stored.Context, "client_name")
	assert.Contains(t, stored.Context, middleware.EnvelopeKey)
	assert.Empty(t, stored.ScenarioID)
	assert.Empty(t, stored.History)
	assert.Equal(t, domain.StatusInProgress, stored.Status, "status stays visible for monitoring")

	loaded, err := secureStore.Load(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "Smith", loaded.Context["client_name"])
	assert.Equal(t, "greeting", loaded.CurrentStepID)
	assert.Equal(t, []string{"greeting"}, loaded.History)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := NewMockStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	secureStoreOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlyingStore)

	ctx := context.Background()
	sessionID := "rotation-session"
	original := domain.NewState(sessionID)
	original.Context["data"] = "encrypted-with-old-key"

	require.NoError(t, secureStoreOld.Save(ctx, sessionID, original))

	secureStoreNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlyingStore)

	loaded, err := secureStoreNew.Load(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "encrypted-with-old-key", loaded.Context["data"])

	loaded.Context["data"] = "encrypted-with-new-key"
	require.NoError(t, secureStoreNew.Save(ctx, sessionID, loaded))

	_, err = secureStoreOld.Load(ctx, sessionID)
	assert.Error(t, err, "old key alone cannot open a state sealed with the new key")
}

func TestEncryptionMiddleware_RefusesPlainState(t *testing.T) {
	underlyingStore := NewMockStore()
	require.NoError(t, underlyingStore.Save(context.Background(), "plain", domain.NewState("plain")))

	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	_, err := secureStore.Load(context.Background(), "plain")
	assert.ErrorIs(t, err, middleware.ErrMissingEnvelope)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	store := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(memory.NewStore())
	ports.RunSessionStoreContract(t, store)
}

func TestChain_PIIThenEncryption(t *testing.T) {
	underlyingStore := NewMockStore()
	key := generateKey(t)
	store := middleware.Chain(underlyingStore,
		middleware.NewPIIMiddleware([]string{"name"}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}),
	)

	ctx := context.Background()
	state := domain.NewState("s1")
	state.Context["client_name"] = "Smith"
	require.NoError(t, store.Save(ctx, "s1", state))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.Context["client_name"], "masked before sealing")
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)

	fromHex, err := middleware.ParseKey(hex.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, fromHex)

	fromB64, err := middleware.ParseKey(" " + base64.StdEncoding.EncodeToString(key) + "\n")
	require.NoError(t, err)
	assert.Equal(t, key, fromB64)

	_, err = middleware.ParseKey(base64.StdEncoding.EncodeToString([]byte("too short")))
	assert.Error(t, err)

	_, err = middleware.ParseKey("not a key!")
	assert.Error(t, err)
}
