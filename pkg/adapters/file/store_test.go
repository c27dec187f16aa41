package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/carecall/pkg/domain"
	"github.com/aretw0/carecall/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.SessionStore = (*Store)(nil)

func TestStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, New(t.TempDir()))
}

func TestStore_WritesJSONFiles(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	ctx := context.Background()

	state := domain.NewState("abc")
	state.Context["client_name"] = "Jane Roe"
	require.NoError(t, store.Save(ctx, "abc", state))
	// Overwrite keeps a single file.
	require.NoError(t, store.Save(ctx, "abc", state))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "abc.json", entries[0].Name())

	data, err := os.ReadFile(filepath.Join(dir, "abc.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"client_name": "Jane Roe"`)
}

func TestStore_ListIgnoresStrayFiles(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "b", domain.NewState("b")))
	require.NoError(t, store.Save(ctx, "a", domain.NewState("a")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp-c-123"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0o755))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestStore_MissingDirectory(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "nope"))

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = store.Load(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.NoError(t, store.Delete(context.Background(), "x"))
}

func TestStore_RejectsPathLikeIDs(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"", "..", "../escape", `a\b`} {
		err := store.Save(ctx, id, domain.NewState(id))
		assert.ErrorIs(t, err, errInvalidID, id)
		_, err = store.Load(ctx, id)
		assert.ErrorIs(t, err, errInvalidID, id)
	}
}

func TestNew_DefaultDir(t *testing.T) {
	assert.Equal(t, DefaultDir, New("").BasePath)
}
