package cli

import (
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/carecall/internal/config"
	"github.com/aretw0/carecall/internal/logging"
	"github.com/aretw0/carecall/internal/testutils"
	"github.com/aretw0/carecall/pkg/adapters/file"
	"github.com/aretw0/carecall/pkg/adapters/llm"
	"github.com/aretw0/carecall/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/carecall/pkg/adapters/redis"
	"github.com/aretw0/carecall/pkg/adapters/remote"
	"github.com/aretw0/carecall/pkg/domain"
	"github.com/aretw0/carecall/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	for _, key := range []string{"CARECALL_REMOTE_URL", "OPENAI_API_KEY", "CARECALL_REDIS_ADDR", "CARECALL_CATALOG_DIR", "CARECALL_ENCRYPTION_KEY", "CARECALL_MASK_PII", "CARECALL_SESSION_DIR"} {
		t.Setenv(key, "")
	}
	cfg, err := config.FromEnv()
	require.NoError(t, err)
	return cfg
}

func build(t *testing.T, cfg *config.Config, opts Options) *App {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	app, err := Build(context.Background(), cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestBuild_Defaults(t *testing.T) {
	app := build(t, testConfig(t), Options{})

	assert.IsType(t, &memory.Store{}, app.Store)
	assert.Nil(t, app.Responder)
	assert.False(t, app.Engine.RemoteEnabled())
	assert.Len(t, app.Engine.Scenarios(), len(app.Catalog.IDs()))

	state, reply, err := app.Engine.Start(context.Background(), "s1", "no_schedule")
	require.NoError(t, err)
	assert.Equal(t, "greeting", reply.StepID)
	require.NoError(t, app.Sessions.Save(context.Background(), "s1", state))

	ids, err := app.Sessions.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
}

func TestBuild_Responders(t *testing.T) {
	t.Run("remote", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.RemoteURL = "http://backend.invalid"
		cfg.OpenAIKey = "sk-test"
		app := build(t, cfg, Options{})
		assert.IsType(t, &remote.Client{}, app.Responder, "remote URL wins over OpenAI")
		assert.True(t, app.Engine.RemoteEnabled())
	})

	t.Run("openai", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.OpenAIKey = "sk-test"
		app := build(t, cfg, Options{})
		assert.IsType(t, &llm.Responder{}, app.Responder)
	})

	t.Run("local flag", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.RemoteURL = "http://backend.invalid"
		app := build(t, cfg, Options{Local: true})
		assert.Nil(t, app.Responder)
	})
}

func TestBuild_RemoteFallback(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer backend.Close()

	cfg := testConfig(t)
	cfg.RemoteURL = backend.URL
	app := build(t, cfg, Options{Debug: true})

	state, reply, err := app.Engine.Start(context.Background(), "", "no_schedule")
	require.NoError(t, err)
	assert.Equal(t, domain.BackendLocal, state.Backend)
	assert.Equal(t, "greeting", reply.StepID)
}

func TestBuild_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisAddr = mr.Addr()

	app := build(t, cfg, Options{})
	assert.IsType(t, &redisAdapter.Store{}, app.Store)

	state, _, err := app.Engine.Start(context.Background(), "r1", "no_schedule")
	require.NoError(t, err)
	require.NoError(t, app.Sessions.Save(context.Background(), "r1", state))
	assert.True(t, mr.Exists(redisAdapter.DefaultPrefix+"r1"))

	err = app.Sessions.WithLock(context.Background(), "r1", func(context.Context) error {
		assert.True(t, mr.Exists(redisAdapter.DefaultLockPrefix+"r1"))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(redisAdapter.DefaultLockPrefix+"r1"))
}

func TestBuild_FileSessions(t *testing.T) {
	cfg := testConfig(t)
	cfg.SessionDir = t.TempDir()

	app := build(t, cfg, Options{})
	require.IsType(t, &file.Store{}, app.Store)

	state, _, err := app.Engine.Start(context.Background(), "f1", "no_schedule")
	require.NoError(t, err)
	require.NoError(t, app.Sessions.Save(context.Background(), "f1", state))

	// A second process sees the session.
	other := build(t, cfg, Options{})
	loaded, err := other.Sessions.Load(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, "greeting", loaded.CurrentStepID)
}

func TestBuild_Durable(t *testing.T) {
	t.Chdir(t.TempDir())

	app := build(t, testConfig(t), Options{Durable: true})
	fs, ok := app.Store.(*file.Store)
	require.True(t, ok)
	assert.Equal(t, file.DefaultDir, fs.BasePath)
}

func TestBuild_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(t)
	cfg.RedisAddr = addr
	_, err := Build(context.Background(), cfg, Options{Logger: logging.NewNop()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
}

func TestBuild_Encryption(t *testing.T) {
	cfg := testConfig(t)
	cfg.EncryptionKey = hex.EncodeToString(make([]byte, 32))
	app := build(t, cfg, Options{})

	state, _, err := app.Engine.Start(context.Background(), "e1", "no_schedule")
	require.NoError(t, err)
	state = app.Engine.UpdateContext(context.Background(), state, map[string]string{"client_name": "Smith"})
	require.NoError(t, app.Sessions.Save(context.Background(), "e1", state))

	loaded, err := app.Sessions.Load(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, "Smith", loaded.Context["client_name"])

	masked, err := app.InspectionStore(true).Load(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, masked.Context["client_name"])

	assert.Same(t, app.Store, app.InspectionStore(false))
}

func TestBuild_BadEncryptionKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.EncryptionKey = "too-short"
	_, err := Build(context.Background(), cfg, Options{Logger: logging.NewNop()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CARECALL_ENCRYPTION_KEY")
}

func TestLoadCatalog_Dir(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFiles(t, dir, map[string]string{
		"reminder.md": `---
id: reminder
name: Visit Reminder
steps:
  - id: ask
    agent: "Are you visiting {client_name} tomorrow?"
    accepts: ["yes", "no"]
---`,
	})

	cfg := testConfig(t)
	cfg.CatalogDir = dir
	app := build(t, cfg, Options{})

	assert.Equal(t, []string{"reminder"}, app.Catalog.IDs())
	_, _, err := app.Engine.Start(context.Background(), "", "no_schedule")
	assert.ErrorIs(t, err, domain.ErrUnknownScenario)
}

func TestLoadCatalog_Builtin(t *testing.T) {
	cat, err := LoadCatalog(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, cat.IDs(), "no_schedule")
}
