// Package cli assembles a carecall process (engine, responder, session store,
// metrics) from the configuration, for the commands in cmd/carecall.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/carecall"
	"github.com/aretw0/carecall/internal/config"
	"github.com/aretw0/carecall/internal/logging"
	"github.com/aretw0/carecall/pkg/adapters/file"
	loamAdapter "github.com/aretw0/carecall/pkg/adapters/loam"
	"github.com/aretw0/carecall/pkg/adapters/llm"
	"github.com/aretw0/carecall/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/carecall/pkg/adapters/redis"
	"github.com/aretw0/carecall/pkg/adapters/remote"
	"github.com/aretw0/carecall/pkg/catalog"
	"github.com/aretw0/carecall/pkg/observability"
	"github.com/aretw0/carecall/pkg/persistence/middleware"
	"github.com/aretw0/carecall/pkg/ports"
	"github.com/aretw0/carecall/pkg/session"
)

// App is a fully wired carecall process.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Catalog  *catalog.Catalog
	Engine   *carecall.Engine
	Store    ports.SessionStore
	Sessions *session.Manager
	Metrics  *observability.Metrics

	// Responder is nil when turns are answered locally only.
	Responder ports.Responder

	closers []func() error
}

// Options tunes Build beyond what the configuration says.
type Options struct {
	// Logger overrides the logger derived from the configuration.
	Logger *slog.Logger

	// Local ignores any configured responder.
	Local bool

	// Debug logs every lifecycle event.
	Debug bool

	// Durable keeps sessions on disk (file.DefaultDir) when neither Redis nor
	// a session directory is configured, so they outlive the process.
	Durable bool
}

// NewLogger builds the process logger from the configuration.
func NewLogger(cfg *config.Config) *slog.Logger {
	return logging.NewWithWriter(os.Stderr, logging.ParseLevel(cfg.LogLevel), cfg.LogJSON)
}

// Build wires every component the configuration asks for.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	app := &App{
		Config:  cfg,
		Logger:  opts.Logger,
		Metrics: observability.NewMetrics(),
	}
	if app.Logger == nil {
		app.Logger = NewLogger(cfg)
	}

	cat, err := LoadCatalog(ctx, cfg.CatalogDir)
	if err != nil {
		return nil, err
	}
	app.Catalog = cat

	if !opts.Local {
		app.Responder = newResponder(cfg, cat, app.Logger)
	}

	hooks := app.Metrics.Hooks()
	if opts.Debug {
		hooks = observability.Combine(observability.LoggingHooks(app.Logger), hooks)
	}

	engineOpts := []carecall.Option{
		carecall.WithLogger(app.Logger),
		carecall.WithCatalog(cat),
		carecall.WithLifecycleHooks(hooks),
		carecall.WithRemoteTimeout(cfg.RemoteTimeout),
	}
	if app.Responder != nil {
		engineOpts = append(engineOpts, carecall.WithResponder(app.Responder))
	}
	app.Engine, err = carecall.New(engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}

	if err := app.buildStore(ctx, opts.Durable); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

// LoadCatalog reads a Loam catalog directory, or returns the built-in scripts when dir is empty.
func LoadCatalog(ctx context.Context, dir string) (*catalog.Catalog, error) {
	if dir == "" {
		return catalog.Default(), nil
	}
	loader, err := loamAdapter.Open(dir)
	if err != nil {
		return nil, err
	}
	cat, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", dir, err)
	}
	return cat, nil
}

func newResponder(cfg *config.Config, cat *catalog.Catalog, logger *slog.Logger) ports.Responder {
	switch {
	case cfg.RemoteURL != "":
		logger.Info("delegating turns to remote backend", "url", cfg.RemoteURL)
		return remote.NewClient(cfg.RemoteURL, remote.WithLogger(logger))
	case cfg.OpenAIKey != "":
		logger.Info("delegating turns to OpenAI", "model", cfg.Model)
		return llm.NewFromKey(cfg.OpenAIKey, cfg.OpenAIBaseURL,
			llm.WithModel(cfg.Model),
			llm.WithTemperature(cfg.ModelTemperature),
			llm.WithCatalog(cat),
			llm.WithLogger(logger),
		)
	default:
		return nil
	}
}

func (a *App) buildStore(ctx context.Context, durable bool) error {
	var (
		store       ports.SessionStore
		managerOpts = []session.Option{session.WithLogger(a.Logger)}
	)

	if a.Config.RedisAddr != "" {
		rs := redisAdapter.New(a.Config.RedisAddr, "", 0, redisAdapter.WithTTL(a.Config.SessionTTL))
		a.closers = append(a.closers, rs.Close)
		if err := rs.Ping(ctx); err != nil {
			return fmt.Errorf("redis %s: %w", a.Config.RedisAddr, err)
		}
		store = rs
		managerOpts = append(managerOpts, session.WithLocker(redisAdapter.NewLocker(rs.Client(), redisAdapter.DefaultLockPrefix)))
		a.Logger.Debug("using redis session store", "addr", a.Config.RedisAddr, "ttl", a.Config.SessionTTL)
	} else if a.Config.SessionDir != "" || durable {
		fs := file.New(a.Config.SessionDir)
		store = fs
		a.Logger.Debug("using file session store", "dir", fs.BasePath)
	} else {
		store = memory.NewStore()
	}

	if a.Config.EncryptionKey != "" {
		key, err := middleware.ParseKey(a.Config.EncryptionKey)
		if err != nil {
			return fmt.Errorf("CARECALL_ENCRYPTION_KEY: %w", err)
		}
		store = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})(store)
	}

	a.Store = store
	a.Sessions = session.NewManager(store, managerOpts...)
	return nil
}

// InspectionStore returns the store as seen by operators: masked when
// CARECALL_MASK_PII (or mask) is set.
func (a *App) InspectionStore(mask bool) ports.SessionStore {
	if !mask && !a.Config.MaskPII {
		return a.Store
	}
	return middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns, middleware.MaskOnLoad())(a.Store)
}

// Close releases the connections opened by Build.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}
