package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillhq/quill/db"
	"github.com/quillhq/quill/internal/blob"
	"github.com/quillhq/quill/internal/cache"
	"github.com/quillhq/quill/internal/chat"
	"github.com/quillhq/quill/internal/config"
	"github.com/quillhq/quill/internal/log"
	"github.com/quillhq/quill/internal/store"
	"github.com/quillhq/quill/internal/tools"
)

// Setup creates and initializes the application. Call Close to release
// the resources it acquires.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	a.Cache, a.cacheCleanup, err = provideCache(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a.Store = store.New(store.NewQueries(pool), a.Cache, logger)

	a.Blob, err = blob.NewStore(cfg.StorageDir, cfg.PublicBaseURL+"/files")
	if err != nil {
		return nil, fmt.Errorf("initializing file storage: %w", err)
	}

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	refs, err := provideTools(g, cfg, a.Store, logger)
	if err != nil {
		return nil, err
	}

	a.Orchestrator = chat.New(chat.Config{
		Genkit:     g,
		Store:      a.Store,
		ToolRefs:   refs,
		TitleModel: cfg.FullTitleModelName(),
		MaxTurns:   cfg.MaxTurns,
		Logger:     logger,
	})

	return a, nil
}

// provideDBPool runs migrations and opens the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.DatabaseURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// provideCache picks Redis when an address is configured, otherwise the
// in-process cache. Single-instance deployments don't need Redis.
func provideCache(ctx context.Context, cfg *config.Config, logger log.Logger) (cache.Cache, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Info("using in-memory cache")
		return cache.NewMemory(), func() {}, nil
	}

	r, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisDB, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	logger.Info("using redis cache", "addr", cfg.RedisAddr)
	cleanup := func() {
		if err := r.Close(); err != nil {
			logger.Warn("closing redis client", "error", err)
		}
	}
	return r, cleanup, nil
}

// resolveProvider normalizes the configured provider name. "googleai"
// and "gemini" name the same backend; nothing else is supported today.
func resolveProvider(name string) (string, error) {
	switch name {
	case "":
		return config.ProviderGoogleAI, nil
	case config.ProviderGoogleAI, config.ProviderGemini:
		return config.ProviderGoogleAI, nil
	default:
		return "", fmt.Errorf("unsupported provider %q", name)
	}
}

// provideGenkit initializes Genkit with the configured provider.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	provider, err := resolveProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with gemini provider")
	}
	logger.Info("initialized genkit", "provider", provider, "model", cfg.ModelName)
	return g, nil
}

// provideTools registers the tool set and returns the refs the chat
// loop passes to the model.
func provideTools(g *genkit.Genkit, cfg *config.Config, st *store.Store, logger log.Logger) ([]ai.ToolRef, error) {
	generator := tools.NewGenkitGenerator(g, cfg.FullModelName())
	weather := tools.NewOpenMeteo(cfg.WeatherBaseURL)
	handler := tools.NewHandler(st, st, generator, weather, logger)

	tools.Register(g, handler)
	refs, err := tools.Refs(g)
	if err != nil {
		return nil, fmt.Errorf("looking up tools: %w", err)
	}
	return refs, nil
}
