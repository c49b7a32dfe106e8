// Package app assembles the application: configuration, database pool,
// cache, persistence, Genkit, the tool set and the chat orchestrator.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillhq/quill/internal/blob"
	"github.com/quillhq/quill/internal/cache"
	"github.com/quillhq/quill/internal/chat"
	"github.com/quillhq/quill/internal/config"
	"github.com/quillhq/quill/internal/log"
	"github.com/quillhq/quill/internal/store"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit       *genkit.Genkit
	Pool         *pgxpool.Pool
	Cache        cache.Cache
	Store        *store.Store
	Orchestrator *chat.Orchestrator
	Blob         *blob.Store

	cacheCleanup func()
}

// Close releases the application's resources. Safe to call on a
// partially initialized App.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.cacheCleanup != nil {
		a.cacheCleanup()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	return nil
}
