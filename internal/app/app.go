// Package app provides application initialization and dependency wiring.
//
// App is the container that orchestrates all service components: Genkit,
// the database pool, the knowledge store and retriever, the session
// store, the dispatcher, the chat service, and the HTTP server.
package app

import (
	"context"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daosail/compass/internal/api"
	"github.com/daosail/compass/internal/chat"
	"github.com/daosail/compass/internal/config"
	"github.com/daosail/compass/internal/knowledge"
	"github.com/daosail/compass/internal/log"
	"github.com/daosail/compass/internal/session"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Core services
	Genkit     *genkit.Genkit
	Embedder   ai.Embedder
	DBPool     *pgxpool.Pool
	Knowledge  *knowledge.Store
	Retriever  *knowledge.Retriever
	Sessions   *session.Store
	Dispatcher *chat.Dispatcher
	Chat       *chat.Service
	Server     *api.Server

	// Lifecycle management
	cancel      context.CancelFunc
	wg          sync.WaitGroup // background title generation
	otelCleanup func()
}

// Close gracefully shuts down all resources: cancels the background
// context, waits for in-flight background work, then releases the pool
// and the trace exporter.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.cancel != nil {
		a.cancel()
	}

	// Wait for title-generation goroutines before closing their DB pool.
	a.wg.Wait()

	if a.DBPool != nil {
		a.DBPool.Close()
		if a.Logger != nil {
			a.Logger.Info("database pool closed")
		}
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}

// Run starts the HTTP server and blocks until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	return a.Server.Run(ctx, a.Config.ServerAddr)
}
