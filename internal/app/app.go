// Package app provides application initialization and dependency wiring.
//
// App is the container that holds every long-lived component: the database
// pool, the Genkit instance, the knowledge store, the session store, and
// the rag engine. Setup builds them in dependency order; Close releases
// them.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guilhermegouw/cdd-docs/internal/config"
	"github.com/guilhermegouw/cdd-docs/internal/knowledge"
	"github.com/guilhermegouw/cdd-docs/internal/log"
	"github.com/guilhermegouw/cdd-docs/internal/rag"
	"github.com/guilhermegouw/cdd-docs/internal/session"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	DBPool    *pgxpool.Pool
	Knowledge *knowledge.Store
	Sessions  *session.Store
	Indexer   *rag.Indexer
	Engine    *rag.Engine
}

// Close releases all resources.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}
	if a.DBPool != nil {
		a.DBPool.Close()
	}
	return nil
}
