package app

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guilhermegouw/cdd-docs/db"
	"github.com/guilhermegouw/cdd-docs/internal/chunker"
	"github.com/guilhermegouw/cdd-docs/internal/config"
	"github.com/guilhermegouw/cdd-docs/internal/knowledge"
	"github.com/guilhermegouw/cdd-docs/internal/log"
	"github.com/guilhermegouw/cdd-docs/internal/mermaid"
	"github.com/guilhermegouw/cdd-docs/internal/rag"
	"github.com/guilhermegouw/cdd-docs/internal/session"
)

// Setup creates and initializes the application. Call Close to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			_ = a.Close()
		}
	}()

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, embedder, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g
	a.Embedder = embedder

	a.Knowledge = knowledge.NewStore(knowledge.NewQueries(pool), embedder, logger)
	a.Sessions = session.NewStore(cfg.MaxHistoryTurns, cfg.SessionTTL)

	chunkOpts := chunker.Options{
		TargetWords:  cfg.ChunkTargetWords,
		OverlapWords: cfg.ChunkOverlapWords,
		MinWords:     cfg.ChunkMinWords,
	}
	a.Indexer = rag.NewIndexer(a.Knowledge, chunkOpts, logger)

	validator := mermaid.NewCLIValidator(cfg.MermaidCommand, cfg.MermaidTimeout, logger)
	retriever := rag.NewRetriever(a.Knowledge, cfg.TopK)
	rewriter := rag.NewRewriter(g, cfg.ModelName, cfg.RewriteTimeout, logger)

	a.Engine = rag.NewEngine(g, retriever, rewriter, a.Sessions, validator, rag.EngineOptions{
		ModelName:          cfg.ModelName,
		GenerateTimeout:    cfg.GenerateTimeout,
		MaxHistoryTurns:    cfg.MaxHistoryTurns,
		MermaidMaxAttempts: cfg.MermaidMaxAttempts,
	}, logger)

	return a, nil
}

// provideDBPool runs migrations and opens the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// provideGenkit initializes Genkit for the configured provider and returns
// the embedder alongside it. Ollama requires explicit model registration.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, ai.Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		plugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(plugin))
		if g == nil {
			return nil, nil, fmt.Errorf("initializing genkit with ollama provider")
		}
		plugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		plugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		return g, ollama.Embedder(g, cfg.OllamaHost), nil

	case "googleai", "":
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, nil, fmt.Errorf("initializing genkit with googleai provider")
		}
		embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
		if embedder == nil {
			return nil, nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
		}
		return g, embedder, nil

	default:
		return nil, nil, fmt.Errorf("unsupported provider %q (expected googleai or ollama)", cfg.Provider)
	}
}
