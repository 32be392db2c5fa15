package cmd

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/guilhermegouw/cdd-docs/internal/app"
	"github.com/guilhermegouw/cdd-docs/internal/config"
	"github.com/guilhermegouw/cdd-docs/internal/log"
)

// runIndex runs an offline indexing pass over the documentation tree.
func runIndex(logger log.Logger) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	docsPath := fs.String("docs", "", "documentation root (default: from config)")
	reset := fs.Bool("reset", false, "drop the existing index before indexing")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}

	if *verbose {
		logger = log.New(log.Config{Level: slog.LevelDebug})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	root := cfg.DocsPath
	if *docsPath != "" {
		root = *docsPath
	}

	if *reset {
		if err := a.Indexer.Reset(ctx); err != nil {
			return fmt.Errorf("resetting index: %w", err)
		}
		fmt.Println("Existing index dropped.")
	}

	result, err := a.Indexer.IndexRoot(ctx, root)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", root, err)
	}

	fmt.Printf("Indexed %d files (%d chunks) from %s\n", result.Files, result.Chunks, root)
	if len(result.Failed) > 0 {
		fmt.Printf("Failed to index %d files:\n", len(result.Failed))
		for _, f := range result.Failed {
			fmt.Printf("  - %s\n", f)
		}
	}
	return nil
}
