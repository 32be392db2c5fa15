// Package cmd provides the CLI commands for the documentation assistant.
//
// Commands:
//   - serve: HTTP API server with SSE streaming
//   - index: offline documentation indexing
//
// Signal handling and graceful shutdown are implemented for all commands
// via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/guilhermegouw/cdd-docs/internal/log"
)

// Execute is the main entry point for the CLI application.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, JSON: os.Getenv("LOG_JSON") != ""})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe(logger)
	case "index":
		return runIndex(logger)
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("cdd-docs - documentation Q&A service")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  cdd-docs serve [addr]       Start the HTTP API server (default: 127.0.0.1:3400)")
	fmt.Println("  cdd-docs index [flags]      Index the documentation corpus")
	fmt.Println("  cdd-docs --version          Show version information")
	fmt.Println("  cdd-docs --help             Show this help")
	fmt.Println()
	fmt.Println("Index flags:")
	fmt.Println("  -docs <path>                Documentation root (default: from config)")
	fmt.Println("  -reset                      Drop the existing index first")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY              Required for the googleai provider")
	fmt.Println("  DATABASE_URL                Optional: overrides postgres_* settings")
	fmt.Println("  CDD_DOCS_*                  Optional: override any config key")
	fmt.Println("  DEBUG                       Optional: enable debug logging")
	fmt.Println("  LOG_JSON                    Optional: JSON log output")
}
