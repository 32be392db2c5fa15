package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/guilhermegouw/cdd-docs/api"
	"github.com/guilhermegouw/cdd-docs/internal/app"
	"github.com/guilhermegouw/cdd-docs/internal/config"
	"github.com/guilhermegouw/cdd-docs/internal/log"
)

// runServe starts the HTTP API server and blocks until a shutdown signal
// arrives. An optional address argument overrides the configured one.
func runServe(logger log.Logger) error {
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

	addr := cfg.ServerAddr
	if len(os.Args) > 2 {
		addr = os.Args[2]
	}

	srv := api.NewServer(a.Engine, a.Sessions, a.Knowledge, logger)
	return srv.Run(ctx, addr)
}
