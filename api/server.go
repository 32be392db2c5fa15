// Package api provides the HTTP REST API for the documentation assistant.
//
// Endpoints:
//
//	POST   /api/chat           - synchronous question answering (JSON)
//	POST   /api/chat/stream    - streaming answers (Server-Sent Events)
//	DELETE /api/sessions/{id}  - clear a conversation
//	GET    /health             - liveness probe
//	GET    /ready              - readiness probe (index reachable and populated)
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery)
//   - health.go: health check endpoints
//   - chat.go: chat endpoints (sync and SSE)
//   - session.go: session management endpoints
//   - response.go: JSON response helpers
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/guilhermegouw/cdd-docs/internal/log"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:3400"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Generous because SSE answers stream for as long as generation runs.
	WriteTimeout = 5 * time.Minute

	// IdleTimeout is the maximum time to wait for the next request on
	// keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for the REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	health  *HealthHandler
	chat    *ChatHandler
	session *SessionHandler
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(engine AnswerStreamer, sessions SessionClearer, counter ChunkCounter, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	mux := http.NewServeMux()

	s := &Server{
		mux:     mux,
		logger:  logger,
		health:  NewHealthHandler(counter, logger),
		chat:    NewChatHandler(engine, logger),
		session: NewSessionHandler(sessions, logger),
	}

	s.health.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	s.session.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery, then logging, then the handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, panicRecovery(s.logger), requestLogging(s.logger))
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
