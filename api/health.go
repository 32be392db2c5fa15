package api

import (
	"context"
	"net/http"

	"github.com/guilhermegouw/cdd-docs/internal/log"
)

// ChunkCounter reports how many chunks the knowledge store holds. The
// readiness probe uses it to verify the index is reachable and populated.
type ChunkCounter interface {
	Count(ctx context.Context) (int64, error)
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	counter ChunkCounter
	logger  log.Logger
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(counter ChunkCounter, logger log.Logger) *HealthHandler {
	return &HealthHandler{counter: counter, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness returns 200 OK if the process is alive.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness returns 200 OK when the knowledge store is reachable and has
// indexed content, 503 otherwise. An empty index means the offline index
// command has not run yet and every answer would come back ungrounded.
func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.counter == nil {
		http.Error(w, "knowledge store not configured", http.StatusServiceUnavailable)
		return
	}
	count, err := h.counter.Count(r.Context())
	if err != nil {
		h.logger.Error("readiness check failed", "error", err)
		http.Error(w, "knowledge store not ready", http.StatusServiceUnavailable)
		return
	}
	if count == 0 {
		http.Error(w, "index is empty", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
