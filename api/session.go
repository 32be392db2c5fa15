package api

import (
	"net/http"

	"github.com/guilhermegouw/cdd-docs/internal/log"
)

// SessionClearer is the session surface the session endpoints need.
type SessionClearer interface {
	Clear(id string) bool
}

// SessionHandler handles session management endpoints.
type SessionHandler struct {
	sessions SessionClearer
	logger   log.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(sessions SessionClearer, logger log.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("DELETE /api/sessions/{id}", h.handleDelete)
}

// handleDelete clears a conversation. Deleting is idempotent: an unknown
// session ID still succeeds, since the end state is the same.
func (h *SessionHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existed := h.sessions.Clear(id)
	h.logger.Debug("session cleared", "session_id", id, "existed", existed)
	w.WriteHeader(http.StatusNoContent)
}
