package api

import (
	"encoding/json"
	"net/http"

	"github.com/guilhermegouw/cdd-docs/internal/log"
)

// ErrorResponse is the JSON body of every error response: a stable machine
// code plus an optional human-readable message.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON encodes data as the response body under the given status.
// Encoding failures after WriteHeader can only be logged; the status is
// already on the wire.
func writeJSON(w http.ResponseWriter, logger log.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

// writeError sends an ErrorResponse with the given status.
func writeError(w http.ResponseWriter, logger log.Logger, status int, code, message string) {
	writeJSON(w, logger, status, ErrorResponse{Error: code, Message: message})
}
