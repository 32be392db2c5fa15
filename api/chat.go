package api

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"

	"github.com/guilhermegouw/cdd-docs/internal/log"
	"github.com/guilhermegouw/cdd-docs/internal/rag"
)

// AnswerStreamer is the pipeline surface the chat endpoints need.
type AnswerStreamer interface {
	Answer(ctx context.Context, sessionID, question string) iter.Seq2[rag.Event, error]
	Ask(ctx context.Context, sessionID, question string) (string, []rag.Retrieved, string, error)
}

// ChatHandler handles the chat endpoints.
//
// Endpoints:
//   - POST /api/chat        - synchronous chat (JSON request/response)
//   - POST /api/chat/stream - streaming chat (Server-Sent Events)
type ChatHandler struct {
	engine AnswerStreamer
	logger log.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(engine AnswerStreamer, logger log.Logger) *ChatHandler {
	return &ChatHandler{engine: engine, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handleChat)
	mux.HandleFunc("POST /api/chat/stream", h.handleStream)
}

// ChatRequest is the request body for both chat endpoints.
type ChatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

// Source describes one retrieved chunk backing an answer.
type Source struct {
	FilePath string  `json:"file_path"`
	Section  string  `json:"section"`
	Score    float64 `json:"score"`
}

// ChatResponse is the synchronous chat response.
type ChatResponse struct {
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources"`
	SessionID string   `json:"session_id"`
}

func toSources(retrieved []rag.Retrieved) []Source {
	sources := make([]Source, len(retrieved))
	for i, r := range retrieved {
		sources[i] = Source{
			FilePath: r.Chunk.SourcePath,
			Section:  r.Chunk.Section,
			Score:    r.Score,
		}
	}
	return sources
}

// handleChat answers a question in a single JSON response.
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Question == "" {
		writeError(w, h.logger, http.StatusBadRequest, "MISSING_QUESTION", "question is required")
		return
	}

	answer, sources, sessionID, err := h.engine.Ask(r.Context(), req.SessionID, req.Question)
	if err != nil {
		h.logger.Error("chat request failed", "error", err, "session_id", req.SessionID)
		writeError(w, h.logger, http.StatusInternalServerError, "ANSWER_FAILED", err.Error())
		return
	}

	writeJSON(w, h.logger, http.StatusOK, ChatResponse{
		Answer:    answer,
		Sources:   toSources(sources),
		SessionID: sessionID,
	})
}

// SSESourcesData is the data for "sources" events.
type SSESourcesData struct {
	Sources   []Source `json:"sources"`
	SessionID string   `json:"session_id"`
}

// SSETextData is the data for "text" events.
type SSETextData struct {
	Text string `json:"text"`
}

// SSECorrectionData is the data for "correction" events, carrying the full
// answer after diagram repair changed it.
type SSECorrectionData struct {
	Answer string `json:"answer"`
}

// SSEDoneData is the data for "done" events.
type SSEDoneData struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
}

// SSEErrorData is the data for "error" events.
type SSEErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleStream answers a question over Server-Sent Events.
//
// Event order: sources, zero or more text fragments, an optional
// correction, then done. Errors end the stream with an error event.
func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeSSE(w, flusher, "error", SSEErrorData{Code: "INVALID_REQUEST", Message: fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if req.Question == "" {
		h.writeSSE(w, flusher, "error", SSEErrorData{Code: "MISSING_QUESTION", Message: "question is required"})
		return
	}

	ctx := r.Context()
	h.logger.Info("SSE stream started", "session_id", req.SessionID)

	for ev, err := range h.engine.Answer(ctx, req.SessionID, req.Question) {
		// Stop writing once the client disconnects.
		select {
		case <-ctx.Done():
			h.logger.Info("client disconnected", "session_id", req.SessionID)
			return
		default:
		}

		if err != nil {
			h.logger.Error("stream failed", "error", err, "session_id", req.SessionID)
			h.writeSSE(w, flusher, "error", SSEErrorData{Code: "ANSWER_FAILED", Message: err.Error()})
			return
		}

		switch ev.Type {
		case rag.EventSources:
			h.writeSSE(w, flusher, "sources", SSESourcesData{
				Sources:   toSources(ev.Sources),
				SessionID: ev.SessionID,
			})
		case rag.EventText:
			h.writeSSE(w, flusher, "text", SSETextData{Text: ev.Text})
		case rag.EventCorrection:
			h.writeSSE(w, flusher, "correction", SSECorrectionData{Answer: ev.Answer})
		case rag.EventDone:
			h.writeSSE(w, flusher, "done", SSEDoneData{Answer: ev.Answer, SessionID: ev.SessionID})
			h.logger.Info("SSE stream completed",
				"session_id", ev.SessionID, "answer_len", len(ev.Answer))
		}
	}
}

// writeSSE writes one event to the SSE stream.
func (h *ChatHandler) writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to marshal SSE payload", "error", err, "event", event)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}
