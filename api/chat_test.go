package api

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guilhermegouw/cdd-docs/internal/knowledge"
	"github.com/guilhermegouw/cdd-docs/internal/log"
	"github.com/guilhermegouw/cdd-docs/internal/rag"
	"github.com/guilhermegouw/cdd-docs/internal/testutil"
)

// fakeEngine yields a canned event sequence.
type fakeEngine struct {
	events []rag.Event
	err    error
}

func (f *fakeEngine) Answer(_ context.Context, _, _ string) iter.Seq2[rag.Event, error] {
	return func(yield func(rag.Event, error) bool) {
		for _, ev := range f.events {
			if !yield(ev, nil) {
				return
			}
		}
		if f.err != nil {
			yield(rag.Event{}, f.err)
		}
	}
}

func (f *fakeEngine) Ask(ctx context.Context, sessionID, question string) (string, []rag.Retrieved, string, error) {
	var (
		answer  string
		sources []rag.Retrieved
		id      string
	)
	for ev, err := range f.Answer(ctx, sessionID, question) {
		if err != nil {
			return "", nil, "", err
		}
		switch ev.Type {
		case rag.EventSources:
			sources = ev.Sources
			id = ev.SessionID
		case rag.EventDone, rag.EventCorrection:
			answer = ev.Answer
			if ev.SessionID != "" {
				id = ev.SessionID
			}
		case rag.EventText:
		}
	}
	return answer, sources, id, nil
}

func answeringEngine() *fakeEngine {
	sources := []rag.Retrieved{
		{Chunk: knowledge.Chunk{SourcePath: "docs/a.md", Section: "Intro"}, Score: 0.8},
	}
	return &fakeEngine{events: []rag.Event{
		{Type: rag.EventSources, Sources: sources, SessionID: "sess-1"},
		{Type: rag.EventText, Text: "the "},
		{Type: rag.EventText, Text: "answer"},
		{Type: rag.EventDone, Answer: "the answer", SessionID: "sess-1"},
	}}
}

func newChatServer(engine AnswerStreamer) *httptest.Server {
	h := NewChatHandler(engine, log.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return httptest.NewServer(mux)
}

func TestHandleChat(t *testing.T) {
	t.Parallel()

	srv := newChatServer(answeringEngine())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/chat", "application/json",
		strings.NewReader(`{"question": "how does it work?"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "the answer", body.Answer)
	assert.Equal(t, "sess-1", body.SessionID)
	require.Len(t, body.Sources, 1)
	assert.Equal(t, "docs/a.md", body.Sources[0].FilePath)
	assert.Equal(t, "Intro", body.Sources[0].Section)
	assert.InDelta(t, 0.8, body.Sources[0].Score, 1e-9)
}

func TestHandleChat_MissingQuestion(t *testing.T) {
	t.Parallel()

	srv := newChatServer(answeringEngine())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/chat", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "MISSING_QUESTION", body.Error)
}

func TestHandleChat_InvalidJSON(t *testing.T) {
	t.Parallel()

	srv := newChatServer(answeringEngine())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/chat", "application/json", strings.NewReader(`{`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleChat_EngineError(t *testing.T) {
	t.Parallel()

	srv := newChatServer(&fakeEngine{err: errors.New("model offline")})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/chat", "application/json",
		strings.NewReader(`{"question": "anything"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHandleStream_EventOrder(t *testing.T) {
	t.Parallel()

	engine := answeringEngine()
	engine.events = append(engine.events[:3:3],
		rag.Event{Type: rag.EventCorrection, Answer: "the corrected answer"},
		rag.Event{Type: rag.EventDone, Answer: "the corrected answer", SessionID: "sess-1"},
	)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream",
		strings.NewReader(`{"question": "how does it work?", "session_id": "sess-1"}`))
	h := NewChatHandler(engine, log.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	mux.ServeHTTP(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	events := testutil.ParseSSE(rec.Body.String())
	require.Len(t, events, 5)
	assert.Equal(t, "sources", events[0].Event)
	assert.Equal(t, "text", events[1].Event)
	assert.Equal(t, "text", events[2].Event)
	assert.Equal(t, "correction", events[3].Event)
	assert.Equal(t, "done", events[4].Event)

	var sources SSESourcesData
	require.NoError(t, json.Unmarshal([]byte(events[0].Data), &sources))
	assert.Equal(t, "sess-1", sources.SessionID)
	require.Len(t, sources.Sources, 1)
	assert.Equal(t, "docs/a.md", sources.Sources[0].FilePath)

	var done SSEDoneData
	require.NoError(t, json.Unmarshal([]byte(events[4].Data), &done))
	assert.Equal(t, "the corrected answer", done.Answer)
	assert.Equal(t, "sess-1", done.SessionID)
}

func TestHandleStream_ErrorEvent(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{
		events: []rag.Event{{Type: rag.EventSources, SessionID: "sess-2"}},
		err:    errors.New("retrieval failed"),
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream",
		strings.NewReader(`{"question": "anything"}`))
	h := NewChatHandler(engine, log.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	mux.ServeHTTP(rec, req)

	events := testutil.ParseSSE(rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, "sources", events[0].Event)
	assert.Equal(t, "error", events[1].Event)

	var errData SSEErrorData
	require.NoError(t, json.Unmarshal([]byte(events[1].Data), &errData))
	assert.Equal(t, "ANSWER_FAILED", errData.Code)
	assert.Contains(t, errData.Message, "retrieval failed")
}

func TestHandleStream_MissingQuestion(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(`{}`))
	h := NewChatHandler(answeringEngine(), log.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	mux.ServeHTTP(rec, req)

	events := testutil.ParseSSE(rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].Event)
}
