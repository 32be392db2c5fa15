package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guilhermegouw/cdd-docs/internal/knowledge"
	"github.com/guilhermegouw/cdd-docs/internal/log"
	"github.com/guilhermegouw/cdd-docs/internal/mermaid"
	"github.com/guilhermegouw/cdd-docs/internal/session"
	"github.com/guilhermegouw/cdd-docs/internal/testutil"
)

type engineFixture struct {
	engine   *Engine
	llm      *testutil.MockLLM
	store    *fakeSearchStore
	sessions *session.Store
}

// passValidator accepts every diagram.
type passValidator struct{}

func (passValidator) Validate(context.Context, string) (string, error) { return "", nil }

// failUntilFixedValidator rejects diagrams until their code contains
// "fixed".
type failUntilFixedValidator struct{}

func (failUntilFixedValidator) Validate(_ context.Context, code string) (string, error) {
	if strings.Contains(code, "fixed") {
		return "", nil
	}
	return "Error: parse error on line 1", nil
}

func newEngineFixture(t *testing.T, validator mermaid.Validator) *engineFixture {
	t.Helper()

	g := genkit.Init(context.Background())
	llm := testutil.NewMockLLM("the answer from the documentation")
	llm.RegisterModel(g)

	store := &fakeSearchStore{
		results: []knowledge.Result{
			{Chunk: knowledge.Chunk{ID: "a", SourcePath: "docs/a.md", Section: "Intro", Content: "intro text"}, Distance: 0.2},
		},
	}
	sessions := session.NewStore(5, time.Hour)

	engine := NewEngine(
		g,
		NewRetriever(store, 3),
		NewRewriter(g, "mock/test-model", time.Second, log.NewNop()),
		sessions,
		validator,
		EngineOptions{
			ModelName:          "mock/test-model",
			GenerateTimeout:    5 * time.Second,
			MermaidMaxAttempts: 2,
			Retry:              RetryConfig{MaxRetries: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
		},
		log.NewNop(),
	)
	return &engineFixture{engine: engine, llm: llm, store: store, sessions: sessions}
}

func collect(t *testing.T, seq func(func(Event, error) bool)) ([]Event, error) {
	t.Helper()
	var events []Event
	for ev, err := range seq {
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func TestAnswer_EventOrder(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, passValidator{})
	events, err := collect(t, f.engine.Answer(context.Background(), "", "how does indexing work?"))
	require.NoError(t, err)
	require.NotEmpty(t, events)

	assert.Equal(t, EventSources, events[0].Type)
	require.Len(t, events[0].Sources, 1)
	assert.Equal(t, "docs/a.md", events[0].Sources[0].Chunk.SourcePath)
	assert.InDelta(t, 0.8, events[0].Sources[0].Score, 1e-9)
	assert.NotEmpty(t, events[0].SessionID)

	done := events[len(events)-1]
	assert.Equal(t, EventDone, done.Type)
	assert.Equal(t, "the answer from the documentation", done.Answer)
	assert.Equal(t, events[0].SessionID, done.SessionID)

	// Everything between sources and done is streamed text that
	// reassembles into the final answer.
	var streamed strings.Builder
	for _, ev := range events[1 : len(events)-1] {
		require.Equal(t, EventText, ev.Type)
		streamed.WriteString(ev.Text)
	}
	assert.Equal(t, done.Answer, streamed.String())

	// The exchange is recorded.
	turns := f.sessions.History(done.SessionID)
	require.Len(t, turns, 2)
	assert.Equal(t, "how does indexing work?", turns[0].Content)
	assert.Equal(t, done.Answer, turns[1].Content)
}

func TestAnswer_GroundsGenerationInRetrievedChunks(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, nil)
	_, err := collect(t, f.engine.Answer(context.Background(), "", "how does indexing work?"))
	require.NoError(t, err)

	calls := f.llm.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].System, "[Source 1: docs/a.md - Intro]")
	assert.Contains(t, calls[0].System, "intro text")
}

func TestAnswer_EmptyCorpus(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, nil)
	f.store.results = nil

	events, err := collect(t, f.engine.Answer(context.Background(), "", "anything indexed?"))
	require.NoError(t, err)
	assert.Equal(t, EventSources, events[0].Type)
	assert.Empty(t, events[0].Sources)
	assert.Equal(t, EventDone, events[len(events)-1].Type)

	calls := f.llm.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].System, "No documentation excerpts were found")
}

func TestAnswer_RetrieveErrorIsTerminal(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, nil)
	f.store.err = errors.New("connection refused")

	events, err := collect(t, f.engine.Answer(context.Background(), "session-1", "question"))
	require.Error(t, err)
	assert.Empty(t, events)
	assert.Empty(t, f.sessions.History("session-1"))
}

func TestAnswer_GenerateErrorLeavesHistoryUntouched(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, nil)
	f.llm.FailWith(errors.New("invalid request"))

	events, err := collect(t, f.engine.Answer(context.Background(), "session-2", "question"))
	require.Error(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventSources, events[0].Type)
	assert.Empty(t, f.sessions.History("session-2"))
}

func TestAnswer_UsesRewrittenQueryForRetrieval(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, nil)
	id := f.sessions.GetOrCreate("")
	f.sessions.AppendExchange(id, "how does chunking work?", "documents are split into chunks")
	f.llm.AddResponse("standalone question:", "what is the chunk overlap size?")

	_, err := collect(t, f.engine.Answer(context.Background(), id, "what about the overlap?"))
	require.NoError(t, err)
	assert.Equal(t, "what is the chunk overlap size?", f.store.lastQuery)
}

func TestAnswer_RepairEmitsCorrection(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, failUntilFixedValidator{})
	broken := "See the flow:\n\n```mermaid\ngraph TD\n  A -> B\n```\n"
	repaired := "See the flow:\n\n```mermaid\ngraph TD\n  A --> fixed\n```"
	f.llm.AddResponse("flow diagram", broken)
	f.llm.AddResponse("syntax error", repaired)

	events, err := collect(t, f.engine.Answer(context.Background(), "", "show me the flow diagram"))
	require.NoError(t, err)

	var correction *Event
	for i := range events {
		if events[i].Type == EventCorrection {
			correction = &events[i]
		}
	}
	require.NotNil(t, correction, "expected a correction event")
	assert.Contains(t, correction.Answer, "A --> fixed")

	done := events[len(events)-1]
	assert.Equal(t, done.Answer, correction.Answer)

	// The corrected answer is what lands in the session.
	turns := f.sessions.History(done.SessionID)
	require.Len(t, turns, 2)
	assert.Contains(t, turns[1].Content, "A --> fixed")
}

func TestAnswer_ConsumerStopEndsPipeline(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, nil)
	var sessionID string
	for ev, err := range f.engine.Answer(context.Background(), "", "question") {
		require.NoError(t, err)
		sessionID = ev.SessionID
		break
	}

	// Stopping after the sources event means no exchange is recorded.
	assert.Empty(t, f.sessions.History(sessionID))
}

func TestAsk(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, nil)
	answer, sources, id, err := f.engine.Ask(context.Background(), "", "how does indexing work?")
	require.NoError(t, err)
	assert.Equal(t, "the answer from the documentation", answer)
	require.Len(t, sources, 1)
	assert.NotEmpty(t, id)
	assert.Len(t, f.sessions.History(id), 2)
}
