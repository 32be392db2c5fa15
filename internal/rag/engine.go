// Package rag orchestrates the retrieval-augmented answer pipeline:
// query rewriting, chunk retrieval, grounded generation, and mermaid
// diagram repair.
package rag

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/guilhermegouw/cdd-docs/internal/log"
	"github.com/guilhermegouw/cdd-docs/internal/mermaid"
	"github.com/guilhermegouw/cdd-docs/internal/session"
)

// EventType identifies a pipeline event.
type EventType string

const (
	// EventSources carries the retrieved chunks, sent before generation
	// starts.
	EventSources EventType = "sources"

	// EventText carries one streamed fragment of the answer.
	EventText EventType = "text"

	// EventCorrection carries the full answer after diagram repair
	// changed it.
	EventCorrection EventType = "correction"

	// EventDone closes the stream with the final answer and session ID.
	EventDone EventType = "done"
)

// Event is one step of an answer in progress.
type Event struct {
	Type      EventType
	Sources   []Retrieved
	Text      string
	Answer    string
	SessionID string
}

// SessionStore is the conversation state surface the engine needs.
type SessionStore interface {
	GetOrCreate(id string) string
	History(id string) []session.Turn
	AppendExchange(id, question, answer string)
}

// errStreamStopped aborts generation when the event consumer stops pulling.
var errStreamStopped = errors.New("event stream stopped by consumer")

// EngineOptions configure an Engine. Zero values fall back to defaults.
type EngineOptions struct {
	ModelName          string
	GenerateTimeout    time.Duration
	MaxHistoryTurns    int
	MermaidMaxAttempts int
	RequestsPerSecond  float64
	Retry              RetryConfig
}

// Engine runs the full question-to-answer pipeline.
type Engine struct {
	g         *genkit.Genkit
	modelName string
	retriever *Retriever
	rewriter  *Rewriter
	sessions  SessionStore
	repairer  *mermaid.Repairer

	genTimeout      time.Duration
	maxHistoryTurns int
	limiter         *rate.Limiter
	retry           RetryConfig
	logger          log.Logger
}

// NewEngine wires the pipeline. validator may be nil to disable diagram
// repair.
func NewEngine(
	g *genkit.Genkit,
	retriever *Retriever,
	rewriter *Rewriter,
	sessions SessionStore,
	validator mermaid.Validator,
	opts EngineOptions,
	logger log.Logger,
) *Engine {
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = DefaultGenerateTimeout
	}
	if opts.MaxHistoryTurns <= 0 {
		opts.MaxHistoryTurns = DefaultMaxHistoryTurns
	}
	if opts.Retry == (RetryConfig{}) {
		opts.Retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = log.NewNop()
	}

	e := &Engine{
		g:               g,
		modelName:       opts.ModelName,
		retriever:       retriever,
		rewriter:        rewriter,
		sessions:        sessions,
		genTimeout:      opts.GenerateTimeout,
		maxHistoryTurns: opts.MaxHistoryTurns,
		limiter:         newLimiter(opts.RequestsPerSecond),
		retry:           opts.Retry,
		logger:          logger,
	}
	if validator != nil {
		e.repairer = mermaid.NewRepairer(validator, e.repairGenerate, opts.MermaidMaxAttempts, logger)
	}
	return e
}

// Answer runs the pipeline for one question and yields events as they
// happen. Event order is sources, zero or more text fragments, an optional
// correction, then done. A yielded error is terminal. The conversation turn
// is recorded only after the answer completes, so failed answers leave the
// session history untouched.
func (e *Engine) Answer(ctx context.Context, sessionID, question string) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		id := e.sessions.GetOrCreate(sessionID)
		history := e.sessions.History(id)

		searchQuery := e.rewriter.Rewrite(ctx, question, history)

		results, err := e.retriever.Retrieve(ctx, searchQuery, 0)
		if err != nil {
			yield(Event{}, fmt.Errorf("retrieving context: %w", err))
			return
		}
		if !yield(Event{Type: EventSources, Sources: results, SessionID: id}, nil) {
			return
		}

		answer, err := e.generate(ctx, question, history, results, yield)
		if err != nil {
			if !errors.Is(err, errStreamStopped) {
				yield(Event{}, err)
			}
			return
		}

		final := answer
		if e.repairer != nil {
			repaired, changed := e.repairer.Run(ctx, answer)
			if changed {
				final = repaired
				if !yield(Event{Type: EventCorrection, Answer: final}, nil) {
					return
				}
			}
		}

		e.sessions.AppendExchange(id, question, final)
		yield(Event{Type: EventDone, Answer: final, SessionID: id}, nil)
	}
}

// Ask answers without streaming, returning the final answer, its sources,
// and the session ID.
func (e *Engine) Ask(ctx context.Context, sessionID, question string) (string, []Retrieved, string, error) {
	var (
		answer  string
		sources []Retrieved
		id      string
	)
	for ev, err := range e.Answer(ctx, sessionID, question) {
		if err != nil {
			return "", nil, "", err
		}
		switch ev.Type {
		case EventSources:
			sources = ev.Sources
			id = ev.SessionID
		case EventDone:
			answer = ev.Answer
			id = ev.SessionID
		case EventCorrection:
			answer = ev.Answer
		case EventText:
			// Fragments are superseded by the done event.
		}
	}
	return answer, sources, id, nil
}

// generate streams the grounded answer, yielding text fragments as they
// arrive. It returns the complete answer text.
func (e *Engine) generate(
	ctx context.Context,
	question string,
	history []session.Turn,
	results []Retrieved,
	yield func(Event, error) bool,
) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.genTimeout)
	defer cancel()

	messages := historyMessages(history, e.maxHistoryTurns)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(question)))

	streamed := false
	callback := func(_ context.Context, chunk *ai.ModelResponseChunk) error {
		text := chunk.Text()
		if text == "" {
			return nil
		}
		streamed = true
		if !yield(Event{Type: EventText, Text: text}, nil) {
			return errStreamStopped
		}
		return nil
	}

	opts := []ai.GenerateOption{
		ai.WithSystem(systemPrompt + "\n\nDocumentation excerpts:\n\n" + formatContext(results)),
		ai.WithMessages(messages...),
		ai.WithStreaming(callback),
	}
	if e.modelName != "" {
		opts = append(opts, ai.WithModelName(e.modelName))
	}

	resp, err := e.generateWithRetry(ctx, opts, func() bool { return !streamed })
	if err != nil {
		if errors.Is(err, errStreamStopped) {
			return "", errStreamStopped
		}
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return resp.Text(), nil
}

// repairGenerate is the generation hook handed to the mermaid repairer.
func (e *Engine) repairGenerate(ctx context.Context, prompt string) (string, error) {
	opts := []ai.GenerateOption{ai.WithPrompt(prompt)}
	if e.modelName != "" {
		opts = append(opts, ai.WithModelName(e.modelName))
	}
	resp, err := e.generateWithRetry(ctx, opts, nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// historyMessages converts the most recent turns into genkit messages.
func historyMessages(history []session.Turn, maxTurns int) []*ai.Message {
	if maxTurns > 0 && len(history) > 2*maxTurns {
		history = history[len(history)-2*maxTurns:]
	}
	messages := make([]*ai.Message, 0, len(history))
	for _, t := range history {
		part := ai.NewTextPart(t.Content)
		if t.Role == session.RoleAssistant {
			messages = append(messages, ai.NewModelMessage(part))
		} else {
			messages = append(messages, ai.NewUserMessage(part))
		}
	}
	return messages
}
