package rag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guilhermegouw/cdd-docs/internal/log"
	"github.com/guilhermegouw/cdd-docs/internal/session"
	"github.com/guilhermegouw/cdd-docs/internal/testutil"
)

func newTestRewriter(t *testing.T, llm *testutil.MockLLM) *Rewriter {
	t.Helper()
	g := genkit.Init(context.Background())
	llm.RegisterModel(g)
	return NewRewriter(g, "mock/test-model", time.Second, log.NewNop())
}

func TestRewrite_EmptyHistoryPassesThrough(t *testing.T) {
	t.Parallel()

	llm := testutil.NewMockLLM("should not be used")
	r := newTestRewriter(t, llm)

	out := r.Rewrite(context.Background(), "how does chunking work?", nil)
	assert.Equal(t, "how does chunking work?", out)
	assert.Empty(t, llm.Calls())
}

func TestRewrite_ResolvesFollowUp(t *testing.T) {
	t.Parallel()

	llm := testutil.NewMockLLM("what is the chunking overlap size?")
	r := newTestRewriter(t, llm)

	history := []session.Turn{
		{Role: session.RoleUser, Content: "how does chunking work?"},
		{Role: session.RoleAssistant, Content: "documents are split into overlapping chunks"},
	}
	out := r.Rewrite(context.Background(), "what about the overlap?", history)
	assert.Equal(t, "what is the chunking overlap size?", out)

	calls := llm.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].UserMessage, "how does chunking work?")
	assert.Contains(t, calls[0].UserMessage, "what about the overlap?")
}

func TestRewrite_GenerationErrorFallsBack(t *testing.T) {
	t.Parallel()

	llm := testutil.NewMockLLM("")
	llm.FailWith(errors.New("model offline"))
	r := newTestRewriter(t, llm)

	history := []session.Turn{{Role: session.RoleUser, Content: "earlier question"}}
	out := r.Rewrite(context.Background(), "what about it?", history)
	assert.Equal(t, "what about it?", out)
}

func TestRewrite_EmptyResponseFallsBack(t *testing.T) {
	t.Parallel()

	llm := testutil.NewMockLLM("   ")
	r := newTestRewriter(t, llm)

	history := []session.Turn{{Role: session.RoleUser, Content: "earlier question"}}
	out := r.Rewrite(context.Background(), "what about it?", history)
	assert.Equal(t, "what about it?", out)
}
