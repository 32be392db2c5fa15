package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/guilhermegouw/cdd-docs/internal/log"
	"github.com/guilhermegouw/cdd-docs/internal/session"
)

// Rewriter turns follow-up questions into standalone search queries using
// the conversation history. Rewriting is best-effort: any failure returns
// the original question so retrieval always proceeds.
type Rewriter struct {
	g         *genkit.Genkit
	modelName string
	timeout   time.Duration
	logger    log.Logger
}

// NewRewriter creates a rewriter.
func NewRewriter(g *genkit.Genkit, modelName string, timeout time.Duration, logger log.Logger) *Rewriter {
	if timeout <= 0 {
		timeout = DefaultRewriteTimeout
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Rewriter{g: g, modelName: modelName, timeout: timeout, logger: logger}
}

// Rewrite resolves pronouns and references in question against the
// conversation. With no history the question passes through untouched.
func (r *Rewriter) Rewrite(ctx context.Context, question string, history []session.Turn) string {
	if len(history) == 0 {
		return question
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := []ai.GenerateOption{
		ai.WithPrompt(fmt.Sprintf(rewritePrompt, formatHistory(history), question)),
	}
	if r.modelName != "" {
		opts = append(opts, ai.WithModelName(r.modelName))
	}

	resp, err := genkit.Generate(ctx, r.g, opts...)
	if err != nil {
		r.logger.Debug("query rewrite failed, using original question", "error", err)
		return question
	}

	rewritten := strings.TrimSpace(resp.Text())
	if rewritten == "" {
		return question
	}

	r.logger.Debug("query rewritten", "original", question, "rewritten", rewritten)
	return rewritten
}
