package mermaid

import (
	"context"
	"fmt"
	"strings"

	"github.com/guilhermegouw/cdd-docs/internal/log"
)

// Validator checks a single diagram. An empty message means the diagram is
// valid.
type Validator interface {
	Validate(ctx context.Context, code string) (string, error)
}

// Generator produces a corrected complete answer from a repair prompt. The
// rag engine supplies this from its model client.
type Generator func(ctx context.Context, prompt string) (string, error)

// diagramError is one failing diagram, numbered by position in the answer.
type diagramError struct {
	index int
	code  string
	msg   string
}

// Repairer runs the validate-and-regenerate loop over the diagrams in an
// answer.
type Repairer struct {
	validator   Validator
	generate    Generator
	maxAttempts int
	logger      log.Logger
}

// NewRepairer creates a repairer with a fixed per-answer attempt budget.
func NewRepairer(validator Validator, generate Generator, maxAttempts int, logger log.Logger) *Repairer {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Repairer{
		validator:   validator,
		generate:    generate,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Run validates the mermaid diagrams in the answer and attempts to repair
// the broken ones. Each round validates every diagram, sends all failures
// to the generator in a single prompt, and replaces the answer with the
// corrected response before re-validating. The attempt budget counts
// generator calls per answer, not per diagram. Diagrams that stay broken
// after the budget is spent are left verbatim; repair never fails an
// answer.
func (r *Repairer) Run(ctx context.Context, answer string) (string, bool) {
	if r.maxAttempts <= 0 || r.validator == nil || r.generate == nil {
		return answer, false
	}

	current := answer
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		failures := r.validateAll(ctx, current)
		if len(failures) == 0 {
			break
		}

		r.logger.Info("repairing mermaid diagrams",
			"attempt", attempt, "max_attempts", r.maxAttempts, "failing", len(failures))

		fixed, err := r.generate(ctx, repairPrompt(current, failures))
		if err != nil {
			r.logger.Warn("diagram repair generation failed", "error", err)
			break
		}
		fixed = strings.TrimSpace(fixed)
		if fixed == "" || fixed == strings.TrimSpace(current) {
			break
		}
		current = fixed
	}

	return current, current != answer
}

// validateAll checks every diagram in the markdown and collects the ones
// that fail. A validator that cannot run skips its diagram.
func (r *Repairer) validateAll(ctx context.Context, markdown string) []diagramError {
	var failures []diagramError
	for i, code := range Extract(markdown) {
		msg, err := r.validator.Validate(ctx, code)
		if err != nil {
			r.logger.Warn("diagram validation failed to run", "error", err)
			continue
		}
		if msg != "" {
			failures = append(failures, diagramError{index: i + 1, code: code, msg: msg})
		}
	}
	return failures
}

// repairPrompt asks the generator for a corrected complete answer, listing
// every failing diagram with its validator error.
func repairPrompt(answer string, failures []diagramError) string {
	var b strings.Builder
	b.WriteString("The following mermaid diagrams in this answer have syntax errors:\n\n")
	for _, f := range failures {
		fmt.Fprintf(&b, "Diagram %d:\n```mermaid\n%s```\nError: %s\n\n", f.index, f.code, f.msg)
	}
	b.WriteString("Original answer:\n\n")
	b.WriteString(answer)
	b.WriteString("\n\nFix the syntax errors in these diagrams and return the corrected version of the complete answer. Change only the diagram blocks; keep all other text exactly as it is, with no added explanation.")
	return b.String()
}
