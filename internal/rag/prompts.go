package rag

import (
	"fmt"
	"strings"

	"github.com/guilhermegouw/cdd-docs/internal/session"
)

// systemPrompt grounds the generation model in the retrieved documentation.
const systemPrompt = `You are a documentation assistant. Answer questions using ONLY the provided documentation excerpts.

Rules:
- Base every statement on the excerpts below. If the excerpts do not contain the answer, say so plainly instead of guessing.
- Cite the source file when it helps the reader find more detail.
- Answer in markdown. Use mermaid code fences for diagrams when a diagram genuinely clarifies the answer.
- Keep answers focused on the question asked.`

// rewritePrompt turns a follow-up question into a standalone one. The model
// must return only the rewritten question.
const rewritePrompt = `Given the conversation below, rewrite the final user question as a single standalone question that contains all context needed to search a documentation index. Resolve pronouns and references to earlier turns. If the question is already standalone, return it unchanged.

Return ONLY the rewritten question, with no quotes and no explanation.

Conversation:
%s

Final question: %s

Standalone question:`

// formatContext renders retrieved chunks into the excerpt block the system
// prompt refers to.
func formatContext(results []Retrieved) string {
	if len(results) == 0 {
		return "No documentation excerpts were found for this question."
	}
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("[Source %d: %s - %s]\n%s",
			i+1, r.Chunk.SourcePath, r.Chunk.Section, r.Chunk.Content)
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// formatHistory renders conversation turns for the rewrite prompt.
func formatHistory(turns []session.Turn) string {
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = fmt.Sprintf("%s: %s", t.Role, t.Content)
	}
	return strings.Join(lines, "\n")
}
