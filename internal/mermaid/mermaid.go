// Package mermaid validates and repairs mermaid diagrams embedded in
// generated answers.
//
// Validation shells out to the mermaid CLI (mmdc). When the binary is not
// installed, diagrams pass through unvalidated; a broken local toolchain
// should never block an answer.
package mermaid

import (
	"regexp"
)

// fencePattern captures the body of ```mermaid code fences.
var fencePattern = regexp.MustCompile("(?s)```mermaid\n(.*?)```")

// Extract returns the code of each mermaid block in a markdown document,
// in order of appearance.
func Extract(markdown string) []string {
	matches := fencePattern.FindAllStringSubmatch(markdown, -1)
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, m[1])
	}
	return blocks
}
