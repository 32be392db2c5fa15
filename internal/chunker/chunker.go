// Package chunker splits markdown documents into retrieval-sized chunks.
//
// Documents are divided along their header hierarchy, then long sections are
// split on paragraph boundaries with a word overlap between consecutive
// pieces. Undersized chunks are merged with a neighbor so the index does not
// fill with fragments that embed poorly.
package chunker

import (
	"path/filepath"
	"strings"
)

// DefaultOptions mirror the configuration defaults.
const (
	DefaultTargetWords  = 200
	DefaultOverlapWords = 30
	DefaultMinWords     = 100
)

// Chunk is one indexed unit of a source document. Extra carries optional
// metadata outside the fixed fields; the splitter leaves it nil and callers
// may populate it before indexing.
type Chunk struct {
	Text          string
	SourcePath    string
	SectionTitle  string
	SequenceIndex int
	WordCount     int
	Extra         map[string]string
}

// Options control chunk sizing. Zero values fall back to the defaults.
type Options struct {
	TargetWords  int
	OverlapWords int
	MinWords     int
}

func (o Options) withDefaults() Options {
	if o.TargetWords <= 0 {
		o.TargetWords = DefaultTargetWords
	}
	if o.OverlapWords <= 0 {
		o.OverlapWords = DefaultOverlapWords
	}
	if o.MinWords <= 0 {
		o.MinWords = DefaultMinWords
	}
	if o.OverlapWords >= o.TargetWords {
		o.OverlapWords = o.TargetWords / 4
	}
	return o
}

// section is an intermediate grouping of content under one header.
type section struct {
	title      string
	paragraphs []string
}

// Split chunks a markdown document. The result is deterministic: the same
// input always produces the same chunks in the same order, with
// SequenceIndex running 0..n-1.
func Split(text, sourcePath string, opts Options) []Chunk {
	opts = opts.withDefaults()

	sections := splitSections(text, sourcePath)
	if len(sections) == 0 {
		return nil
	}

	var chunks []Chunk
	for _, sec := range sections {
		chunks = append(chunks, splitSection(sec, opts)...)
	}
	chunks = mergeSmall(chunks, opts.MinWords)

	for i := range chunks {
		chunks[i].SourcePath = sourcePath
		chunks[i].SequenceIndex = i
	}
	return chunks
}

// splitSections divides the document on markdown header lines. Content
// before the first header becomes an "Introduction" section; a document
// without headers takes its title from the file name.
func splitSections(text, sourcePath string) []section {
	lines := strings.Split(text, "\n")

	var sections []section
	current := section{title: ""}
	var buf []string

	flushParagraph := func() {
		p := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = buf[:0]
		if p != "" {
			current.paragraphs = append(current.paragraphs, p)
		}
	}
	flushSection := func() {
		flushParagraph()
		if len(current.paragraphs) > 0 {
			sections = append(sections, current)
		}
	}

	inFence := false
	sawHeader := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			buf = append(buf, line)
			continue
		}
		if !inFence && isHeader(trimmed) {
			flushSection()
			sawHeader = true
			current = section{title: headerTitle(trimmed)}
			continue
		}
		if !inFence && trimmed == "" {
			flushParagraph()
			continue
		}
		buf = append(buf, line)
	}
	flushSection()

	// Name the pre-header content. When the document has no headers at
	// all, the file name stands in for a section title.
	for i := range sections {
		if sections[i].title != "" {
			continue
		}
		if sawHeader {
			sections[i].title = "Introduction"
		} else {
			sections[i].title = titleFromPath(sourcePath)
		}
	}
	return sections
}

func isHeader(line string) bool {
	if !strings.HasPrefix(line, "#") {
		return false
	}
	rest := strings.TrimLeft(line, "#")
	return strings.HasPrefix(rest, " ") || rest == ""
}

func headerTitle(line string) string {
	title := strings.TrimSpace(strings.TrimLeft(line, "#"))
	if title == "" {
		return "Untitled"
	}
	return title
}

func titleFromPath(sourcePath string) string {
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		return "Untitled"
	}
	return base
}

// splitSection breaks one section into chunks near the target size,
// flushing on paragraph boundaries and prepending an overlap tail from the
// previous chunk.
func splitSection(sec section, opts Options) []Chunk {
	var chunks []Chunk
	var parts []string
	count := 0

	flush := func() {
		if len(parts) == 0 {
			return
		}
		text := strings.Join(parts, "\n\n")
		if len(chunks) > 0 {
			tail := lastWords(chunks[len(chunks)-1].Text, opts.OverlapWords)
			if tail != "" {
				text = tail + "\n\n" + text
			}
		}
		chunks = append(chunks, Chunk{
			Text:         text,
			SectionTitle: sec.title,
			WordCount:    countWords(text),
		})
		parts = parts[:0]
		count = 0
	}

	for _, p := range sec.paragraphs {
		parts = append(parts, p)
		count += countWords(p)
		if count >= opts.TargetWords {
			flush()
		}
	}
	flush()
	return chunks
}

// mergeSmall folds chunks below the minimum into a neighbor. A chunk merges
// into its previous same-section sibling when one exists, otherwise into the
// following chunk. The loop repeats until no merge applies; a document that
// reduces to a single chunk is kept whatever its size.
func mergeSmall(chunks []Chunk, minWords int) []Chunk {
	for {
		if len(chunks) <= 1 {
			return chunks
		}
		idx := -1
		for i, c := range chunks {
			if c.WordCount < minWords {
				idx = i
				break
			}
		}
		if idx < 0 {
			return chunks
		}
		chunks = mergeAt(chunks, idx)
	}
}

func mergeAt(chunks []Chunk, i int) []Chunk {
	// Prefer the previous chunk of the same section.
	if i > 0 && chunks[i-1].SectionTitle == chunks[i].SectionTitle {
		chunks[i-1] = combine(chunks[i-1], chunks[i], chunks[i-1].SectionTitle)
		return append(chunks[:i], chunks[i+1:]...)
	}
	// Next chunk of the same section.
	if i+1 < len(chunks) && chunks[i+1].SectionTitle == chunks[i].SectionTitle {
		chunks[i+1] = combine(chunks[i], chunks[i+1], chunks[i].SectionTitle)
		return append(chunks[:i], chunks[i+1:]...)
	}
	// Sole chunk of its section: fold forward into the next section,
	// keeping that section's title, or backward at the end of document.
	if i+1 < len(chunks) {
		chunks[i+1] = combine(chunks[i], chunks[i+1], chunks[i+1].SectionTitle)
		return append(chunks[:i], chunks[i+1:]...)
	}
	chunks[i-1] = combine(chunks[i-1], chunks[i], chunks[i-1].SectionTitle)
	return chunks[:i]
}

func combine(a, b Chunk, title string) Chunk {
	text := a.Text + "\n\n" + b.Text
	return Chunk{
		Text:         text,
		SectionTitle: title,
		WordCount:    countWords(text),
	}
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

// lastWords returns the final n whitespace-separated words of s.
func lastWords(s string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[len(words)-n:], " ")
}
