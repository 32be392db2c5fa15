package rag

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/guilhermegouw/cdd-docs/internal/chunker"
	"github.com/guilhermegouw/cdd-docs/internal/knowledge"
	"github.com/guilhermegouw/cdd-docs/internal/log"
)

// IndexerStore is the storage surface the indexer needs.
type IndexerStore interface {
	Add(ctx context.Context, chunk knowledge.Chunk) error
	DeleteBySource(ctx context.Context, sourcePath string) (int64, error)
	Reset(ctx context.Context) error
}

// Indexer chunks markdown documents and writes them to the knowledge store.
type Indexer struct {
	store  IndexerStore
	opts   chunker.Options
	logger log.Logger
}

// NewIndexer creates an indexer.
func NewIndexer(store IndexerStore, opts chunker.Options, logger log.Logger) *Indexer {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Indexer{store: store, opts: opts, logger: logger}
}

// IndexResult summarizes an indexing run.
type IndexResult struct {
	Files  int
	Chunks int
	Failed []string
}

// chunkID derives a stable chunk identifier from the source path and
// position, so re-indexing the same document upserts the same rows.
func chunkID(sourcePath string, sequenceIndex int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%d", sourcePath, sequenceIndex))
	return "chunk_" + fmt.Sprintf("%x", sum)[:32]
}

// IndexDocument chunks one markdown document and stores it. Chunks from a
// previous run of the same document are dropped first so shrinking
// documents leave no stale rows behind.
func (ix *Indexer) IndexDocument(ctx context.Context, sourcePath, content string) (int, error) {
	deleted, err := ix.store.DeleteBySource(ctx, sourcePath)
	if err != nil {
		return 0, fmt.Errorf("clearing previous chunks for %s: %w", sourcePath, err)
	}
	if deleted > 0 {
		ix.logger.Debug("replaced previous index entries",
			"source", sourcePath, "deleted", deleted)
	}

	chunks := chunker.Split(content, sourcePath, ix.opts)
	for _, c := range chunks {
		kc := knowledge.Chunk{
			ID:            chunkID(sourcePath, c.SequenceIndex),
			Content:       c.Text,
			SourcePath:    sourcePath,
			Section:       c.SectionTitle,
			SequenceIndex: c.SequenceIndex,
			WordCount:     c.WordCount,
			Extra:         c.Extra,
		}
		if err := ix.store.Add(ctx, kc); err != nil {
			return 0, fmt.Errorf("storing chunk %d of %s: %w", c.SequenceIndex, sourcePath, err)
		}
	}

	ix.logger.Info("document indexed", "source", sourcePath, "chunks", len(chunks))
	return len(chunks), nil
}

// IndexRoot walks a documentation tree and indexes every markdown file.
// A file that fails to index is recorded and skipped; one broken document
// does not abort the run.
func (ix *Indexer) IndexRoot(ctx context.Context, root string) (*IndexResult, error) {
	result := &IndexResult{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			ix.logger.Warn("skipping unreadable document", "source", rel, "error", readErr)
			result.Failed = append(result.Failed, rel)
			return nil
		}

		n, idxErr := ix.IndexDocument(ctx, rel, string(content))
		if idxErr != nil {
			ix.logger.Warn("skipping document that failed to index", "source", rel, "error", idxErr)
			result.Failed = append(result.Failed, rel)
			return nil
		}

		result.Files++
		result.Chunks += n
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("walking %s: %w", root, err)
	}

	ix.logger.Info("indexing run complete",
		"files", result.Files, "chunks", result.Chunks, "failed", len(result.Failed))
	return result, nil
}

// Reset drops every indexed chunk.
func (ix *Indexer) Reset(ctx context.Context) error {
	return ix.store.Reset(ctx)
}
