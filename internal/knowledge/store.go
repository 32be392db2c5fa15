package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"

	"github.com/guilhermegouw/cdd-docs/internal/log"
)

// DefaultTopK is the search fan-out when no override is given.
const DefaultTopK = 7

// ErrEmptyEmbedding indicates the embedder returned no vectors.
var ErrEmptyEmbedding = errors.New("embedder returned no embeddings")

// Store pairs the chunk storage with an embedder. It embeds content on the
// way in and queries on the way out.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   log.Logger
}

// NewStore creates a knowledge store.
func NewStore(queries Querier, embedder ai.Embedder, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{queries: queries, embedder: embedder, logger: logger}
}

// SearchOption adjusts a search.
type SearchOption func(*searchOptions)

type searchOptions struct {
	topK int
}

// WithTopK overrides how many chunks a search returns.
func WithTopK(k int) SearchOption {
	return func(o *searchOptions) {
		if k > 0 {
			o.topK = k
		}
	}
}

// Add embeds a chunk's content and upserts it.
func (s *Store) Add(ctx context.Context, chunk Chunk) error {
	embedding, err := s.embed(ctx, chunk.Content)
	if err != nil {
		return fmt.Errorf("embedding chunk %s: %w", chunk.ID, err)
	}
	if err := s.queries.UpsertChunk(ctx, chunk, embedding); err != nil {
		return err
	}
	s.logger.Debug("chunk stored",
		"id", chunk.ID, "source", chunk.SourcePath, "section", chunk.Section)
	return nil
}

// Search embeds the query and returns the nearest chunks by cosine
// distance. An empty store yields an empty slice, not an error.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	o := searchOptions{topK: DefaultTopK}
	for _, opt := range opts {
		opt(&o)
	}

	embedding, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return s.queries.SearchChunks(ctx, embedding, o.topK)
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.queries.CountChunks(ctx)
}

// DeleteBySource drops all chunks indexed from one document.
func (s *Store) DeleteBySource(ctx context.Context, sourcePath string) (int64, error) {
	return s.queries.DeleteChunksBySource(ctx, sourcePath)
}

// Reset empties the store.
func (s *Store) Reset(ctx context.Context) error {
	return s.queries.TruncateChunks(ctx)
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	req := &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	}
	resp, err := s.embedder.Embed(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Embeddings[0].Embedding, nil
}
