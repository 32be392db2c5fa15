package rag

import (
	"context"
	"fmt"

	"github.com/guilhermegouw/cdd-docs/internal/knowledge"
)

// RetrieverStore is the search surface the retriever needs.
type RetrieverStore interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// Retrieved is one chunk returned for a question. Score is the cosine
// similarity in [0, 1], higher is more relevant.
type Retrieved struct {
	Chunk knowledge.Chunk
	Score float64
}

// Retriever answers similarity searches over the indexed documentation.
type Retriever struct {
	store RetrieverStore
	topK  int
}

// NewRetriever creates a retriever. topK <= 0 falls back to the default.
func NewRetriever(store RetrieverStore, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{store: store, topK: topK}
}

// Retrieve returns the chunks most relevant to the query, best first.
// k <= 0 uses the retriever's configured fan-out. An empty index returns an
// empty slice.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Retrieved, error) {
	if k <= 0 {
		k = r.topK
	}

	results, err := r.store.Search(ctx, query, knowledge.WithTopK(k))
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	retrieved := make([]Retrieved, len(results))
	for i, res := range results {
		retrieved[i] = Retrieved{
			Chunk: res.Chunk,
			Score: 1 - res.Distance,
		}
	}
	return retrieved, nil
}
