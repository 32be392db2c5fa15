// Package knowledge stores document chunks and their embeddings in
// PostgreSQL with pgvector, and answers nearest-neighbor searches over them.
package knowledge

import (
	"context"
	"time"
)

// Chunk is a stored document fragment with its embedding metadata.
type Chunk struct {
	ID            string
	Content       string
	SourcePath    string
	Section       string
	SequenceIndex int
	WordCount     int
	Extra         map[string]string
	CreatedAt     time.Time
}

// Result is a chunk returned by a similarity search. Distance is the cosine
// distance to the query embedding, smaller is closer.
type Result struct {
	Chunk    Chunk
	Distance float64
}

// Querier is the storage surface the Store needs. *Queries implements it
// against PostgreSQL; tests substitute an in-memory fake.
type Querier interface {
	UpsertChunk(ctx context.Context, chunk Chunk, embedding []float32) error
	SearchChunks(ctx context.Context, embedding []float32, limit int) ([]Result, error)
	CountChunks(ctx context.Context) (int64, error)
	DeleteChunksBySource(ctx context.Context, sourcePath string) (int64, error)
	TruncateChunks(ctx context.Context) error
}
