package rag

import "time"

const (
	// VectorDimension is the embedding size the chunks schema stores.
	// text-embedding-004 produces 768-dimension vectors; changing models
	// means a new migration and a full re-index.
	VectorDimension = 768

	// DefaultTopK is the retrieval fan-out when no override is given.
	DefaultTopK = 7

	// DefaultMaxHistoryTurns bounds how many past exchanges feed the
	// rewriter and the generation prompt.
	DefaultMaxHistoryTurns = 5

	// DefaultRewriteTimeout bounds the query rewriting call. Rewriting
	// is best-effort; a slow model must not stall the whole answer.
	DefaultRewriteTimeout = 10 * time.Second

	// DefaultGenerateTimeout bounds one answer generation.
	DefaultGenerateTimeout = 2 * time.Minute
)
