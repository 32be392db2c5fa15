package config

import (
	"errors"
	"fmt"
)

// Sentinel errors for configuration validation.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidModelName indicates the generation model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidChunkSizes indicates the chunking word bounds are inconsistent.
	ErrInvalidChunkSizes = errors.New("invalid chunk sizes")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidHistoryTurns indicates the history bound is out of range.
	ErrInvalidHistoryTurns = errors.New("invalid max_history_turns")

	// ErrInvalidMaxAttempts indicates the mermaid repair budget is negative.
	ErrInvalidMaxAttempts = errors.New("invalid mermaid_max_attempts")
)

// MaxTopK bounds retrieval fan-out; larger values bloat the context window
// without improving answers.
const MaxTopK = 50

// Validate checks all configuration values needed by both the serve and
// index commands.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name must not be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model must not be empty", ErrInvalidEmbedderModel)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: postgres_host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d not in range 1-65535", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.ChunkTargetWords <= 0 {
		return fmt.Errorf("%w: chunk_target_words must be positive, got %d", ErrInvalidChunkSizes, c.ChunkTargetWords)
	}
	if c.ChunkOverlapWords < 0 || c.ChunkOverlapWords >= c.ChunkTargetWords {
		return fmt.Errorf("%w: chunk_overlap_words %d must be in [0, chunk_target_words)", ErrInvalidChunkSizes, c.ChunkOverlapWords)
	}
	if c.ChunkMinWords < 0 || c.ChunkMinWords > c.ChunkTargetWords {
		return fmt.Errorf("%w: chunk_min_words %d must be in [0, chunk_target_words]", ErrInvalidChunkSizes, c.ChunkMinWords)
	}
	if c.TopK < 1 || c.TopK > MaxTopK {
		return fmt.Errorf("%w: %d not in range 1-%d", ErrInvalidTopK, c.TopK, MaxTopK)
	}
	if c.MaxHistoryTurns < 0 {
		return fmt.Errorf("%w: must not be negative, got %d", ErrInvalidHistoryTurns, c.MaxHistoryTurns)
	}
	if c.MermaidMaxAttempts < 0 {
		return fmt.Errorf("%w: must not be negative, got %d", ErrInvalidMaxAttempts, c.MermaidMaxAttempts)
	}
	return nil
}
