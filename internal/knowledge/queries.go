package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// DB is the subset of pgxpool.Pool the queries use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries runs the chunk SQL against PostgreSQL.
type Queries struct {
	db DB
}

// NewQueries wraps a database handle.
func NewQueries(db DB) *Queries {
	return &Queries{db: db}
}

const upsertChunkSQL = `
INSERT INTO chunks (id, content, source_path, section, sequence_index, word_count, extra, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    content = EXCLUDED.content,
    source_path = EXCLUDED.source_path,
    section = EXCLUDED.section,
    sequence_index = EXCLUDED.sequence_index,
    word_count = EXCLUDED.word_count,
    extra = EXCLUDED.extra,
    embedding = EXCLUDED.embedding,
    created_at = now()`

// UpsertChunk inserts a chunk or replaces the row with the same ID, so
// re-indexing an unchanged document is idempotent.
func (q *Queries) UpsertChunk(ctx context.Context, chunk Chunk, embedding []float32) error {
	_, err := q.db.Exec(ctx, upsertChunkSQL,
		chunk.ID,
		chunk.Content,
		chunk.SourcePath,
		chunk.Section,
		chunk.SequenceIndex,
		chunk.WordCount,
		chunk.Extra,
		pgvector.NewVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("upserting chunk %s: %w", chunk.ID, err)
	}
	return nil
}

const searchChunksSQL = `
SELECT id, content, source_path, section, sequence_index, word_count, extra, created_at,
       embedding <=> $1 AS distance
FROM chunks
ORDER BY distance, pos
LIMIT $2`

// SearchChunks returns the chunks nearest to the query embedding by cosine
// distance. Ties fall back to insertion order so results are stable.
func (q *Queries) SearchChunks(ctx context.Context, embedding []float32, limit int) ([]Result, error) {
	rows, err := q.db.Query(ctx, searchChunksSQL, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(
			&r.Chunk.ID,
			&r.Chunk.Content,
			&r.Chunk.SourcePath,
			&r.Chunk.Section,
			&r.Chunk.SequenceIndex,
			&r.Chunk.WordCount,
			&r.Chunk.Extra,
			&r.Chunk.CreatedAt,
			&r.Distance,
		); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunk rows: %w", err)
	}
	return results, nil
}

// CountChunks returns the number of stored chunks.
func (q *Queries) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	if err := q.db.QueryRow(ctx, "SELECT count(*) FROM chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// DeleteChunksBySource removes every chunk indexed from one document and
// returns how many were dropped.
func (q *Queries) DeleteChunksBySource(ctx context.Context, sourcePath string) (int64, error) {
	tag, err := q.db.Exec(ctx, "DELETE FROM chunks WHERE source_path = $1", sourcePath)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks for %s: %w", sourcePath, err)
	}
	return tag.RowsAffected(), nil
}

// TruncateChunks empties the chunk table.
func (q *Queries) TruncateChunks(ctx context.Context) error {
	if _, err := q.db.Exec(ctx, "TRUNCATE chunks"); err != nil {
		return fmt.Errorf("truncating chunks: %w", err)
	}
	return nil
}
