package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/fabfab/doc-agent/chunker"
)

// PostgresIndex persists chunks and embeddings in a pgvector table. Chunk and
// embedding share a row, so readers never observe one without the other.
type PostgresIndex struct {
	pool *pgxpool.Pool
}

func NewPostgresIndex(pool *pgxpool.Pool) *PostgresIndex {
	return &PostgresIndex{pool: pool}
}

var _ Index = (*PostgresIndex)(nil)

// EnsureSchema creates the pgvector extension, table and indexes.
func (s *PostgresIndex) EnsureSchema(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS doc_chunks (
			id TEXT PRIMARY KEY,
			document_id UUID NOT NULL,
			document_name TEXT NOT NULL,
			chunk_index INT NOT NULL,
			page INT NOT NULL,
			content TEXT NOT NULL,
			entities TEXT[] NOT NULL DEFAULT '{}',
			from_table BOOLEAN NOT NULL DEFAULT FALSE,
			summary BOOLEAN NOT NULL DEFAULT FALSE,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_doc_chunks_document ON doc_chunks(document_name)",
		"CREATE INDEX IF NOT EXISTS idx_doc_chunks_embedding ON doc_chunks USING ivfflat (embedding vector_cosine_ops)",
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: execute schema statement: %v", ErrStoreUnavailable, err)
		}
	}
	return nil
}

func (s *PostgresIndex) Upsert(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	for i, chunk := range chunks {
		if _, err := tx.Exec(ctx, `
			INSERT INTO doc_chunks
				(id, document_id, document_name, chunk_index, page, content, entities, from_table, summary, embedding, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
			ON CONFLICT (id) DO UPDATE SET
				content = EXCLUDED.content,
				entities = EXCLUDED.entities,
				from_table = EXCLUDED.from_table,
				summary = EXCLUDED.summary,
				embedding = EXCLUDED.embedding,
				updated_at = NOW()
		`, chunk.ID, chunk.DocID, chunk.DocName, chunk.Index, chunk.Page,
			chunk.Text, chunk.Entities, chunk.FromTable, chunk.Summary, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("%w: upsert chunk %s: %v", ErrStoreUnavailable, chunk.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit upsert: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresIndex) Search(ctx context.Context, vector []float32, k int, filter *Filter) ([]Result, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}

	query := `
		SELECT id, document_id, document_name, chunk_index, page, content, entities, from_table, summary,
		       1 - (embedding <=> $1::vector) AS score
		FROM doc_chunks`
	args := []any{pgvector.NewVector(vector)}

	if filter != nil && filter.Source != "" {
		query += " WHERE document_name = $3"
		args = append(args, k, filter.Source)
		query += " ORDER BY embedding <=> $1::vector LIMIT $2"
	} else {
		query += " ORDER BY embedding <=> $1::vector LIMIT $2"
		args = append(args, k)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query similar chunks: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	results := make([]Result, 0, k)
	for rows.Next() {
		var (
			item  Result
			docID uuid.UUID
		)
		if err := rows.Scan(&item.Chunk.ID, &docID, &item.Chunk.DocName, &item.Chunk.Index,
			&item.Chunk.Page, &item.Chunk.Text, &item.Chunk.Entities, &item.Chunk.FromTable,
			&item.Chunk.Summary, &item.Score); err != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", err)
		}
		item.Chunk.DocID = docID
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read similar chunks: %v", ErrStoreUnavailable, err)
	}

	return results, nil
}

func (s *PostgresIndex) Delete(ctx context.Context, source string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM doc_chunks WHERE document_name = $1", source); err != nil {
		return fmt.Errorf("%w: delete chunks for %s: %v", ErrStoreUnavailable, source, err)
	}
	return nil
}

func (s *PostgresIndex) DeleteAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE doc_chunks"); err != nil {
		return fmt.Errorf("%w: truncate doc_chunks: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresIndex) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM doc_chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count chunks: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}
