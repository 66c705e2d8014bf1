// Package vectorstore owns embedding, indexing and similarity queries over
// chunks. The Manager pairs an embedding capability with an Index backend;
// chunks and their embeddings live in the index until an explicit Clear.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/fabfab/doc-agent/chunker"
	"github.com/fabfab/doc-agent/embeddings"
)

var (
	// ErrEmptyContent rejects a chunk with no extractable text. Ingestion
	// continues with the remaining chunks.
	ErrEmptyContent = errors.New("chunk has no extractable text")
	// ErrStoreUnavailable marks an unreachable index. Retryable.
	ErrStoreUnavailable = errors.New("vector store unavailable")
)

// Result is one similarity hit.
type Result struct {
	Chunk chunker.Chunk
	Score float64
}

// Filter optionally restricts a query by chunk metadata.
type Filter struct {
	Source string // document name
}

// Index is the persistence backend. Upsert must insert a chunk and its
// embedding as one atomic unit; re-upserting an ID replaces the prior row.
type Index interface {
	Upsert(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, k int, filter *Filter) ([]Result, error)
	Delete(ctx context.Context, source string) error
	DeleteAll(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

type Manager struct {
	embedder embeddings.Embedder
	index    Index
	logger   *log.Logger
}

func NewManager(embedder embeddings.Embedder, index Index, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{embedder: embedder, index: index, logger: logger}
}

// Add embeds and indexes the given chunks. Whitespace-only chunks are rejected
// with ErrEmptyContent while the rest are still stored; the returned error
// aggregates the rejections (nil when all chunks were accepted).
func (m *Manager) Add(ctx context.Context, chunks []chunker.Chunk) error {
	if m.embedder == nil {
		return fmt.Errorf("embedder not configured")
	}

	accepted := make([]chunker.Chunk, 0, len(chunks))
	var rejected []error
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Text) == "" {
			rejected = append(rejected, fmt.Errorf("%w: chunk %s", ErrEmptyContent, chunk.ID))
			continue
		}
		accepted = append(accepted, chunk)
	}

	if len(accepted) > 0 {
		texts := make([]string, len(accepted))
		for i, chunk := range accepted {
			texts[i] = chunk.Text
		}

		vectors, err := m.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(accepted) {
			return fmt.Errorf("embedding count mismatch: have %d chunks, %d vectors", len(accepted), len(vectors))
		}

		if err := m.index.Upsert(ctx, accepted, vectors); err != nil {
			return fmt.Errorf("index chunks: %w", err)
		}
	}

	return errors.Join(rejected...)
}

// Query embeds the text and returns the top k chunks by similarity, score
// descending. An empty store yields an empty slice, not an error.
func (m *Manager) Query(ctx context.Context, text string, k int, filter *Filter) ([]Result, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("query text cannot be empty")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	vectors, err := m.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}

	results, err := m.index.Search(ctx, vectors[0], k, filter)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return results, nil
}

// Delete removes every chunk belonging to the named document. Deleting a
// document that was never ingested is not an error.
func (m *Manager) Delete(ctx context.Context, source string) error {
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("document name cannot be empty")
	}
	if err := m.index.Delete(ctx, source); err != nil {
		return fmt.Errorf("delete document %s: %w", source, err)
	}
	return nil
}

// Clear removes all chunks and embeddings.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.index.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	return nil
}

// Count reports the number of indexed chunks.
func (m *Manager) Count(ctx context.Context) (int, error) {
	return m.index.Count(ctx)
}
