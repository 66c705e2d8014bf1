package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/fabfab/doc-agent/chunker"
)

// MemoryIndex is a mutex-guarded in-process index using cosine similarity.
// It backs tests and store-less development runs; results are deterministic
// (score descending, chunk ID ascending on ties).
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	chunk  chunker.Chunk
	vector []float32
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]memoryEntry)}
}

var _ Index = (*MemoryIndex)(nil)

func (m *MemoryIndex) Upsert(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, chunk := range chunks {
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		m.entries[chunk.ID] = memoryEntry{chunk: chunk, vector: vec}
	}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, vector []float32, k int, filter *Filter) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Result, 0, len(m.entries))
	for _, entry := range m.entries {
		if filter != nil && filter.Source != "" && entry.chunk.DocName != filter.Source {
			continue
		}
		results = append(results, Result{
			Chunk: entry.chunk,
			Score: cosineSimilarity(vector, entry.vector),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *MemoryIndex) Delete(ctx context.Context, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, entry := range m.entries {
		if entry.chunk.DocName == source {
			delete(m.entries, id)
		}
	}
	return nil
}

func (m *MemoryIndex) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
	return nil
}

func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
