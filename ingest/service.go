// Package ingest drives documents through the ingestion pipeline: load,
// interpret tables, chunk, embed and store, then sync the knowledge graph.
// Files are independent units of work; one bad file never blocks the rest.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/fabfab/doc-agent/chunker"
	"github.com/fabfab/doc-agent/knowledge"
	"github.com/fabfab/doc-agent/loader"
	"github.com/fabfab/doc-agent/vectorstore"
)

// Result reports the outcome for one file.
type Result struct {
	Path   string
	Name   string
	Chunks int
	Err    error
}

type Service struct {
	interpreter *loader.Interpreter
	splitter    *chunker.Splitter
	store       *vectorstore.Manager
	graph       neo4j.DriverWithContext
	logger      *log.Logger
}

// NewService wires the ingestion stages. graph may be nil; the knowledge graph
// sync is then skipped.
func NewService(interpreter *loader.Interpreter, splitter *chunker.Splitter, store *vectorstore.Manager, graph neo4j.DriverWithContext, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		interpreter: interpreter,
		splitter:    splitter,
		store:       store,
		graph:       graph,
		logger:      logger,
	}
}

// IngestFile runs one document through the full pipeline and returns the
// number of chunks stored. Table interpretation degrading to raw text is
// logged, not fatal; so are a failed document summary, chunks rejected for
// having no extractable text, and a knowledge graph sync failure.
func (s *Service) IngestFile(ctx context.Context, path string) (int, error) {
	doc, err := loader.LoadFile(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", path, err)
	}

	segments := make([]chunker.Segment, 0, len(doc.Items)+1)

	// The summary is chunk zero so document-level questions land on it
	// before any content chunk. A document without one is still searchable.
	summary, err := s.interpreter.Summarize(ctx, doc)
	switch {
	case err == nil:
		segments = append(segments, chunker.Segment{Page: 0, Text: summary, Summary: true})
	case errors.Is(err, loader.ErrExtractionFailed):
		s.logger.Printf("summary for %s skipped: %v", doc.Name, err)
	default:
		return 0, fmt.Errorf("summarize %s: %w", doc.Name, err)
	}
	for _, item := range doc.Items {
		if !item.IsTable() {
			segments = append(segments, chunker.Segment{Page: item.Page, Text: item.Text})
			continue
		}

		text, err := s.interpreter.Interpret(ctx, *item.Table)
		if err != nil {
			if !errors.Is(err, loader.ErrExtractionFailed) {
				return 0, fmt.Errorf("interpret table in %s: %w", doc.Name, err)
			}
			s.logger.Printf("table on page %d of %s kept as raw text: %v", item.Page, doc.Name, err)
		}
		if text == "" {
			continue
		}
		segments = append(segments, chunker.Segment{Page: item.Page, Text: text, FromTable: true})
	}

	chunks := s.splitter.Split(doc, segments)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("load %s: %w", path, loader.ErrCorruptDocument)
	}

	// Re-ingesting a file replaces its previous chunks; chunk IDs change
	// between loads, so an upsert alone would accumulate stale copies.
	if err := s.store.Delete(ctx, doc.Name); err != nil {
		return 0, fmt.Errorf("replace chunks for %s: %w", doc.Name, err)
	}

	stored := len(chunks)
	if err := s.store.Add(ctx, chunks); err != nil {
		if !errors.Is(err, vectorstore.ErrEmptyContent) {
			return 0, fmt.Errorf("store chunks for %s: %w", doc.Name, err)
		}
		// Only empty chunks were rejected; the rest are in the index.
		stored -= emptyChunkCount(chunks)
		s.logger.Printf("skipped empty chunks in %s: %v", doc.Name, err)
	}

	s.syncGraph(ctx, doc, chunks)

	s.logger.Printf("ingested %s: %d chunks", doc.Name, stored)
	return stored, nil
}

func emptyChunkCount(chunks []chunker.Chunk) int {
	n := 0
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Text) == "" {
			n++
		}
	}
	return n
}

// IngestFiles processes each path independently and reports per-file outcomes.
func (s *Service) IngestFiles(ctx context.Context, paths []string) []Result {
	results := make([]Result, 0, len(paths))
	for _, path := range paths {
		count, err := s.IngestFile(ctx, path)
		results = append(results, Result{
			Path:   path,
			Name:   filepath.Base(path),
			Chunks: count,
			Err:    err,
		})
		if err != nil {
			s.logger.Printf("ingest %s failed: %v", path, err)
		}
	}
	return results
}

// IngestDirectory walks dir and ingests every file in a supported format.
func (s *Service) IngestDirectory(ctx context.Context, dir string) ([]Result, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if loader.DetectFormat(path) == loader.FormatUnknown {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return s.IngestFiles(ctx, paths), nil
}

func (s *Service) syncGraph(ctx context.Context, doc *loader.Document, chunks []chunker.Chunk) {
	if s.graph == nil {
		return
	}

	graphDoc := knowledge.Document{
		ID:     doc.ID.String(),
		Name:   doc.Name,
		Format: string(doc.Format),
		Chunks: make([]knowledge.Chunk, 0, len(chunks)),
	}
	for _, chunk := range chunks {
		graphDoc.Chunks = append(graphDoc.Chunks, knowledge.Chunk{
			ID:        chunk.ID,
			Index:     chunk.Index,
			Page:      chunk.Page,
			FromTable: chunk.FromTable,
			Entities:  chunk.Entities,
		})
	}

	// Each load assigns a fresh document ID, so drop any node left from a
	// previous ingest of the same file before syncing.
	if err := knowledge.DeleteDocument(ctx, s.graph, doc.Name); err != nil {
		s.logger.Printf("knowledge graph cleanup for %s failed: %v", doc.Name, err)
	}

	if err := knowledge.SyncDocument(ctx, s.graph, graphDoc); err != nil {
		s.logger.Printf("knowledge graph sync for %s failed: %v", doc.Name, err)
	}
}
