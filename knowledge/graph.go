// Package knowledge maintains a Neo4j graph linking documents, chunks and the
// named entities detected in them. The graph enriches citations with document
// insights; it is optional and ingestion proceeds without it.
package knowledge

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Document struct {
	ID     string
	Name   string
	Format string
	Chunks []Chunk
}

type Chunk struct {
	ID        string
	Index     int
	Page      int
	FromTable bool
	Entities  []string
}

// SyncDocument replaces the graph state for one document: its chunk nodes,
// MENTIONS edges to entity nodes, and document-level entity rollups.
func SyncDocument(ctx context.Context, driver neo4j.DriverWithContext, doc Document) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (d:Document {id: $id})
			SET d.name = $name,
			    d.format = $format,
			    d.updated_at = datetime()
		`, map[string]any{"id": doc.ID, "name": doc.Name, "format": doc.Format}); err != nil {
			return nil, fmt.Errorf("upsert document node: %w", err)
		}

		if _, err := tx.Run(ctx, `
			MATCH (d:Document {id: $id})-[:HAS_CHUNK]->(c:Chunk)
			DETACH DELETE c
		`, map[string]any{"id": doc.ID}); err != nil {
			return nil, fmt.Errorf("clear existing chunk nodes: %w", err)
		}

		if _, err := tx.Run(ctx, `
			MATCH (d:Document {id: $id})-[r:MENTIONS]->(:Entity)
			DELETE r
		`, map[string]any{"id": doc.ID}); err != nil {
			return nil, fmt.Errorf("clear existing entity relations: %w", err)
		}

		for _, chunk := range doc.Chunks {
			if _, err := tx.Run(ctx, `
				MATCH (d:Document {id: $doc_id})
				MERGE (c:Chunk {id: $chunk_id})
				SET c.index = $chunk_index,
				    c.page = $chunk_page,
				    c.from_table = $from_table
				MERGE (d)-[:HAS_CHUNK {order: $chunk_index}]->(c)
			`, map[string]any{
				"doc_id":      doc.ID,
				"chunk_id":    chunk.ID,
				"chunk_index": chunk.Index,
				"chunk_page":  chunk.Page,
				"from_table":  chunk.FromTable,
			}); err != nil {
				return nil, fmt.Errorf("upsert chunk node: %w", err)
			}

			for _, entity := range chunk.Entities {
				if entity == "" {
					continue
				}
				if _, err := tx.Run(ctx, `
					MATCH (d:Document {id: $doc_id}), (c:Chunk {id: $chunk_id})
					MERGE (e:Entity {name: $entity})
					MERGE (c)-[:MENTIONS]->(e)
					MERGE (d)-[:MENTIONS]->(e)
				`, map[string]any{
					"doc_id":   doc.ID,
					"chunk_id": chunk.ID,
					"entity":   entity,
				}); err != nil {
					return nil, fmt.Errorf("upsert entity relation: %w", err)
				}
			}
		}

		return nil, nil
	})

	if err == nil {
		if _, cleanupErr := session.Run(ctx, `
			MATCH (e:Entity)
			WHERE NOT (e)<-[:MENTIONS]-()
			DELETE e
		`, nil); cleanupErr != nil {
			err = cleanupErr
		}
	}

	return err
}

// DeleteDocument removes the named document, its chunk nodes and any entity
// nodes left without a mention. Documents get a fresh ID on every load, so
// lookup is by name. A name with no node is not an error.
func DeleteDocument(ctx context.Context, driver neo4j.DriverWithContext, name string) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MATCH (d:Document {name: $name})
			OPTIONAL MATCH (d)-[:HAS_CHUNK]->(c:Chunk)
			DETACH DELETE d, c
		`, map[string]any{"name": name}); err != nil {
			return nil, fmt.Errorf("delete document nodes: %w", err)
		}

		if _, err := tx.Run(ctx, `
			MATCH (e:Entity)
			WHERE NOT (e)<-[:MENTIONS]-()
			DELETE e
		`, nil); err != nil {
			return nil, fmt.Errorf("clean orphan entities: %w", err)
		}

		return nil, nil
	})
	return err
}

// Clear removes every document, chunk and entity node.
func Clear(ctx context.Context, driver neo4j.DriverWithContext) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	queries := []string{
		"MATCH (d:Document) DETACH DELETE d",
		"MATCH (c:Chunk) DETACH DELETE c",
		"MATCH (e:Entity) DETACH DELETE e",
	}
	for _, query := range queries {
		result, err := session.Run(ctx, query, nil)
		if err != nil {
			return err
		}
		if _, err := result.Consume(ctx); err != nil {
			return err
		}
	}
	return nil
}
