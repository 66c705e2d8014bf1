package knowledge

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// DocumentInsight summarizes what the graph knows about one document.
type DocumentInsight struct {
	ChunkCount int
	Entities   []string
}

// InsightStore answers graph lookups for the answer's citations.
type InsightStore interface {
	DocumentInsights(ctx context.Context, docIDs []string) (map[string]DocumentInsight, error)
}

type Neo4jInsightStore struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jInsightStore(driver neo4j.DriverWithContext) *Neo4jInsightStore {
	return &Neo4jInsightStore{driver: driver}
}

var _ InsightStore = (*Neo4jInsightStore)(nil)

func (s *Neo4jInsightStore) DocumentInsights(ctx context.Context, docIDs []string) (map[string]DocumentInsight, error) {
	if s.driver == nil {
		return nil, fmt.Errorf("neo4j driver is nil")
	}
	if len(docIDs) == 0 {
		return map[string]DocumentInsight{}, nil
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (d:Document)
		WHERE d.id IN $ids
		OPTIONAL MATCH (d)-[:HAS_CHUNK]->(c:Chunk)
		OPTIONAL MATCH (d)-[:MENTIONS]->(e:Entity)
		WITH d, count(DISTINCT c) AS chunkCount, collect(DISTINCT e.name) AS entityNames
		RETURN d.id AS id,
		       chunkCount,
		       [n IN entityNames WHERE n IS NOT NULL] AS entities
	`, map[string]any{"ids": docIDs})
	if err != nil {
		return nil, fmt.Errorf("run neo4j insights query: %w", err)
	}

	insights := make(map[string]DocumentInsight, len(docIDs))
	for result.Next(ctx) {
		record := result.Record()
		id, _ := record.Get("id")
		count, _ := record.Get("chunkCount")
		entitiesVal, _ := record.Get("entities")

		docID, ok := id.(string)
		if !ok {
			continue
		}

		var chunkCount int64
		switch v := count.(type) {
		case int64:
			chunkCount = v
		case int32:
			chunkCount = int64(v)
		}

		insights[docID] = DocumentInsight{
			ChunkCount: int(chunkCount),
			Entities:   convertStringSlice(entitiesVal),
		}
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("neo4j insights result error: %w", err)
	}

	return insights, nil
}

func convertStringSlice(value any) []string {
	raw, ok := value.([]any)
	if !ok {
		if v, ok := value.([]string); ok {
			return v
		}
		return nil
	}

	result := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			result = append(result, s)
		}
	}
	return result
}
