package db

import (
	"context"
	"fmt"
	"time"

	"github.com/dpolishuk/coderag/internal/errs"
	"github.com/dpolishuk/coderag/internal/models"
	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const vectorIndexName = "embedding_vectors"

var schemaStatements = []string{
	`CREATE CONSTRAINT codebase_id IF NOT EXISTS FOR (c:Codebase) REQUIRE c.id IS UNIQUE`,
	`CREATE CONSTRAINT source_file_id IF NOT EXISTS FOR (f:SourceFile) REQUIRE f.id IS UNIQUE`,
	`CREATE CONSTRAINT code_class_id IF NOT EXISTS FOR (k:CodeClass) REQUIRE k.id IS UNIQUE`,
	`CREATE CONSTRAINT embedding_id IF NOT EXISTS FOR (e:Embedding) REQUIRE e.id IS UNIQUE`,
	`CREATE CONSTRAINT user_github_id IF NOT EXISTS FOR (u:User) REQUIRE u.githubId IS UNIQUE`,
	`CREATE INDEX code_relationship_codebase IF NOT EXISTS FOR (r:CodeRelationship) ON (r.codebaseId)`,
	`CREATE INDEX embedding_codebase IF NOT EXISTS FOR (e:Embedding) ON (e.codebaseId, e.elementKind)`,
}

// EnsureSchema creates the constraints and the vector index if they are missing.
func (s *Neo4jStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, stmt, nil)
			return nil, err
		}); err != nil {
			return fmt.Errorf("failed to apply schema %q: %w", stmt, err)
		}
	}
	return s.CreateVectorIndex(ctx)
}

// CreateVectorIndex creates the cosine vector index over embedding records
func (s *Neo4jStore) CreateVectorIndex(ctx context.Context) error {
	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
			CREATE VECTOR INDEX %s IF NOT EXISTS
			FOR (e:Embedding) ON (e.vector)
			OPTIONS {indexConfig: {
				`+"`"+`vector.dimensions`+"`"+`: %d,
				`+"`"+`vector.similarity_function`+"`"+`: 'cosine'
			}}
		`, vectorIndexName, s.dim)
		_, err := tx.Run(ctx, query, nil)
		return nil, err
	})
	return err
}

const embeddingFields = `
	e.id AS id, e.codebaseId AS codebaseId, e.fileId AS fileId, e.classId AS classId,
	e.methodId AS methodId, e.elementKind AS elementKind, e.elementName AS elementName,
	e.className AS className, e.textPreview AS textPreview, e.vector AS vector,
	e.createdAt AS createdAt
`

func (s *Neo4jStore) SaveEmbeddings(ctx context.Context, records []*models.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}
	base := time.Now().UnixNano()
	rows := make([]map[string]any, 0, len(records))
	for i, r := range records {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		rows = append(rows, map[string]any{
			"id":          r.ID,
			"codebaseId":  r.CodebaseID,
			"fileId":      r.FileID,
			"classId":     r.ClassID,
			"methodId":    r.MethodID,
			"elementKind": string(r.ElementKind),
			"elementName": r.ElementName,
			"className":   r.ClassName,
			"textPreview": r.TextPreview,
			"vector":      r.Vector,
			"createdAt":   r.CreatedAt,
			"seq":         base + int64(i),
		})
	}

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			UNWIND $rows AS row
			CREATE (e:Embedding {
				id: row.id,
				codebaseId: row.codebaseId,
				fileId: row.fileId,
				classId: row.classId,
				methodId: row.methodId,
				elementKind: row.elementKind,
				elementName: row.elementName,
				className: row.className,
				textPreview: row.textPreview,
				vector: row.vector,
				createdAt: row.createdAt,
				seq: row.seq
			})
		`
		_, err := tx.Run(ctx, query, map[string]any{"rows": rows})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to write embeddings: %w", err)
	}
	return nil
}

func (s *Neo4jStore) ListEmbeddings(ctx context.Context, codebaseID string, kind models.ElementKind) ([]*models.EmbeddingRecord, error) {
	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (e:Embedding {codebaseId: $codebaseId})
			WHERE $kind = 'ALL' OR e.elementKind = $kind
			RETURN ` + embeddingFields + `
			ORDER BY e.seq
		`
		records, err := tx.Run(ctx, query, map[string]any{
			"codebaseId": codebaseID,
			"kind":       kindParam(kind),
		})
		if err != nil {
			return nil, err
		}

		out := []*models.EmbeddingRecord{}
		for records.Next(ctx) {
			out = append(out, recordToEmbedding(records.Record()))
		}
		return out, records.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]*models.EmbeddingRecord), nil
}

func (s *Neo4jStore) GetEmbedding(ctx context.Context, id string) (*models.EmbeddingRecord, error) {
	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `MATCH (e:Embedding {id: $id}) RETURN ` + embeddingFields
		records, err := tx.Run(ctx, query, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if records.Next(ctx) {
			return recordToEmbedding(records.Record()), nil
		}
		return nil, records.Err()
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("embedding %s: %w", id, errs.ErrNotFound)
	}
	return result.(*models.EmbeddingRecord), nil
}

func (s *Neo4jStore) DeleteEmbeddings(ctx context.Context, codebaseID string, kind models.ElementKind) (int, error) {
	return s.client.deleteCount(ctx, `
		MATCH (e:Embedding {codebaseId: $codebaseId})
		WHERE $kind = 'ALL' OR e.elementKind = $kind
		DETACH DELETE e
	`, map[string]any{"codebaseId": codebaseID, "kind": kindParam(kind)})
}

// SearchResult is one candidate returned by the vector index.
type SearchResult struct {
	Record *models.EmbeddingRecord
	Score  float64
}

// VectorSearch asks the vector index for the nearest records of a codebase.
// The index scores cosine similarity as (1+cos)/2; Score is converted back to cos.
func (s *Neo4jStore) VectorSearch(ctx context.Context, codebaseID string, vector []float32, kind models.ElementKind, limit int) ([]SearchResult, error) {
	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			CALL db.index.vector.queryNodes($index, $candidates, $vector)
			YIELD node AS e, score
			WHERE e.codebaseId = $codebaseId AND ($kind = 'ALL' OR e.elementKind = $kind)
			RETURN ` + embeddingFields + `, score
			ORDER BY score DESC, e.seq
			LIMIT $limit
		`
		records, err := tx.Run(ctx, query, map[string]any{
			"index":      vectorIndexName,
			"candidates": limit * 10,
			"vector":     vector,
			"codebaseId": codebaseID,
			"kind":       kindParam(kind),
			"limit":      limit,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to run vector search query: %w", err)
		}

		results := []SearchResult{}
		for records.Next(ctx) {
			rec := records.Record()
			results = append(results, SearchResult{
				Record: recordToEmbedding(rec),
				Score:  2*recordFloat(rec, "score") - 1,
			})
		}
		if err := records.Err(); err != nil {
			return nil, fmt.Errorf("error iterating search results: %w", err)
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]SearchResult), nil
}

func kindParam(kind models.ElementKind) string {
	if kind == "" {
		return string(models.KindAll)
	}
	return string(kind)
}

func recordToEmbedding(rec *neo4j.Record) *models.EmbeddingRecord {
	r := &models.EmbeddingRecord{
		ID:          recordString(rec, "id"),
		CodebaseID:  recordString(rec, "codebaseId"),
		FileID:      recordString(rec, "fileId"),
		ClassID:     recordString(rec, "classId"),
		MethodID:    recordString(rec, "methodId"),
		ElementKind: models.ElementKind(recordString(rec, "elementKind")),
		ElementName: recordString(rec, "elementName"),
		ClassName:   recordString(rec, "className"),
		TextPreview: recordString(rec, "textPreview"),
	}
	if v, ok := rec.Get("vector"); ok && v != nil {
		r.Vector = toFloat32s(v)
	}
	if v, ok := rec.Get("createdAt"); ok && v != nil {
		r.CreatedAt, _ = v.(time.Time)
	}
	return r
}

func toFloat32s(v any) []float32 {
	switch vals := v.(type) {
	case []float32:
		return vals
	case []float64:
		out := make([]float32, len(vals))
		for i, x := range vals {
			out[i] = float32(x)
		}
		return out
	case []any:
		out := make([]float32, len(vals))
		for i, x := range vals {
			switch n := x.(type) {
			case float64:
				out[i] = float32(n)
			case float32:
				out[i] = n
			}
		}
		return out
	}
	return nil
}
