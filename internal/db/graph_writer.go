package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dpolishuk/coderag/internal/models"
	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func (s *Neo4jStore) SaveFiles(ctx context.Context, files []*models.SourceFile) error {
	if len(files) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(files))
	for _, f := range files {
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		rows = append(rows, map[string]any{
			"id":         f.ID,
			"codebaseId": f.CodebaseID,
			"path":       f.Path,
			"content":    f.Content,
			"language":   f.Language,
			"lineCount":  f.LineCount,
			"size":       f.Size,
		})
	}

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			UNWIND $rows AS row
			MATCH (c:Codebase {id: row.codebaseId})
			MERGE (f:SourceFile {codebaseId: row.codebaseId, path: row.path})
			SET f.id = row.id,
			    f.content = row.content,
			    f.language = row.language,
			    f.lineCount = row.lineCount,
			    f.size = row.size
			MERGE (c)-[:CONTAINS]->(f)
		`
		_, err := tx.Run(ctx, query, map[string]any{"rows": rows})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to write files: %w", err)
	}
	return nil
}

func (s *Neo4jStore) SaveClasses(ctx context.Context, classes []*models.CodeClass) error {
	if len(classes) == 0 {
		return nil
	}
	base := time.Now().UnixNano()
	rows := make([]map[string]any, 0, len(classes))
	for i, c := range classes {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		methodsJSON, err := json.Marshal(c.Methods)
		if err != nil {
			return fmt.Errorf("failed to encode methods of %s: %w", c.Name, err)
		}
		fieldsJSON, err := json.Marshal(c.Fields)
		if err != nil {
			return fmt.Errorf("failed to encode fields of %s: %w", c.Name, err)
		}
		rows = append(rows, map[string]any{
			"id":          c.ID,
			"fileId":      c.FileID,
			"codebaseId":  c.CodebaseID,
			"name":        c.Name,
			"packageName": c.PackageName,
			"fqn":         c.FQN,
			"isInterface": c.IsInterface,
			"isAbstract":  c.IsAbstract,
			"extendsName": c.ExtendsName,
			"startLine":   c.StartLine,
			"endLine":     c.EndLine,
			"methods":     string(methodsJSON),
			"fields":      string(fieldsJSON),
			"seq":         base + int64(i),
		})
	}

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			UNWIND $rows AS row
			MATCH (f:SourceFile {id: row.fileId})
			CREATE (k:CodeClass {
				id: row.id,
				fileId: row.fileId,
				codebaseId: row.codebaseId,
				name: row.name,
				packageName: row.packageName,
				fqn: row.fqn,
				isInterface: row.isInterface,
				isAbstract: row.isAbstract,
				extendsName: row.extendsName,
				startLine: row.startLine,
				endLine: row.endLine,
				methods: row.methods,
				fields: row.fields,
				seq: row.seq
			})
			CREATE (f)-[:DECLARES]->(k)
		`
		_, err := tx.Run(ctx, query, map[string]any{"rows": rows})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to write classes: %w", err)
	}
	return nil
}

func (s *Neo4jStore) SaveRelationships(ctx context.Context, rels []*models.CodeRelationship) error {
	if len(rels) == 0 {
		return nil
	}
	base := time.Now().UnixNano()
	rows := make([]map[string]any, 0, len(rels))
	for i, r := range rels {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		row := map[string]any{
			"id":              r.ID,
			"codebaseId":      r.CodebaseID,
			"sourceClassId":   r.SourceClassID,
			"targetClassId":   nil,
			"targetClassName": r.TargetClassName,
			"kind":            string(r.Kind),
			"sourceMethodId":  nil,
			"line":            nil,
			"seq":             base + int64(i),
		}
		if r.TargetClassID != nil {
			row["targetClassId"] = *r.TargetClassID
		}
		if r.SourceMethodID != nil {
			row["sourceMethodId"] = *r.SourceMethodID
		}
		if r.Line != nil {
			row["line"] = *r.Line
		}
		rows = append(rows, row)
	}

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			UNWIND $rows AS row
			MATCH (k:CodeClass {id: row.sourceClassId})
			CREATE (r:CodeRelationship {
				id: row.id,
				codebaseId: row.codebaseId,
				sourceClassId: row.sourceClassId,
				targetClassId: row.targetClassId,
				targetClassName: row.targetClassName,
				kind: row.kind,
				sourceMethodId: row.sourceMethodId,
				line: row.line,
				seq: row.seq
			})
			CREATE (k)-[:RELATES]->(r)
		`
		_, err := tx.Run(ctx, query, map[string]any{"rows": rows})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to write relationships: %w", err)
	}
	return nil
}

func (s *Neo4jStore) DeleteRelationships(ctx context.Context, codebaseID string) (int, error) {
	return s.client.deleteCount(ctx, `
		MATCH (r:CodeRelationship {codebaseId: $codebaseId})
		DETACH DELETE r
	`, map[string]any{"codebaseId": codebaseID})
}

func (s *Neo4jStore) DeleteClasses(ctx context.Context, codebaseID string) (int, error) {
	return s.client.deleteCount(ctx, `
		MATCH (k:CodeClass {codebaseId: $codebaseId})
		DETACH DELETE k
	`, map[string]any{"codebaseId": codebaseID})
}

func (s *Neo4jStore) DeleteFiles(ctx context.Context, codebaseID string) (int, error) {
	return s.client.deleteCount(ctx, `
		MATCH (f:SourceFile {codebaseId: $codebaseId})
		DETACH DELETE f
	`, map[string]any{"codebaseId": codebaseID})
}
