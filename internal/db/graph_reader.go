package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dpolishuk/coderag/internal/errs"
	"github.com/dpolishuk/coderag/internal/models"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const fileFields = `
	f.id AS id, f.codebaseId AS codebaseId, f.path AS path, f.content AS content,
	f.language AS language, f.lineCount AS lineCount, f.size AS size
`

const classFields = `
	k.id AS id, k.fileId AS fileId, k.codebaseId AS codebaseId, k.name AS name,
	k.packageName AS packageName, k.fqn AS fqn, k.isInterface AS isInterface,
	k.isAbstract AS isAbstract, k.extendsName AS extendsName, k.startLine AS startLine,
	k.endLine AS endLine, k.methods AS methods, k.fields AS fields
`

func (s *Neo4jStore) ListFiles(ctx context.Context, codebaseID string) ([]*models.SourceFile, error) {
	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (f:SourceFile {codebaseId: $codebaseId})
			RETURN ` + fileFields + `
			ORDER BY f.path
		`
		records, err := tx.Run(ctx, query, map[string]any{"codebaseId": codebaseID})
		if err != nil {
			return nil, err
		}

		files := []*models.SourceFile{}
		for records.Next(ctx) {
			files = append(files, recordToFile(records.Record()))
		}
		return files, records.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]*models.SourceFile), nil
}

func (s *Neo4jStore) GetFile(ctx context.Context, id string) (*models.SourceFile, error) {
	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `MATCH (f:SourceFile {id: $id}) RETURN ` + fileFields
		records, err := tx.Run(ctx, query, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if records.Next(ctx) {
			return recordToFile(records.Record()), nil
		}
		return nil, records.Err()
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("file %s: %w", id, errs.ErrNotFound)
	}
	return result.(*models.SourceFile), nil
}

func (s *Neo4jStore) ListClasses(ctx context.Context, codebaseID string) ([]*models.CodeClass, error) {
	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (k:CodeClass {codebaseId: $codebaseId})
			RETURN ` + classFields + `
			ORDER BY k.seq
		`
		records, err := tx.Run(ctx, query, map[string]any{"codebaseId": codebaseID})
		if err != nil {
			return nil, err
		}

		classes := []*models.CodeClass{}
		for records.Next(ctx) {
			c, err := recordToClass(records.Record())
			if err != nil {
				return nil, err
			}
			classes = append(classes, c)
		}
		return classes, records.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]*models.CodeClass), nil
}

func (s *Neo4jStore) GetClass(ctx context.Context, id string) (*models.CodeClass, error) {
	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `MATCH (k:CodeClass {id: $id}) RETURN ` + classFields
		records, err := tx.Run(ctx, query, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if records.Next(ctx) {
			return recordToClass(records.Record())
		}
		return nil, records.Err()
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("class %s: %w", id, errs.ErrNotFound)
	}
	return result.(*models.CodeClass), nil
}

func (s *Neo4jStore) ListRelationships(ctx context.Context, codebaseID string) ([]*models.CodeRelationship, error) {
	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (r:CodeRelationship {codebaseId: $codebaseId})
			RETURN r.id AS id, r.codebaseId AS codebaseId, r.sourceClassId AS sourceClassId,
			       r.targetClassId AS targetClassId, r.targetClassName AS targetClassName,
			       r.kind AS kind, r.sourceMethodId AS sourceMethodId, r.line AS line
			ORDER BY r.seq
		`
		records, err := tx.Run(ctx, query, map[string]any{"codebaseId": codebaseID})
		if err != nil {
			return nil, err
		}

		rels := []*models.CodeRelationship{}
		for records.Next(ctx) {
			rec := records.Record()
			rel := &models.CodeRelationship{
				ID:              recordString(rec, "id"),
				CodebaseID:      recordString(rec, "codebaseId"),
				SourceClassID:   recordString(rec, "sourceClassId"),
				TargetClassName: recordString(rec, "targetClassName"),
				Kind:            models.RelationshipKind(recordString(rec, "kind")),
			}
			if v, _ := rec.Get("targetClassId"); v != nil {
				id := v.(string)
				rel.TargetClassID = &id
			}
			if v, _ := rec.Get("sourceMethodId"); v != nil {
				id := v.(string)
				rel.SourceMethodID = &id
			}
			if v, _ := rec.Get("line"); v != nil {
				line := int(v.(int64))
				rel.Line = &line
			}
			rels = append(rels, rel)
		}
		return rels, records.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]*models.CodeRelationship), nil
}

func recordToFile(rec *neo4j.Record) *models.SourceFile {
	return &models.SourceFile{
		ID:         recordString(rec, "id"),
		CodebaseID: recordString(rec, "codebaseId"),
		Path:       recordString(rec, "path"),
		Content:    recordString(rec, "content"),
		Language:   recordString(rec, "language"),
		LineCount:  recordInt(rec, "lineCount"),
		Size:       int64(recordInt(rec, "size")),
	}
}

func recordToClass(rec *neo4j.Record) (*models.CodeClass, error) {
	c := &models.CodeClass{
		ID:          recordString(rec, "id"),
		FileID:      recordString(rec, "fileId"),
		CodebaseID:  recordString(rec, "codebaseId"),
		Name:        recordString(rec, "name"),
		PackageName: recordString(rec, "packageName"),
		FQN:         recordString(rec, "fqn"),
		IsInterface: recordBool(rec, "isInterface"),
		IsAbstract:  recordBool(rec, "isAbstract"),
		ExtendsName: recordString(rec, "extendsName"),
		StartLine:   recordInt(rec, "startLine"),
		EndLine:     recordInt(rec, "endLine"),
	}
	if raw := recordString(rec, "methods"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &c.Methods); err != nil {
			return nil, fmt.Errorf("failed to decode methods of %s: %w", c.ID, err)
		}
	}
	if raw := recordString(rec, "fields"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &c.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode fields of %s: %w", c.ID, err)
		}
	}
	return c, nil
}
