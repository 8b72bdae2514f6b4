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

// Neo4jStore implements Store on a Neo4j database.
type Neo4jStore struct {
	client *Neo4jClient
	dim    int
}

func NewNeo4jStore(client *Neo4jClient, dim int) *Neo4jStore {
	return &Neo4jStore{client: client, dim: dim}
}

var _ Store = (*Neo4jStore)(nil)

// Ping checks that the database is reachable.
func (s *Neo4jStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

const codebaseFields = `
	c.id AS id, c.userId AS userId, c.owner AS owner, c.name AS name,
	c.originUrl AS originUrl, c.language AS language, c.fileCount AS fileCount,
	c.status AS status, c.errorMsg AS errorMsg, c.commitSha AS commitSha, c.parsed AS parsed,
	c.createdAt AS createdAt, c.updatedAt AS updatedAt
`

func (s *Neo4jStore) CreateCodebase(ctx context.Context, cb *models.Codebase) error {
	if cb.ID == "" {
		cb.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	cb.CreatedAt, cb.UpdatedAt = now, now

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			CREATE (c:Codebase {
				id: $id,
				userId: $userId,
				owner: $owner,
				name: $name,
				originUrl: $originUrl,
				language: $language,
				fileCount: $fileCount,
				status: $status,
				errorMsg: $errorMsg,
				commitSha: $commitSha,
				parsed: $parsed,
				createdAt: $createdAt,
				updatedAt: $updatedAt
			})
		`
		_, err := tx.Run(ctx, query, codebaseParams(cb))
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to create codebase: %w", err)
	}
	return nil
}

func (s *Neo4jStore) GetCodebase(ctx context.Context, id string) (*models.Codebase, error) {
	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `MATCH (c:Codebase {id: $id}) RETURN ` + codebaseFields
		result, err := tx.Run(ctx, query, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}

		if result.Next(ctx) {
			return recordToCodebase(result.Record()), nil
		}
		return nil, result.Err()
	})

	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("codebase %s: %w", id, errs.ErrNotFound)
	}
	return result.(*models.Codebase), nil
}

func (s *Neo4jStore) ListCodebases(ctx context.Context, userID string) ([]*models.Codebase, error) {
	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (c:Codebase)
			WHERE $userId = '' OR c.userId = $userId
			RETURN ` + codebaseFields + `
			ORDER BY c.createdAt DESC
		`
		result, err := tx.Run(ctx, query, map[string]any{"userId": userID})
		if err != nil {
			return nil, err
		}

		codebases := []*models.Codebase{}
		for result.Next(ctx) {
			codebases = append(codebases, recordToCodebase(result.Record()))
		}
		return codebases, result.Err()
	})

	if err != nil {
		return nil, err
	}
	return result.([]*models.Codebase), nil
}

func (s *Neo4jStore) UpdateCodebase(ctx context.Context, cb *models.Codebase) error {
	cb.UpdatedAt = time.Now().UTC()

	result, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (c:Codebase {id: $id})
			SET c.language = $language,
			    c.fileCount = $fileCount,
			    c.status = $status,
			    c.errorMsg = $errorMsg,
			    c.commitSha = $commitSha,
			    c.parsed = $parsed,
			    c.updatedAt = $updatedAt
			RETURN c.id AS id
		`
		res, err := tx.Run(ctx, query, codebaseParams(cb))
		if err != nil {
			return nil, err
		}
		return res.Next(ctx), res.Err()
	})
	if err != nil {
		return fmt.Errorf("failed to update codebase: %w", err)
	}
	if found, _ := result.(bool); !found {
		return fmt.Errorf("codebase %s: %w", cb.ID, errs.ErrNotFound)
	}
	return nil
}

func (s *Neo4jStore) DeleteCodebase(ctx context.Context, id string) error {
	n, err := s.client.deleteCount(ctx, `
		MATCH (c:Codebase {id: $id})
		DETACH DELETE c
	`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("failed to delete codebase: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("codebase %s: %w", id, errs.ErrNotFound)
	}
	return nil
}

func codebaseParams(cb *models.Codebase) map[string]any {
	return map[string]any{
		"id":        cb.ID,
		"userId":    cb.UserID,
		"owner":     cb.Owner,
		"name":      cb.Name,
		"originUrl": cb.OriginURL,
		"language":  cb.Language,
		"fileCount": cb.FileCount,
		"status":    string(cb.Status),
		"errorMsg":  cb.ErrorMsg,
		"commitSha": cb.CommitSHA,
		"parsed":    cb.Parsed,
		"createdAt": cb.CreatedAt,
		"updatedAt": cb.UpdatedAt,
	}
}

func recordToCodebase(record *neo4j.Record) *models.Codebase {
	cb := &models.Codebase{
		ID:        recordString(record, "id"),
		UserID:    recordString(record, "userId"),
		Owner:     recordString(record, "owner"),
		Name:      recordString(record, "name"),
		OriginURL: recordString(record, "originUrl"),
		Language:  recordString(record, "language"),
		FileCount: recordInt(record, "fileCount"),
		Status:    models.Status(recordString(record, "status")),
		ErrorMsg:  recordString(record, "errorMsg"),
		CommitSHA: recordString(record, "commitSha"),
		Parsed:    recordBool(record, "parsed"),
	}
	if createdAt, ok := record.Get("createdAt"); ok && createdAt != nil {
		if t, ok := createdAt.(time.Time); ok {
			cb.CreatedAt = t
		}
	}
	if updatedAt, ok := record.Get("updatedAt"); ok && updatedAt != nil {
		if t, ok := updatedAt.(time.Time); ok {
			cb.UpdatedAt = t
		}
	}
	return cb
}

func (s *Neo4jStore) SaveUser(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	result, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (u:User {githubId: $githubId})
			ON CREATE SET u.id = $id, u.createdAt = $now
			SET u.login = $login,
			    u.email = $email,
			    u.name = $name,
			    u.avatarUrl = $avatarUrl,
			    u.bio = $bio,
			    u.publicRepos = $publicRepos,
			    u.followers = $followers,
			    u.following = $following,
			    u.encryptedToken = $encryptedToken,
			    u.lastLoginAt = $now
			RETURN u.id AS id, u.createdAt AS createdAt
		`
		res, err := tx.Run(ctx, query, map[string]any{
			"id":             uuid.New().String(),
			"githubId":       u.GitHubID,
			"login":          u.Login,
			"email":          u.Email,
			"name":           u.Name,
			"avatarUrl":      u.AvatarURL,
			"bio":            u.Bio,
			"publicRepos":    u.PublicRepos,
			"followers":      u.Followers,
			"following":      u.Following,
			"encryptedToken": u.EncryptedToken,
			"now":            now,
		})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		return rec, nil
	})
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	rec := result.(*neo4j.Record)
	u.ID = recordString(rec, "id")
	if t, ok := rec.Get("createdAt"); ok && t != nil {
		u.CreatedAt, _ = t.(time.Time)
	}
	u.LastLoginAt = now
	return nil
}

func (s *Neo4jStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (u:User {id: $id})
			RETURN u.id AS id, u.githubId AS githubId, u.login AS login, u.email AS email,
			       u.name AS name, u.avatarUrl AS avatarUrl, u.bio AS bio,
			       u.publicRepos AS publicRepos, u.followers AS followers,
			       u.following AS following, u.encryptedToken AS encryptedToken
		`
		res, err := tx.Run(ctx, query, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, res.Err()
		}
		rec := res.Record()
		githubID, _ := rec.Get("githubId")
		u := &models.User{
			ID:             recordString(rec, "id"),
			Login:          recordString(rec, "login"),
			Email:          recordString(rec, "email"),
			Name:           recordString(rec, "name"),
			AvatarURL:      recordString(rec, "avatarUrl"),
			Bio:            recordString(rec, "bio"),
			PublicRepos:    recordInt(rec, "publicRepos"),
			Followers:      recordInt(rec, "followers"),
			Following:      recordInt(rec, "following"),
			EncryptedToken: recordString(rec, "encryptedToken"),
		}
		if n, ok := githubID.(int64); ok {
			u.GitHubID = n
		}
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("user %s: %w", id, errs.ErrNotFound)
	}
	return result.(*models.User), nil
}
