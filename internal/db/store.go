package db

import (
	"context"

	"github.com/dpolishuk/coderag/internal/models"
)

// Store persists codebases and everything derived from them. Get* methods
// return an error wrapping errs.ErrNotFound for unknown ids. Delete* methods
// scoped to a codebase return the number of records removed.
type Store interface {
	CreateCodebase(ctx context.Context, cb *models.Codebase) error
	GetCodebase(ctx context.Context, id string) (*models.Codebase, error)
	ListCodebases(ctx context.Context, userID string) ([]*models.Codebase, error)
	UpdateCodebase(ctx context.Context, cb *models.Codebase) error
	DeleteCodebase(ctx context.Context, id string) error

	SaveFiles(ctx context.Context, files []*models.SourceFile) error
	ListFiles(ctx context.Context, codebaseID string) ([]*models.SourceFile, error)
	GetFile(ctx context.Context, id string) (*models.SourceFile, error)
	DeleteFiles(ctx context.Context, codebaseID string) (int, error)

	SaveClasses(ctx context.Context, classes []*models.CodeClass) error
	ListClasses(ctx context.Context, codebaseID string) ([]*models.CodeClass, error)
	GetClass(ctx context.Context, id string) (*models.CodeClass, error)
	DeleteClasses(ctx context.Context, codebaseID string) (int, error)

	SaveRelationships(ctx context.Context, rels []*models.CodeRelationship) error
	ListRelationships(ctx context.Context, codebaseID string) ([]*models.CodeRelationship, error)
	DeleteRelationships(ctx context.Context, codebaseID string) (int, error)

	SaveEmbeddings(ctx context.Context, records []*models.EmbeddingRecord) error
	// ListEmbeddings filters by kind unless kind is models.KindAll.
	ListEmbeddings(ctx context.Context, codebaseID string, kind models.ElementKind) ([]*models.EmbeddingRecord, error)
	GetEmbedding(ctx context.Context, id string) (*models.EmbeddingRecord, error)
	DeleteEmbeddings(ctx context.Context, codebaseID string, kind models.ElementKind) (int, error)

	SaveMetrics(ctx context.Context, m *models.CodeMetrics) error
	GetMetrics(ctx context.Context, codebaseID string) (*models.CodeMetrics, error)
	DeleteMetrics(ctx context.Context, codebaseID string) (int, error)

	// SaveUser inserts or updates the user with the same GitHubID and sets u.ID.
	SaveUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
}

func matchesKind(recordKind, filter models.ElementKind) bool {
	return filter == models.KindAll || filter == "" || recordKind == filter
}
