package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dpolishuk/coderag/internal/errs"
	"github.com/dpolishuk/coderag/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every Store implementation shares.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("codebase lifecycle", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		cb := &models.Codebase{UserID: "u1", Owner: "octo", Name: "hello", Status: models.StatusPending}
		require.NoError(t, s.CreateCodebase(ctx, cb))
		require.NotEmpty(t, cb.ID)
		t.Cleanup(func() { s.DeleteCodebase(ctx, cb.ID) })

		cb.Status = models.StatusCloning
		require.NoError(t, s.UpdateCodebase(ctx, cb))

		got, err := s.GetCodebase(ctx, cb.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCloning, got.Status)
		assert.Equal(t, "octo", got.Owner)

		list, err := s.ListCodebases(ctx, "u1")
		require.NoError(t, err)
		assert.NotEmpty(t, list)

		other, err := s.ListCodebases(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, other)

		require.NoError(t, s.DeleteCodebase(ctx, cb.ID))
		_, err = s.GetCodebase(ctx, cb.ID)
		assert.True(t, errors.Is(err, errs.ErrNotFound))
		assert.True(t, errors.Is(s.DeleteCodebase(ctx, cb.ID), errs.ErrNotFound))
		assert.True(t, errors.Is(s.UpdateCodebase(ctx, cb), errs.ErrNotFound))
	})

	t.Run("derived records", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		cb := &models.Codebase{UserID: "u1", Owner: "octo", Name: "derived", Status: models.StatusPending}
		require.NoError(t, s.CreateCodebase(ctx, cb))
		t.Cleanup(func() { s.DeleteCodebase(ctx, cb.ID) })

		file := &models.SourceFile{CodebaseID: cb.ID, Path: "Foo.java", Content: "class Foo {}", Language: "Java", LineCount: 1}
		require.NoError(t, s.SaveFiles(ctx, []*models.SourceFile{file}))
		require.NotEmpty(t, file.ID)

		classes := []*models.CodeClass{
			{FileID: file.ID, CodebaseID: cb.ID, Name: "Foo", FQN: "Foo", Methods: []models.CodeMethod{{Name: "a"}, {Name: "b"}}},
			{FileID: file.ID, CodebaseID: cb.ID, Name: "Bar", FQN: "Bar", Fields: []models.CodeField{{Name: "x", Type: "int"}}},
		}
		require.NoError(t, s.SaveClasses(ctx, classes))

		line := 3
		rel := &models.CodeRelationship{CodebaseID: cb.ID, SourceClassID: classes[0].ID, TargetClassName: "List", Kind: models.RelUses, Line: &line}
		imp := &models.CodeRelationship{CodebaseID: cb.ID, SourceClassID: classes[0].ID, TargetClassName: "java.util.List", Kind: models.RelImports}
		require.NoError(t, s.SaveRelationships(ctx, []*models.CodeRelationship{rel, imp}))

		gotClasses, err := s.ListClasses(ctx, cb.ID)
		require.NoError(t, err)
		require.Len(t, gotClasses, 2)
		assert.Equal(t, "Foo", gotClasses[0].Name)
		assert.Equal(t, []string{"a", "b"}, []string{gotClasses[0].Methods[0].Name, gotClasses[0].Methods[1].Name})
		assert.Equal(t, "x", gotClasses[1].Fields[0].Name)

		gotClass, err := s.GetClass(ctx, classes[1].ID)
		require.NoError(t, err)
		assert.Equal(t, "Bar", gotClass.Name)

		rels, err := s.ListRelationships(ctx, cb.ID)
		require.NoError(t, err)
		require.Len(t, rels, 2)
		assert.Equal(t, 3, *rels[0].Line)
		assert.Nil(t, rels[0].TargetClassID)
		assert.Nil(t, rels[1].Line)

		gotFile, err := s.GetFile(ctx, file.ID)
		require.NoError(t, err)
		assert.Equal(t, "class Foo {}", gotFile.Content)

		records := []*models.EmbeddingRecord{
			{CodebaseID: cb.ID, FileID: file.ID, ClassID: classes[0].ID, ElementKind: models.KindClass, ElementName: "Foo", Vector: []float32{1, 0}, CreatedAt: time.Now().UTC()},
			{CodebaseID: cb.ID, FileID: file.ID, ClassID: classes[0].ID, ElementKind: models.KindMethod, ElementName: "a", ClassName: "Foo", Vector: []float32{0, 1}, CreatedAt: time.Now().UTC()},
		}
		require.NoError(t, s.SaveEmbeddings(ctx, records))

		all, err := s.ListEmbeddings(ctx, cb.ID, models.KindAll)
		require.NoError(t, err)
		assert.Len(t, all, 2)
		methods, err := s.ListEmbeddings(ctx, cb.ID, models.KindMethod)
		require.NoError(t, err)
		require.Len(t, methods, 1)
		assert.Equal(t, "Foo", methods[0].ClassName)
		assert.Equal(t, []float32{0, 1}, methods[0].Vector)

		got, err := s.GetEmbedding(ctx, records[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "Foo", got.ElementName)

		n, err := s.DeleteEmbeddings(ctx, cb.ID, models.KindClass)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		all, _ = s.ListEmbeddings(ctx, cb.ID, models.KindAll)
		assert.Len(t, all, 1)

		require.NoError(t, s.SaveMetrics(ctx, &models.CodeMetrics{
			CodebaseID:           cb.ID,
			QualityScore:         87.5,
			SizeDistribution:     []models.Bucket{{Label: "1-20", Count: 2}, {Label: "21-50", Count: 0}},
			CouplingDistribution: []models.Bucket{{Label: "0-5", Count: 2}},
		}))
		m, err := s.GetMetrics(ctx, cb.ID)
		require.NoError(t, err)
		assert.Equal(t, 87.5, m.QualityScore)
		assert.Equal(t, "21-50", m.SizeDistribution[1].Label)

		for _, step := range []struct {
			name string
			del  func() (int, error)
			want int
		}{
			{"embeddings", func() (int, error) { return s.DeleteEmbeddings(ctx, cb.ID, models.KindAll) }, 1},
			{"relationships", func() (int, error) { return s.DeleteRelationships(ctx, cb.ID) }, 2},
			{"classes", func() (int, error) { return s.DeleteClasses(ctx, cb.ID) }, 2},
			{"metrics", func() (int, error) { return s.DeleteMetrics(ctx, cb.ID) }, 1},
			{"files", func() (int, error) { return s.DeleteFiles(ctx, cb.ID) }, 1},
		} {
			n, err := step.del()
			require.NoError(t, err, step.name)
			assert.Equal(t, step.want, n, step.name)
		}

		_, err = s.GetMetrics(ctx, cb.ID)
		assert.True(t, errors.Is(err, errs.ErrNotFound))
		_, err = s.GetClass(ctx, classes[0].ID)
		assert.True(t, errors.Is(err, errs.ErrNotFound))
	})

	t.Run("users upsert by github id", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		u := &models.User{GitHubID: 4242, Login: "octo", EncryptedToken: "sealed-1"}
		require.NoError(t, s.SaveUser(ctx, u))
		require.NotEmpty(t, u.ID)

		again := &models.User{GitHubID: 4242, Login: "octo-renamed", EncryptedToken: "sealed-2"}
		require.NoError(t, s.SaveUser(ctx, again))
		assert.Equal(t, u.ID, again.ID)

		got, err := s.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "octo-renamed", got.Login)
		assert.Equal(t, "sealed-2", got.EncryptedToken)

		_, err = s.GetUser(ctx, "missing")
		assert.True(t, errors.Is(err, errs.ErrNotFound))
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestNeo4jStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return newTestNeo4jStore(t) })
}

func TestMemoryStore_ReturnsCopiesOfCodebases(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	cb := &models.Codebase{Name: "copy", Status: models.StatusPending}
	require.NoError(t, s.CreateCodebase(ctx, cb))

	got, err := s.GetCodebase(ctx, cb.ID)
	require.NoError(t, err)
	got.Status = models.StatusFailed

	again, err := s.GetCodebase(ctx, cb.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, again.Status)
}
