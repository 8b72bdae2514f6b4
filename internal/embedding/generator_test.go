package embedding

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dpolishuk/coderag/internal/db"
	"github.com/dpolishuk/coderag/internal/logging"
	"github.com/dpolishuk/coderag/internal/models"
	"github.com/dpolishuk/coderag/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type failingEmbedder struct {
	Embedder
	failOn string
}

func (f failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(text, f.failOn) {
		return nil, errors.New("embedder offline")
	}
	return f.Embedder.Embed(ctx, text)
}

func seedCalculator(t *testing.T, store *db.MemoryStore) {
	t.Helper()
	require.NoError(t, store.SaveClasses(context.Background(), []*models.CodeClass{{
		CodebaseID:  "cb",
		FileID:      "f1",
		Name:        "Calculator",
		PackageName: "com.example",
		FQN:         "com.example.Calculator",
		Methods: []models.CodeMethod{{
			ID:         "m1",
			Name:       "add",
			ReturnType: "int",
			Parameters: "int a, int b",
			IsPublic:   true,
		}},
	}}))
}

func TestGenerateAll(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	seedCalculator(t, store)
	metrics := telemetry.New()

	gen := NewGenerator(store, NewLexicalEmbedder(DefaultDimension), logging.Nop(), metrics)
	written, err := gen.GenerateAll(ctx, "cb")
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	records, err := store.ListEmbeddings(ctx, "cb", models.KindAll)
	require.NoError(t, err)
	require.Len(t, records, 2)

	class, method := records[0], records[1]
	assert.Equal(t, models.KindClass, class.ElementKind)
	assert.Equal(t, "Calculator", class.ElementName)
	assert.True(t, strings.HasPrefix(class.TextPreview, "Class: Calculator\n"))
	assert.Len(t, class.Vector, DefaultDimension)

	assert.Equal(t, models.KindMethod, method.ElementKind)
	assert.Equal(t, "add", method.ElementName)
	assert.Equal(t, "Calculator", method.ClassName)
	assert.Equal(t, "m1", method.MethodID)
	assert.Equal(t, "f1", method.FileID)

	assert.Equal(t, 2, testutil.CollectAndCount(metrics.Registry(), "coderag_embeddings_written_total"))
}

type slowEmbedder struct {
	Embedder
	delay time.Duration
}

func (s slowEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	time.Sleep(s.delay)
	return s.Embedder.Embed(ctx, text)
}

func TestGenerateAll_ConcurrentRunsDoNotDuplicate(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	seedCalculator(t, store)

	gen := NewGenerator(store, slowEmbedder{NewLexicalEmbedder(DefaultDimension), 20 * time.Millisecond}, logging.Nop(), nil)

	var g errgroup.Group
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := gen.GenerateAll(ctx, "cb")
			return err
		})
	}
	require.NoError(t, g.Wait())

	records, err := store.ListEmbeddings(ctx, "cb", models.KindAll)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.KindClass, records[0].ElementKind)
	assert.Equal(t, models.KindMethod, records[1].ElementKind)
}

func TestGenerateAll_ReplacesPreviousRecords(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	seedCalculator(t, store)
	gen := NewGenerator(store, NewLexicalEmbedder(DefaultDimension), logging.Nop(), nil)

	_, err := gen.GenerateAll(ctx, "cb")
	require.NoError(t, err)
	first, _ := store.ListEmbeddings(ctx, "cb", models.KindAll)

	_, err = gen.GenerateAll(ctx, "cb")
	require.NoError(t, err)
	second, _ := store.ListEmbeddings(ctx, "cb", models.KindAll)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ElementName, second[i].ElementName)
		assert.Equal(t, first[i].Vector, second[i].Vector)
	}
}

func TestGenerateMethods_KeepsClassRecords(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	seedCalculator(t, store)
	gen := NewGenerator(store, NewLexicalEmbedder(DefaultDimension), logging.Nop(), nil)

	_, err := gen.GenerateAll(ctx, "cb")
	require.NoError(t, err)

	classes, _ := store.ListClasses(ctx, "cb")
	n, err := gen.GenerateMethods(ctx, "cb", classes)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, _ := store.ListEmbeddings(ctx, "cb", models.KindAll)
	assert.Len(t, all, 2)
}

func TestGenerateAll_ElementFailureDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	seedCalculator(t, store)

	embedder := failingEmbedder{Embedder: NewLexicalEmbedder(DefaultDimension), failOn: "Method: add"}
	gen := NewGenerator(store, embedder, logging.Nop(), nil)

	written, err := gen.GenerateAll(ctx, "cb")
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	methods, _ := store.ListEmbeddings(ctx, "cb", models.KindMethod)
	assert.Empty(t, methods)
}

func TestGenerateAll_EmptyCodebase(t *testing.T) {
	gen := NewGenerator(db.NewMemoryStore(), NewLexicalEmbedder(DefaultDimension), logging.Nop(), nil)
	written, err := gen.GenerateAll(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Zero(t, written)
}
