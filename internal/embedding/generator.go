package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dpolishuk/coderag/internal/errs"
	"github.com/dpolishuk/coderag/internal/keyedlock"
	"github.com/dpolishuk/coderag/internal/models"
	"github.com/dpolishuk/coderag/internal/telemetry"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/jcgregorio/slog"
)

// RecordStore is the storage the generator reads classes from and writes records to.
type RecordStore interface {
	ListClasses(ctx context.Context, codebaseID string) ([]*models.CodeClass, error)
	DeleteEmbeddings(ctx context.Context, codebaseID string, kind models.ElementKind) (int, error)
	SaveEmbeddings(ctx context.Context, records []*models.EmbeddingRecord) error
}

// Generator derives one embedding record per class and per method of a
// codebase. Regenerations of the same codebase run one at a time.
type Generator struct {
	store    RecordStore
	embedder Embedder
	log      slog.Logger
	metrics  *telemetry.Metrics

	locks keyedlock.Mutex
}

func NewGenerator(store RecordStore, embedder Embedder, log slog.Logger, metrics *telemetry.Metrics) *Generator {
	return &Generator{
		store:    store,
		embedder: embedder,
		log:      log,
		metrics:  metrics,
	}
}

type element struct {
	class  *models.CodeClass
	method *models.CodeMethod
}

// GenerateAll regenerates class records, then method records, and returns how
// many records were written. Per-element failures are logged, not returned.
func (g *Generator) GenerateAll(ctx context.Context, codebaseID string) (int, error) {
	unlock := g.locks.Lock(codebaseID)
	defer unlock()

	classes, err := g.store.ListClasses(ctx, codebaseID)
	if err != nil {
		return 0, fmt.Errorf("failed to list classes: %w", err)
	}

	written, err := g.generate(ctx, codebaseID, models.KindClass, classElements(classes))
	if err != nil {
		return written, err
	}
	methods, err := g.generate(ctx, codebaseID, models.KindMethod, methodElements(classes))
	return written + methods, err
}

// GenerateClasses replaces every class record of the codebase.
func (g *Generator) GenerateClasses(ctx context.Context, codebaseID string, classes []*models.CodeClass) (int, error) {
	unlock := g.locks.Lock(codebaseID)
	defer unlock()
	return g.generate(ctx, codebaseID, models.KindClass, classElements(classes))
}

// GenerateMethods replaces every method record of the codebase.
func (g *Generator) GenerateMethods(ctx context.Context, codebaseID string, classes []*models.CodeClass) (int, error) {
	unlock := g.locks.Lock(codebaseID)
	defer unlock()
	return g.generate(ctx, codebaseID, models.KindMethod, methodElements(classes))
}

func classElements(classes []*models.CodeClass) []element {
	elems := make([]element, 0, len(classes))
	for _, c := range classes {
		elems = append(elems, element{class: c})
	}
	return elems
}

func methodElements(classes []*models.CodeClass) []element {
	var elems []element
	for _, c := range classes {
		for i := range c.Methods {
			elems = append(elems, element{class: c, method: &c.Methods[i]})
		}
	}
	return elems
}

func (g *Generator) generate(ctx context.Context, codebaseID string, kind models.ElementKind, elems []element) (int, error) {
	removed, err := g.store.DeleteEmbeddings(ctx, codebaseID, kind)
	if err != nil {
		return 0, fmt.Errorf("failed to clear %s embeddings: %w", kind, err)
	}
	g.log.Debugf("cleared %d %s embeddings for codebase %s", removed, kind, codebaseID)

	var (
		written  int
		skipped  int
		failures *multierror.Error
	)
	for _, el := range elems {
		rec, err := g.record(ctx, codebaseID, kind, el)
		if err != nil {
			failures = multierror.Append(failures, err)
			continue
		}
		if rec == nil {
			skipped++
			continue
		}
		if err := g.store.SaveEmbeddings(ctx, []*models.EmbeddingRecord{rec}); err != nil {
			failures = multierror.Append(failures, fmt.Errorf("%s %s: %w", kind, rec.ElementName, err))
			continue
		}
		g.metrics.EmbeddingWritten(kind)
		written++
	}

	failed := 0
	if failures != nil {
		failed = len(failures.Errors)
		g.log.Warningf("codebase %s: %d %s embeddings failed: %s", codebaseID, failed, kind, failures)
	}
	g.log.Infof("codebase %s: wrote %d %s embeddings (%d skipped, %d failed)",
		codebaseID, written, kind, skipped, failed)
	return written, nil
}

// record builds the embedding record for el. A nil record means el has no text.
func (g *Generator) record(ctx context.Context, codebaseID string, kind models.ElementKind, el element) (*models.EmbeddingRecord, error) {
	rec := &models.EmbeddingRecord{
		ID:          uuid.New().String(),
		CodebaseID:  codebaseID,
		FileID:      el.class.FileID,
		ClassID:     el.class.ID,
		ElementKind: kind,
		CreatedAt:   time.Now().UTC(),
	}

	var text string
	if el.method == nil {
		text = ClassText(el.class)
		rec.ElementName = el.class.Name
	} else {
		text = MethodText(el.class, el.method)
		rec.ElementName = el.method.Name
		rec.MethodID = el.method.ID
		rec.ClassName = el.class.Name
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	vec, err := g.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", kind, rec.ElementName, err)
	}
	if len(vec) == 0 || IsZero(vec) {
		return nil, fmt.Errorf("%s %s: empty vector: %w", kind, rec.ElementName, errs.ErrEmbedFailed)
	}

	rec.TextPreview = Preview(text)
	rec.Vector = vec
	return rec, nil
}
