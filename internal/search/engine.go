package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dpolishuk/coderag/internal/db"
	"github.com/dpolishuk/coderag/internal/embedding"
	"github.com/dpolishuk/coderag/internal/errs"
	"github.com/dpolishuk/coderag/internal/models"
	"github.com/dpolishuk/coderag/internal/telemetry"
	"github.com/jcgregorio/slog"
)

// RelevanceFloor is the similarity a query hit must exceed.
const RelevanceFloor = 0.1

const DefaultLimit = 10

// RecordReader is the storage the engine ranks.
type RecordReader interface {
	ListEmbeddings(ctx context.Context, codebaseID string, kind models.ElementKind) ([]*models.EmbeddingRecord, error)
	GetEmbedding(ctx context.Context, id string) (*models.EmbeddingRecord, error)
}

// VectorIndex is an approximate nearest-neighbour index over the same records.
type VectorIndex interface {
	VectorSearch(ctx context.Context, codebaseID string, vector []float32, kind models.ElementKind, limit int) ([]db.SearchResult, error)
}

// Engine ranks embedding records by cosine similarity to a query.
type Engine struct {
	records  RecordReader
	embedder embedding.Embedder
	index    VectorIndex
	log      slog.Logger
	metrics  *telemetry.Metrics
}

func NewEngine(records RecordReader, embedder embedding.Embedder, log slog.Logger, metrics *telemetry.Metrics) *Engine {
	return &Engine{records: records, embedder: embedder, log: log, metrics: metrics}
}

// WithIndex makes the engine rank index candidates instead of scanning every record.
func (e *Engine) WithIndex(index VectorIndex) *Engine {
	e.index = index
	return e
}

type scored struct {
	record *models.EmbeddingRecord
	sim    float64
}

// SearchByQuery returns at most k records of the codebase whose similarity to
// query exceeds RelevanceFloor, best first. Equal similarities keep store order.
func (e *Engine) SearchByQuery(ctx context.Context, codebaseID, query string, kind models.ElementKind, k int) ([]models.SearchHit, error) {
	defer e.observe(time.Now())
	if k <= 0 {
		k = DefaultLimit
	}

	q, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %v: %w", err, errs.ErrEmbedFailed)
	}
	if len(q) == 0 || embedding.IsZero(q) {
		return []models.SearchHit{}, nil
	}

	var candidates []scored
	if e.index != nil {
		candidates, err = e.indexCandidates(ctx, codebaseID, q, kind, k)
	} else {
		candidates, err = e.scan(ctx, codebaseID, q, kind)
	}
	if err != nil {
		return nil, err
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if c.sim > RelevanceFloor {
			kept = append(kept, c)
		}
	}
	return rank(kept, k), nil
}

// FindSimilar ranks the records of the same codebase against the vector of
// recordID, excluding the record itself. No relevance floor applies.
func (e *Engine) FindSimilar(ctx context.Context, recordID string, k int) ([]models.SearchHit, error) {
	defer e.observe(time.Now())
	if k <= 0 {
		k = DefaultLimit
	}

	src, err := e.records.GetEmbedding(ctx, recordID)
	if err != nil {
		return nil, err
	}
	candidates, err := e.scan(ctx, src.CodebaseID, src.Vector, models.KindAll)
	if err != nil {
		return nil, err
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if c.record.ID != src.ID {
			kept = append(kept, c)
		}
	}
	return rank(kept, k), nil
}

func (e *Engine) scan(ctx context.Context, codebaseID string, q []float32, kind models.ElementKind) ([]scored, error) {
	records, err := e.records.ListEmbeddings(ctx, codebaseID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}
	out := make([]scored, 0, len(records))
	for _, r := range records {
		out = append(out, scored{record: r, sim: embedding.Cosine(q, r.Vector)})
	}
	return out, nil
}

// indexCandidates asks the index for k candidates. The index is shared by
// every codebase and filters after the nearest-neighbour step, so a short
// answer may hide records of this codebase; that case falls back to a scan.
func (e *Engine) indexCandidates(ctx context.Context, codebaseID string, q []float32, kind models.ElementKind, k int) ([]scored, error) {
	results, err := e.index.VectorSearch(ctx, codebaseID, q, kind, k)
	if err != nil {
		return nil, fmt.Errorf("vector index search failed: %w", err)
	}
	if len(results) < k {
		e.log.Debugf("codebase %s: index returned %d of %d candidates, scanning", codebaseID, len(results), k)
		return e.scan(ctx, codebaseID, q, kind)
	}
	out := make([]scored, 0, len(results))
	for _, r := range results {
		out = append(out, scored{record: r.Record, sim: r.Score})
	}
	return out, nil
}

func rank(candidates []scored, k int) []models.SearchHit {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].sim > candidates[j].sim
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	hits := make([]models.SearchHit, 0, len(candidates))
	for _, c := range candidates {
		hits = append(hits, toHit(c))
	}
	return hits
}

func toHit(c scored) models.SearchHit {
	hit := models.SearchHit{
		RecordID:    c.record.ID,
		ElementKind: c.record.ElementKind,
		Similarity:  c.sim,
		ElementName: c.record.ElementName,
		TextPreview: c.record.TextPreview,
		ClassID:     c.record.ClassID,
		FileID:      c.record.FileID,
	}
	if c.record.ElementKind == models.KindMethod {
		hit.ClassName = c.record.ClassName
	}
	return hit
}

func (e *Engine) observe(start time.Time) {
	e.metrics.ObserveSearch(time.Since(start))
}
