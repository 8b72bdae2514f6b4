// Package quality derives size, complexity and coupling metrics from the
// parsed structure of a codebase.
package quality

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dpolishuk/coderag/internal/errs"
	"github.com/dpolishuk/coderag/internal/models"
	"github.com/jcgregorio/slog"
)

// Store is the storage metrics are computed from and saved to.
type Store interface {
	ListClasses(ctx context.Context, codebaseID string) ([]*models.CodeClass, error)
	ListRelationships(ctx context.Context, codebaseID string) ([]*models.CodeRelationship, error)
	SaveMetrics(ctx context.Context, m *models.CodeMetrics) error
	GetMetrics(ctx context.Context, codebaseID string) (*models.CodeMetrics, error)
}

type bucket struct {
	label    string
	min, max int
}

var (
	complexityBuckets = []bucket{{"1-5", 1, 5}, {"6-10", 6, 10}, {"11-15", 11, 15}, {"16-20", 16, 20}, {"20+", 21, math.MaxInt}}
	sizeBuckets       = []bucket{{"1-20", 1, 20}, {"21-50", 21, 50}, {"51-100", 51, 100}, {"100+", 101, math.MaxInt}}
	couplingBuckets   = []bucket{{"0-5", 0, 5}, {"6-10", 6, 10}, {"11-20", 11, 20}, {"20+", 21, math.MaxInt}}
)

type Calculator struct {
	store Store
	log   slog.Logger
}

func NewCalculator(store Store, log slog.Logger) *Calculator {
	return &Calculator{store: store, log: log}
}

// Calculate computes and stores the metrics of a codebase, replacing any
// previous result. The codebase needs at least one class and one method.
func (c *Calculator) Calculate(ctx context.Context, codebaseID string) (*models.CodeMetrics, error) {
	classes, rels, err := c.load(ctx, codebaseID)
	if err != nil {
		return nil, err
	}

	var complexities, sizes []int
	for _, class := range classes {
		for _, m := range class.Methods {
			complexities = append(complexities, Complexity(m))
			sizes = append(sizes, Size(m))
		}
	}
	if len(classes) == 0 || len(complexities) == 0 {
		return nil, fmt.Errorf("codebase %s has no parsed code: %w", codebaseID, errs.ErrInvalidInput)
	}

	coupling := couplingByClass(rels)
	couplings := make([]int, len(classes))
	for i, class := range classes {
		couplings[i] = coupling[class.ID]
	}

	m := &models.CodeMetrics{
		CodebaseID:             codebaseID,
		AverageComplexity:      mean(complexities),
		MaxComplexity:          maxOf(complexities),
		TotalMethods:           len(complexities),
		AverageMethodLength:    mean(sizes),
		MaxMethodLength:        maxOf(sizes),
		TotalLinesOfCode:       sum(sizes),
		AverageCoupling:        mean(couplings),
		MaxCoupling:            maxOf(couplings),
		TotalClasses:           len(classes),
		ComplexityDistribution: distribution(complexities, complexityBuckets),
		SizeDistribution:       distribution(sizes, sizeBuckets),
		CouplingDistribution:   distribution(couplings, couplingBuckets),
		CalculatedAt:           time.Now().UTC(),
	}
	m.QualityScore = Score(m.AverageComplexity, m.AverageMethodLength, m.AverageCoupling)

	if err := c.store.SaveMetrics(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save metrics: %w", err)
	}
	c.log.Infof("codebase %s: quality %.1f over %d classes, %d methods", codebaseID, m.QualityScore, m.TotalClasses, m.TotalMethods)
	return m, nil
}

// Get returns the stored metrics, calculating them on first use.
func (c *Calculator) Get(ctx context.Context, codebaseID string) (*models.CodeMetrics, error) {
	m, err := c.store.GetMetrics(ctx, codebaseID)
	if errors.Is(err, errs.ErrNotFound) {
		return c.Calculate(ctx, codebaseID)
	}
	return m, err
}

// TopComplexMethods returns the n methods with the highest complexity.
func (c *Calculator) TopComplexMethods(ctx context.Context, codebaseID string, n int) ([]models.MethodComplexity, error) {
	classes, _, err := c.load(ctx, codebaseID)
	if err != nil {
		return nil, err
	}
	out := []models.MethodComplexity{}
	for _, class := range classes {
		for _, m := range class.Methods {
			out = append(out, models.MethodComplexity{
				Name:       m.Name,
				ClassName:  class.Name,
				Complexity: Complexity(m),
				Size:       Size(m),
				FileID:     class.FileID,
				StartLine:  m.StartLine,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Complexity > out[j].Complexity })
	return limit(out, n), nil
}

// TopCoupledClasses returns the n classes with the highest coupling.
func (c *Calculator) TopCoupledClasses(ctx context.Context, codebaseID string, n int) ([]models.ClassCoupling, error) {
	classes, rels, err := c.load(ctx, codebaseID)
	if err != nil {
		return nil, err
	}
	coupling := couplingByClass(rels)
	out := make([]models.ClassCoupling, 0, len(classes))
	for _, class := range classes {
		out = append(out, models.ClassCoupling{
			Name:        class.Name,
			Coupling:    coupling[class.ID],
			MethodCount: len(class.Methods),
			FileID:      class.FileID,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Coupling > out[j].Coupling })
	return limit(out, n), nil
}

func (c *Calculator) load(ctx context.Context, codebaseID string) ([]*models.CodeClass, []*models.CodeRelationship, error) {
	classes, err := c.store.ListClasses(ctx, codebaseID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list classes: %w", err)
	}
	rels, err := c.store.ListRelationships(ctx, codebaseID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	return classes, rels, nil
}

// Complexity estimates a method's complexity from its parameter count.
func Complexity(m models.CodeMethod) int {
	if m.Parameters == "" {
		return 1
	}
	params := strings.Count(m.Parameters, ",") + 1
	return 1 + params/2
}

// Size is the number of source lines a method spans.
func Size(m models.CodeMethod) int {
	if m.StartLine == 0 || m.EndLine == 0 {
		return 0
	}
	return m.EndLine - m.StartLine + 1
}

// Score weights complexity, method length and coupling into a 0-100 grade.
func Score(avgComplexity, avgLength, avgCoupling float64) float64 {
	complexity := math.Max(0, 100-avgComplexity/10*100)
	size := math.Max(0, 100-avgLength/50*100)
	coupling := math.Max(0, 100-avgCoupling/20*100)
	return math.Min(100, math.Max(0, complexity*0.4+size*0.3+coupling*0.3))
}

// couplingByClass counts the distinct types each class extends, implements or uses.
func couplingByClass(rels []*models.CodeRelationship) map[string]int {
	targets := map[string]map[string]bool{}
	for _, r := range rels {
		if r.Kind == models.RelImports {
			continue
		}
		if targets[r.SourceClassID] == nil {
			targets[r.SourceClassID] = map[string]bool{}
		}
		targets[r.SourceClassID][r.TargetClassName] = true
	}
	out := make(map[string]int, len(targets))
	for id, set := range targets {
		out[id] = len(set)
	}
	return out
}

func distribution(values []int, buckets []bucket) []models.Bucket {
	out := make([]models.Bucket, len(buckets))
	for i, b := range buckets {
		out[i].Label = b.label
		for _, v := range values {
			if v >= b.min && v <= b.max {
				out[i].Count++
			}
		}
	}
	return out
}

func mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	return float64(sum(values)) / float64(len(values))
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}

func maxOf(values []int) int {
	best := 0
	for _, v := range values {
		if v > best {
			best = v
		}
	}
	return best
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
