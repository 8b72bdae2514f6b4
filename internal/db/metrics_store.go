package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dpolishuk/coderag/internal/errs"
	"github.com/dpolishuk/coderag/internal/models"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// SaveMetrics replaces the metrics node of a codebase.
func (s *Neo4jStore) SaveMetrics(ctx context.Context, m *models.CodeMetrics) error {
	// Distributions are stored as JSON so bucket order survives the round trip.
	distributions, err := json.Marshal(map[string][]models.Bucket{
		"complexity": m.ComplexityDistribution,
		"size":       m.SizeDistribution,
		"coupling":   m.CouplingDistribution,
	})
	if err != nil {
		return fmt.Errorf("failed to encode distributions: %w", err)
	}

	_, err = s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (c:Codebase {id: $codebaseId})
			MERGE (m:CodeMetrics {codebaseId: $codebaseId})
			SET m.qualityScore = $qualityScore,
			    m.averageComplexity = $averageComplexity,
			    m.maxComplexity = $maxComplexity,
			    m.totalMethods = $totalMethods,
			    m.averageMethodLength = $averageMethodLength,
			    m.maxMethodLength = $maxMethodLength,
			    m.totalLinesOfCode = $totalLinesOfCode,
			    m.averageCoupling = $averageCoupling,
			    m.maxCoupling = $maxCoupling,
			    m.totalClasses = $totalClasses,
			    m.distributions = $distributions,
			    m.calculatedAt = $calculatedAt
			MERGE (c)-[:HAS_METRICS]->(m)
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"codebaseId":          m.CodebaseID,
			"qualityScore":        m.QualityScore,
			"averageComplexity":   m.AverageComplexity,
			"maxComplexity":       m.MaxComplexity,
			"totalMethods":        m.TotalMethods,
			"averageMethodLength": m.AverageMethodLength,
			"maxMethodLength":     m.MaxMethodLength,
			"totalLinesOfCode":    m.TotalLinesOfCode,
			"averageCoupling":     m.AverageCoupling,
			"maxCoupling":         m.MaxCoupling,
			"totalClasses":        m.TotalClasses,
			"distributions":       string(distributions),
			"calculatedAt":        m.CalculatedAt,
		})
		return nil, err
	})
	return err
}

func (s *Neo4jStore) GetMetrics(ctx context.Context, codebaseID string) (*models.CodeMetrics, error) {
	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (m:CodeMetrics {codebaseId: $codebaseId})
			RETURN m.qualityScore AS qualityScore, m.averageComplexity AS averageComplexity,
			       m.maxComplexity AS maxComplexity, m.totalMethods AS totalMethods,
			       m.averageMethodLength AS averageMethodLength, m.maxMethodLength AS maxMethodLength,
			       m.totalLinesOfCode AS totalLinesOfCode, m.averageCoupling AS averageCoupling,
			       m.maxCoupling AS maxCoupling, m.totalClasses AS totalClasses,
			       m.distributions AS distributions, m.calculatedAt AS calculatedAt
		`
		records, err := tx.Run(ctx, query, map[string]any{"codebaseId": codebaseID})
		if err != nil {
			return nil, err
		}
		if !records.Next(ctx) {
			return nil, records.Err()
		}

		rec := records.Record()
		m := &models.CodeMetrics{
			CodebaseID:          codebaseID,
			QualityScore:        recordFloat(rec, "qualityScore"),
			AverageComplexity:   recordFloat(rec, "averageComplexity"),
			MaxComplexity:       recordInt(rec, "maxComplexity"),
			TotalMethods:        recordInt(rec, "totalMethods"),
			AverageMethodLength: recordFloat(rec, "averageMethodLength"),
			MaxMethodLength:     recordInt(rec, "maxMethodLength"),
			TotalLinesOfCode:    recordInt(rec, "totalLinesOfCode"),
			AverageCoupling:     recordFloat(rec, "averageCoupling"),
			MaxCoupling:         recordInt(rec, "maxCoupling"),
			TotalClasses:        recordInt(rec, "totalClasses"),
		}
		if raw := recordString(rec, "distributions"); raw != "" {
			var d map[string][]models.Bucket
			if err := json.Unmarshal([]byte(raw), &d); err != nil {
				return nil, fmt.Errorf("failed to decode distributions: %w", err)
			}
			m.ComplexityDistribution = d["complexity"]
			m.SizeDistribution = d["size"]
			m.CouplingDistribution = d["coupling"]
		}
		if v, ok := rec.Get("calculatedAt"); ok && v != nil {
			m.CalculatedAt, _ = v.(time.Time)
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("metrics for codebase %s: %w", codebaseID, errs.ErrNotFound)
	}
	return result.(*models.CodeMetrics), nil
}

func (s *Neo4jStore) DeleteMetrics(ctx context.Context, codebaseID string) (int, error) {
	return s.client.deleteCount(ctx, `
		MATCH (m:CodeMetrics {codebaseId: $codebaseId})
		DETACH DELETE m
	`, map[string]any{"codebaseId": codebaseID})
}
