package models

import "time"

// Bucket is one labelled range of a distribution. Order is significant.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type CodeMetrics struct {
	CodebaseID             string    `json:"codebaseId"`
	QualityScore           float64   `json:"qualityScore"`
	AverageComplexity      float64   `json:"averageComplexity"`
	MaxComplexity          int       `json:"maxComplexity"`
	TotalMethods           int       `json:"totalMethods"`
	AverageMethodLength    float64   `json:"averageMethodLength"`
	MaxMethodLength        int       `json:"maxMethodLength"`
	TotalLinesOfCode       int       `json:"totalLinesOfCode"`
	AverageCoupling        float64   `json:"averageCoupling"`
	MaxCoupling            int       `json:"maxCoupling"`
	TotalClasses           int       `json:"totalClasses"`
	ComplexityDistribution []Bucket  `json:"complexityDistribution"`
	SizeDistribution       []Bucket  `json:"sizeDistribution"`
	CouplingDistribution   []Bucket  `json:"couplingDistribution"`
	CalculatedAt           time.Time `json:"calculatedAt"`
}

type MethodComplexity struct {
	Name       string `json:"name"`
	ClassName  string `json:"className"`
	Complexity int    `json:"complexity"`
	Size       int    `json:"size"`
	FileID     string `json:"fileId"`
	StartLine  int    `json:"startLine"`
}

type ClassCoupling struct {
	Name        string `json:"name"`
	Coupling    int    `json:"coupling"`
	MethodCount int    `json:"methodCount"`
	FileID      string `json:"fileId"`
}
