package models

import (
	"fmt"
	"strings"
	"time"
)

type ElementKind string

const (
	KindClass  ElementKind = "CLASS"
	KindMethod ElementKind = "METHOD"
	// KindAll only appears in queries.
	KindAll ElementKind = "ALL"
)

// ParseKind accepts CLASS, METHOD or ALL in any case. Empty means ALL.
func ParseKind(s string) (ElementKind, error) {
	switch ElementKind(strings.ToUpper(strings.TrimSpace(s))) {
	case "", KindAll:
		return KindAll, nil
	case KindClass:
		return KindClass, nil
	case KindMethod:
		return KindMethod, nil
	}
	return "", fmt.Errorf("unknown element kind %q", s)
}

type EmbeddingRecord struct {
	ID          string      `json:"id"`
	CodebaseID  string      `json:"codebaseId"`
	FileID      string      `json:"fileId"`
	ClassID     string      `json:"classId"`
	MethodID    string      `json:"methodId,omitempty"`
	ElementKind ElementKind `json:"elementKind"`
	ElementName string      `json:"elementName"`
	ClassName   string      `json:"className,omitempty"`
	TextPreview string      `json:"textPreview"`
	Vector      []float32   `json:"-"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// SearchHit is one ranked retrieval result.
type SearchHit struct {
	RecordID    string      `json:"id"`
	ElementKind ElementKind `json:"elementKind"`
	Similarity  float64     `json:"similarity"`
	ElementName string      `json:"elementName"`
	TextPreview string      `json:"textPreview"`
	ClassID     string      `json:"classId"`
	FileID      string      `json:"fileId"`
	ClassName   string      `json:"className,omitempty"`
}

type EmbeddingStats struct {
	CodebaseID string `json:"codebaseId"`
	Classes    int    `json:"classEmbeddings"`
	Methods    int    `json:"methodEmbeddings"`
	Total      int    `json:"totalEmbeddings"`
}
