package db

import (
	"context"
	"fmt"

	"github.com/dpolishuk/coderag/internal/models"
)

type GraphData struct {
	Nodes []GraphNode  `json:"nodes"`
	Edges []GraphEdge  `json:"edges"`
	Stats GraphSummary `json:"stats"`
}

type GraphNode struct {
	ID    string         `json:"id"`
	Label string         `json:"label"`
	Type  string         `json:"type"`
	Props map[string]any `json:"props"`
}

type GraphEdge struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Type     string `json:"type"`
	External bool   `json:"isExternal,omitempty"`
}

type GraphSummary struct {
	TotalClasses       int            `json:"totalClasses"`
	TotalRelationships int            `json:"totalRelationships"`
	ByType             map[string]int `json:"byType"`
}

// ClassGraph returns the class dependency graph of a codebase. Unresolved
// targets become "external-<name>" endpoints.
func ClassGraph(ctx context.Context, store Store, codebaseID string) (*GraphData, error) {
	classes, err := store.ListClasses(ctx, codebaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	rels, err := store.ListRelationships(ctx, codebaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	return BuildClassGraph(classes, rels), nil
}

func BuildClassGraph(classes []*models.CodeClass, rels []*models.CodeRelationship) *GraphData {
	graph := &GraphData{
		Nodes: []GraphNode{},
		Edges: []GraphEdge{},
		Stats: GraphSummary{ByType: map[string]int{}},
	}

	known := make(map[string]bool, len(classes))
	for _, c := range classes {
		known[c.ID] = true
		graph.Nodes = append(graph.Nodes, GraphNode{
			ID:    c.ID,
			Label: c.Name,
			Type:  classType(c),
			Props: map[string]any{
				"package":            c.PackageName,
				"fullyQualifiedName": c.FQN,
				"methodCount":        len(c.Methods),
				"fieldCount":         len(c.Fields),
			},
		})
	}

	for _, r := range rels {
		if !known[r.SourceClassID] {
			continue
		}
		edge := GraphEdge{
			ID:     r.ID,
			Source: r.SourceClassID,
			Type:   string(r.Kind),
		}
		if r.TargetClassID != nil {
			edge.Target = *r.TargetClassID
		} else {
			edge.Target = "external-" + r.TargetClassName
			edge.External = true
		}
		graph.Edges = append(graph.Edges, edge)
		graph.Stats.ByType[string(r.Kind)]++
	}

	graph.Stats.TotalClasses = len(graph.Nodes)
	graph.Stats.TotalRelationships = len(graph.Edges)
	return graph
}

// Dependencies returns the outgoing relationships of one class.
func Dependencies(ctx context.Context, store Store, classID string) ([]*models.CodeRelationship, error) {
	return classRelationships(ctx, store, classID, func(r *models.CodeRelationship) bool {
		return r.SourceClassID == classID
	})
}

// Dependents returns the relationships resolved to one class as their target.
func Dependents(ctx context.Context, store Store, classID string) ([]*models.CodeRelationship, error) {
	return classRelationships(ctx, store, classID, func(r *models.CodeRelationship) bool {
		return r.TargetClassID != nil && *r.TargetClassID == classID
	})
}

func classRelationships(ctx context.Context, store Store, classID string, keep func(*models.CodeRelationship) bool) ([]*models.CodeRelationship, error) {
	class, err := store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	rels, err := store.ListRelationships(ctx, class.CodebaseID)
	if err != nil {
		return nil, err
	}
	out := []*models.CodeRelationship{}
	for _, r := range rels {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func classType(c *models.CodeClass) string {
	switch {
	case c.IsInterface:
		return "interface"
	case c.IsAbstract:
		return "abstract"
	default:
		return "class"
	}
}
