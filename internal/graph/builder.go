package graph

import (
	"archmap/internal/model"
)

// CallGraph builds a graph with one node per element and one edge per calls relationship.
func CallGraph(m *model.CodeModel) *Graph {
	return DependencyGraph(m, model.RelationCalls)
}

// InheritanceGraph builds a graph with one node per element and one edge per
// inherits relationship.
func InheritanceGraph(m *model.CodeModel) *Graph {
	return DependencyGraph(m, model.RelationInherits)
}

// DependencyGraph builds a graph with one node per element and one edge per relationship
// of the given kinds. With no kinds, every relationship becomes an edge.
func DependencyGraph(m *model.CodeModel, kinds ...model.RelationKind) *Graph {
	g := NewGraph()
	if m == nil {
		return g
	}

	for _, e := range m.Elements() {
		g.AddNode(elementNode(e))
	}

	allowed := make(map[model.RelationKind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}
	for _, r := range m.Relationships() {
		if len(allowed) > 0 && !allowed[r.Kind] {
			continue
		}
		g.AddEdge(relationshipEdge(r))
	}
	return g
}

// ModuleGraph builds a graph with one node per module that owns elements. Edge weights
// count the relationships crossing from one module into another.
func ModuleGraph(m *model.CodeModel) *Graph {
	g := NewGraph()
	if m == nil {
		return g
	}

	elements := m.Elements()
	moduleOf := make(map[string]string, len(elements))
	stats := make(map[string]*Node)
	for _, e := range elements {
		moduleOf[e.ID] = e.Module
		n, ok := stats[e.Module]
		if !ok {
			n = &Node{ID: e.Module, Name: e.Module, Module: e.Module, Kind: model.KindModule}
			stats[e.Module] = n
			g.AddNode(*n)
		}
		n.ElementCount++
		n.Complexity += e.Complexity
		if e.Kind == model.KindModule {
			n.Location = e.Location
		}
	}
	for id, n := range stats {
		*g.nodes[id] = *n
	}

	for _, r := range m.Relationships() {
		from, okFrom := moduleOf[r.SourceID]
		to, okTo := moduleOf[r.TargetID]
		if !okFrom || !okTo || from == to {
			continue
		}
		g.AddEdge(Edge{From: from, To: to, Kind: model.RelationImports, Weight: 1})
	}
	return g
}

func elementNode(e model.CodeElement) Node {
	return Node{
		ID:            e.ID,
		Name:          e.Name,
		QualifiedName: e.QualifiedName,
		Module:        e.Module,
		Class:         e.EnclosingClass,
		Kind:          e.Kind,
		Complexity:    e.Complexity,
		Location:      e.Location,
	}
}

func relationshipEdge(r model.Relationship) Edge {
	e := Edge{From: r.SourceID, To: r.TargetID, Kind: r.Kind, Weight: 1}
	if r.Location != nil {
		e.Line = r.Location.Line
	}
	return e
}
