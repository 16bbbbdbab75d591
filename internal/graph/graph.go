// Package graph projects a code model onto directed graphs and filters them.
package graph

import (
	"slices"

	"archmap/internal/model"
)

// Node represents a vertex in a dependency graph. Element graphs fill the element
// attributes; module graphs fill Module, Complexity and ElementCount.
type Node struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	QualifiedName string               `json:"qualified_name,omitempty"`
	Module        string               `json:"module"`
	Class         string               `json:"class,omitempty"`
	Kind          model.ElementKind    `json:"kind,omitempty"`
	Complexity    int                  `json:"complexity"`
	Location      model.SourceLocation `json:"location"`
	ElementCount  int                  `json:"element_count,omitempty"`
}

// Edge represents a directed relationship between two nodes.
type Edge struct {
	From    string             `json:"from"`
	To      string             `json:"to"`
	Kind    model.RelationKind `json:"kind"`
	Weight  int                `json:"weight"`
	Line    int                `json:"line,omitempty"`
	InCycle bool               `json:"in_cycle,omitempty"`
}

type edgeKey struct {
	from, to string
	kind     model.RelationKind
}

// Graph is an adjacency-list digraph. Nodes keep insertion order and each
// (from, to, kind) triple is stored once.
type Graph struct {
	nodes map[string]*Node
	order []string

	edges   []Edge
	edgeIdx map[edgeKey]int
	out     map[string][]int
	in      map[string][]int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edgeIdx: make(map[edgeKey]int),
		out:     make(map[string][]int),
		in:      make(map[string][]int),
	}
}

// AddNode inserts n unless a node with the same id exists. It reports whether n was added.
func (g *Graph) AddNode(n Node) bool {
	if n.ID == "" {
		return false
	}
	if _, ok := g.nodes[n.ID]; ok {
		return false
	}
	g.nodes[n.ID] = &n
	g.order = append(g.order, n.ID)
	return true
}

// AddEdge inserts e if both endpoints exist. Adding a known (from, to, kind) triple
// increases the stored weight instead.
func (g *Graph) AddEdge(e Edge) bool {
	if _, ok := g.nodes[e.From]; !ok {
		return false
	}
	if _, ok := g.nodes[e.To]; !ok {
		return false
	}
	if e.Weight <= 0 {
		e.Weight = 1
	}

	key := edgeKey{e.From, e.To, e.Kind}
	if i, ok := g.edgeIdx[key]; ok {
		g.edges[i].Weight += e.Weight
		return false
	}
	i := len(g.edges)
	g.edges = append(g.edges, e)
	g.edgeIdx[key] = i
	g.out[e.From] = append(g.out[e.From], i)
	g.in[e.To] = append(g.in[e.To], i)
	return true
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.order) }

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// NodeIDs returns node ids in insertion order.
func (g *Graph) NodeIDs() []string {
	return slices.Clone(g.order)
}

// Nodes returns copies of all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, *g.nodes[id])
	}
	return out
}

// Edges returns copies of all edges in insertion order.
func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// Edge returns the first edge from -> to of any kind.
func (g *Graph) Edge(from, to string) (Edge, bool) {
	for _, i := range g.out[from] {
		if g.edges[i].To == to {
			return g.edges[i], true
		}
	}
	return Edge{}, false
}

func (g *Graph) HasEdge(from, to string) bool {
	_, ok := g.Edge(from, to)
	return ok
}

// Successors returns the distinct targets of edges leaving id, in edge order.
func (g *Graph) Successors(id string) []string {
	return g.neighbors(g.out[id], func(e Edge) string { return e.To })
}

// Predecessors returns the distinct sources of edges entering id, in edge order.
func (g *Graph) Predecessors(id string) []string {
	return g.neighbors(g.in[id], func(e Edge) string { return e.From })
}

func (g *Graph) neighbors(idx []int, end func(Edge) string) []string {
	if len(idx) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(idx))
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		id := end(g.edges[i])
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// MarkInCycle flags every edge from -> to as part of a cycle and reports whether any
// edge matched.
func (g *Graph) MarkInCycle(from, to string) bool {
	marked := false
	for _, i := range g.out[from] {
		if g.edges[i].To == to {
			g.edges[i].InCycle = true
			marked = true
		}
	}
	return marked
}

// Clone returns a deep copy of g.
func (g *Graph) Clone() *Graph {
	return g.Subgraph(g.order)
}

// Subgraph returns the subgraph induced by ids. Nodes keep their order in g and
// unknown ids are ignored.
func (g *Graph) Subgraph(ids []string) *Graph {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}

	out := NewGraph()
	for _, id := range g.order {
		if keep[id] {
			out.AddNode(*g.nodes[id])
		}
	}
	for _, e := range g.edges {
		if keep[e.From] && keep[e.To] {
			out.AddEdge(e)
		}
	}
	return out
}
