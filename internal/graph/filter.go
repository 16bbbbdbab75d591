package graph

import (
	"strings"

	"archmap/internal/model"
)

// FilterByModules keeps the nodes whose module matches any of the prefixes. Matching is
// segment-aware, so "pkg" keeps pkg and pkg.sub but not pkgx. No prefixes keeps everything.
func FilterByModules(g *Graph, prefixes []string) *Graph {
	if len(prefixes) == 0 {
		return g.Clone()
	}
	var keep []string
	for _, id := range g.order {
		if model.MatchesAnyPrefix(g.nodes[id].Module, prefixes) {
			keep = append(keep, id)
		}
	}
	return g.Subgraph(keep)
}

// ResolveRoot finds the node an entry point refers to: the exact id, or else the first
// node in insertion order whose id contains the text.
func ResolveRoot(g *Graph, root string) (string, bool) {
	if root == "" {
		return "", false
	}
	if g.HasNode(root) {
		return root, true
	}
	for _, id := range g.order {
		if strings.Contains(id, root) {
			return id, true
		}
	}
	return "", false
}

type queueItem struct {
	id    string
	depth int
}

// FilterByDepth keeps the nodes reachable from root over outgoing edges within maxDepth
// hops, with the edges among them. An unknown root yields an empty graph.
func FilterByDepth(g *Graph, root string, maxDepth int) *Graph {
	visitedDepth := Depths(g, root, maxDepth)
	if len(visitedDepth) == 0 {
		return NewGraph()
	}
	keep := make([]string, 0, len(visitedDepth))
	for id := range visitedDepth {
		keep = append(keep, id)
	}
	return g.Subgraph(keep)
}

// Depths returns the shortest hop count from root to every node reachable within
// maxDepth. A negative depth is treated as zero.
func Depths(g *Graph, root string, maxDepth int) map[string]int {
	start, ok := ResolveRoot(g, root)
	if !ok {
		return map[string]int{}
	}
	if maxDepth < 0 {
		maxDepth = 0
	}

	visitedDepth := map[string]int{start: 0}
	queue := []queueItem{{id: start, depth: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.depth >= maxDepth {
			continue
		}
		for _, next := range g.Successors(cur.id) {
			nextDepth := cur.depth + 1
			prevDepth, seen := visitedDepth[next]
			if !seen || nextDepth < prevDepth {
				visitedDepth[next] = nextDepth
				queue = append(queue, queueItem{id: next, depth: nextDepth})
			}
		}
	}
	return visitedDepth
}
