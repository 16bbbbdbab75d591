package cycles

import "archmap/internal/graph"

// Stats summarizes a list of cycles. Lengths count nodes per cycle.
type Stats struct {
	Total         int     `json:"total"`
	MinLength     int     `json:"min_length"`
	MaxLength     int     `json:"max_length"`
	AvgLength     float64 `json:"avg_length"`
	DistinctNodes int     `json:"distinct_nodes"`
}

func Statistics(cycles [][]string) Stats {
	var st Stats
	if len(cycles) == 0 {
		return st
	}

	nodes := make(map[string]bool)
	sum := 0
	st.MinLength = len(cycles[0])
	for _, c := range cycles {
		n := len(c)
		sum += n
		st.MinLength = min(st.MinLength, n)
		st.MaxLength = max(st.MaxLength, n)
		for _, id := range c {
			nodes[id] = true
		}
	}
	st.Total = len(cycles)
	st.AvgLength = float64(sum) / float64(len(cycles))
	st.DistinctNodes = len(nodes)
	return st
}

// MarkCycleEdges returns a copy of g where every edge between consecutive members of a
// cycle, wrapping from the last member to the first, is flagged InCycle.
func MarkCycleEdges(g *graph.Graph, cycles [][]string) *graph.Graph {
	out := g.Clone()
	for _, c := range cycles {
		for i, from := range c {
			out.MarkInCycle(from, c[(i+1)%len(c)])
		}
	}
	return out
}

// IsPath reports whether cycle is a traversal of g, each member having an edge to the next
// and the last to the first.
func IsPath(g *graph.Graph, cycle []string) bool {
	if len(cycle) == 0 {
		return false
	}
	for i, from := range cycle {
		if !g.HasEdge(from, cycle[(i+1)%len(cycle)]) {
			return false
		}
	}
	return true
}
