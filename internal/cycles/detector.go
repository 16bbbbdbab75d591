// Package cycles finds strongly connected components and elementary cycles in a graph.
package cycles

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"archmap/internal/graph"
	"archmap/internal/metrics"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

const (
	DefaultMaxNodes  = 500
	DefaultMaxCycles = 1000
	DefaultTimeout   = 5 * time.Second

	// checkEvery is how many search steps run between deadline and context checks.
	checkEvery = 1024
)

var (
	errTooManyNodes  = errors.New("too many nodes in cyclic components")
	errTooManyCycles = errors.New("too many elementary cycles")
	errTimeout       = errors.New("elementary cycle search timed out")
)

// Report is the outcome of one detection run.
type Report struct {
	// Components are the strongly connected components with two or more nodes, members in
	// graph order.
	Components [][]string `json:"components"`
	// SelfLoops lists nodes with an edge to themselves.
	SelfLoops []string `json:"self_loops,omitempty"`
	// Elementary lists every simple cycle, self-loops included as one-node cycles. It is
	// empty when the search overran.
	Elementary [][]string `json:"elementary,omitempty"`
	Overrun    bool       `json:"overrun,omitempty"`
	// OverrunReason names the guard that stopped the search.
	OverrunReason string `json:"overrun_reason,omitempty"`
}

// Cycles merges the report into one list: components first, then self-loops, then the
// remaining elementary cycles. A component that is a single elementary cycle is listed in
// its traversal order; any other component keeps graph order and is a group, not a path.
func (r Report) Cycles() [][]string {
	out := make([][]string, 0, len(r.Components)+len(r.SelfLoops)+len(r.Elementary))
	used := make(map[string]bool, len(r.Components))
	for _, c := range r.Components {
		group := slices.Clone(c)
		if path, ok := r.traversal(c); ok {
			group = slices.Clone(path)
			used[pathKey(path)] = true
		}
		out = append(out, group)
	}
	for _, id := range r.SelfLoops {
		out = append(out, []string{id})
	}
	for _, c := range r.Elementary {
		if len(c) < 2 || used[pathKey(c)] {
			continue
		}
		used[pathKey(c)] = true
		out = append(out, slices.Clone(c))
	}
	return out
}

// traversal returns the first elementary cycle visiting exactly the members of component.
func (r Report) traversal(component []string) ([]string, bool) {
	key := setKey(component)
	for _, c := range r.Elementary {
		if len(c) == len(component) && setKey(c) == key {
			return c, true
		}
	}
	return nil, false
}

// MarkEdges returns a copy of g with every edge that lies on a cycle flagged InCycle. Edges
// between members of one component and self-loops are marked even when the elementary
// search overran.
func (r Report) MarkEdges(g *graph.Graph) *graph.Graph {
	out := MarkCycleEdges(g, r.Elementary)
	group := make(map[string]int)
	for i, c := range r.Components {
		for _, id := range c {
			group[id] = i
		}
	}
	for _, e := range out.Edges() {
		gf, okf := group[e.From]
		gt, okt := group[e.To]
		if okf && okt && gf == gt {
			out.MarkInCycle(e.From, e.To)
		}
	}
	for _, id := range r.SelfLoops {
		out.MarkInCycle(id, id)
	}
	return out
}

func setKey(ids []string) string {
	sorted := slices.Clone(ids)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}

func pathKey(ids []string) string {
	return strings.Join(ids, "\x00")
}

// Detector runs cycle detection with guards on the elementary cycle search.
type Detector struct {
	maxNodes  int
	maxCycles int
	timeout   time.Duration
	logger    *slog.Logger
}

type Option func(*Detector)

// WithMaxNodes caps the number of nodes inside cyclic components the elementary search
// accepts. Zero disables the cap.
func WithMaxNodes(n int) Option {
	return func(d *Detector) {
		if n >= 0 {
			d.maxNodes = n
		}
	}
}

// WithMaxCycles caps the number of elementary cycles collected. Zero disables the cap.
func WithMaxCycles(n int) Option {
	return func(d *Detector) {
		if n >= 0 {
			d.maxCycles = n
		}
	}
}

// WithTimeout bounds the wall-clock time of the elementary search. Zero disables it.
func WithTimeout(t time.Duration) Option {
	return func(d *Detector) {
		if t >= 0 {
			d.timeout = t
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a Detector.
func New(opts ...Option) *Detector {
	d := &Detector{
		maxNodes:  DefaultMaxNodes,
		maxCycles: DefaultMaxCycles,
		timeout:   DefaultTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect reports the cycles of g. Component results are always complete; the elementary
// search degrades to empty when a guard trips.
func (d *Detector) Detect(ctx context.Context, g *graph.Graph) Report {
	var report Report
	if g == nil || g.Len() == 0 {
		return report
	}

	ids := g.NodeIDs()
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	adj := make([][]int, len(ids))
	selfLoop := make([]bool, len(ids))
	for i, id := range ids {
		for _, next := range g.Successors(id) {
			j := index[next]
			if j == i {
				selfLoop[i] = true
				continue
			}
			adj[i] = append(adj[i], j)
		}
	}

	comp := make([]int, len(ids))
	for i := range comp {
		comp[i] = -1
	}
	var groups [][]int
	cyclicNodes := 0
	for _, members := range stronglyConnected(adj) {
		if len(members) < 2 {
			continue
		}
		group := make([]string, len(members))
		for k, m := range members {
			group[k] = ids[m]
			comp[m] = len(groups)
		}
		groups = append(groups, members)
		report.Components = append(report.Components, group)
		cyclicNodes += len(members)
	}
	for i, loop := range selfLoop {
		if loop {
			report.SelfLoops = append(report.SelfLoops, ids[i])
		}
	}

	elementary, err := d.elementary(ctx, adj, groups, comp, selfLoop, cyclicNodes)
	if err != nil {
		report.Overrun = true
		report.OverrunReason = err.Error()
		metrics.CycleOverruns.Inc()
		d.logger.Warn("cycles.elementary.overrun",
			slog.String("reason", err.Error()),
			slog.Int("components", len(report.Components)),
			slog.Int("cyclic_nodes", cyclicNodes),
		)
		return report
	}
	for _, c := range elementary {
		names := make([]string, len(c))
		for k, n := range c {
			names[k] = ids[n]
		}
		report.Elementary = append(report.Elementary, names)
	}

	d.logger.Debug("cycles.detected",
		slog.Int("components", len(report.Components)),
		slog.Int("self_loops", len(report.SelfLoops)),
		slog.Int("elementary", len(report.Elementary)),
	)
	return report
}

// stronglyConnected returns the components of adj with members sorted by node index.
func stronglyConnected(adj [][]int) [][]int {
	dg := simple.NewDirectedGraph()
	for i := range adj {
		dg.AddNode(simple.Node(int64(i)))
	}
	for i, next := range adj {
		for _, j := range next {
			dg.SetEdge(simple.Edge{F: simple.Node(int64(i)), T: simple.Node(int64(j))})
		}
	}

	var out [][]int
	for _, scc := range topo.TarjanSCC(dg) {
		members := make([]int, len(scc))
		for k, n := range scc {
			members[k] = int(n.ID())
		}
		sort.Ints(members)
		out = append(out, members)
	}
	sort.Slice(out, func(a, b int) bool { return out[a][0] < out[b][0] })
	return out
}

// elementary enumerates simple cycles with Johnson's algorithm. Each start node searches
// only the later members of its own component.
func (d *Detector) elementary(ctx context.Context, adj, groups [][]int, comp []int, selfLoop []bool, cyclicNodes int) ([][]int, error) {
	if d.maxNodes > 0 && cyclicNodes > d.maxNodes {
		return nil, errTooManyNodes
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &search{
		ctx:       ctx,
		adj:       adj,
		maxCycles: d.maxCycles,
		allowed:   make([]bool, len(adj)),
		blocked:   make([]bool, len(adj)),
		blockedBy: make([]map[int]bool, len(adj)),
	}
	if d.timeout > 0 {
		s.deadline = time.Now().Add(d.timeout)
	}

	for start := range adj {
		if selfLoop[start] {
			if err := s.record([]int{start}); err != nil {
				return nil, err
			}
		}
		if comp[start] < 0 {
			continue
		}
		members := groups[comp[start]]
		for _, v := range members {
			s.allowed[v] = v >= start
			s.blocked[v] = false
			s.blockedBy[v] = nil
		}
		s.start = start
		s.circuit(start)
		if s.err != nil {
			return nil, s.err
		}
		for _, v := range members {
			s.allowed[v] = false
		}
	}
	return s.cycles, nil
}

// search holds the state of Johnson's circuit enumeration for one start node at a time.
type search struct {
	ctx       context.Context
	deadline  time.Time
	adj       [][]int
	maxCycles int

	start     int
	allowed   []bool
	blocked   []bool
	blockedBy []map[int]bool
	stack     []int

	cycles [][]int
	steps  int
	err    error
}

func (s *search) circuit(v int) bool {
	if s.tick() {
		return false
	}

	found := false
	s.stack = append(s.stack, v)
	s.blocked[v] = true

	for _, w := range s.adj[v] {
		if !s.allowed[w] {
			continue
		}
		if w == s.start {
			if s.err = s.record(slices.Clone(s.stack)); s.err != nil {
				break
			}
			found = true
		} else if !s.blocked[w] && s.circuit(w) {
			found = true
		}
		if s.err != nil {
			break
		}
	}

	if found {
		s.unblock(v)
	} else {
		for _, w := range s.adj[v] {
			if !s.allowed[w] {
				continue
			}
			if s.blockedBy[w] == nil {
				s.blockedBy[w] = make(map[int]bool)
			}
			s.blockedBy[w][v] = true
		}
	}
	s.stack = s.stack[:len(s.stack)-1]
	return found
}

func (s *search) unblock(u int) {
	s.blocked[u] = false
	for w := range s.blockedBy[u] {
		delete(s.blockedBy[u], w)
		if s.blocked[w] {
			s.unblock(w)
		}
	}
}

func (s *search) record(cycle []int) error {
	s.cycles = append(s.cycles, cycle)
	if s.maxCycles > 0 && len(s.cycles) > s.maxCycles {
		return errTooManyCycles
	}
	return nil
}

// tick counts a step and reports whether the search must stop.
func (s *search) tick() bool {
	if s.err != nil {
		return true
	}
	s.steps++
	if s.steps%checkEvery != 0 {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return true
	}
	if !s.deadline.IsZero() && time.Now().After(s.deadline) {
		s.err = errTimeout
		return true
	}
	return false
}
