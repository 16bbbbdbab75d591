// Package analysis maps source changes onto the code model.
package analysis

import (
	"sort"

	"archmap/internal/git"
	"archmap/internal/graph"
	"archmap/internal/model"
)

// DependencyKinds are the relationship kinds whose source depends on its target.
var DependencyKinds = []model.RelationKind{
	model.RelationCalls,
	model.RelationInstantiates,
	model.RelationInherits,
	model.RelationImports,
}

// ImpactReport summarizes the elements affected by a set of changes.
type ImpactReport struct {
	// DirectlyAffected holds the elements whose source was edited, in model order.
	DirectlyAffected []model.CodeElement
	// IndirectlyAffected holds the dependents of the direct set, nearest first.
	IndirectlyAffected []model.CodeElement
	// Distance is the number of dependency hops from the nearest edited element.
	Distance map[string]int
}

// Analyzer performs impact analysis on a code model.
type Analyzer struct {
	m *model.CodeModel
	g *graph.Graph
}

func NewAnalyzer(m *model.CodeModel) *Analyzer {
	return &Analyzer{m: m, g: graph.DependencyGraph(m, DependencyKinds...)}
}

// AnalyzeImpact finds the elements declared around the changed lines, then walks
// dependents up to depth hops. A depth below one reports direct hits only.
func (a *Analyzer) AnalyzeImpact(changes []git.ChangedFile, depth int) ImpactReport {
	report := ImpactReport{Distance: make(map[string]int)}

	direct := make(map[string]bool)
	for _, change := range changes {
		decls := a.declarationsIn(change.Path)
		for _, line := range change.ChangedLines {
			if el, ok := enclosing(decls, line); ok {
				direct[el.ID] = true
			}
		}
	}

	var frontier []string
	for _, el := range a.m.Elements() {
		if direct[el.ID] {
			report.DirectlyAffected = append(report.DirectlyAffected, el)
			report.Distance[el.ID] = 0
			frontier = append(frontier, el.ID)
		}
	}

	for hop := 1; hop <= depth && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for _, dep := range a.g.Predecessors(id) {
				if _, seen := report.Distance[dep]; seen {
					continue
				}
				report.Distance[dep] = hop
				next = append(next, dep)
				if el, ok := a.m.Element(dep); ok {
					report.IndirectlyAffected = append(report.IndirectlyAffected, el)
				}
			}
		}
		frontier = next
	}
	return report
}

// declarationsIn returns the elements declared in file, ordered by line. Ties keep model
// order, so a module element precedes a declaration on its first line.
func (a *Analyzer) declarationsIn(file string) []model.CodeElement {
	var out []model.CodeElement
	for _, el := range a.m.Elements() {
		if el.Location.File == file {
			out = append(out, el)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Location.FirstLine() < out[j].Location.FirstLine() })
	return out
}

// enclosing picks the last declaration starting at or before line, decorators included.
// Elements carry no end line, so code after a nested block is credited to the last
// declaration above it.
func enclosing(decls []model.CodeElement, line int) (model.CodeElement, bool) {
	i := sort.Search(len(decls), func(i int) bool { return decls[i].Location.FirstLine() > line })
	if i == 0 {
		return model.CodeElement{}, false
	}
	return decls[i-1], true
}
