package assembler

import (
	"sort"

	"archmap/internal/model"
)

// Metadata keys set on assembled models.
const (
	MetaFilesFound    = "total_files_found"
	MetaFilesParsed   = "total_files_parsed"
	MetaFilesFailed   = "files_failed"
	MetaElements      = "total_elements"
	MetaRelationships = "total_relationships"
	MetaUnresolved    = "unresolved_references"
	MetaPruned        = "elements_pruned"
)

// FilterOptions selects the elements that survive into the published model.
type FilterOptions struct {
	IncludePrivate bool
	// MaxNodes caps the number of elements; zero or less disables the budget.
	MaxNodes       int
	IncludeModules []string
	ExcludeModules []string
}

// Filter returns a new model holding only the elements the options allow, plus the
// relationships and cycles whose members all survived. Filter is idempotent.
func Filter(m *model.CodeModel, opts FilterOptions) *model.CodeModel {
	all := m.Elements()
	kept := make([]model.CodeElement, 0, len(all))
	for _, el := range all {
		if !opts.IncludePrivate && el.IsPrivate {
			continue
		}
		if len(opts.IncludeModules) > 0 && !model.MatchesAnyPrefix(el.Module, opts.IncludeModules) {
			continue
		}
		if model.MatchesAnyPrefix(el.Module, nonEmpty(opts.ExcludeModules)) {
			continue
		}
		kept = append(kept, el)
	}
	if opts.MaxNodes > 0 && len(kept) > opts.MaxNodes {
		kept = topByImportance(kept, opts.MaxNodes)
	}

	var modules []model.Module
	for _, mod := range m.Modules() {
		if len(opts.IncludeModules) > 0 && !model.MatchesAnyPrefix(mod.Name, opts.IncludeModules) {
			continue
		}
		if model.MatchesAnyPrefix(mod.Name, nonEmpty(opts.ExcludeModules)) {
			continue
		}
		modules = append(modules, mod)
	}

	out := model.New(m.Project(), m.Root(), modules, kept, m.Relationships())

	var cycles [][]string
	for _, c := range m.Cycles() {
		if allPresent(out, c) {
			cycles = append(cycles, c)
		}
	}
	if len(cycles) > 0 {
		out = out.WithCycles(cycles)
	}

	for k, v := range m.Metadata() {
		out = out.WithMetadata(k, v)
	}
	return out.
		WithMetadata(MetaElements, out.ElementCount()).
		WithMetadata(MetaRelationships, out.RelationshipCount()).
		WithMetadata(MetaPruned, intValue(m.Metadata()[MetaPruned])+len(all)-len(kept))
}

// topByImportance keeps the n elements ranked highest by (complexity, name length), ties
// going to the earlier element. Survivors keep their original order.
func topByImportance(elements []model.CodeElement, n int) []model.CodeElement {
	order := make([]int, len(elements))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ea, eb := elements[order[a]], elements[order[b]]
		if ea.Complexity != eb.Complexity {
			return ea.Complexity > eb.Complexity
		}
		return len(ea.Name) > len(eb.Name)
	})

	keep := make(map[int]bool, n)
	for _, idx := range order[:n] {
		keep[idx] = true
	}
	out := make([]model.CodeElement, 0, n)
	for i, el := range elements {
		if keep[i] {
			out = append(out, el)
		}
	}
	return out
}

func allPresent(m *model.CodeModel, ids []string) bool {
	for _, id := range ids {
		if _, ok := m.Element(id); !ok {
			return false
		}
	}
	return true
}

func nonEmpty(prefixes []string) []string {
	out := prefixes[:0:0]
	for _, p := range prefixes {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
