package resolver

import "archmap/internal/model"

// Tiers reported in the resolved_by relationship metadata.
const (
	TierExact      = "exact"
	TierUnique     = "unique_name"
	TierSameModule = "same_module"
	TierFirst      = "first_candidate"
)

// Lookup resolves a dotted name against the index. An exact qualified-name match wins.
// Otherwise the bare last segment is looked up: a single candidate is taken, several
// candidates prefer one declared in fromModule, and the first in index order is the
// fallback. This is a heuristic and can pick the wrong target when names are ambiguous.
func Lookup(ix *model.Index, name, fromModule string) (model.CodeElement, string, bool) {
	if name == "" {
		return model.CodeElement{}, "", false
	}
	if el, ok := ix.Lookup(name); ok {
		return el, TierExact, true
	}

	candidates := ix.Named(model.LastSegment(name))
	switch len(candidates) {
	case 0:
		return model.CodeElement{}, "", false
	case 1:
		return candidates[0], TierUnique, true
	}

	for _, c := range candidates {
		if c.Module == fromModule {
			return c, TierSameModule, true
		}
	}
	return candidates[0], TierFirst, true
}
