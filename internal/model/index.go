package model

// Index is the frozen global element index used during resolution. It is built once from the
// complete element set and has no mutators, so it can be shared across goroutines.
type Index struct {
	elements []CodeElement
	byQN     map[string]int
	byName   map[string][]int
}

// NewIndex indexes elements in the given order. The first element with a given id wins.
// Module elements are reachable by qualified name only.
func NewIndex(elements []CodeElement) *Index {
	ix := &Index{
		byQN:   make(map[string]int, len(elements)),
		byName: make(map[string][]int),
	}
	for _, el := range elements {
		if _, dup := ix.byQN[el.ID]; dup {
			continue
		}
		idx := len(ix.elements)
		ix.elements = append(ix.elements, el.clone())
		ix.byQN[el.ID] = idx
		if el.QualifiedName != el.ID {
			if _, taken := ix.byQN[el.QualifiedName]; !taken {
				ix.byQN[el.QualifiedName] = idx
			}
		}
		if el.Kind != KindModule {
			ix.byName[el.Name] = append(ix.byName[el.Name], idx)
		}
	}
	return ix
}

// Len returns the number of indexed elements.
func (ix *Index) Len() int { return len(ix.elements) }

// Lookup finds an element by exact qualified name.
func (ix *Index) Lookup(qualifiedName string) (CodeElement, bool) {
	idx, ok := ix.byQN[qualifiedName]
	if !ok {
		return CodeElement{}, false
	}
	return ix.elements[idx], true
}

// Named returns every non-module element with the given bare name, in insertion order.
func (ix *Index) Named(name string) []CodeElement {
	idxs := ix.byName[name]
	out := make([]CodeElement, len(idxs))
	for i, idx := range idxs {
		out[i] = ix.elements[idx]
	}
	return out
}

// Elements returns the indexed elements in insertion order.
func (ix *Index) Elements() []CodeElement {
	out := make([]CodeElement, len(ix.elements))
	for i, el := range ix.elements {
		out[i] = el.clone()
	}
	return out
}
