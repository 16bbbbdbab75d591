package model

import (
	"encoding/json"
	"maps"
	"slices"
)

// CodeModel is the analysis result for one project. It is built once by New and never
// mutated afterwards; accessors hand out copies and With* methods return derived models.
type CodeModel struct {
	project       string
	root          string
	modules       []Module
	elements      []CodeElement
	relationships []Relationship
	cycles        [][]string
	metadata      map[string]any

	byID     map[string]int
	byModule map[string][]int
	byElem   map[string][]int
}

// New assembles a model. Elements with an id already seen are dropped, and relationships
// whose endpoints are missing are discarded, so a model never holds dangling edges.
func New(project, root string, modules []Module, elements []CodeElement, relationships []Relationship) *CodeModel {
	m := &CodeModel{
		project:  project,
		root:     root,
		metadata: make(map[string]any),
		byID:     make(map[string]int, len(elements)),
		byModule: make(map[string][]int),
		byElem:   make(map[string][]int),
	}

	for _, mod := range modules {
		m.modules = append(m.modules, mod.clone())
	}

	for _, el := range elements {
		if _, dup := m.byID[el.ID]; dup {
			continue
		}
		m.byID[el.ID] = len(m.elements)
		m.byModule[el.Module] = append(m.byModule[el.Module], len(m.elements))
		m.elements = append(m.elements, el.clone())
	}

	seen := make(map[string]bool, len(relationships))
	for _, rel := range relationships {
		if seen[rel.ID] {
			continue
		}
		if _, ok := m.byID[rel.SourceID]; !ok {
			continue
		}
		if _, ok := m.byID[rel.TargetID]; !ok {
			continue
		}
		seen[rel.ID] = true
		idx := len(m.relationships)
		m.relationships = append(m.relationships, rel.clone())
		m.byElem[rel.SourceID] = append(m.byElem[rel.SourceID], idx)
		if rel.TargetID != rel.SourceID {
			m.byElem[rel.TargetID] = append(m.byElem[rel.TargetID], idx)
		}
	}

	return m
}

func (m *CodeModel) Project() string { return m.project }
func (m *CodeModel) Root() string    { return m.root }

// Modules returns the analyzed modules in discovery order.
func (m *CodeModel) Modules() []Module {
	out := make([]Module, len(m.modules))
	for i, mod := range m.modules {
		out[i] = mod.clone()
	}
	return out
}

// Elements returns all elements in discovery order.
func (m *CodeModel) Elements() []CodeElement {
	out := make([]CodeElement, len(m.elements))
	for i, el := range m.elements {
		out[i] = el.clone()
	}
	return out
}

// Relationships returns all relationships in resolution order.
func (m *CodeModel) Relationships() []Relationship {
	out := make([]Relationship, len(m.relationships))
	for i, rel := range m.relationships {
		out[i] = rel.clone()
	}
	return out
}

// Cycles returns the published cycles, each as an ordered list of element ids.
func (m *CodeModel) Cycles() [][]string {
	out := make([][]string, len(m.cycles))
	for i, c := range m.cycles {
		out[i] = slices.Clone(c)
	}
	return out
}

func (m *CodeModel) Metadata() map[string]any {
	return maps.Clone(m.metadata)
}

// Element looks up an element by id.
func (m *CodeModel) Element(id string) (CodeElement, bool) {
	idx, ok := m.byID[id]
	if !ok {
		return CodeElement{}, false
	}
	return m.elements[idx].clone(), true
}

// ElementsInModule returns the elements declared in the named module.
func (m *CodeModel) ElementsInModule(module string) []CodeElement {
	idxs := m.byModule[module]
	out := make([]CodeElement, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, m.elements[idx].clone())
	}
	return out
}

// RelationshipsFor returns every relationship with the element at either end.
func (m *CodeModel) RelationshipsFor(id string) []Relationship {
	idxs := m.byElem[id]
	out := make([]Relationship, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, m.relationships[idx].clone())
	}
	return out
}

func (m *CodeModel) ElementCount() int      { return len(m.elements) }
func (m *CodeModel) RelationshipCount() int { return len(m.relationships) }

// WithCycles returns a copy of the model carrying the given cycles.
func (m *CodeModel) WithCycles(cycles [][]string) *CodeModel {
	out := m.derive()
	out.cycles = make([][]string, len(cycles))
	for i, c := range cycles {
		out.cycles[i] = slices.Clone(c)
	}
	return out
}

// WithMetadata returns a copy of the model with one metadata entry set.
func (m *CodeModel) WithMetadata(key string, value any) *CodeModel {
	out := m.derive()
	out.metadata[key] = value
	return out
}

// derive shares the immutable element and relationship storage and copies the rest.
func (m *CodeModel) derive() *CodeModel {
	out := *m
	out.metadata = maps.Clone(m.metadata)
	if out.metadata == nil {
		out.metadata = make(map[string]any)
	}
	out.cycles = m.Cycles()
	return &out
}

// Snapshot is the serializable form of a CodeModel.
type Snapshot struct {
	Project       string         `json:"project"`
	Root          string         `json:"root,omitempty"`
	Modules       []Module       `json:"modules"`
	Elements      []CodeElement  `json:"elements"`
	Relationships []Relationship `json:"relationships"`
	Cycles        [][]string     `json:"cycles,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Snapshot exports the model as plain data.
func (m *CodeModel) Snapshot() Snapshot {
	return Snapshot{
		Project:       m.project,
		Root:          m.root,
		Modules:       m.Modules(),
		Elements:      m.Elements(),
		Relationships: m.Relationships(),
		Cycles:        m.Cycles(),
		Metadata:      m.Metadata(),
	}
}

// FromSnapshot rebuilds a model from exported data.
func FromSnapshot(s Snapshot) *CodeModel {
	m := New(s.Project, s.Root, s.Modules, s.Elements, s.Relationships)
	if len(s.Cycles) > 0 {
		m.cycles = make([][]string, len(s.Cycles))
		for i, c := range s.Cycles {
			m.cycles[i] = slices.Clone(c)
		}
	}
	maps.Copy(m.metadata, s.Metadata)
	return m
}

func (m *CodeModel) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Snapshot())
}

func (m *CodeModel) UnmarshalJSON(data []byte) error {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*m = *FromSnapshot(s)
	return nil
}
