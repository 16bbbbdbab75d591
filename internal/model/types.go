package model

import "strings"

// ElementKind classifies a declaration.
type ElementKind string

const (
	KindModule        ElementKind = "module"
	KindClass         ElementKind = "class"
	KindFunction      ElementKind = "function"
	KindMethod        ElementKind = "method"
	KindConstructor   ElementKind = "constructor"
	KindProperty      ElementKind = "property"
	KindStaticMethod  ElementKind = "static_method"
	KindClassMethod   ElementKind = "class_method"
	KindPrivateMethod ElementKind = "private_method"
	KindAsyncMethod   ElementKind = "async_method"
)

// IsCallable reports whether elements of this kind have a body that can call other code.
func (k ElementKind) IsCallable() bool {
	switch k {
	case KindModule, KindClass:
		return false
	}
	return true
}

// RelationKind classifies a directed relationship between two elements.
type RelationKind string

const (
	RelationCalls        RelationKind = "calls"
	RelationInherits     RelationKind = "inherits"
	RelationImports      RelationKind = "imports"
	RelationContains     RelationKind = "contains"
	RelationInstantiates RelationKind = "instantiates"
	RelationDecorates    RelationKind = "decorates"
)

// SourceLocation points at a declaration or reference. Column is 1-based; 0 means unknown.
type SourceLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
	// StartLine is set when the declaration begins above Line, on its first decorator.
	StartLine int `json:"start_line,omitempty"`
}

// FirstLine is the first source line the location covers.
func (l SourceLocation) FirstLine() int {
	if l.StartLine > 0 && l.StartLine < l.Line {
		return l.StartLine
	}
	return l.Line
}

// CodeElement is one extracted declaration.
type CodeElement struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	QualifiedName  string         `json:"qualified_name"`
	Module         string         `json:"module"`
	EnclosingClass string         `json:"enclosing_class,omitempty"`
	Kind           ElementKind    `json:"kind"`
	Location       SourceLocation `json:"location"`
	IsAsync        bool           `json:"is_async,omitempty"`
	IsPrivate      bool           `json:"is_private,omitempty"`
	IsProperty     bool           `json:"is_property,omitempty"`
	Decorators     []string       `json:"decorators,omitempty"`
	Docstring      string         `json:"docstring,omitempty"`
	Complexity     int            `json:"complexity"`
}

func (e CodeElement) clone() CodeElement {
	if e.Decorators != nil {
		e.Decorators = append([]string(nil), e.Decorators...)
	}
	return e
}

// Relationship is a resolved directed edge between two elements.
type Relationship struct {
	ID       string            `json:"id"`
	SourceID string            `json:"source_id"`
	TargetID string            `json:"target_id"`
	Kind     RelationKind      `json:"kind"`
	Location *SourceLocation   `json:"location,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (r Relationship) clone() Relationship {
	if r.Location != nil {
		loc := *r.Location
		r.Location = &loc
	}
	if r.Metadata != nil {
		md := make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			md[k] = v
		}
		r.Metadata = md
	}
	return r
}

// Module describes one analyzed source file.
type Module struct {
	Name        string   `json:"name"`
	File        string   `json:"file"`
	Docstring   string   `json:"docstring,omitempty"`
	Imports     []string `json:"imports,omitempty"`
	ContentHash string   `json:"content_hash,omitempty"`
}

func (m Module) clone() Module {
	if m.Imports != nil {
		m.Imports = append([]string(nil), m.Imports...)
	}
	return m
}

// ElementID derives the stable id of an element from its qualified name.
func ElementID(qualifiedName string) string {
	return strings.TrimSpace(qualifiedName)
}

// RelationshipID derives the stable id of a relationship.
func RelationshipID(sourceID, targetID string, kind RelationKind) string {
	return sourceID + "->" + targetID + ":" + string(kind)
}

// HasModulePrefix reports whether module equals prefix or lies below it.
// Matching is per dotted segment, so "pkg" matches "pkg.sub" but not "pkgx".
func HasModulePrefix(module, prefix string) bool {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return true
	}
	if module == prefix {
		return true
	}
	return strings.HasPrefix(module, prefix+".")
}

// MatchesAnyPrefix reports whether module matches one of the prefixes.
func MatchesAnyPrefix(module string, prefixes []string) bool {
	for _, p := range prefixes {
		if HasModulePrefix(module, p) {
			return true
		}
	}
	return false
}

// LastSegment returns the part of a dotted name after the final dot.
func LastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
