// Package tree defines the normalized, grammar-independent view of a parsed source file that
// the analysis core consumes.
package tree

import (
	"context"
	"strings"
)

// File is the normalized view of one parsed source file.
type File interface {
	// Path identifies the file, relative to the project root.
	Path() string
	// Docstring is the module-level docstring, if any.
	Docstring() string
	// Imports lists every import statement in source order.
	Imports() []Import
	// Statements lists calls and assignments at module scope, outside any declaration.
	Statements() []Event
	// Declarations lists class and function declarations in pre-order, source order.
	Declarations() []Declaration
}

// Parser turns raw source into a File.
type Parser interface {
	Parse(ctx context.Context, path string, content []byte) (File, error)
}

// DeclKind distinguishes class and function declarations.
type DeclKind int

const (
	DeclFunction DeclKind = iota
	DeclClass
)

func (k DeclKind) String() string {
	if k == DeclClass {
		return "class"
	}
	return "function"
}

// Scope is one level of the nesting path of a declaration.
type Scope struct {
	Name string
	Kind DeclKind
}

// Declaration is a class or function definition.
type Declaration struct {
	Kind       DeclKind
	Name       string
	Parents    []Scope
	Decorators []string
	Docstring  string
	Line       int
	Column     int
	// StartLine is the line of the first decorator, zero for undecorated declarations.
	StartLine int
	Async     bool
	Bases     []Ref
	// Events are the calls and assignments in the body, excluding nested declarations.
	Events []Event
	// DecisionPoints covers the whole body subtree, nested declarations included.
	DecisionPoints []DecisionPoint
}

// InClass reports whether the declaration sits directly inside a class body.
func (d Declaration) InClass() bool {
	return len(d.Parents) > 0 && d.Parents[len(d.Parents)-1].Kind == DeclClass
}

// RefKind classifies a reference expression.
type RefKind int

const (
	// RefName is a bare identifier.
	RefName RefKind = iota
	// RefAttribute is a dotted chain rooted at an identifier.
	RefAttribute
	// RefCall is any other expression, such as a call result or subscript.
	RefCall
)

// Ref is a reference expression such as a callee, base class or assignment target.
type Ref struct {
	Kind   RefKind
	Parts  []string
	Line   int
	Column int
}

// NameRef builds a reference from a dotted name.
func NameRef(dotted string) Ref {
	parts := strings.Split(dotted, ".")
	kind := RefName
	if len(parts) > 1 {
		kind = RefAttribute
	}
	return Ref{Kind: kind, Parts: parts}
}

// Text joins the chain with dots.
func (r Ref) Text() string { return strings.Join(r.Parts, ".") }

// Head is the first segment of the chain.
func (r Ref) Head() string {
	if len(r.Parts) == 0 {
		return ""
	}
	return r.Parts[0]
}

// Last is the final segment of the chain.
func (r Ref) Last() string {
	if len(r.Parts) == 0 {
		return ""
	}
	return r.Parts[len(r.Parts)-1]
}

// Receiver is everything before the final segment.
func (r Ref) Receiver() string {
	if len(r.Parts) < 2 {
		return ""
	}
	return strings.Join(r.Parts[:len(r.Parts)-1], ".")
}

// EventKind distinguishes calls from assignments.
type EventKind int

const (
	EventCall EventKind = iota
	EventAssign
)

// Event is a call site, or an assignment of a call result to a simple target.
type Event struct {
	Kind   EventKind
	Callee Ref
	// Target is set for assignments only.
	Target Ref
	Line   int
	Column int
}

// Import is one imported name.
type Import struct {
	// Module is the dotted module path. Relative imports keep their leading dots.
	Module string
	// Name is the imported member of a from-import, empty for a plain import.
	Name     string
	Alias    string
	Wildcard bool
	Line     int
}

// String renders the import the way it would be written in a requirements listing.
func (i Import) String() string {
	switch {
	case i.Wildcard:
		return i.Module + ".*"
	case i.Name != "":
		return strings.TrimSuffix(i.Module, ".") + "." + i.Name
	default:
		return i.Module
	}
}

// DecisionKind names the construct behind a complexity increment.
type DecisionKind string

const (
	DecisionBranch     DecisionKind = "branch"
	DecisionLoop       DecisionKind = "loop"
	DecisionAsyncLoop  DecisionKind = "async_loop"
	DecisionHandler    DecisionKind = "except"
	DecisionBoolean    DecisionKind = "boolean"
	DecisionComprehend DecisionKind = "comprehension"
)

// DecisionPoint is one complexity increment.
type DecisionPoint struct {
	Kind DecisionKind
	Line int
}

// QualifiedName builds the dotted qualified name of a declaration in module.
func QualifiedName(module string, d Declaration) string {
	parts := make([]string, 0, len(d.Parents)+2)
	if module != "" {
		parts = append(parts, module)
	}
	for _, p := range d.Parents {
		parts = append(parts, p.Name)
	}
	parts = append(parts, d.Name)
	return strings.Join(parts, ".")
}

// EnclosingClass returns the qualified name of the nearest enclosing class, or "".
func EnclosingClass(module string, d Declaration) string {
	for i := len(d.Parents) - 1; i >= 0; i-- {
		if d.Parents[i].Kind != DeclClass {
			continue
		}
		return QualifiedName(module, Declaration{Name: d.Parents[i].Name, Parents: d.Parents[:i]})
	}
	return ""
}

// ParentName returns the qualified name of the direct parent, or module at top level.
func ParentName(module string, d Declaration) string {
	if len(d.Parents) == 0 {
		return module
	}
	last := len(d.Parents) - 1
	return QualifiedName(module, Declaration{Name: d.Parents[last].Name, Parents: d.Parents[:last]})
}
