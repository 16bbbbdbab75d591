package extractor

import (
	"log/slog"
	"strings"

	"archmap/internal/model"
	"archmap/internal/tree"
)

// Extractor turns the declarations of one parsed file into CodeElement records.
// It keeps no state between files and is safe for concurrent use.
type Extractor struct {
	isPrivate PrivacyFunc
	logger    *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithPrivacy replaces the default privacy predicate.
func WithPrivacy(fn PrivacyFunc) Option {
	return func(e *Extractor) {
		if fn != nil {
			e.isPrivate = fn
		}
	}
}

// WithLogger sets the logger used for skipped declarations.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		isPrivate: UnderscorePrivacy,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract emits one module element followed by one element per well-formed declaration,
// in declaration order. Malformed declarations are skipped, never fatal.
func (e *Extractor) Extract(f tree.File, module string) []model.CodeElement {
	path := f.Path()
	out := []model.CodeElement{{
		ID:            model.ElementID(module),
		Name:          model.LastSegment(module),
		QualifiedName: module,
		Module:        module,
		Kind:          model.KindModule,
		Location:      model.SourceLocation{File: path, Line: 1},
		Docstring:     f.Docstring(),
		Complexity:    1,
	}}

	seen := map[string]bool{module: true}
	for _, d := range f.Declarations() {
		if reason := malformed(d); reason != "" {
			e.logger.Warn("extract.declaration.skipped",
				slog.String("file", path),
				slog.Int("line", d.Line),
				slog.String("reason", reason))
			continue
		}

		el := e.element(d, module, path)
		if seen[el.ID] {
			e.logger.Debug("extract.declaration.duplicate",
				slog.String("file", path),
				slog.String("id", el.ID),
				slog.Int("line", d.Line))
			continue
		}
		seen[el.ID] = true
		out = append(out, el)
	}
	return out
}

func (e *Extractor) element(d tree.Declaration, module, path string) model.CodeElement {
	qn := tree.QualifiedName(module, d)
	el := model.CodeElement{
		ID:             model.ElementID(qn),
		Name:           d.Name,
		QualifiedName:  qn,
		Module:         module,
		EnclosingClass: tree.EnclosingClass(module, d),
		Location:       model.SourceLocation{File: path, Line: d.Line, Column: d.Column, StartLine: d.StartLine},
		IsAsync:        d.Async,
		Decorators:     append([]string(nil), d.Decorators...),
		Docstring:      d.Docstring,
		Complexity:     1,
	}

	if d.Kind == tree.DeclClass {
		el.Kind = model.KindClass
		el.IsPrivate = e.isPrivate(d.Name, d.Decorators)
		return el
	}

	el.IsPrivate = e.isPrivate(d.Name, d.Decorators)
	el.IsProperty = hasPropertyDecorator(d.Decorators)
	el.Kind = e.classify(d, el.IsPrivate, el.IsProperty)
	el.Complexity = Complexity(d)
	return el
}

// malformed returns a reason when a declaration cannot be named reliably.
func malformed(d tree.Declaration) string {
	if strings.TrimSpace(d.Name) == "" {
		return "missing name"
	}
	for _, p := range d.Parents {
		if strings.TrimSpace(p.Name) == "" {
			return "unnamed enclosing scope"
		}
	}
	return ""
}

// Complexity is 1 plus one per decision point. It approximates cyclomatic complexity from
// syntax alone; no control-flow graph is built.
func Complexity(d tree.Declaration) int {
	return 1 + len(d.DecisionPoints)
}
