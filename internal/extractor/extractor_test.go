package extractor

import (
	"bytes"
	"log/slog"
	"testing"

	"archmap/internal/model"
	"archmap/internal/tree"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classScope(name string) tree.Scope { return tree.Scope{Name: name, Kind: tree.DeclClass} }
func funcScope(name string) tree.Scope  { return tree.Scope{Name: name, Kind: tree.DeclFunction} }

func method(class, name string, decorators ...string) tree.Declaration {
	return tree.Declaration{
		Kind:       tree.DeclFunction,
		Name:       name,
		Parents:    []tree.Scope{classScope(class)},
		Decorators: decorators,
		Line:       10,
	}
}

func byName(elements []model.CodeElement) map[string]model.CodeElement {
	out := make(map[string]model.CodeElement, len(elements))
	for _, el := range elements {
		out[el.QualifiedName] = el
	}
	return out
}

func TestExtractor_Calculator(t *testing.T) {
	f := &tree.Static{
		FilePath:  "calc.py",
		ModuleDoc: "Calculator demo.",
		Decls: []tree.Declaration{
			{Kind: tree.DeclClass, Name: "Calculator", Line: 1, Docstring: "Adds things."},
			method("Calculator", "__init__"),
			method("Calculator", "add"),
			method("Calculator", "subtract"),
			{Kind: tree.DeclFunction, Name: "main", Line: 20},
		},
	}

	elements := New().Extract(f, "calc")
	require.Len(t, elements, 6)

	assert.Equal(t, model.KindModule, elements[0].Kind)
	assert.Equal(t, "calc", elements[0].ID)
	assert.Equal(t, "Calculator demo.", elements[0].Docstring)

	els := byName(elements)
	assert.Equal(t, model.KindClass, els["calc.Calculator"].Kind)
	assert.Equal(t, "Adds things.", els["calc.Calculator"].Docstring)
	assert.Equal(t, model.KindConstructor, els["calc.Calculator.__init__"].Kind)
	assert.Equal(t, model.KindMethod, els["calc.Calculator.add"].Kind)
	assert.Equal(t, model.KindMethod, els["calc.Calculator.subtract"].Kind)
	assert.Equal(t, "calc.Calculator", els["calc.Calculator.add"].EnclosingClass)
	assert.Equal(t, model.KindFunction, els["calc.main"].Kind)
	assert.Equal(t, "", els["calc.main"].EnclosingClass)
	assert.Equal(t, model.SourceLocation{File: "calc.py", Line: 20}, els["calc.main"].Location)
}

func TestExtractor_Classification(t *testing.T) {
	tests := []struct {
		name     string
		decl     tree.Declaration
		kind     model.ElementKind
		private  bool
		property bool
	}{
		{"constructor", method("C", "__init__"), model.KindConstructor, false, false},
		{"new is a constructor", method("C", "__new__"), model.KindConstructor, false, false},
		{"constructor beats property", method("C", "__init__", "property"), model.KindConstructor, false, true},
		{"property", method("C", "value", "property"), model.KindProperty, false, true},
		{"property beats staticmethod", method("C", "value", "staticmethod", "property"), model.KindProperty, false, true},
		{"property setter", method("C", "value", "value.setter"), model.KindProperty, false, true},
		{"cached property", method("C", "value", "functools.cached_property"), model.KindProperty, false, true},
		{"private method", method("C", "_helper"), model.KindPrivateMethod, true, false},
		{"mangled name is not private", method("C", "__secret"), model.KindMethod, false, false},
		{"dunder is not private", method("C", "__repr__"), model.KindMethod, false, false},
		{"staticmethod", method("C", "make", "staticmethod"), model.KindStaticMethod, false, false},
		{"classmethod", method("C", "build", "classmethod"), model.KindClassMethod, false, false},
		{"unknown decorator kept", method("C", "route", "app.get"), model.KindMethod, false, false},
		{"async method", func() tree.Declaration { d := method("C", "fetch"); d.Async = true; return d }(), model.KindAsyncMethod, false, false},
		{"private function", tree.Declaration{Kind: tree.DeclFunction, Name: "_util"}, model.KindFunction, true, false},
		{"nested function is a function", tree.Declaration{Kind: tree.DeclFunction, Name: "inner", Parents: []tree.Scope{classScope("C"), funcScope("run")}}, model.KindFunction, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &tree.Static{FilePath: "m.py", Decls: []tree.Declaration{tt.decl}}
			elements := New().Extract(f, "m")
			require.Len(t, elements, 2)
			el := elements[1]
			assert.Equal(t, tt.kind, el.Kind)
			assert.Equal(t, tt.private, el.IsPrivate)
			assert.Equal(t, tt.property, el.IsProperty)
			assert.Equal(t, tt.decl.Decorators, el.Decorators)
		})
	}
}

func TestExtractor_CustomPrivacy(t *testing.T) {
	f := &tree.Static{FilePath: "m.py", Decls: []tree.Declaration{method("C", "internal_sync")}}
	ext := New(WithPrivacy(func(name string, _ []string) bool {
		return len(name) > 9 && name[:9] == "internal_"
	}))

	el := ext.Extract(f, "m")[1]
	assert.True(t, el.IsPrivate)
	assert.Equal(t, model.KindPrivateMethod, el.Kind)
}

func TestExtractor_Complexity(t *testing.T) {
	d := tree.Declaration{
		Kind: tree.DeclFunction,
		Name: "busy",
		DecisionPoints: []tree.DecisionPoint{
			{Kind: tree.DecisionBranch, Line: 2},
			{Kind: tree.DecisionBranch, Line: 4},
			{Kind: tree.DecisionLoop, Line: 6},
			{Kind: tree.DecisionAsyncLoop, Line: 7},
			{Kind: tree.DecisionHandler, Line: 9},
			{Kind: tree.DecisionBoolean, Line: 10},
			{Kind: tree.DecisionComprehend, Line: 11},
		},
	}
	f := &tree.Static{FilePath: "m.py", Decls: []tree.Declaration{d, {Kind: tree.DeclFunction, Name: "idle"}}}

	els := byName(New().Extract(f, "m"))
	assert.Equal(t, 8, els["m.busy"].Complexity)
	assert.Equal(t, 1, els["m.idle"].Complexity)
}

func TestExtractor_NestedQualifiedNames(t *testing.T) {
	f := &tree.Static{
		FilePath: "pkg/mod.py",
		Decls: []tree.Declaration{
			{Kind: tree.DeclClass, Name: "Outer"},
			{Kind: tree.DeclClass, Name: "Inner", Parents: []tree.Scope{classScope("Outer")}},
			{Kind: tree.DeclFunction, Name: "method", Parents: []tree.Scope{classScope("Outer"), classScope("Inner")}},
			{Kind: tree.DeclFunction, Name: "a"},
			{Kind: tree.DeclFunction, Name: "helper", Parents: []tree.Scope{funcScope("a")}},
			{Kind: tree.DeclFunction, Name: "b"},
			{Kind: tree.DeclFunction, Name: "helper", Parents: []tree.Scope{funcScope("b")}},
		},
	}

	els := byName(New().Extract(f, "pkg.mod"))
	require.Contains(t, els, "pkg.mod.Outer.Inner.method")
	assert.Equal(t, "pkg.mod.Outer.Inner", els["pkg.mod.Outer.Inner.method"].EnclosingClass)
	assert.Equal(t, model.KindMethod, els["pkg.mod.Outer.Inner.method"].Kind)
	assert.Contains(t, els, "pkg.mod.a.helper")
	assert.Contains(t, els, "pkg.mod.b.helper")
}

func TestExtractor_SkipsMalformed(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	f := &tree.Static{
		FilePath: "m.py",
		Decls: []tree.Declaration{
			{Kind: tree.DeclFunction, Name: "", Line: 3},
			{Kind: tree.DeclFunction, Name: "orphan", Parents: []tree.Scope{classScope("")}, Line: 5},
			{Kind: tree.DeclFunction, Name: "ok", Line: 7},
			{Kind: tree.DeclFunction, Name: "ok", Line: 9},
		},
	}

	elements := New(WithLogger(logger)).Extract(f, "m")
	require.Len(t, elements, 2)
	assert.Equal(t, "m.ok", elements[1].ID)
	assert.Equal(t, 7, elements[1].Location.Line, "first declaration wins")
	assert.Contains(t, buf.String(), "extract.declaration.skipped")
}

func TestExtractor_Deterministic(t *testing.T) {
	f := &tree.Static{
		FilePath: "m.py",
		Decls: []tree.Declaration{
			{Kind: tree.DeclClass, Name: "A"},
			method("A", "run", "staticmethod"),
			{Kind: tree.DeclFunction, Name: "main"},
		},
	}

	first := New().Extract(f, "m")
	second := New().Extract(f, "m")
	assert.Equal(t, first, second)
}
