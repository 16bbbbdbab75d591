package graph

import (
	"testing"

	"archmap/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func element(qn, module string, kind model.ElementKind, complexity int) model.CodeElement {
	return model.CodeElement{
		ID:            model.ElementID(qn),
		Name:          model.LastSegment(qn),
		QualifiedName: qn,
		Module:        module,
		Kind:          kind,
		Complexity:    complexity,
		Location:      model.SourceLocation{File: module + ".py", Line: 1},
	}
}

func rel(src, dst string, kind model.RelationKind, line int) model.Relationship {
	return model.Relationship{
		ID:       model.RelationshipID(src, dst, kind),
		SourceID: src,
		TargetID: dst,
		Kind:     kind,
		Location: &model.SourceLocation{Line: line},
	}
}

func sampleModel() *model.CodeModel {
	elements := []model.CodeElement{
		element("pkg.core.Base", "pkg.core", model.KindClass, 1),
		element("pkg.core.Child", "pkg.core", model.KindClass, 1),
		element("pkg.core.run", "pkg.core", model.KindFunction, 3),
		element("pkg.sub.util.helper", "pkg.sub.util", model.KindFunction, 2),
		element("pkgx.other.tool", "pkgx.other", model.KindFunction, 1),
	}
	rels := []model.Relationship{
		rel("pkg.core.Child", "pkg.core.Base", model.RelationInherits, 4),
		rel("pkg.core.run", "pkg.sub.util.helper", model.RelationCalls, 7),
		rel("pkg.core.run", "pkgx.other.tool", model.RelationCalls, 8),
		rel("pkg.sub.util.helper", "pkgx.other.tool", model.RelationCalls, 3),
		rel("pkg.core.run", "pkg.core.Child", model.RelationInstantiates, 9),
	}
	return model.New("sample", "/tmp/sample", nil, elements, rels)
}

func TestGraph_Basics(t *testing.T) {
	g := NewGraph()
	assert.True(t, g.AddNode(Node{ID: "a"}))
	assert.True(t, g.AddNode(Node{ID: "b"}))
	assert.False(t, g.AddNode(Node{ID: "a", Name: "dup"}), "first node wins")
	assert.False(t, g.AddNode(Node{}), "empty id rejected")

	assert.True(t, g.AddEdge(Edge{From: "a", To: "b", Kind: model.RelationCalls}))
	assert.False(t, g.AddEdge(Edge{From: "a", To: "b", Kind: model.RelationCalls}))
	assert.False(t, g.AddEdge(Edge{From: "a", To: "missing", Kind: model.RelationCalls}))

	assert.Equal(t, 2, g.Len())
	assert.Equal(t, 1, g.EdgeCount())
	e, ok := g.Edge("a", "b")
	require.True(t, ok)
	assert.Equal(t, 2, e.Weight, "duplicate edges accumulate weight")
	assert.True(t, g.HasEdge("a", "b"))
	assert.False(t, g.HasEdge("b", "a"))
	assert.Equal(t, []string{"b"}, g.Successors("a"))
	assert.Equal(t, []string{"a"}, g.Predecessors("b"))
	assert.Empty(t, g.Successors("b"))

	n, ok := g.Node("a")
	require.True(t, ok)
	assert.Empty(t, n.Name)
}

func TestGraph_CloneIsIndependent(t *testing.T) {
	g := NewGraph()
	g.AddNode(Node{ID: "a"})
	g.AddNode(Node{ID: "b"})
	g.AddEdge(Edge{From: "a", To: "b", Kind: model.RelationCalls})

	c := g.Clone()
	assert.True(t, c.MarkInCycle("a", "b"))
	c.AddNode(Node{ID: "c"})

	e, _ := g.Edge("a", "b")
	assert.False(t, e.InCycle)
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, 3, c.Len())
}

func TestCallGraph(t *testing.T) {
	g := CallGraph(sampleModel())

	assert.Equal(t, 5, g.Len(), "one node per element")
	assert.Equal(t, 3, g.EdgeCount(), "calls only")
	assert.ElementsMatch(t, []string{"pkg.sub.util.helper", "pkgx.other.tool"}, g.Successors("pkg.core.run"))

	e, ok := g.Edge("pkg.core.run", "pkg.sub.util.helper")
	require.True(t, ok)
	assert.Equal(t, 7, e.Line)
	assert.Equal(t, model.RelationCalls, e.Kind)

	n, ok := g.Node("pkg.core.run")
	require.True(t, ok)
	assert.Equal(t, "run", n.Name)
	assert.Equal(t, "pkg.core", n.Module)
	assert.Equal(t, 3, n.Complexity)
	assert.Equal(t, model.KindFunction, n.Kind)
}

func TestInheritanceAndDependencyGraphs(t *testing.T) {
	m := sampleModel()

	inh := InheritanceGraph(m)
	assert.Equal(t, 1, inh.EdgeCount())
	assert.True(t, inh.HasEdge("pkg.core.Child", "pkg.core.Base"))

	dep := DependencyGraph(m, model.RelationCalls, model.RelationInstantiates)
	assert.Equal(t, 4, dep.EdgeCount())
	assert.Equal(t, 5, DependencyGraph(m).EdgeCount(), "no kinds keeps every relationship")
}

func TestModuleGraph(t *testing.T) {
	g := ModuleGraph(sampleModel())

	assert.Equal(t, []string{"pkg.core", "pkg.sub.util", "pkgx.other"}, g.NodeIDs())

	core, ok := g.Node("pkg.core")
	require.True(t, ok)
	assert.Equal(t, 3, core.ElementCount)
	assert.Equal(t, 5, core.Complexity)

	e, ok := g.Edge("pkg.core", "pkgx.other")
	require.True(t, ok)
	assert.Equal(t, 1, e.Weight)
	assert.True(t, g.HasEdge("pkg.sub.util", "pkgx.other"))
	assert.Equal(t, 3, g.EdgeCount(), "intra-module relationships are not edges")
}

func TestModuleGraph_WeightsCountRelationships(t *testing.T) {
	elements := []model.CodeElement{
		element("a.f", "a", model.KindFunction, 1),
		element("a.g", "a", model.KindFunction, 1),
		element("b.h", "b", model.KindFunction, 1),
	}
	rels := []model.Relationship{
		rel("a.f", "b.h", model.RelationCalls, 1),
		rel("a.g", "b.h", model.RelationCalls, 2),
	}
	g := ModuleGraph(model.New("p", "", nil, elements, rels))

	e, ok := g.Edge("a", "b")
	require.True(t, ok)
	assert.Equal(t, 2, e.Weight)
}

func TestFilterByModules(t *testing.T) {
	g := CallGraph(sampleModel())

	pkg := FilterByModules(g, []string{"pkg"})
	assert.Equal(t, []string{"pkg.core.Base", "pkg.core.Child", "pkg.core.run", "pkg.sub.util.helper"}, pkg.NodeIDs())
	assert.Equal(t, 1, pkg.EdgeCount())

	sub := FilterByModules(g, []string{"pkg.sub"})
	assert.Equal(t, []string{"pkg.sub.util.helper"}, sub.NodeIDs())

	assert.Equal(t, g.Len(), FilterByModules(g, nil).Len())
}

func TestFilterByDepth(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"root", "a", "b", "c", "far"} {
		g.AddNode(Node{ID: id})
	}
	g.AddEdge(Edge{From: "root", To: "a"})
	g.AddEdge(Edge{From: "a", To: "b"})
	g.AddEdge(Edge{From: "root", To: "b"})
	g.AddEdge(Edge{From: "b", To: "c"})
	g.AddEdge(Edge{From: "c", To: "far"})
	g.AddEdge(Edge{From: "far", To: "root"})

	t.Run("depth one", func(t *testing.T) {
		sub := FilterByDepth(g, "root", 1)
		assert.Equal(t, []string{"root", "a", "b"}, sub.NodeIDs())
		assert.True(t, sub.HasEdge("a", "b"), "induced subgraph keeps edges among kept nodes")
	})

	t.Run("shortest hop wins", func(t *testing.T) {
		depths := Depths(g, "root", 10)
		assert.Equal(t, 1, depths["b"])
		assert.Equal(t, 2, depths["c"])
		assert.Equal(t, 3, depths["far"])
		assert.Equal(t, 0, depths["root"])
	})

	t.Run("depth zero and negative", func(t *testing.T) {
		assert.Equal(t, []string{"root"}, FilterByDepth(g, "root", 0).NodeIDs())
		assert.Equal(t, []string{"root"}, FilterByDepth(g, "root", -3).NodeIDs())
	})

	t.Run("contains fallback", func(t *testing.T) {
		sub := FilterByDepth(g, "fa", 1)
		assert.Equal(t, []string{"root", "far"}, sub.NodeIDs())
	})

	t.Run("missing root", func(t *testing.T) {
		assert.Equal(t, 0, FilterByDepth(g, "nowhere", 3).Len())
	})
}
