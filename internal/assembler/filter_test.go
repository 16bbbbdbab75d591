package assembler

import (
	"testing"

	"archmap/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func element(module, name string, complexity int) model.CodeElement {
	qn := module + "." + name
	return model.CodeElement{
		ID:            qn,
		Name:          name,
		QualifiedName: qn,
		Module:        module,
		Kind:          model.KindFunction,
		IsPrivate:     name[0] == '_',
		Complexity:    complexity,
	}
}

func calls(src, dst string) model.Relationship {
	return model.Relationship{
		ID:       model.RelationshipID(src, dst, model.RelationCalls),
		SourceID: src,
		TargetID: dst,
		Kind:     model.RelationCalls,
	}
}

func sampleModel() *model.CodeModel {
	elements := []model.CodeElement{
		element("pkg", "small", 1),
		element("pkg", "big", 5),
		element("pkg.sub", "mid", 3),
		element("pkgx", "other", 4),
		element("pkg", "_secret", 2),
	}
	rels := []model.Relationship{
		calls("pkg.big", "pkg.small"),
		calls("pkg.big", "pkg.sub.mid"),
		calls("pkg.sub.mid", "pkgx.other"),
		calls("pkgx.other", "pkg._secret"),
	}
	modules := []model.Module{{Name: "pkg"}, {Name: "pkg.sub"}, {Name: "pkgx"}}
	return model.New("demo", "/src", modules, elements, rels).
		WithCycles([][]string{{"pkg.big", "pkg.sub.mid"}})
}

func ids(m *model.CodeModel) []string {
	var out []string
	for _, el := range m.Elements() {
		out = append(out, el.ID)
	}
	return out
}

func assertNoDanglingEdges(t *testing.T, m *model.CodeModel) {
	t.Helper()
	for _, r := range m.Relationships() {
		_, ok := m.Element(r.SourceID)
		assert.True(t, ok, "dangling source %s", r.ID)
		_, ok = m.Element(r.TargetID)
		assert.True(t, ok, "dangling target %s", r.ID)
	}
}

func TestFilter_Budget(t *testing.T) {
	out := Filter(sampleModel(), FilterOptions{IncludePrivate: true, MaxNodes: 3})

	// Survivors keep their original order.
	assert.Equal(t, []string{"pkg.big", "pkg.sub.mid", "pkgx.other"}, ids(out))
	assert.Equal(t, 2, out.RelationshipCount())
	assertNoDanglingEdges(t, out)
	assert.Equal(t, 2, out.Metadata()[MetaPruned])
	assert.Equal(t, 3, out.Metadata()[MetaElements])
	assert.Equal(t, [][]string{{"pkg.big", "pkg.sub.mid"}}, out.Cycles())
	assert.Equal(t, "/src", out.Root())
}

func TestFilter_BudgetTieBreak(t *testing.T) {
	m := model.New("demo", "", nil, []model.CodeElement{
		element("m", "ab", 2),
		element("m", "abcd", 2),
		element("m", "xy", 2),
	}, nil)

	out := Filter(m, FilterOptions{IncludePrivate: true, MaxNodes: 2})
	assert.Equal(t, []string{"m.ab", "m.abcd"}, ids(out), "longer names first, then earlier elements")
}

func TestFilter_Private(t *testing.T) {
	out := Filter(sampleModel(), FilterOptions{IncludePrivate: false})

	assert.NotContains(t, ids(out), "pkg._secret")
	assert.False(t, hasRel(out, "pkgx.other", "pkg._secret", model.RelationCalls))
	assertNoDanglingEdges(t, out)
}

func TestFilter_Modules(t *testing.T) {
	t.Run("include is segment aware", func(t *testing.T) {
		out := Filter(sampleModel(), FilterOptions{IncludePrivate: true, IncludeModules: []string{"pkg"}})
		assert.Equal(t, []string{"pkg.small", "pkg.big", "pkg.sub.mid", "pkg._secret"}, ids(out))

		var names []string
		for _, mod := range out.Modules() {
			names = append(names, mod.Name)
		}
		assert.Equal(t, []string{"pkg", "pkg.sub"}, names)
	})

	t.Run("exclude", func(t *testing.T) {
		out := Filter(sampleModel(), FilterOptions{IncludePrivate: true, ExcludeModules: []string{"pkg.sub", ""}})
		assert.Equal(t, []string{"pkg.small", "pkg.big", "pkgx.other", "pkg._secret"}, ids(out))
		assert.Empty(t, out.Cycles(), "cycles lose members with their elements")
	})
}

func TestFilter_Idempotent(t *testing.T) {
	opts := FilterOptions{IncludePrivate: false, MaxNodes: 3, ExcludeModules: []string{"pkgx"}}
	once := Filter(sampleModel(), opts)
	twice := Filter(once, opts)

	require.Equal(t, ids(once), ids(twice))
	assert.Equal(t, once.Relationships(), twice.Relationships())
	assert.Equal(t, once.Cycles(), twice.Cycles())
	assert.Equal(t, once.Metadata(), twice.Metadata())
}

func TestFilter_NoBudget(t *testing.T) {
	out := Filter(sampleModel(), FilterOptions{IncludePrivate: true})
	assert.Len(t, out.Elements(), 5)
	assert.Equal(t, 0, out.Metadata()[MetaPruned])
}
