package storage

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"archmap/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testElement(qn, module, file string, line int) model.CodeElement {
	return model.CodeElement{
		ID:            model.ElementID(qn),
		Name:          model.LastSegment(qn),
		QualifiedName: qn,
		Module:        module,
		Kind:          model.KindFunction,
		Location:      model.SourceLocation{File: file, Line: line, Column: 1},
		Complexity:    1,
	}
}

func testRel(src, dst string, kind model.RelationKind) model.Relationship {
	return model.Relationship{
		ID:       model.RelationshipID(src, dst, kind),
		SourceID: src,
		TargetID: dst,
		Kind:     kind,
	}
}

func sampleModel() *model.CodeModel {
	a := testElement("app.FuncA", "app", "app.py", 1)
	b := testElement("app.FuncB", "app", "app.py", 5)
	b.Decorators = []string{"cache"}
	b.Location.StartLine = 4
	b.Docstring = "Returns b."
	b.IsAsync = true
	cls := testElement("app.Thing", "app", "app.py", 9)
	cls.Kind = model.KindClass
	m := testElement("lib.helper", "lib", "lib/helper.py", 2)
	m.IsPrivate = true
	m.Complexity = 4

	call := testRel(a.ID, b.ID, model.RelationCalls)
	call.Location = &model.SourceLocation{File: "app.py", Line: 2, Column: 5}
	call.Metadata = map[string]string{"via": "name", "resolved_by": "exact"}

	return model.New("demo", "/src/demo",
		[]model.Module{
			{Name: "app", File: "app.py", Docstring: "App.", Imports: []string{"lib.helper"}, ContentHash: "abc"},
			{Name: "lib", File: "lib/helper.py"},
		},
		[]model.CodeElement{a, b, cls, m},
		[]model.Relationship{
			call,
			testRel(b.ID, a.ID, model.RelationCalls),
			testRel(a.ID, m.ID, model.RelationCalls),
		},
	).WithCycles([][]string{{a.ID, b.ID}}).WithMetadata("total_files_parsed", 2)
}

func TestSQLiteStore_SaveModel_RoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	want := sampleModel()
	require.NoError(t, store.SaveModel(ctx, want))

	got, err := store.LoadModel(ctx)
	require.NoError(t, err)

	assert.Equal(t, "demo", got.Project())
	assert.Equal(t, "/src/demo", got.Root())
	assert.Equal(t, want.Modules(), got.Modules())
	assert.Equal(t, want.Elements(), got.Elements())
	assert.Equal(t, want.Relationships(), got.Relationships())
	assert.Equal(t, want.Cycles(), got.Cycles())
	assert.EqualValues(t, 2, got.Metadata()["total_files_parsed"])
}

func TestSQLiteStore_SaveModel_SnapshotSync(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	// Initial snapshot: A, B and edge A->B
	a := testElement("m.A", "m", "m.py", 1)
	b := testElement("m.B", "m", "m.py", 2)
	m1 := model.New("p", "", nil, []model.CodeElement{a, b}, []model.Relationship{testRel(a.ID, b.ID, model.RelationCalls)})
	require.NoError(t, store.SaveModel(ctx, m1))

	// New snapshot: remove A, add C, and replace edge with C->B.
	c := testElement("m.C", "m", "m.py", 3)
	m2 := model.New("p", "", nil, []model.CodeElement{b, c}, []model.Relationship{testRel(c.ID, b.ID, model.RelationCalls)})
	require.NoError(t, store.SaveModel(ctx, m2))

	loaded, err := store.LoadModel(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, loaded.ElementCount())
	_, hasA := loaded.Element(a.ID)
	assert.False(t, hasA)
	_, hasC := loaded.Element(c.ID)
	assert.True(t, hasC)

	rels := loaded.Relationships()
	require.Len(t, rels, 1)
	assert.Equal(t, c.ID, rels[0].SourceID)
	assert.Equal(t, b.ID, rels[0].TargetID)
	assert.Equal(t, model.RelationCalls, rels[0].Kind)
}

func TestSQLiteStore_EmptyDatabase(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.LoadModel(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestSQLiteStore_ElementLookups(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.SaveModel(ctx, sampleModel()))

	el, err := store.GetElement(ctx, "lib.helper")
	require.NoError(t, err)
	assert.True(t, el.IsPrivate)
	assert.Equal(t, 4, el.Complexity)

	_, err = store.GetElement(ctx, "missing")
	assert.Error(t, err)

	inApp, err := store.FindElementsByFile(ctx, "app.py")
	require.NoError(t, err)
	var names []string
	for _, e := range inApp {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"FuncA", "FuncB", "Thing"}, names)
}

func TestJSON_RoundTrip(t *testing.T) {
	want := sampleModel()

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, want))
	got, err := ReadJSON(&buf)
	require.NoError(t, err)

	assert.Equal(t, want.Elements(), got.Elements())
	assert.Equal(t, want.Relationships(), got.Relationships())
	assert.Equal(t, want.Cycles(), got.Cycles())
}

func TestJSONStore(t *testing.T) {
	ctx := context.Background()
	store := NewJSONStore(filepath.Join(t.TempDir(), "out", "model.json"))

	_, err := store.LoadModel(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	require.NoError(t, store.SaveModel(ctx, sampleModel()))
	got, err := store.LoadModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, got.ElementCount())
	assert.Equal(t, 3, got.RelationshipCount())
}

func TestReadJSON_RejectsInvalidSnapshots(t *testing.T) {
	cases := map[string]string{
		"not json":         `{"project": `,
		"missing project":  `{"modules": [], "elements": [], "relationships": []}`,
		"unknown kind":     `{"project": "p", "modules": [], "relationships": [], "elements": [{"id": "a", "name": "a", "qualified_name": "a", "module": "a", "kind": "lambda", "location": {"file": "a.py", "line": 1}, "complexity": 1}]}`,
		"zero complexity":  `{"project": "p", "modules": [], "relationships": [], "elements": [{"id": "a", "name": "a", "qualified_name": "a", "module": "a", "kind": "function", "location": {"file": "a.py", "line": 1}, "complexity": 0}]}`,
		"bad relationship": `{"project": "p", "modules": [], "elements": [], "relationships": [{"id": "x", "source_id": "a", "target_id": "b", "kind": "uses"}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadJSON(bytes.NewBufferString(doc))
			assert.ErrorIs(t, err, ErrInvalidSnapshot)
		})
	}
}

func TestValidateSnapshot_EmptyModel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, model.New("empty", "", nil, nil, nil)))
	assert.NoError(t, ValidateSnapshot(buf.Bytes()))
}
