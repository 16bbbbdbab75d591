package python

import (
	"archmap/internal/tree"

	sitter "github.com/smacker/go-tree-sitter"
)

// importStatement handles "import a.b" and "import a.b as c".
func (w *walker) importStatement(n *sitter.Node) {
	line := int(n.StartPoint().Row) + 1
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			w.addImport(tree.Import{Module: compact(w.text(child)), Line: line})
		case "aliased_import":
			name := child.ChildByFieldName("name")
			alias := child.ChildByFieldName("alias")
			if name == nil {
				continue
			}
			imp := tree.Import{Module: compact(w.text(name)), Line: line}
			if alias != nil {
				imp.Alias = w.text(alias)
			}
			w.addImport(imp)
		}
	}
}

// importFrom handles "from m import a, b as c", relative modules and wildcards. Names
// before the import keyword form the module path; names after it are imported members.
func (w *walker) importFrom(n *sitter.Node) {
	line := int(n.StartPoint().Row) + 1
	var module string
	sawImport := false

	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "import":
			sawImport = true
		case "relative_import":
			module = compact(w.text(child))
		case "dotted_name":
			if !sawImport {
				module = compact(w.text(child))
				continue
			}
			w.addImport(tree.Import{Module: module, Name: compact(w.text(child)), Line: line})
		case "aliased_import":
			name := child.ChildByFieldName("name")
			if name == nil {
				continue
			}
			imp := tree.Import{Module: module, Name: compact(w.text(name)), Line: line}
			if alias := child.ChildByFieldName("alias"); alias != nil {
				imp.Alias = w.text(alias)
			}
			w.addImport(imp)
		case "wildcard_import":
			w.addImport(tree.Import{Module: module, Wildcard: true, Line: line})
		}
	}
}

func (w *walker) addImport(imp tree.Import) {
	if imp.Module == "" && imp.Name == "" {
		return
	}
	w.out.ImportList = append(w.out.ImportList, imp)
}
