package python

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// moduleDocstring returns the string literal opening the module, skipping comments.
func (w *walker) moduleDocstring(root *sitter.Node) string {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		return w.docstring(child)
	}
	return ""
}

// blockDocstring returns the docstring of a class or function body.
func (w *walker) blockDocstring(block *sitter.Node) string {
	for i := 0; i < int(block.NamedChildCount()); i++ {
		child := block.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		return w.docstring(child)
	}
	return ""
}

func (w *walker) docstring(stmt *sitter.Node) string {
	if stmt.Type() != "expression_statement" || stmt.NamedChildCount() == 0 {
		return ""
	}
	str := stmt.NamedChild(0)
	if str.Type() != "string" {
		return ""
	}
	return cleanDoc(unquote(w.text(str)))
}

func unquote(raw string) string {
	raw = strings.TrimLeft(raw, "rRuUbBfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(raw) >= 2*len(q) && strings.HasPrefix(raw, q) && strings.HasSuffix(raw, q) {
			return raw[len(q) : len(raw)-len(q)]
		}
	}
	return raw
}

// cleanDoc strips the first line, removes the common indentation of the following lines and
// drops leading and trailing blank lines.
func cleanDoc(doc string) string {
	lines := strings.Split(strings.ReplaceAll(doc, "\t", "        "), "\n")

	indent := -1
	for _, line := range lines[1:] {
		stripped := strings.TrimLeft(line, " ")
		if stripped == "" {
			continue
		}
		if n := len(line) - len(stripped); indent < 0 || n < indent {
			indent = n
		}
	}

	lines[0] = strings.TrimSpace(lines[0])
	for i := 1; i < len(lines); i++ {
		if indent > 0 && len(lines[i]) >= indent {
			lines[i] = lines[i][indent:]
		}
		lines[i] = strings.TrimRight(lines[i], " ")
	}

	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
