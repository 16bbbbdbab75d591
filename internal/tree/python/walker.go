package python

import (
	"strings"

	"archmap/internal/tree"

	sitter "github.com/smacker/go-tree-sitter"
)

// walker copies the parts of a tree-sitter syntax tree that the analysis needs into a
// tree.Static, so the tree can be closed once the walk is done.
type walker struct {
	src []byte
	out *tree.Static

	// open holds indexes into out.Decls of the declarations enclosing the current node.
	open    []int
	parents []tree.Scope
}

func (w *walker) children(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.visit(n.NamedChild(i))
	}
}

func (w *walker) visit(n *sitter.Node) {
	if n == nil {
		return
	}

	switch n.Type() {
	case "class_definition":
		w.declare(n, tree.DeclClass, nil, nil)
		return
	case "function_definition":
		w.declare(n, tree.DeclFunction, nil, nil)
		return
	case "decorated_definition":
		def := n.ChildByFieldName("definition")
		if def == nil {
			return
		}
		kind := tree.DeclFunction
		if def.Type() == "class_definition" {
			kind = tree.DeclClass
		}
		w.declare(def, kind, w.decorators(n), n)
		return
	case "import_statement":
		w.importStatement(n)
		return
	case "import_from_statement":
		w.importFrom(n)
		return
	case "call":
		w.call(n)
		return
	case "assignment":
		w.assignment(n)
		return

	case "if_statement", "elif_clause":
		w.decision(tree.DecisionBranch, n)
	case "while_statement":
		w.decision(tree.DecisionLoop, n)
	case "for_statement":
		if isAsync(n) {
			w.decision(tree.DecisionAsyncLoop, n)
		} else {
			w.decision(tree.DecisionLoop, n)
		}
	case "except_clause", "except_group_clause":
		w.decision(tree.DecisionHandler, n)
	case "boolean_operator":
		w.decision(tree.DecisionBoolean, n)
	case "for_in_clause":
		w.decision(tree.DecisionComprehend, n)
	}

	w.children(n)
}

// declare records the definition n. outer is the enclosing decorated_definition, if any.
func (w *walker) declare(n *sitter.Node, kind tree.DeclKind, decorators []string, outer *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	name := ""
	if nameNode != nil {
		name = w.text(nameNode)
	}

	pos := n.StartPoint()
	d := tree.Declaration{
		Kind:       kind,
		Name:       name,
		Parents:    append([]tree.Scope(nil), w.parents...),
		Decorators: decorators,
		Line:       int(pos.Row) + 1,
		Column:     int(pos.Column) + 1,
		Async:      kind == tree.DeclFunction && isAsync(n),
	}
	if outer != nil {
		d.StartLine = int(outer.StartPoint().Row) + 1
	}
	if kind == tree.DeclClass {
		d.Bases = w.bases(n.ChildByFieldName("superclasses"))
	}

	body := n.ChildByFieldName("body")
	if body != nil {
		d.Docstring = w.blockDocstring(body)
	}

	idx := len(w.out.Decls)
	w.out.Decls = append(w.out.Decls, d)
	if body == nil {
		return
	}

	w.open = append(w.open, idx)
	w.parents = append(w.parents, tree.Scope{Name: name, Kind: kind})
	w.children(body)
	w.parents = w.parents[:len(w.parents)-1]
	w.open = w.open[:len(w.open)-1]
}

func (w *walker) bases(args *sitter.Node) []tree.Ref {
	if args == nil {
		return nil
	}
	var out []tree.Ref
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		switch arg.Type() {
		case "identifier", "attribute":
			out = append(out, w.ref(arg))
		case "subscript":
			// Generic[T] and friends inherit from the subscripted value.
			if v := arg.ChildByFieldName("value"); v != nil {
				out = append(out, w.ref(v))
			}
		}
	}
	return out
}

func (w *walker) decorators(n *sitter.Node) []string {
	var out []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		dec := n.NamedChild(i)
		if dec.Type() != "decorator" || dec.NamedChildCount() == 0 {
			continue
		}
		expr := dec.NamedChild(0)
		if expr.Type() == "call" {
			if fn := expr.ChildByFieldName("function"); fn != nil {
				expr = fn
			}
		}
		out = append(out, compact(w.text(expr)))
	}
	return out
}

func (w *walker) call(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	if fn != nil {
		pos := n.StartPoint()
		w.event(tree.Event{
			Kind:   tree.EventCall,
			Callee: w.ref(fn),
			Line:   int(pos.Row) + 1,
			Column: int(pos.Column) + 1,
		})
	}
	w.children(n)
}

// assignment records calls on the right-hand side, then binds every simple target of a
// call result. Chained assignments (a = b = f()) bind each target.
func (w *walker) assignment(n *sitter.Node) {
	var targets []tree.Ref
	var value *sitter.Node
	for cur := n; cur != nil && cur.Type() == "assignment"; {
		if left := cur.ChildByFieldName("left"); left != nil {
			targets = append(targets, w.ref(left))
		}
		right := cur.ChildByFieldName("right")
		if right != nil && right.Type() == "assignment" {
			cur = right
			continue
		}
		value = right
		break
	}
	if value == nil {
		return
	}
	w.visit(value)

	if value.Type() != "call" {
		return
	}
	fn := value.ChildByFieldName("function")
	if fn == nil {
		return
	}
	callee := w.ref(fn)
	pos := n.StartPoint()
	for _, target := range targets {
		if target.Kind == tree.RefCall {
			continue
		}
		w.event(tree.Event{
			Kind:   tree.EventAssign,
			Callee: callee,
			Target: target,
			Line:   int(pos.Row) + 1,
			Column: int(pos.Column) + 1,
		})
	}
}

// ref classifies an expression as a bare name, a dotted chain rooted at a name, or
// anything else.
func (w *walker) ref(n *sitter.Node) tree.Ref {
	pos := n.StartPoint()
	r := tree.Ref{Line: int(pos.Row) + 1, Column: int(pos.Column) + 1}

	switch n.Type() {
	case "identifier":
		r.Kind = tree.RefName
		r.Parts = []string{w.text(n)}
	case "attribute":
		obj := n.ChildByFieldName("object")
		attr := n.ChildByFieldName("attribute")
		if obj == nil || attr == nil {
			r.Kind = tree.RefCall
			r.Parts = []string{compact(w.text(n))}
			break
		}
		inner := w.ref(obj)
		if inner.Kind == tree.RefCall {
			r.Kind = tree.RefCall
			r.Parts = []string{w.text(attr)}
			break
		}
		r.Kind = tree.RefAttribute
		r.Parts = append(inner.Parts, w.text(attr))
	default:
		r.Kind = tree.RefCall
		r.Parts = []string{compact(w.text(n))}
	}
	return r
}

func (w *walker) event(ev tree.Event) {
	if len(w.open) == 0 {
		w.out.TopLevel = append(w.out.TopLevel, ev)
		return
	}
	idx := w.open[len(w.open)-1]
	w.out.Decls[idx].Events = append(w.out.Decls[idx].Events, ev)
}

// decision credits a decision point to every enclosing function.
func (w *walker) decision(kind tree.DecisionKind, n *sitter.Node) {
	dp := tree.DecisionPoint{Kind: kind, Line: int(n.StartPoint().Row) + 1}
	for _, idx := range w.open {
		if w.out.Decls[idx].Kind == tree.DeclFunction {
			w.out.Decls[idx].DecisionPoints = append(w.out.Decls[idx].DecisionPoints, dp)
		}
	}
}

func (w *walker) text(n *sitter.Node) string {
	return n.Content(w.src)
}

func isAsync(n *sitter.Node) bool {
	return n.ChildCount() > 0 && n.Child(0).Type() == "async"
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}
