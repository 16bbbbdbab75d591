package resolver

import (
	"log/slog"
	"strings"

	"archmap/internal/model"
	"archmap/internal/tree"
)

// Stats counts reference resolution outcomes for one file.
type Stats struct {
	Attempted  int
	Resolved   int
	Unresolved int
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Attempted += other.Attempted
	s.Resolved += other.Resolved
	s.Unresolved += other.Unresolved
}

// Resolver links references in a parsed file to elements of the frozen global index.
// A Resolver only reads the index, so one instance can serve many goroutines.
type Resolver struct {
	index     *model.Index
	selfNames map[string]bool
	logger    *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSelfNames sets the receiver names that refer to the current instance or class.
func WithSelfNames(names ...string) Option {
	return func(r *Resolver) {
		if len(names) == 0 {
			return
		}
		r.selfNames = make(map[string]bool, len(names))
		for _, n := range names {
			r.selfNames[n] = true
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a resolver over a completed index.
func New(index *model.Index, opts ...Option) *Resolver {
	r := &Resolver{
		index:     index,
		selfNames: map[string]bool{"self": true, "cls": true},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve walks one file and returns its relationships. Unresolvable references are
// dropped and counted.
func (r *Resolver) Resolve(f tree.File, module string) ([]model.Relationship, Stats) {
	t := &traversal{
		r:        r,
		file:     f.Path(),
		module:   module,
		pkg:      IsPackageFile(f.Path()),
		aliases:  make(map[string]string),
		bindings: make(map[string]string),
		seen:     make(map[string]bool),
	}

	t.imports(f.Imports())
	for _, ev := range f.Statements() {
		if ev.Kind == tree.EventAssign {
			t.bind(ev)
		}
	}
	for _, d := range f.Declarations() {
		t.declaration(d)
	}

	r.logger.Debug("resolve.file.done",
		slog.String("file", t.file),
		slog.Int("relationships", len(t.out)),
		slog.Int("unresolved", t.stats.Unresolved))
	return t.out, t.stats
}

// traversal holds the lexical tables of a single file walk.
type traversal struct {
	r      *Resolver
	file   string
	module string
	// pkg is set for a package's __init__.py, whose module is the package itself.
	pkg bool

	// classStack holds qualified names of the classes enclosing the current declaration.
	classStack []string
	// aliases maps a local import name to the dotted path it refers to.
	aliases map[string]string
	// bindings maps a local name, or a self attribute scoped to its class, to the class it
	// last held an instance of.
	bindings map[string]string

	seen  map[string]bool
	out   []model.Relationship
	stats Stats
}

func (t *traversal) declaration(d tree.Declaration) {
	t.enter(d)

	qn := tree.QualifiedName(t.module, d)
	src, ok := t.r.index.Lookup(qn)
	if !ok {
		return
	}
	loc := &model.SourceLocation{File: t.file, Line: d.Line, Column: d.Column}

	if parent, ok := t.r.index.Lookup(tree.ParentName(t.module, d)); ok {
		t.emit(parent.ID, src.ID, model.RelationContains, loc, nil)
	}

	for _, base := range d.Bases {
		t.link(src, t.target(base), model.RelationInherits, refLocation(t.file, base, d.Line), func(target model.CodeElement) bool {
			return target.Kind == model.KindClass
		})
	}

	for _, dec := range d.Decorators {
		name, via := t.candidate(tree.NameRef(dec))
		t.stats.Attempted++
		target, how, ok := t.lookup(name)
		if !ok || !target.Kind.IsCallable() && target.Kind != model.KindClass {
			t.stats.Unresolved++
			continue
		}
		t.stats.Resolved++
		t.emit(target.ID, src.ID, model.RelationDecorates, loc, map[string]string{"via": via, "resolved_by": how})
	}

	for _, ev := range d.Events {
		switch ev.Kind {
		case tree.EventCall:
			t.call(src, ev)
		case tree.EventAssign:
			t.bind(ev)
		}
	}
}

// enter rebuilds the enclosing-class stack for d.
func (t *traversal) enter(d tree.Declaration) {
	t.classStack = t.classStack[:0]
	for i, p := range d.Parents {
		if p.Kind != tree.DeclClass {
			continue
		}
		t.classStack = append(t.classStack, tree.QualifiedName(t.module, tree.Declaration{Name: p.Name, Parents: d.Parents[:i]}))
	}
}

func (t *traversal) call(src model.CodeElement, ev tree.Event) {
	name, via := t.candidate(ev.Callee)
	if name == "" {
		return
	}
	t.stats.Attempted++
	target, how, ok := t.lookup(name)
	if !ok || target.Kind == model.KindModule {
		t.stats.Unresolved++
		return
	}
	t.stats.Resolved++

	kind := model.RelationCalls
	if target.Kind == model.KindClass {
		kind = model.RelationInstantiates
	}
	loc := &model.SourceLocation{File: t.file, Line: ev.Line, Column: ev.Column}
	t.emit(src.ID, target.ID, kind, loc, map[string]string{"via": via, "resolved_by": how})
}

// link resolves a named target and emits one relationship when accept allows it.
func (t *traversal) link(src model.CodeElement, name string, kind model.RelationKind, loc *model.SourceLocation, accept func(model.CodeElement) bool) {
	if name == "" {
		return
	}
	t.stats.Attempted++
	target, how, ok := t.lookup(name)
	if !ok || !accept(target) {
		t.stats.Unresolved++
		return
	}
	t.stats.Resolved++
	t.emit(src.ID, target.ID, kind, loc, map[string]string{"resolved_by": how})
}

// bind records x = Cls(...) and self.attr = Cls(...). A binding to anything that is not a
// class removes the entry.
func (t *traversal) bind(ev tree.Event) {
	key, ok := t.bindingKey(ev.Target)
	if !ok {
		return
	}
	name, _ := t.candidate(ev.Callee)
	if name == "" {
		delete(t.bindings, key)
		return
	}
	target, _, found := t.lookup(name)
	switch {
	case !found:
		t.bindings[key] = name
	case target.Kind == model.KindClass:
		t.bindings[key] = target.QualifiedName
	default:
		delete(t.bindings, key)
	}
}

func (t *traversal) bindingKey(target tree.Ref) (string, bool) {
	switch {
	case target.Kind == tree.RefName && len(target.Parts) == 1:
		return target.Parts[0], true
	case target.Kind == tree.RefAttribute && len(target.Parts) == 2 && t.r.selfNames[target.Head()]:
		return t.attrKey(target.Last())
	}
	return "", false
}

// attrKey scopes a self attribute to the innermost enclosing class.
func (t *traversal) attrKey(attr string) (string, bool) {
	if len(t.classStack) == 0 {
		return "", false
	}
	return t.classStack[len(t.classStack)-1] + "#" + attr, true
}

// candidate turns a callee reference into the dotted name to look up, and reports which rule
// produced it.
func (t *traversal) candidate(ref tree.Ref) (name string, via string) {
	switch ref.Kind {
	case tree.RefName:
		if len(ref.Parts) == 0 {
			return "", ""
		}
		if target, ok := t.aliases[ref.Parts[0]]; ok {
			return target, "import"
		}
		return ref.Parts[0], "name"

	case tree.RefAttribute:
		receiver, method := ref.Receiver(), ref.Last()
		if receiver == "" {
			return ref.Text(), "name"
		}
		if len(ref.Parts) == 2 && t.r.selfNames[receiver] && len(t.classStack) > 0 {
			return t.classStack[len(t.classStack)-1] + "." + method, "self"
		}
		key := receiver
		if len(ref.Parts) == 3 && t.r.selfNames[ref.Head()] {
			if k, ok := t.attrKey(ref.Parts[1]); ok {
				key = k
			}
		}
		if cls, ok := t.bindings[key]; ok {
			return cls + "." + method, "binding"
		}
		if target, ok := t.aliases[receiver]; ok {
			return target + "." + method, "import"
		}
		if target, ok := t.aliases[ref.Head()]; ok {
			return target + "." + strings.Join(ref.Parts[1:], "."), "import"
		}
		return ref.Text(), "literal"
	}
	return "", ""
}

// target resolves a base-class or similar reference to a lookup name.
func (t *traversal) target(ref tree.Ref) string {
	name, _ := t.candidate(ref)
	return name
}

func (t *traversal) lookup(name string) (model.CodeElement, string, bool) {
	return Lookup(t.r.index, name, t.module)
}

func (t *traversal) emit(src, dst string, kind model.RelationKind, loc *model.SourceLocation, md map[string]string) {
	id := model.RelationshipID(src, dst, kind)
	if t.seen[id] {
		return
	}
	t.seen[id] = true
	if tier, ok := md["resolved_by"]; ok {
		md[MetaConfidence] = formatConfidence(Confidence(kind, tier, loc))
	}
	t.out = append(t.out, model.Relationship{
		ID:       id,
		SourceID: src,
		TargetID: dst,
		Kind:     kind,
		Location: loc,
		Metadata: md,
	})
}

func refLocation(file string, ref tree.Ref, fallback int) *model.SourceLocation {
	line := ref.Line
	if line == 0 {
		line = fallback
	}
	return &model.SourceLocation{File: file, Line: line, Column: ref.Column}
}
