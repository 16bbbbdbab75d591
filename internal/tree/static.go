package tree

// Static is a File backed by plain data. Parsers copy their results into it so the
// underlying syntax tree can be released, and tests build it directly.
type Static struct {
	FilePath   string
	ModuleDoc  string
	ImportList []Import
	TopLevel   []Event
	Decls      []Declaration
}

var _ File = (*Static)(nil)

func (s *Static) Path() string                { return s.FilePath }
func (s *Static) Docstring() string           { return s.ModuleDoc }
func (s *Static) Imports() []Import           { return s.ImportList }
func (s *Static) Statements() []Event         { return s.TopLevel }
func (s *Static) Declarations() []Declaration { return s.Decls }

// Call builds a call event for a dotted callee.
func Call(dotted string, line int) Event {
	ref := NameRef(dotted)
	ref.Line = line
	return Event{Kind: EventCall, Callee: ref, Line: line}
}

// Assign builds an assignment event binding target to the result of calling callee.
func Assign(target, callee string, line int) Event {
	c := NameRef(callee)
	c.Line = line
	tg := NameRef(target)
	tg.Line = line
	return Event{Kind: EventAssign, Callee: c, Target: tg, Line: line}
}
