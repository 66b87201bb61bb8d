// Package ast defines the module tree the transform pipeline operates on.
//
// The tree is a closed set of node variants covering exactly the syntactic
// forms that carry module specifiers, with everything else preserved as
// verbatim text runs. Stages never mutate nodes in place; a pass that
// changes anything builds replacement subtrees.
package ast

import "strings"

type Position struct {
	Line   int // 1-based
	Column int // 1-based
}

type Node interface {
	isNode()
}

// Text is a verbatim run of source text between specifier occurrences.
type Text struct {
	Value string
}

// Str is a string literal. Raw keeps the original quoting so untouched
// literals print byte-identically; rewritten literals are re-quoted with
// double quotes.
type Str struct {
	Raw   string
	Value string
}

// ImportDecl is a static import declaration. Clause holds everything from
// the `import` keyword up to the specifier string, Trailer everything after
// it, both verbatim.
type ImportDecl struct {
	Clause   string
	Source   *Str
	Trailer  string
	TypeOnly bool
	Loc      Position
}

// ExportFrom is a named re-export with a source module, including the
// namespace-as form. The specifier list lives in Clause and is never
// touched.
type ExportFrom struct {
	Clause   string
	Source   *Str
	Trailer  string
	TypeOnly bool
	Loc      Position
}

// ExportStar is a wildcard re-export.
type ExportStar struct {
	Clause  string
	Source  *Str
	Trailer string
	Loc     Position
}

// DynamicImport is an import() call whose first argument is a string
// literal. Rest holds any further arguments verbatim; rewriting drops them.
// Calls with a non-literal first argument never become a node, their text
// stays in the surrounding Text runs.
type DynamicImport struct {
	Pre  string // "import("
	Arg  *Str
	Rest string // from the end of Arg to the closing paren, exclusive
	Post string // ")"
	Loc  Position
}

func (*Text) isNode()          {}
func (*Str) isNode()           {}
func (*ImportDecl) isNode()    {}
func (*ExportFrom) isNode()    {}
func (*ExportStar) isNode()    {}
func (*DynamicImport) isNode() {}

// Module is the tree for one source file.
type Module struct {
	Path string
	Body []Node
}

// Print emits the module as source text by concatenation.
func (m *Module) Print() string {
	var b strings.Builder
	for _, n := range m.Body {
		printNode(&b, n)
	}
	return b.String()
}

func printNode(b *strings.Builder, n Node) {
	switch n := n.(type) {
	case *Text:
		b.WriteString(n.Value)
	case *Str:
		b.WriteString(n.Raw)
	case *ImportDecl:
		b.WriteString(n.Clause)
		b.WriteString(n.Source.Raw)
		b.WriteString(n.Trailer)
	case *ExportFrom:
		b.WriteString(n.Clause)
		b.WriteString(n.Source.Raw)
		b.WriteString(n.Trailer)
	case *ExportStar:
		b.WriteString(n.Clause)
		b.WriteString(n.Source.Raw)
		b.WriteString(n.Trailer)
	case *DynamicImport:
		b.WriteString(n.Pre)
		b.WriteString(n.Arg.Raw)
		b.WriteString(n.Rest)
		b.WriteString(n.Post)
	}
}

// NewStr builds a double-quoted string literal. The emitted dependency
// pruning check matches on double-quoted text, so rewritten specifiers
// always print this way.
func NewStr(value string) *Str {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range value {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return &Str{Raw: b.String(), Value: value}
}

// TextModule wraps plain source text into a module with a single text run.
// Structural stages that rebuild their output from text use it together
// with a fresh parse.
func TextModule(path, text string) *Module {
	return &Module{Path: path, Body: []Node{&Text{Value: text}}}
}
