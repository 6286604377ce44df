// Package ast defines the shell AST produced by the parser and consumed by
// the analyzer and dispatcher. The node set is a closed tagged union;
// traversal code switches over the variants exhaustively.
package ast

import (
	"strings"

	"github.com/runshield/bashx/internal/lexer"
)

// Word is a lexed word carried into the tree. Text is the raw source form,
// Value the unquoted literal.
type Word struct {
	Text       string
	Value      string
	Quote      lexer.QuoteStyle
	Expansions []lexer.Expansion
	Span       lexer.Span
}

// HasExpansion reports whether the word contains an expansion of kind k.
func (w Word) HasExpansion(k lexer.ExpansionKind) bool {
	for _, e := range w.Expansions {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// Redirect is an input/output redirection attached to a command.
type Redirect struct {
	Op     string
	FD     int // -1 when no fd prefix was written
	Target Word
}

// Assignment is a NAME=value (or NAME+=value) command prefix.
type Assignment struct {
	Name   string
	Value  *Word
	Append bool
}

// ListOp is the operator joining two list elements.
type ListOp string

const (
	OpAnd        ListOp = "&&"
	OpOr         ListOp = "||"
	OpSeq        ListOp = ";"
	OpBackground ListOp = "&"
)

// CompoundKind discriminates compound commands.
type CompoundKind string

const (
	CompoundIf    CompoundKind = "if"
	CompoundWhile CompoundKind = "while"
	CompoundFor   CompoundKind = "for"
	CompoundCase  CompoundKind = "case"
	CompoundBrace CompoundKind = "{"
)

// Node is the closed union of tree shapes.
type Node interface {
	node()
	// Src reconstructs the source text of the node.
	Src() string
}

// ParseError records a recovered syntax problem.
type ParseError struct {
	Pos     int
	Message string
}

// Program is the root. A program parsed without errors is well formed.
type Program struct {
	Body   []Node
	Errors []ParseError
}

// Valid reports whether the program parsed cleanly.
func (p *Program) Valid() bool { return len(p.Errors) == 0 }

// Command is a simple command: optional prefix assignments, a name, args
// and redirects. Name is nil for a bare assignment line.
type Command struct {
	Name        *Word
	Args        []Word
	Redirects   []Redirect
	Assignments []Assignment
}

// Pipeline is one or more stages joined by |. Negated when prefixed by !.
type Pipeline struct {
	Stages  []Node
	Negated bool
}

// List joins two elements with a list operator.
type List struct {
	Left  Node
	Op    ListOp
	Right Node
}

// Subshell is ( body ).
type Subshell struct {
	Body []Node
}

// CompoundCommand is an if/while/for/case/{ } construct. The dispatcher
// routes these to the sandbox unchanged, so the construct is kept only as
// its raw source text; its body is not parsed into nested nodes.
type CompoundCommand struct {
	Kind CompoundKind
	Raw  string
}

// FunctionDef is name() { body } or function name { body }.
type FunctionDef struct {
	Name string
	Raw  string
}

// ErrorNode is a synthetic node inserted where parsing could not continue.
type ErrorNode struct {
	Raw    string
	Reason string
}

func (*Command) node()         {}
func (*Pipeline) node()        {}
func (*List) node()            {}
func (*Subshell) node()        {}
func (*CompoundCommand) node() {}
func (*FunctionDef) node()     {}
func (*ErrorNode) node()       {}

// ---------------------------------------------------------------------------
// Serialization — Src() reconstructs source so that parse(Src(ast)) yields a
// structurally equal tree.
// ---------------------------------------------------------------------------

func (c *Command) Src() string {
	var parts []string
	for _, a := range c.Assignments {
		op := "="
		if a.Append {
			op = "+="
		}
		if a.Value != nil {
			parts = append(parts, a.Name+op+a.Value.Text)
		} else {
			parts = append(parts, a.Name+op)
		}
	}
	if c.Name != nil {
		parts = append(parts, c.Name.Text)
	}
	for _, a := range c.Args {
		parts = append(parts, a.Text)
	}
	for _, r := range c.Redirects {
		parts = append(parts, r.Src())
	}
	return strings.Join(parts, " ")
}

func (r Redirect) Src() string {
	op := r.Op
	if r.FD >= 0 {
		op = itoa(r.FD) + op
	}
	return op + " " + r.Target.Text
}

func (p *Pipeline) Src() string {
	var parts []string
	for _, st := range p.Stages {
		parts = append(parts, st.Src())
	}
	out := strings.Join(parts, " | ")
	if p.Negated {
		out = "! " + out
	}
	return out
}

func (l *List) Src() string {
	if l.Op == OpBackground && l.Right == nil {
		return l.Left.Src() + " &"
	}
	return l.Left.Src() + " " + string(l.Op) + " " + l.Right.Src()
}

func (s *Subshell) Src() string {
	var parts []string
	for _, n := range s.Body {
		parts = append(parts, n.Src())
	}
	return "( " + strings.Join(parts, " ; ") + " )"
}

func (c *CompoundCommand) Src() string { return c.Raw }
func (f *FunctionDef) Src() string     { return f.Raw }
func (e *ErrorNode) Src() string       { return e.Raw }

// Serialize reconstructs the source of a whole program.
func Serialize(p *Program) string {
	var parts []string
	for _, n := range p.Body {
		parts = append(parts, n.Src())
	}
	return strings.Join(parts, " ; ")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b [8]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b[i:])
}

// Walk calls fn for every node in depth-first order, descending into
// pipelines, lists and subshells. fn returning false prunes the subtree.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch v := n.(type) {
	case *Pipeline:
		for _, st := range v.Stages {
			Walk(st, fn)
		}
	case *List:
		Walk(v.Left, fn)
		if v.Right != nil {
			Walk(v.Right, fn)
		}
	case *Subshell:
		for _, b := range v.Body {
			Walk(b, fn)
		}
	}
}

// WalkProgram walks every top-level node of a program.
func WalkProgram(p *Program, fn func(Node) bool) {
	for _, n := range p.Body {
		Walk(n, fn)
	}
}
