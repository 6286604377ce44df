package ast

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// ignoreSpans drops source positions so structural equality survives a
// serialize/reparse round trip.
var ignoreSpans = cmpopts.IgnoreFields(Word{}, "Span")

func mustCommand(t *testing.T, n Node) *Command {
	t.Helper()
	cmd, okC := n.(*Command)
	if !okC {
		t.Fatalf("node is %T, want *Command", n)
	}
	return cmd
}

func TestParseSimpleCommand(t *testing.T) {
	prog := Parse("cat /etc/hosts")
	if !prog.Valid() {
		t.Fatalf("unexpected errors: %+v", prog.Errors)
	}
	if len(prog.Body) != 1 {
		t.Fatalf("body = %d nodes", len(prog.Body))
	}
	cmd := mustCommand(t, prog.Body[0])
	if cmd.Name.Value != "cat" {
		t.Errorf("name = %q", cmd.Name.Value)
	}
	if len(cmd.Args) != 1 || cmd.Args[0].Value != "/etc/hosts" {
		t.Errorf("args = %+v", cmd.Args)
	}
}

func TestParsePipeline(t *testing.T) {
	prog := Parse("cat f | grep x | wc -l")
	pipe, okP := prog.Body[0].(*Pipeline)
	if !okP {
		t.Fatalf("node is %T, want *Pipeline", prog.Body[0])
	}
	if len(pipe.Stages) != 3 {
		t.Fatalf("stages = %d", len(pipe.Stages))
	}
	if pipe.Negated {
		t.Error("pipeline should not be negated")
	}
}

func TestParseNegatedPipeline(t *testing.T) {
	prog := Parse("! grep -q x file")
	pipe, okP := prog.Body[0].(*Pipeline)
	if !okP {
		t.Fatalf("node is %T, want *Pipeline", prog.Body[0])
	}
	if !pipe.Negated {
		t.Error("expected negated pipeline")
	}
}

func TestParseLists(t *testing.T) {
	prog := Parse("make && make test || echo failed")
	list, okL := prog.Body[0].(*List)
	if !okL {
		t.Fatalf("node is %T, want *List", prog.Body[0])
	}
	// left-associative: ((make && make test) || echo failed)
	if list.Op != OpOr {
		t.Errorf("outer op = %q, want ||", list.Op)
	}
	inner, okI := list.Left.(*List)
	if !okI || inner.Op != OpAnd {
		t.Errorf("inner = %+v", list.Left)
	}
}

func TestParsePrefixAssignments(t *testing.T) {
	prog := Parse("FOO=bar BAZ=qux env")
	cmd := mustCommand(t, prog.Body[0])
	if len(cmd.Assignments) != 2 {
		t.Fatalf("assignments = %+v", cmd.Assignments)
	}
	if cmd.Assignments[0].Name != "FOO" || cmd.Assignments[0].Value.Value != "bar" {
		t.Errorf("first assignment = %+v", cmd.Assignments[0])
	}
	if cmd.Name.Value != "env" {
		t.Errorf("command name = %q", cmd.Name.Value)
	}
}

func TestParseRedirects(t *testing.T) {
	prog := Parse("sort < in.txt > out.txt 2>&1")
	cmd := mustCommand(t, prog.Body[0])
	if len(cmd.Redirects) != 3 {
		t.Fatalf("redirects = %+v", cmd.Redirects)
	}
	if cmd.Redirects[0].Op != "<" || cmd.Redirects[0].Target.Value != "in.txt" {
		t.Errorf("redirect 0 = %+v", cmd.Redirects[0])
	}
	if cmd.Redirects[2].FD != 2 || cmd.Redirects[2].Op != ">&" {
		t.Errorf("redirect 2 = %+v", cmd.Redirects[2])
	}
}

func TestParseSubshell(t *testing.T) {
	prog := Parse("(cd /tmp; ls)")
	sub, okS := prog.Body[0].(*Subshell)
	if !okS {
		t.Fatalf("node is %T, want *Subshell", prog.Body[0])
	}
	if len(sub.Body) == 0 {
		t.Fatal("empty subshell body")
	}
}

func TestParseCompoundCapturedRaw(t *testing.T) {
	src := "for f in a b c; do echo $f; done"
	prog := Parse(src)
	cc, okC := prog.Body[0].(*CompoundCommand)
	if !okC {
		t.Fatalf("node is %T, want *CompoundCommand", prog.Body[0])
	}
	if cc.Kind != CompoundFor {
		t.Errorf("kind = %q", cc.Kind)
	}
	if cc.Raw != src {
		t.Errorf("raw = %q, want %q", cc.Raw, src)
	}
}

func TestParseFunctionDef(t *testing.T) {
	prog := Parse("greet() { echo hi; }")
	fn, okF := prog.Body[0].(*FunctionDef)
	if !okF {
		t.Fatalf("node is %T, want *FunctionDef", prog.Body[0])
	}
	if fn.Name != "greet" {
		t.Errorf("name = %q", fn.Name)
	}
	if !prog.Valid() {
		t.Errorf("errors: %+v", prog.Errors)
	}
}

func TestParseErrorRecovery(t *testing.T) {
	prog := Parse(") ; echo ok")
	if prog.Valid() {
		t.Fatal("expected a recorded parse error")
	}
	// parsing must continue past the error
	found := false
	for _, n := range prog.Body {
		if cmd, okC := n.(*Command); okC && cmd.Name != nil && cmd.Name.Value == "echo" {
			found = true
		}
		if l, okL := n.(*List); okL {
			Walk(l, func(inner Node) bool {
				if cmd, okC := inner.(*Command); okC && cmd.Name != nil && cmd.Name.Value == "echo" {
					found = true
				}
				return true
			})
		}
	}
	if !found {
		t.Errorf("echo not parsed after error; body = %#v", prog.Body)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	inputs := []string{
		"cat /etc/hosts",
		"cat f | grep x | wc -l",
		"make && make test || echo failed",
		"FOO=bar env",
		"sort < in.txt > out.txt",
		"echo 'hello world'",
		`grep "a b" file`,
	}
	for _, in := range inputs {
		first := Parse(in)
		if !first.Valid() {
			t.Fatalf("%q: parse errors %+v", in, first.Errors)
		}
		second := Parse(Serialize(first))
		if diff := cmp.Diff(first.Body, second.Body, ignoreSpans); diff != "" {
			t.Errorf("%q: round trip mismatch (-first +second):\n%s", in, diff)
		}
	}
}

func TestIsValidSyntax(t *testing.T) {
	InitGrammar()
	if !Grammar().Ready() {
		t.Fatal("grammar should be ready after init")
	}
	if !IsValidSyntax("echo hello | sort") {
		t.Error("plain pipeline should be valid")
	}
	if IsValidSyntax("echo 'unterminated") {
		t.Error("unterminated quote should be invalid")
	}
}

func TestGrammarInitIdempotent(t *testing.T) {
	a := InitGrammar()
	b := InitGrammar()
	if a != b {
		t.Error("InitGrammar must return the same handle")
	}
}
