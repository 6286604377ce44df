package kernel

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"
)

func TestBcArithmetic(t *testing.T) {
	tests := []struct {
		stdin string
		want  string
	}{
		{"2+3", "5\n"},
		{"10/3", "3\n"}, // scale 0 truncates
		{"scale=2; 7/3", "2.33\n"},
		{"2^10", "1024\n"},
		{"(1+2)*3", "9\n"},
		{"x=5; x*2", "10\n"},
		{"10%3", "1\n"},
		{"obase=16; 255", "ff\n"},
	}
	for _, tt := range tests {
		got := run(t, "bc", nil, tt.stdin)
		if got.ExitCode != 0 {
			t.Fatalf("bc %q: exit %d stderr %q", tt.stdin, got.ExitCode, got.Stderr)
		}
		if got.Stdout != tt.want {
			t.Errorf("bc %q = %q, want %q", tt.stdin, got.Stdout, tt.want)
		}
	}
}

func TestBcSyntaxError(t *testing.T) {
	got := run(t, "bc", nil, "2+")
	if got.ExitCode != 1 {
		t.Errorf("exit = %d, want 1", got.ExitCode)
	}
}

func TestExpr(t *testing.T) {
	tests := []struct {
		args []string
		want string
		exit int
	}{
		{[]string{"2", "+", "3"}, "5\n", 0},
		{[]string{"10", "-", "4"}, "6\n", 0},
		{[]string{"3", "*", "4"}, "12\n", 0},
		{[]string{"10", "/", "3"}, "3\n", 0},
		{[]string{"10", "%", "3"}, "1\n", 0},
		{[]string{"2", "<", "3"}, "1\n", 0},
		{[]string{"3", "=", "3"}, "1\n", 0},
		{[]string{"0"}, "0\n", 1},
		{[]string{"length", "hello"}, "5\n", 0},
		{[]string{"substr", "hello", "2", "3"}, "ell\n", 0},
		{[]string{"index", "hello", "l"}, "3\n", 0},
		{[]string{"abc", ":", "ab"}, "2\n", 0},
		{[]string{"abc", ":", `\(a\)b`}, "a\n", 0},
		{[]string{"abc", ":", "x"}, "0\n", 1},
	}
	for _, tt := range tests {
		got := run(t, "expr", tt.args, "")
		if got.Stdout != tt.want || got.ExitCode != tt.exit {
			t.Errorf("expr %v = %q exit %d, want %q exit %d (stderr %q)",
				tt.args, got.Stdout, got.ExitCode, tt.want, tt.exit, got.Stderr)
		}
	}
}

func TestExprSyntaxError(t *testing.T) {
	got := run(t, "expr", []string{"2", "+"}, "")
	if got.ExitCode != 2 {
		t.Errorf("exit = %d, want 2", got.ExitCode)
	}
}

func TestSeq(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"3"}, "1\n2\n3\n"},
		{[]string{"2", "4"}, "2\n3\n4\n"},
		{[]string{"1", "2", "5"}, "1\n3\n5\n"},
		{[]string{"5", "-2", "1"}, "5\n3\n1\n"},
		{[]string{"-s", ",", "3"}, "1,2,3\n"},
		{[]string{"-w", "8", "10"}, "08\n09\n10\n"},
	}
	for _, tt := range tests {
		got := run(t, "seq", tt.args, "")
		if got.Stdout != tt.want {
			t.Errorf("seq %v = %q, want %q", tt.args, got.Stdout, tt.want)
		}
	}
}

func TestShufDeterministic(t *testing.T) {
	c := &Context{Stdin: "a\nb\nc\nd\n", Rand: rand.New(rand.NewSource(1))}
	got := Run(c, "shuf", nil)
	lines := strings.Split(strings.TrimSuffix(got.Stdout, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("shuf output = %q", got.Stdout)
	}
	seen := map[string]bool{}
	for _, l := range lines {
		seen[l] = true
	}
	for _, want := range []string{"a", "b", "c", "d"} {
		if !seen[want] {
			t.Errorf("missing %q in %q", want, got.Stdout)
		}
	}
}

func TestShufCountAndRange(t *testing.T) {
	c := &Context{Rand: rand.New(rand.NewSource(7))}
	got := Run(c, "shuf", []string{"-i", "1-10", "-n", "3"})
	lines := strings.Split(strings.TrimSuffix(got.Stdout, "\n"), "\n")
	if len(lines) != 3 {
		t.Errorf("shuf -n3 produced %d lines", len(lines))
	}
	got = Run(c, "shuf", []string{"-e", "x", "y"})
	if !strings.Contains(got.Stdout, "x") || !strings.Contains(got.Stdout, "y") {
		t.Errorf("shuf -e = %q", got.Stdout)
	}
}

func TestSleepParsing(t *testing.T) {
	var slept time.Duration
	c := &Context{Sleep: func(ctx context.Context, d time.Duration) error {
		slept = d
		return nil
	}}
	got := Run(c, "sleep", []string{"1.5", "2s"})
	if got.ExitCode != 0 {
		t.Fatalf("sleep: %q", got.Stderr)
	}
	if slept != 3500*time.Millisecond {
		t.Errorf("slept = %v", slept)
	}
	got = Run(c, "sleep", []string{"1m"})
	if slept != time.Minute {
		t.Errorf("slept = %v", slept)
	}
	if got.ExitCode != 0 {
		t.Errorf("exit = %d", got.ExitCode)
	}
	got = Run(c, "sleep", []string{"bogus"})
	if got.ExitCode != 1 {
		t.Errorf("invalid duration exit = %d", got.ExitCode)
	}
}

func TestTimeoutCompletes(t *testing.T) {
	c := &Context{Execute: func(ctx context.Context, command, stdin string) Result {
		return Result{Stdout: "done\n"}
	}}
	got := Run(c, "timeout", []string{"5", "echo", "done"})
	if got.Stdout != "done\n" || got.ExitCode != 0 {
		t.Errorf("timeout passthrough = %+v", got)
	}
}

func TestTimeoutDeadline(t *testing.T) {
	c := &Context{Execute: func(ctx context.Context, command, stdin string) Result {
		<-ctx.Done()
		return Result{ExitCode: 1}
	}}
	got := Run(c, "timeout", []string{"0.01", "sleep", "60"})
	if got.ExitCode != 124 {
		t.Errorf("exit = %d, want 124", got.ExitCode)
	}
	got = Run(c, "timeout", []string{"--preserve-status", "0.01", "sleep", "60"})
	if got.ExitCode != 143 {
		t.Errorf("preserve-status exit = %d, want 143", got.ExitCode)
	}
	got = Run(c, "timeout", []string{"-k", "1", "0.01", "sleep", "60"})
	if got.ExitCode != 137 {
		t.Errorf("kill exit = %d, want 137", got.ExitCode)
	}
}
