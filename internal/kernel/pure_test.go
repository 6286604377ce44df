package kernel

import (
	"testing"
)

func run(t *testing.T, name string, args []string, stdin string) Result {
	t.Helper()
	return Run(&Context{Stdin: stdin}, name, args)
}

func TestEcho(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"hello", "world"}, "hello world\n"},
		{[]string{"-n", "no newline"}, "no newline"},
		{[]string{"-e", `a\tb`}, "a\tb\n"},
		{[]string{"-en", `x\n`}, "x\n"},
		{nil, "\n"},
	}
	for _, tt := range tests {
		got := run(t, "echo", tt.args, "")
		if got.Stdout != tt.want || got.ExitCode != 0 {
			t.Errorf("echo %v = %q (exit %d), want %q", tt.args, got.Stdout, got.ExitCode, tt.want)
		}
	}
}

func TestPrintf(t *testing.T) {
	got := run(t, "printf", []string{`%s=%d\n`, "count", "42"}, "")
	if got.Stdout != "count=42\n" {
		t.Errorf("printf = %q", got.Stdout)
	}
	got = run(t, "printf", []string{"%5.2f", "3.14159"}, "")
	if got.Stdout != " 3.14" {
		t.Errorf("printf float = %q", got.Stdout)
	}
}

func TestSort(t *testing.T) {
	got := run(t, "sort", nil, "b\na\nc\n")
	if got.Stdout != "a\nb\nc\n" {
		t.Errorf("sort = %q", got.Stdout)
	}
	got = run(t, "sort", []string{"-r"}, "a\nb\nc\n")
	if got.Stdout != "c\nb\na\n" {
		t.Errorf("sort -r = %q", got.Stdout)
	}
	got = run(t, "sort", []string{"-n"}, "10\n2\n1\n")
	if got.Stdout != "1\n2\n10\n" {
		t.Errorf("sort -n = %q", got.Stdout)
	}
	got = run(t, "sort", []string{"-u"}, "b\na\nb\n")
	if got.Stdout != "a\nb\n" {
		t.Errorf("sort -u = %q", got.Stdout)
	}
}

func TestUniq(t *testing.T) {
	got := run(t, "uniq", nil, "a\na\nb\na\n")
	if got.Stdout != "a\nb\na\n" {
		t.Errorf("uniq = %q", got.Stdout)
	}
	got = run(t, "uniq", []string{"-d"}, "a\na\nb\n")
	if got.Stdout != "a\n" {
		t.Errorf("uniq -d = %q", got.Stdout)
	}
}

func TestWc(t *testing.T) {
	got := run(t, "wc", []string{"-l"}, "a\nb\nc\n")
	if got.Stdout != "3\n" {
		t.Errorf("wc -l = %q", got.Stdout)
	}
	got = run(t, "wc", []string{"-w"}, "one two three\n")
	if got.Stdout != "3\n" {
		t.Errorf("wc -w = %q", got.Stdout)
	}
	got = run(t, "wc", []string{"-c"}, "abcd")
	if got.Stdout != "4\n" {
		t.Errorf("wc -c = %q", got.Stdout)
	}
}

func TestCut(t *testing.T) {
	got := run(t, "cut", []string{"-d", ":", "-f", "1"}, "root:x:0\nuser:y:1\n")
	if got.Stdout != "root\nuser\n" {
		t.Errorf("cut -f1 = %q", got.Stdout)
	}
	got = run(t, "cut", []string{"-d,", "-f1,3"}, "a,b,c\n")
	if got.Stdout != "a,c\n" {
		t.Errorf("cut -f1,3 = %q", got.Stdout)
	}
	got = run(t, "cut", []string{"-c1-3"}, "abcdef\n")
	if got.Stdout != "abc\n" {
		t.Errorf("cut -c1-3 = %q", got.Stdout)
	}
}

func TestTr(t *testing.T) {
	got := run(t, "tr", []string{"a-z", "A-Z"}, "hello")
	if got.Stdout != "HELLO" {
		t.Errorf("tr upcase = %q", got.Stdout)
	}
	got = run(t, "tr", []string{"-d", "l"}, "hello")
	if got.Stdout != "heo" {
		t.Errorf("tr -d = %q", got.Stdout)
	}
	got = run(t, "tr", []string{"[:lower:]", "[:upper:]"}, "abc")
	if got.Stdout != "ABC" {
		t.Errorf("tr classes = %q", got.Stdout)
	}
}

func TestHeadTailOnStdin(t *testing.T) {
	input := "1\n2\n3\n4\n5\n"
	got := run(t, "head", []string{"-n", "2"}, input)
	if got.Stdout != "1\n2\n" {
		t.Errorf("head -n2 = %q", got.Stdout)
	}
	got = run(t, "tail", []string{"-2"}, input)
	if got.Stdout != "4\n5\n" {
		t.Errorf("tail -2 = %q", got.Stdout)
	}
}

func TestUnknownCommand(t *testing.T) {
	got := run(t, "no-such-cmd", nil, "")
	if got.ExitCode != 127 {
		t.Errorf("exit = %d, want 127", got.ExitCode)
	}
}

func TestBasenameDirname(t *testing.T) {
	if got := run(t, "basename", []string{"/a/b/c.txt"}, ""); got.Stdout != "c.txt\n" {
		t.Errorf("basename = %q", got.Stdout)
	}
	if got := run(t, "basename", []string{"/a/b/c.txt", ".txt"}, ""); got.Stdout != "c\n" {
		t.Errorf("basename suffix = %q", got.Stdout)
	}
	if got := run(t, "dirname", []string{"/a/b/c.txt"}, ""); got.Stdout != "/a/b\n" {
		t.Errorf("dirname = %q", got.Stdout)
	}
}
