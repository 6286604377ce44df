package kernel

import (
	"testing"

	"github.com/runshield/bashx/internal/vfs"
)

func TestSedSubstitute(t *testing.T) {
	tests := []struct {
		args  []string
		stdin string
		want  string
	}{
		{[]string{"s/foo/bar/"}, "foo foo\n", "bar foo\n"},
		{[]string{"s/foo/bar/g"}, "foo foo\n", "bar bar\n"},
		{[]string{"s/o/0/g"}, "foo\nboo\n", "f00\nb00\n"},
		// BRE groups with backreferences
		{[]string{`s/\(a\)\(b\)/\2\1/`}, "ab\n", "ba\n"},
		// ERE groups
		{[]string{"-E", "s/(a)(b)/\\2\\1/"}, "ab\n", "ba\n"},
		// ampersand inserts the whole match
		{[]string{"s/cat/<&>/"}, "a cat here\n", "a <cat> here\n"},
		// case-insensitive flag
		{[]string{"s/HELLO/bye/i"}, "hello world\n", "bye world\n"},
	}
	for _, tt := range tests {
		got := run(t, "sed", tt.args, tt.stdin)
		if got.ExitCode != 0 {
			t.Fatalf("sed %v: exit %d, stderr %q", tt.args, got.ExitCode, got.Stderr)
		}
		if got.Stdout != tt.want {
			t.Errorf("sed %v on %q = %q, want %q", tt.args, tt.stdin, got.Stdout, tt.want)
		}
	}
}

func TestSedDelete(t *testing.T) {
	got := run(t, "sed", []string{"2d"}, "a\nb\nc\n")
	if got.Stdout != "a\nc\n" {
		t.Errorf("2d = %q", got.Stdout)
	}
	got = run(t, "sed", []string{"/b/d"}, "a\nb\nc\n")
	if got.Stdout != "a\nc\n" {
		t.Errorf("/b/d = %q", got.Stdout)
	}
}

func TestSedPrintRanges(t *testing.T) {
	got := run(t, "sed", []string{"-n", "1,2p"}, "a\nb\nc\n")
	if got.Stdout != "a\nb\n" {
		t.Errorf("-n 1,2p = %q", got.Stdout)
	}
	got = run(t, "sed", []string{"-n", "$p"}, "a\nb\nc\n")
	if got.Stdout != "c\n" {
		t.Errorf("-n $p = %q", got.Stdout)
	}
}

func TestSedMultiExpression(t *testing.T) {
	// left-to-right application
	got := run(t, "sed", []string{"-e", "s/a/b/", "-e", "s/b/c/"}, "a\n")
	if got.Stdout != "c\n" {
		t.Errorf("chained = %q", got.Stdout)
	}
	// delete short-circuits later expressions for that line
	got = run(t, "sed", []string{"-e", "1d", "-e", "s/x/y/"}, "x\nx\n")
	if got.Stdout != "y\n" {
		t.Errorf("delete chain = %q", got.Stdout)
	}
}

func TestSedZeroExpressionsPassthrough(t *testing.T) {
	got := run(t, "sed", []string{""}, "keep\nall\n")
	if got.Stdout != "keep\nall\n" || got.ExitCode != 0 {
		t.Errorf("passthrough = %q exit %d", got.Stdout, got.ExitCode)
	}
}

func TestSedTrailingNewlineSemantics(t *testing.T) {
	got := run(t, "sed", []string{"s/a/b/"}, "a")
	if got.Stdout != "b" {
		t.Errorf("no trailing newline preserved: %q", got.Stdout)
	}
	got = run(t, "sed", []string{"s/a/b/"}, "a\n")
	if got.Stdout != "b\n" {
		t.Errorf("trailing newline preserved: %q", got.Stdout)
	}
}

func TestSedInPlace(t *testing.T) {
	fs := vfs.NewMemFS().Seed(map[string]string{"/f.txt": "foo\n"})
	c := &Context{FS: fs}
	got := Run(c, "sed", []string{"-i.bak", "s/foo/bar/", "/f.txt"})
	if got.ExitCode != 0 {
		t.Fatalf("sed -i failed: %q", got.Stderr)
	}
	data, err := fs.Read("/f.txt")
	if err != nil || string(data) != "bar\n" {
		t.Errorf("file = %q, err %v", data, err)
	}
	backup, err := fs.Read("/f.txt.bak")
	if err != nil || string(backup) != "foo\n" {
		t.Errorf("backup = %q, err %v", backup, err)
	}
}
