package kernel

import (
	"strings"
	"testing"

	"github.com/runshield/bashx/internal/vfs"
)

func fsCtx(files map[string]string) *Context {
	return &Context{FS: vfs.NewMemFS().Seed(files)}
}

func TestCat(t *testing.T) {
	c := fsCtx(map[string]string{"/a.txt": "one\n", "/b.txt": "two\n"})
	got := Run(c, "cat", []string{"/a.txt", "/b.txt"})
	if got.Stdout != "one\ntwo\n" {
		t.Errorf("cat = %q", got.Stdout)
	}
}

func TestCatMissingFile(t *testing.T) {
	c := fsCtx(nil)
	got := Run(c, "cat", []string{"/nope"})
	if got.ExitCode != 1 {
		t.Errorf("exit = %d, want 1", got.ExitCode)
	}
	if !strings.Contains(got.Stderr, "ENOENT") {
		t.Errorf("stderr = %q, want ENOENT message", got.Stderr)
	}
}

func TestLs(t *testing.T) {
	c := fsCtx(map[string]string{"/dir/b.txt": "x", "/dir/a.txt": "y", "/dir/.hidden": "z"})
	got := Run(c, "ls", []string{"/dir"})
	if got.Stdout != "a.txt\nb.txt\n" {
		t.Errorf("ls = %q", got.Stdout)
	}
	got = Run(c, "ls", []string{"-a", "/dir"})
	if !strings.Contains(got.Stdout, ".hidden") {
		t.Errorf("ls -a = %q", got.Stdout)
	}
}

func TestGrep(t *testing.T) {
	c := fsCtx(map[string]string{"/log": "info ok\nerror bad\nerror worse\n"})
	got := Run(c, "grep", []string{"error", "/log"})
	if got.Stdout != "error bad\nerror worse\n" {
		t.Errorf("grep = %q", got.Stdout)
	}
	got = Run(c, "grep", []string{"-c", "error", "/log"})
	if got.Stdout != "2\n" {
		t.Errorf("grep -c = %q", got.Stdout)
	}
	got = Run(c, "grep", []string{"-v", "error", "/log"})
	if got.Stdout != "info ok\n" {
		t.Errorf("grep -v = %q", got.Stdout)
	}
	got = Run(c, "grep", []string{"-n", "bad", "/log"})
	if got.Stdout != "2:error bad\n" {
		t.Errorf("grep -n = %q", got.Stdout)
	}
	got = Run(c, "grep", []string{"absent", "/log"})
	if got.ExitCode != 1 {
		t.Errorf("no match exit = %d, want 1", got.ExitCode)
	}
}

func TestGrepStdin(t *testing.T) {
	c := &Context{Stdin: "aa\nbb\n"}
	got := Run(c, "grep", []string{"a"})
	if got.Stdout != "aa\n" {
		t.Errorf("grep stdin = %q", got.Stdout)
	}
}

func TestTestCommand(t *testing.T) {
	c := fsCtx(map[string]string{"/f": "data", "/d/child": "x"})
	tests := []struct {
		args []string
		exit int
	}{
		{[]string{"-f", "/f"}, 0},
		{[]string{"-d", "/d"}, 0},
		{[]string{"-f", "/d"}, 1},
		{[]string{"-e", "/absent"}, 1},
		{[]string{"-s", "/f"}, 0},
		{[]string{"-z", ""}, 0},
		{[]string{"-n", "x"}, 0},
		{[]string{"a", "=", "a"}, 0},
		{[]string{"a", "!=", "b"}, 0},
		{[]string{"2", "-lt", "3"}, 0},
		{[]string{"3", "-lt", "2"}, 1},
	}
	for _, tt := range tests {
		got := Run(c, "test", tt.args)
		if got.ExitCode != tt.exit {
			t.Errorf("test %v = %d, want %d", tt.args, got.ExitCode, tt.exit)
		}
	}
	// [ needs its closing bracket
	got := Run(c, "[", []string{"-f", "/f", "]"})
	if got.ExitCode != 0 {
		t.Errorf("[ -f /f ] = %d", got.ExitCode)
	}
	got = Run(c, "[", []string{"-f", "/f"})
	if got.ExitCode != 2 {
		t.Errorf("missing ] = %d, want 2", got.ExitCode)
	}
}

func TestMkdirRmdir(t *testing.T) {
	c := fsCtx(nil)
	if got := Run(c, "mkdir", []string{"/a"}); got.ExitCode != 0 {
		t.Fatalf("mkdir: %q", got.Stderr)
	}
	if got := Run(c, "mkdir", []string{"/x/y/z"}); got.ExitCode != 1 {
		t.Error("mkdir without -p should fail for nested path")
	}
	if got := Run(c, "mkdir", []string{"-p", "/x/y/z"}); got.ExitCode != 0 {
		t.Fatalf("mkdir -p: %q", got.Stderr)
	}
	if got := Run(c, "rmdir", []string{"/a"}); got.ExitCode != 0 {
		t.Fatalf("rmdir: %q", got.Stderr)
	}
	if got := Run(c, "rmdir", []string{"/x"}); got.ExitCode != 1 {
		t.Error("rmdir of non-empty dir should fail")
	}
}

func TestRm(t *testing.T) {
	c := fsCtx(map[string]string{"/f": "x", "/dir/a": "1", "/dir/b": "2"})
	if got := Run(c, "rm", []string{"/f"}); got.ExitCode != 0 {
		t.Fatalf("rm: %q", got.Stderr)
	}
	if got := Run(c, "rm", []string{"/dir"}); got.ExitCode != 1 {
		t.Error("rm dir without -r should fail")
	}
	if got := Run(c, "rm", []string{"-rf", "/dir"}); got.ExitCode != 0 {
		t.Fatalf("rm -rf: %q", got.Stderr)
	}
	if c.FS.Exists("/dir/a") {
		t.Error("recursive remove left children")
	}
	if got := Run(c, "rm", []string{"/absent"}); got.ExitCode != 1 {
		t.Error("rm missing without -f should fail")
	}
	if got := Run(c, "rm", []string{"-f", "/absent"}); got.ExitCode != 0 {
		t.Error("rm -f missing should succeed")
	}
}

func TestCpMv(t *testing.T) {
	c := fsCtx(map[string]string{"/src.txt": "body"})
	if got := Run(c, "cp", []string{"/src.txt", "/dst.txt"}); got.ExitCode != 0 {
		t.Fatalf("cp: %q", got.Stderr)
	}
	data, _ := c.FS.Read("/dst.txt")
	if string(data) != "body" {
		t.Errorf("copied = %q", data)
	}
	if got := Run(c, "mv", []string{"/dst.txt", "/moved.txt"}); got.ExitCode != 0 {
		t.Fatalf("mv: %q", got.Stderr)
	}
	if c.FS.Exists("/dst.txt") || !c.FS.Exists("/moved.txt") {
		t.Error("mv did not rename")
	}
}

func TestTouchTruncate(t *testing.T) {
	c := fsCtx(nil)
	if got := Run(c, "touch", []string{"/new"}); got.ExitCode != 0 {
		t.Fatalf("touch: %q", got.Stderr)
	}
	if !c.FS.Exists("/new") {
		t.Error("touch did not create")
	}
	Run(c, "truncate", []string{"-s", "5", "/new"})
	info, _ := c.FS.Stat("/new")
	if info.Size != 5 {
		t.Errorf("size = %d, want 5", info.Size)
	}
}

func TestChmodOctalOnly(t *testing.T) {
	c := fsCtx(map[string]string{"/f": "x"})
	if got := Run(c, "chmod", []string{"644", "/f"}); got.ExitCode != 0 {
		t.Fatalf("chmod octal: %q", got.Stderr)
	}
	got := Run(c, "chmod", []string{"a+rwx", "/f"})
	if got.ExitCode != 1 || !strings.Contains(got.Stderr, "octal") {
		t.Errorf("symbolic mode = exit %d stderr %q, want clear octal message", got.ExitCode, got.Stderr)
	}
}

func TestFind(t *testing.T) {
	c := fsCtx(map[string]string{
		"/proj/main.go":      "",
		"/proj/util.go":      "",
		"/proj/doc.md":       "",
		"/proj/sub/extra.go": "",
	})
	got := Run(c, "find", []string{"/proj", "-name", "*.go", "-type", "f"})
	lines := strings.Split(strings.TrimSuffix(got.Stdout, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("find = %q", got.Stdout)
	}
	got = Run(c, "find", []string{"/proj", "-type", "d"})
	if !strings.Contains(got.Stdout, "/proj/sub") {
		t.Errorf("find -type d = %q", got.Stdout)
	}
}

func TestFindDelete(t *testing.T) {
	c := fsCtx(map[string]string{"/tmp/a.log": "", "/tmp/keep.txt": ""})
	got := Run(c, "find", []string{"/tmp", "-name", "*.log", "-delete"})
	if got.ExitCode != 0 {
		t.Fatalf("find -delete: %q", got.Stderr)
	}
	if c.FS.Exists("/tmp/a.log") || !c.FS.Exists("/tmp/keep.txt") {
		t.Error("find -delete removed the wrong files")
	}
}

func TestLnAndReadlink(t *testing.T) {
	c := fsCtx(map[string]string{"/target": "data"})
	if got := Run(c, "ln", []string{"-s", "/target", "/link"}); got.ExitCode != 0 {
		t.Fatalf("ln -s: %q", got.Stderr)
	}
	got := Run(c, "readlink", []string{"/link"})
	if got.Stdout != "/target\n" {
		t.Errorf("readlink = %q", got.Stdout)
	}
	// reads traverse the link
	data := Run(c, "cat", []string{"/link"})
	if data.Stdout != "data" {
		t.Errorf("cat through symlink = %q", data.Stdout)
	}
}

func TestFSCommandWithoutFS(t *testing.T) {
	c := &Context{}
	got := Run(c, "ls", []string{"/"})
	if got.ExitCode != 1 || !strings.Contains(got.Stderr, "no filesystem") {
		t.Errorf("ls without fs = exit %d stderr %q", got.ExitCode, got.Stderr)
	}
}
