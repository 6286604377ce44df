package kernel

import (
	"strings"
	"testing"

	"github.com/runshield/bashx/internal/vfs"
)

func TestJqCommand(t *testing.T) {
	got := run(t, "jq", []string{".name"}, `{"name":"app","n":3}`)
	if got.Stdout != "\"app\"\n" {
		t.Errorf("jq .name = %q", got.Stdout)
	}
	got = run(t, "jq", []string{"-r", ".name"}, `{"name":"app"}`)
	if got.Stdout != "app\n" {
		t.Errorf("jq -r = %q", got.Stdout)
	}
	got = run(t, "jq", []string{"-c", "."}, `{"a": 1}`)
	if got.Stdout != `{"a":1}`+"\n" {
		t.Errorf("jq -c = %q", got.Stdout)
	}
	got = run(t, "jq", []string{".[] | .id"}, `[{"id":1},{"id":2}]`)
	if got.Stdout != "1\n2\n" {
		t.Errorf("jq iterate = %q", got.Stdout)
	}
}

func TestJqArgs(t *testing.T) {
	got := run(t, "jq", []string{"-r", "--arg", "who", "world", `"hello " + $who`}, `null`)
	if got.Stdout != "hello world\n" {
		t.Errorf("jq --arg = %q (stderr %q)", got.Stdout, got.Stderr)
	}
	got = run(t, "jq", []string{"-c", "--argjson", "extra", `{"b":2}`, ". + $extra"}, `{"a":1}`)
	if !strings.Contains(got.Stdout, `"b":2`) {
		t.Errorf("jq --argjson = %q", got.Stdout)
	}
}

func TestJqInvalidInput(t *testing.T) {
	got := run(t, "jq", []string{"."}, "{not json")
	if got.ExitCode == 0 {
		t.Error("invalid JSON should fail")
	}
}

func TestYqCommand(t *testing.T) {
	yamlIn := "name: app\nports:\n  - 80\n  - 443\n"
	got := run(t, "yq", []string{".name"}, yamlIn)
	if !strings.Contains(got.Stdout, "app") {
		t.Errorf("yq .name = %q", got.Stdout)
	}
	got = run(t, "yq", []string{"-o", "json", "."}, yamlIn)
	if !strings.Contains(got.Stdout, `"name": "app"`) {
		t.Errorf("yq -o json = %q", got.Stdout)
	}
}

func TestYqAssignment(t *testing.T) {
	got := run(t, "yq", []string{".replicas = 5"}, "replicas: 3\nname: x\n")
	if got.ExitCode != 0 {
		t.Fatalf("yq assign: %q", got.Stderr)
	}
	if !strings.Contains(got.Stdout, "replicas: 5") {
		t.Errorf("yq assign = %q", got.Stdout)
	}
	if !strings.Contains(got.Stdout, "name: x") {
		t.Errorf("assignment dropped other keys: %q", got.Stdout)
	}
}

func TestYqDelete(t *testing.T) {
	got := run(t, "yq", []string{"del(.b)"}, "a: 1\nb: 2\n")
	if strings.Contains(got.Stdout, "b:") {
		t.Errorf("yq del = %q", got.Stdout)
	}
	if !strings.Contains(got.Stdout, "a: 1") {
		t.Errorf("yq del removed too much: %q", got.Stdout)
	}
}

func TestYqInPlace(t *testing.T) {
	fs := vfs.NewMemFS().Seed(map[string]string{"/c.yaml": "v: 1\n"})
	c := &Context{FS: fs}
	data, _ := fs.Read("/c.yaml")
	c.Stdin = ""
	got := Run(c, "yq", []string{"-i", ".v = 2", "/c.yaml"})
	if got.ExitCode != 0 {
		t.Fatalf("yq -i: %q", got.Stderr)
	}
	data, _ = fs.Read("/c.yaml")
	if !strings.Contains(string(data), "v: 2") {
		t.Errorf("file = %q", data)
	}
}
