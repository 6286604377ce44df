package kernel

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/runshield/bashx/internal/vfs"
)

type stubHTTP struct {
	lastReq *http.Request
	status  int
	body    string
	header  http.Header
}

func (s *stubHTTP) Do(req *http.Request) (*http.Response, error) {
	s.lastReq = req
	status := s.status
	if status == 0 {
		status = 200
	}
	header := s.header
	if header == nil {
		header = http.Header{"Content-Type": []string{"text/plain"}}
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Proto:      "HTTP/1.1",
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(s.body)),
	}, nil
}

func TestCurlGet(t *testing.T) {
	stub := &stubHTTP{body: "response body"}
	c := &Context{HTTP: stub}
	got := Run(c, "curl", []string{"-s", "https://example.com/api"})
	if got.ExitCode != 0 {
		t.Fatalf("curl: %q", got.Stderr)
	}
	if got.Stdout != "response body" {
		t.Errorf("stdout = %q", got.Stdout)
	}
	if stub.lastReq.Method != "GET" {
		t.Errorf("method = %s", stub.lastReq.Method)
	}
}

func TestCurlPostWithData(t *testing.T) {
	stub := &stubHTTP{body: "{}"}
	c := &Context{HTTP: stub}
	Run(c, "curl", []string{"-X", "POST", "-H", "Content-Type: application/json", "-d", `{"a":1}`, "https://x/api"})
	if stub.lastReq.Method != "POST" {
		t.Errorf("method = %s", stub.lastReq.Method)
	}
	if ct := stub.lastReq.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	body, _ := io.ReadAll(stub.lastReq.Body)
	if string(body) != `{"a":1}` {
		t.Errorf("body = %q", body)
	}
}

func TestCurlImplicitPost(t *testing.T) {
	stub := &stubHTTP{}
	c := &Context{HTTP: stub}
	Run(c, "curl", []string{"-d", "x=1", "https://x"})
	if stub.lastReq.Method != "POST" {
		t.Errorf("-d should imply POST, got %s", stub.lastReq.Method)
	}
}

func TestCurlBasicAuth(t *testing.T) {
	stub := &stubHTTP{}
	c := &Context{HTTP: stub}
	Run(c, "curl", []string{"-u", "user:pass", "https://x"})
	authz := stub.lastReq.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Basic ") {
		t.Errorf("authorization = %q", authz)
	}
}

func TestCurlHeadOnly(t *testing.T) {
	stub := &stubHTTP{body: "should not appear"}
	c := &Context{HTTP: stub}
	got := Run(c, "curl", []string{"-I", "https://x"})
	if stub.lastReq.Method != "HEAD" {
		t.Errorf("method = %s", stub.lastReq.Method)
	}
	if strings.Contains(got.Stdout, "should not appear") {
		t.Errorf("head output includes body: %q", got.Stdout)
	}
	if !strings.Contains(got.Stdout, "HTTP/1.1") {
		t.Errorf("missing status line: %q", got.Stdout)
	}
}

func TestCurlErrorStatus(t *testing.T) {
	stub := &stubHTTP{status: 404, body: "not found"}
	c := &Context{HTTP: stub}
	got := Run(c, "curl", []string{"https://x/missing"})
	if got.ExitCode != 1 {
		t.Errorf("404 exit = %d, want 1", got.ExitCode)
	}
}

func TestCurlOutputFile(t *testing.T) {
	stub := &stubHTTP{body: "saved"}
	fs := vfs.NewMemFS()
	c := &Context{HTTP: stub, FS: fs}
	got := Run(c, "curl", []string{"-o", "/out.txt", "https://x"})
	if got.Stdout != "" {
		t.Errorf("stdout should be empty with -o: %q", got.Stdout)
	}
	data, err := fs.Read("/out.txt")
	if err != nil || string(data) != "saved" {
		t.Errorf("saved = %q err %v", data, err)
	}
}

func TestWgetToStdout(t *testing.T) {
	stub := &stubHTTP{body: "page"}
	c := &Context{HTTP: stub}
	got := Run(c, "wget", []string{"-q", "-O", "-", "https://x/page"})
	if got.Stdout != "page" {
		t.Errorf("wget -O- = %q", got.Stdout)
	}
}

func TestWgetSavesFile(t *testing.T) {
	stub := &stubHTTP{body: "content"}
	fs := vfs.NewMemFS()
	c := &Context{HTTP: stub, FS: fs}
	got := Run(c, "wget", []string{"https://x/file.txt"})
	if got.ExitCode != 0 {
		t.Fatalf("wget: %q", got.Stderr)
	}
	data, err := fs.Read("/file.txt")
	if err != nil || string(data) != "content" {
		t.Errorf("saved = %q err %v", data, err)
	}
}

func TestWgetErrorStatus(t *testing.T) {
	stub := &stubHTTP{status: 500}
	c := &Context{HTTP: stub}
	got := Run(c, "wget", []string{"-q", "-O", "-", "https://x"})
	if got.ExitCode == 0 {
		t.Error("500 should not exit 0")
	}
}

func TestHTTPWithoutBinding(t *testing.T) {
	got := run(t, "curl", []string{"https://x"}, "")
	if got.ExitCode != 1 || !strings.Contains(got.Stderr, "no http capability") {
		t.Errorf("curl without http = %+v", got)
	}
}
