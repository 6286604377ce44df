package vfs

import (
	"testing"
)

func TestMemFSReadWrite(t *testing.T) {
	fs := NewMemFS()
	if err := fs.Write("/a.txt", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	data, err := fs.Read("/a.txt")
	if err != nil || string(data) != "hello" {
		t.Fatalf("read = %q err %v", data, err)
	}
	if err := fs.Append("/a.txt", []byte(" world")); err != nil {
		t.Fatal(err)
	}
	data, _ = fs.Read("/a.txt")
	if string(data) != "hello world" {
		t.Errorf("appended = %q", data)
	}
}

func TestMemFSMissing(t *testing.T) {
	fs := NewMemFS()
	_, err := fs.Read("/nope")
	if !NotExist(err) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
	if fs.Exists("/nope") {
		t.Error("phantom file")
	}
}

func TestMemFSMkdirSemantics(t *testing.T) {
	fs := NewMemFS()
	if err := fs.Mkdir("/a/b", false); err == nil {
		t.Error("nested mkdir without recursive should fail")
	}
	if err := fs.Mkdir("/a/b", true); err != nil {
		t.Fatal(err)
	}
	info, err := fs.Stat("/a/b")
	if err != nil || !info.IsDirectory() {
		t.Errorf("stat = %+v err %v", info, err)
	}
}

func TestMemFSListRecursive(t *testing.T) {
	fs := NewMemFS().Seed(map[string]string{
		"/p/a.txt":     "1",
		"/p/sub/b.txt": "2",
	})
	flat, err := fs.List("/p", ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(flat) != 2 { // a.txt and sub
		t.Errorf("flat list = %+v", flat)
	}
	deep, _ := fs.List("/p", ListOptions{Recursive: true})
	if len(deep) != 3 {
		t.Errorf("recursive list = %+v", deep)
	}
}

func TestMemFSRemove(t *testing.T) {
	fs := NewMemFS().Seed(map[string]string{"/d/x": "1", "/d/y": "2"})
	if err := fs.Remove("/d", RemoveOptions{}); err == nil {
		t.Error("removing dir without recursive should fail")
	}
	if err := fs.Remove("/d", RemoveOptions{Recursive: true}); err != nil {
		t.Fatal(err)
	}
	if fs.Exists("/d/x") || fs.Exists("/d") {
		t.Error("children survived recursive remove")
	}
	if err := fs.Remove("/gone", RemoveOptions{Force: true}); err != nil {
		t.Errorf("force remove of missing = %v", err)
	}
}

func TestMemFSRenameDirectory(t *testing.T) {
	fs := NewMemFS().Seed(map[string]string{"/old/f": "data"})
	if err := fs.Rename("/old", "/new"); err != nil {
		t.Fatal(err)
	}
	data, err := fs.Read("/new/f")
	if err != nil || string(data) != "data" {
		t.Errorf("moved = %q err %v", data, err)
	}
	if fs.Exists("/old/f") {
		t.Error("old path still present")
	}
}

func TestMemFSSymlinkResolution(t *testing.T) {
	fs := NewMemFS().Seed(map[string]string{"/target": "real"})
	if err := fs.Symlink("/target", "/link"); err != nil {
		t.Fatal(err)
	}
	data, err := fs.Read("/link")
	if err != nil || string(data) != "real" {
		t.Errorf("through link = %q err %v", data, err)
	}
	target, err := fs.Readlink("/link")
	if err != nil || target != "/target" {
		t.Errorf("readlink = %q err %v", target, err)
	}
}

func TestMemFSTruncate(t *testing.T) {
	fs := NewMemFS().Seed(map[string]string{"/f": "abcdef"})
	if err := fs.Truncate("/f", 3); err != nil {
		t.Fatal(err)
	}
	data, _ := fs.Read("/f")
	if string(data) != "abc" {
		t.Errorf("truncated = %q", data)
	}
	if err := fs.Truncate("/f", 5); err != nil {
		t.Fatal(err)
	}
	info, _ := fs.Stat("/f")
	if info.Size != 5 {
		t.Errorf("extended size = %d", info.Size)
	}
}
