// Package vfs defines the filesystem capability consumed by the native
// command kernel. The kernel depends on this interface rather than on OS
// syscalls, so the same command implementations run against an in-memory
// tree, an RPC-backed store, or a real directory.
package vfs

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrNotExist is returned for any path that does not resolve.
var ErrNotExist = errors.New("ENOENT: no such file or directory")

// ErrExist is returned when a create collides with an existing entry.
var ErrExist = errors.New("EEXIST: file exists")

// ErrNotDir is returned when a non-directory is used as a directory.
var ErrNotDir = errors.New("ENOTDIR: not a directory")

// ErrIsDir is returned when a directory is used where a file is required.
var ErrIsDir = errors.New("EISDIR: is a directory")

// ErrNotEmpty is returned by Rmdir on a non-empty directory.
var ErrNotEmpty = errors.New("ENOTEMPTY: directory not empty")

// NotExist reports whether err means the path was absent.
func NotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// PathError wraps an underlying error with the path that caused it.
func PathError(path string, err error) error {
	return fmt.Errorf("%s: %w", path, err)
}

// FileInfo describes a single entry. IsFile and IsDirectory are methods to
// match the capability contract consumed by `test`, `stat` and `find`.
type FileInfo struct {
	Name       string
	Size       int64
	Mode       os.FileMode
	ModTime    time.Time
	Dir        bool
	LinkTarget string
	UID        int
	GID        int
}

func (fi FileInfo) IsFile() bool      { return !fi.Dir && fi.LinkTarget == "" }
func (fi FileInfo) IsDirectory() bool { return fi.Dir }
func (fi FileInfo) IsSymlink() bool   { return fi.LinkTarget != "" }

// DirEntry is one child of a listed directory.
type DirEntry struct {
	Name string
	Path string
	Dir  bool
}

// ListOptions controls List behavior.
type ListOptions struct {
	Recursive bool
}

// RemoveOptions controls Remove behavior.
type RemoveOptions struct {
	Recursive bool
	Force     bool
}

// FS is the injected filesystem capability. Implementations own their own
// concurrency discipline; the kernel treats them as externally synchronized.
type FS interface {
	Read(path string) ([]byte, error)
	Write(path string, data []byte) error
	Append(path string, data []byte) error
	List(path string, opts ListOptions) ([]DirEntry, error)
	Exists(path string) bool
	Stat(path string) (FileInfo, error)
	Mkdir(path string, recursive bool) error
	Rmdir(path string) error
	Remove(path string, opts RemoveOptions) error
	CopyFile(src, dst string) error
	Rename(oldPath, newPath string) error
	Truncate(path string, size int64) error
	Readlink(path string) (string, error)
	Symlink(target, link string) error
	Link(oldPath, newPath string) error
	Chmod(path string, mode os.FileMode) error
	Chown(path string, uid, gid int) error
	Utimes(path string, atime, mtime time.Time) error
}
