package vfs

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// OSFS exposes a real directory tree through the capability interface.
// Paths are confined to the root: anything resolving outside it is
// reported as absent rather than reaching the wider filesystem.
type OSFS struct {
	Root string
}

// NewOSFS roots a capability at dir.
func NewOSFS(dir string) *OSFS {
	return &OSFS{Root: dir}
}

// resolve maps a capability path to a host path inside the root.
func (fs *OSFS) resolve(p string) (string, error) {
	joined := filepath.Join(fs.Root, filepath.FromSlash(strings.TrimPrefix(p, "/")))
	cleanRoot := filepath.Clean(fs.Root)
	if joined != cleanRoot && !strings.HasPrefix(joined, cleanRoot+string(filepath.Separator)) {
		return "", PathError(p, ErrNotExist)
	}
	return joined, nil
}

func (fs *OSFS) Read(p string) ([]byte, error) {
	hp, err := fs.resolve(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(hp)
	if os.IsNotExist(err) {
		return nil, PathError(p, ErrNotExist)
	}
	return data, err
}

func (fs *OSFS) Write(p string, data []byte) error {
	hp, err := fs.resolve(p)
	if err != nil {
		return err
	}
	return os.WriteFile(hp, data, 0o644)
}

func (fs *OSFS) Append(p string, data []byte) error {
	hp, err := fs.resolve(p)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(hp, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

func (fs *OSFS) List(p string, opts ListOptions) ([]DirEntry, error) {
	hp, err := fs.resolve(p)
	if err != nil {
		return nil, err
	}
	var out []DirEntry
	if opts.Recursive {
		err = filepath.WalkDir(hp, func(path string, d os.DirEntry, werr error) error {
			if werr != nil || path == hp {
				return werr
			}
			rel, _ := filepath.Rel(fs.Root, path)
			out = append(out, DirEntry{
				Name: d.Name(),
				Path: "/" + filepath.ToSlash(rel),
				Dir:  d.IsDir(),
			})
			return nil
		})
		return out, err
	}
	entries, err := os.ReadDir(hp)
	if os.IsNotExist(err) {
		return nil, PathError(p, ErrNotExist)
	}
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		rel, _ := filepath.Rel(fs.Root, filepath.Join(hp, e.Name()))
		out = append(out, DirEntry{
			Name: e.Name(),
			Path: "/" + filepath.ToSlash(rel),
			Dir:  e.IsDir(),
		})
	}
	return out, nil
}

func (fs *OSFS) Exists(p string) bool {
	hp, err := fs.resolve(p)
	if err != nil {
		return false
	}
	_, err = os.Stat(hp)
	return err == nil
}

func (fs *OSFS) Stat(p string) (FileInfo, error) {
	hp, err := fs.resolve(p)
	if err != nil {
		return FileInfo{}, err
	}
	info, err := os.Lstat(hp)
	if os.IsNotExist(err) {
		return FileInfo{}, PathError(p, ErrNotExist)
	}
	if err != nil {
		return FileInfo{}, err
	}
	fi := FileInfo{
		Name:    info.Name(),
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
		Dir:     info.IsDir(),
	}
	if info.Mode()&os.ModeSymlink != 0 {
		fi.LinkTarget, _ = os.Readlink(hp)
	}
	return fi, nil
}

func (fs *OSFS) Mkdir(p string, recursive bool) error {
	hp, err := fs.resolve(p)
	if err != nil {
		return err
	}
	if recursive {
		return os.MkdirAll(hp, 0o755)
	}
	return os.Mkdir(hp, 0o755)
}

func (fs *OSFS) Rmdir(p string) error {
	hp, err := fs.resolve(p)
	if err != nil {
		return err
	}
	return os.Remove(hp)
}

func (fs *OSFS) Remove(p string, opts RemoveOptions) error {
	hp, err := fs.resolve(p)
	if err != nil {
		return err
	}
	if _, statErr := os.Lstat(hp); statErr != nil {
		if os.IsNotExist(statErr) {
			if opts.Force {
				return nil
			}
			return PathError(p, ErrNotExist)
		}
		return statErr
	}
	if opts.Recursive {
		return os.RemoveAll(hp)
	}
	return os.Remove(hp)
}

func (fs *OSFS) CopyFile(src, dst string) error {
	data, err := fs.Read(src)
	if err != nil {
		return err
	}
	return fs.Write(dst, data)
}

func (fs *OSFS) Rename(oldPath, newPath string) error {
	ho, err := fs.resolve(oldPath)
	if err != nil {
		return err
	}
	hn, err := fs.resolve(newPath)
	if err != nil {
		return err
	}
	return os.Rename(ho, hn)
}

func (fs *OSFS) Truncate(p string, size int64) error {
	hp, err := fs.resolve(p)
	if err != nil {
		return err
	}
	return os.Truncate(hp, size)
}

func (fs *OSFS) Readlink(p string) (string, error) {
	hp, err := fs.resolve(p)
	if err != nil {
		return "", err
	}
	return os.Readlink(hp)
}

func (fs *OSFS) Symlink(target, link string) error {
	hl, err := fs.resolve(link)
	if err != nil {
		return err
	}
	return os.Symlink(target, hl)
}

func (fs *OSFS) Link(oldPath, newPath string) error {
	ho, err := fs.resolve(oldPath)
	if err != nil {
		return err
	}
	hn, err := fs.resolve(newPath)
	if err != nil {
		return err
	}
	return os.Link(ho, hn)
}

func (fs *OSFS) Chmod(p string, mode os.FileMode) error {
	hp, err := fs.resolve(p)
	if err != nil {
		return err
	}
	return os.Chmod(hp, mode)
}

func (fs *OSFS) Chown(p string, uid, gid int) error {
	hp, err := fs.resolve(p)
	if err != nil {
		return err
	}
	return os.Chown(hp, uid, gid)
}

func (fs *OSFS) Utimes(p string, atime, mtime time.Time) error {
	hp, err := fs.resolve(p)
	if err != nil {
		return err
	}
	return os.Chtimes(hp, atime, mtime)
}
