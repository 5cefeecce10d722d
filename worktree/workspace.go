// Package worktree implements the workspace side of a checkout: reading and
// writing the files a repository's HEAD tree is projected onto, planning and
// applying the migration between two trees, and scanning the result into a
// status report.
package worktree

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-billy/v5"

	"github.com/strata-vcs/strata/index"
	"github.com/strata-vcs/strata/plumbing/filemode"
)

// metadataDir is the repository's own storage area; ListDir never reports
// it and Migration never touches it.
const metadataDir = ".strata"

// Workspace is the set of tracked files under the repository root, read and
// written through billy.Filesystem so the same code exercises an on-disk
// checkout and, in tests, an in-memory one.
type Workspace struct {
	fs   billy.Filesystem
	root string
}

// New returns a Workspace rooted at root within fs.
func New(fs billy.Filesystem, root string) *Workspace {
	return &Workspace{fs: fs, root: root}
}

func (w *Workspace) full(path string) string {
	if path == "" || path == "." {
		return w.root
	}
	return w.fs.Join(w.root, path)
}

// realPath returns the real on-disk path for path, or "" when fs has no
// real backing root (e.g. billy/memfs in tests) — the same "rooted" probe
// internal/lockfile uses to decide between a real flock and an in-memory one.
func (w *Workspace) realPath(path string) string {
	type rooted interface{ Root() string }
	r, ok := w.fs.(rooted)
	if !ok || r.Root() == "" {
		return ""
	}
	return filepath.Join(r.Root(), w.full(path))
}

// ListDir returns the immediate entries beneath path ("" for the repository
// root itself), sorted by name, skipping the metadata directory.
func (w *Workspace) ListDir(path string) ([]string, error) {
	infos, err := w.fs.ReadDir(w.full(path))
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if name == metadataDir {
			continue
		}
		if path == "" || path == "." {
			out = append(out, name)
		} else {
			out = append(out, path+"/"+name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// IsDir reports whether path names a directory in the workspace. A missing
// path is reported as false, not an error.
func (w *Workspace) IsDir(path string) (bool, error) {
	info, err := w.fs.Stat(w.full(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// Exists reports whether path is present in the workspace at all.
func (w *Workspace) Exists(path string) (bool, error) {
	_, err := w.fs.Stat(w.full(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// StatFile reads POSIX metadata for path: the tree mode derived from the
// executable bit, and the stat fields the index persists to detect
// out-of-band workspace changes without rehashing content.
func (w *Workspace) StatFile(path string) (index.Stat, filemode.FileMode, error) {
	info, err := w.fs.Stat(w.full(path))
	if err != nil {
		return index.Stat{}, filemode.Empty, err
	}

	mode := filemode.FromOSFileMode(info.Mode())
	stat := index.Stat{
		MtimeSeconds:     uint32(info.ModTime().Unix()),
		MtimeNanoseconds: uint32(info.ModTime().Nanosecond()),
		Size:             uint32(info.Size()),
	}
	fillSystemInfo(&stat, w.realPath(path))
	return stat, mode, nil
}

// ReadFile returns path's full content.
func (w *Workspace) ReadFile(path string) ([]byte, error) {
	f, err := w.fs.Open(w.full(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

type chmodder interface {
	Chmod(name string, mode os.FileMode) error
}

// chmod applies mode's permission bits through billy.Chmod when fs supports
// it; filesystems that don't (memfs, among others) silently skip it.
func (w *Workspace) chmod(path string, mode filemode.FileMode) error {
	c, ok := w.fs.(chmodder)
	if !ok {
		return nil
	}
	return c.Chmod(w.full(path), mode.ToOSFileMode())
}

// WriteFile creates path with content and mode. A remove-if-exists
// preamble makes a directory-to-file replacement (or vice versa, handled by
// EnsureDir) safe regardless of what currently occupies path.
func (w *Workspace) WriteFile(path string, content []byte, mode filemode.FileMode) error {
	full := w.full(path)
	if err := w.fs.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}

	f, err := w.fs.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.ToOSFileMode())
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return w.chmod(path, mode)
}

// Remove deletes path if present; a missing path is not an error.
func (w *Workspace) Remove(path string) error {
	if err := w.fs.Remove(w.full(path)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RemoveDir removes path if it is an empty directory, and is a no-op
// otherwise (still holding tracked siblings outside the current migration,
// or already gone).
func (w *Workspace) RemoveDir(path string) error {
	entries, err := w.ListDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(entries) > 0 {
		return nil
	}
	return w.Remove(path)
}

// EnsureDir makes path a directory, removing whatever file currently
// occupies it first.
func (w *Workspace) EnsureDir(path string) error {
	full := w.full(path)
	info, err := w.fs.Stat(full)
	switch {
	case err == nil && !info.IsDir():
		if err := w.fs.Remove(full); err != nil {
			return err
		}
	case err != nil && !os.IsNotExist(err):
		return err
	}
	return w.fs.MkdirAll(full, 0o755)
}
