// Package index implements the staging area: an in-memory, directory-aware
// view of the index file, built atop the binary codec in
// plumbing/format/index. It owns the add/remove conflict-eviction rules (a
// file entry and a tree entry can never coexist at the same path) and the
// locked rehydrate/write-back cycle.
package index

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/go-git/go-billy/v5"

	"github.com/strata-vcs/strata/internal/lockfile"
	"github.com/strata-vcs/strata/plumbing"
	"github.com/strata-vcs/strata/plumbing/filemode"
	diskindex "github.com/strata-vcs/strata/plumbing/format/index"
)

// ErrEntryNotFound is returned by UpdateEntryStat for a path with no
// existing entry.
var ErrEntryNotFound = errors.New("index: entry not found")

// ErrChecksumMismatch is re-exported from the binary codec so callers don't
// need to import plumbing/format/index just to check this one error.
var ErrChecksumMismatch = diskindex.ErrChecksumMismatch

// Stat is the subset of POSIX file metadata the index persists purely to
// detect out-of-band workspace changes without rehashing content.
type Stat struct {
	CtimeSeconds     uint32
	CtimeNanoseconds uint32
	MtimeSeconds     uint32
	MtimeNanoseconds uint32
	Dev              uint32
	Inode            uint32
	UID              uint32
	GID              uint32
	Size             uint32
}

// Entry is one staged path: its content-addressed identity plus the stat
// fields used by Status to short-circuit a rehash.
type Entry struct {
	Path string
	OID  plumbing.ObjectID
	Mode filemode.FileMode
	Stat Stat
}

// StatMatches reports whether other's size agrees with e well enough to
// skip rehashing (a zero recorded size always defers to other, matching the
// original implementation's tolerance for a freshly-added entry with no stat
// yet). Only the size is compared; the file mode is not, so callers compare
// it themselves.
func (e Entry) StatMatches(other Stat) bool {
	return (e.Stat.Size == 0 || e.Stat.Size == other.Size)
}

// TimesMatch reports whether e and other were observed at the identical
// ctime/mtime, the cheap check that lets Status skip a content comparison
// entirely.
func (e Entry) TimesMatch(other Stat) bool {
	return e.Stat.CtimeSeconds == other.CtimeSeconds &&
		e.Stat.CtimeNanoseconds == other.CtimeNanoseconds &&
		e.Stat.MtimeSeconds == other.MtimeSeconds &&
		e.Stat.MtimeNanoseconds == other.MtimeNanoseconds
}

// Index is the staging area: a directory-aware map of tracked paths to
// Entry, backed by one file within fs.
type Index struct {
	fs   billy.Filesystem
	root string
	path string

	entries  map[string]Entry
	children map[string]*treeset.Set // ancestor dir path -> every entry path beneath it
	dirty    bool
}

// New returns an empty Index for the file at root/path within fs.
func New(fs billy.Filesystem, root, path string) *Index {
	return &Index{
		fs:       fs,
		root:     root,
		path:     path,
		entries:  make(map[string]Entry),
		children: make(map[string]*treeset.Set),
	}
}

func (idx *Index) full() string { return idx.fs.Join(idx.root, idx.path) }

// EntryByPath looks up the entry at path.
func (idx *Index) EntryByPath(path string) (Entry, bool) {
	e, ok := idx.entries[path]
	return e, ok
}

// IsDirectlyTracked reports whether path names either a file entry or a
// directory with at least one tracked descendant.
func (idx *Index) IsDirectlyTracked(path string) bool {
	if _, ok := idx.entries[path]; ok {
		return true
	}
	_, ok := idx.children[path]
	return ok
}

// Entries returns every tracked entry in path-sorted order.
func (idx *Index) Entries() []Entry {
	paths := make([]string, 0, len(idx.entries))
	for p := range idx.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := make([]Entry, 0, len(paths))
	for _, p := range paths {
		out = append(out, idx.entries[p])
	}
	return out
}

// EntriesUnderPath returns every tracked path at or beneath path ("." means
// every entry).
func (idx *Index) EntriesUnderPath(path string) []string {
	var out []string
	for p := range idx.entries {
		if path == "." || p == path || strings.HasPrefix(p, path+"/") {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (idx *Index) clear() {
	idx.entries = make(map[string]Entry)
	idx.children = make(map[string]*treeset.Set)
	idx.dirty = false
}

// Rehydrate reloads in-memory state from disk under a shared lock. A
// missing or empty index file clears the in-memory state without error (a
// fresh repository has no staged entries yet).
func (idx *Index) Rehydrate() error {
	return idx.withLock(false, func() error {
		idx.clear()

		f, err := idx.fs.Open(idx.full())
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("index: open: %w", err)
		}
		defer f.Close()

		info, err := idx.fs.Stat(idx.full())
		if err != nil {
			return fmt.Errorf("index: stat: %w", err)
		}
		if info.Size() == 0 {
			return nil
		}

		decoded, err := diskindex.Decode(f)
		if err != nil {
			return fmt.Errorf("index: decode: %w", err)
		}

		for _, e := range decoded.Entries {
			idx.storeEntry(fromDiskEntry(e))
		}
		return nil
	})
}

// Add stages entry, evicting any conflicting ancestor-directory entry and
// any descendant entries (a path cannot simultaneously be a file and a
// directory in the index).
func (idx *Index) Add(entry Entry) {
	idx.discardConflicts(entry.Path)
	idx.storeEntry(entry)
	idx.dirty = true
}

// Remove unstages path and everything beneath it.
func (idx *Index) Remove(path string) {
	idx.removeEntry(path)
	idx.removeChildren(path)
	idx.dirty = true
}

// UpdateEntryStat refreshes an existing entry's stat fields without
// changing its OID, used by Status once it has verified the content is
// actually unchanged despite a stale stat.
func (idx *Index) UpdateEntryStat(path string, stat Stat) error {
	e, ok := idx.entries[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, path)
	}
	e.Stat = stat
	idx.entries[path] = e
	idx.dirty = true
	return nil
}

// WriteUpdates persists the in-memory state to disk under an exclusive
// lock, always in path-sorted order regardless of insertion order.
func (idx *Index) WriteUpdates() error {
	return idx.withLock(true, func() error {
		dir := parentOf(idx.full())
		if dir != "." {
			if err := idx.fs.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("index: mkdir %s: %w", dir, err)
			}
		}

		tmp, err := idx.fs.TempFile(dir, "tmp-index-")
		if err != nil {
			return fmt.Errorf("index: create temp: %w", err)
		}
		tmpName := tmp.Name()

		disk := &diskindex.Index{
			Version: diskindex.SupportedVersion,
			Entries: idx.sortedDiskEntries(),
		}
		if err := diskindex.Encode(tmp, disk); err != nil {
			tmp.Close()
			idx.fs.Remove(tmpName)
			return fmt.Errorf("index: encode: %w", err)
		}
		if err := tmp.Close(); err != nil {
			idx.fs.Remove(tmpName)
			return fmt.Errorf("index: close temp: %w", err)
		}
		if err := idx.fs.Rename(tmpName, idx.full()); err != nil {
			idx.fs.Remove(tmpName)
			return fmt.Errorf("index: rename into place: %w", err)
		}

		idx.dirty = false
		return nil
	})
}

func (idx *Index) sortedDiskEntries() []diskindex.Entry {
	entries := idx.Entries()
	out := make([]diskindex.Entry, len(entries))
	for i, e := range entries {
		out[i] = toDiskEntry(e)
	}
	return out
}

// discardConflicts evicts whatever the index currently has at any ancestor
// directory of path (a file entry that path is about to shadow) and
// whatever it has beneath path itself (entries that path, now becoming a
// file, is about to shadow).
func (idx *Index) discardConflicts(path string) {
	for _, parent := range parentDirs(path) {
		idx.removeEntry(parent)
	}
	idx.removeChildren(path)
}

func (idx *Index) storeEntry(entry Entry) {
	idx.entries[entry.Path] = entry
	for _, parent := range parentDirs(entry.Path) {
		set, ok := idx.children[parent]
		if !ok {
			set = treeset.NewWithStringComparator()
			idx.children[parent] = set
		}
		set.Add(entry.Path)
	}
}

func (idx *Index) removeEntry(path string) {
	entry, ok := idx.entries[path]
	if !ok {
		return
	}
	delete(idx.entries, path)
	for _, parent := range parentDirs(entry.Path) {
		set, ok := idx.children[parent]
		if !ok {
			continue
		}
		set.Remove(path)
		if set.Empty() {
			delete(idx.children, parent)
		}
	}
}

func (idx *Index) removeChildren(path string) {
	set, ok := idx.children[path]
	if !ok {
		return
	}
	delete(idx.children, path)
	for _, v := range set.Values() {
		idx.removeEntry(v.(string))
	}
}

// parentDirs returns every proper ancestor directory of path, root-most
// first, excluding path itself: parentDirs("a/b/c") = ["a", "a/b"].
func parentDirs(path string) []string {
	parts := strings.Split(path, "/")
	if len(parts) <= 1 {
		return nil
	}
	dirs := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		dirs = append(dirs, strings.Join(parts[:i], "/"))
	}
	return dirs
}

func (idx *Index) withLock(exclusive bool, fn func() error) error {
	lockPath := idx.full() + ".lock"
	if dir := parentOf(lockPath); dir != "." {
		if err := idx.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("index: mkdir %s: %w", dir, err)
		}
	}

	lock := lockfile.New(idx.fs, lockPath)
	if exclusive {
		if err := lock.Lock(); err != nil {
			return fmt.Errorf("index: lock: %w", err)
		}
		defer lock.Unlock()
	} else {
		if err := lock.RLock(); err != nil {
			return fmt.Errorf("index: rlock: %w", err)
		}
		defer lock.RUnlock()
	}

	return fn()
}

func toDiskEntry(e Entry) diskindex.Entry {
	return diskindex.Entry{
		CtimeSeconds:     e.Stat.CtimeSeconds,
		CtimeNanoseconds: e.Stat.CtimeNanoseconds,
		MtimeSeconds:     e.Stat.MtimeSeconds,
		MtimeNanoseconds: e.Stat.MtimeNanoseconds,
		Dev:              e.Stat.Dev,
		Inode:            e.Stat.Inode,
		Mode:             uint32(e.Mode),
		UID:              e.Stat.UID,
		GID:              e.Stat.GID,
		Size:             e.Stat.Size,
		Hash:             e.OID,
		Path:             e.Path,
	}
}

func fromDiskEntry(e diskindex.Entry) Entry {
	return Entry{
		Path: e.Path,
		OID:  e.Hash,
		Mode: filemode.FileMode(e.Mode),
		Stat: Stat{
			CtimeSeconds:     e.CtimeSeconds,
			CtimeNanoseconds: e.CtimeNanoseconds,
			MtimeSeconds:     e.MtimeSeconds,
			MtimeNanoseconds: e.MtimeNanoseconds,
			Dev:              e.Dev,
			Inode:            e.Inode,
			UID:              e.UID,
			GID:              e.GID,
			Size:             e.Size,
		},
	}
}

func parentOf(p string) string {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "."
	}
	return p[:i]
}
