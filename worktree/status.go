package worktree

import (
	"fmt"
	"sort"

	"github.com/strata-vcs/strata/diff"
	"github.com/strata-vcs/strata/index"
	"github.com/strata-vcs/strata/plumbing"
	"github.com/strata-vcs/strata/plumbing/object"
)

// WorkspaceChange classifies how a tracked file's on-disk content compares
// to what the index has staged for it.
type WorkspaceChange int

const (
	WorkspaceUnchanged WorkspaceChange = iota
	WorkspaceModified
	WorkspaceDeleted
)

// IndexChange classifies how a tracked file's staged content compares to
// HEAD's tree.
type IndexChange int

const (
	IndexUnchanged IndexChange = iota
	IndexAdded
	IndexModified
	IndexDeleted
)

// FileChange is one path's combined workspace/index classification.
type FileChange struct {
	Workspace WorkspaceChange
	Index     IndexChange
}

// Status is the result of a workspace scan: every untracked path, and how
// every tracked path compares against both the workspace and HEAD.
type Status struct {
	Untracked []string
	Changed   map[string]FileChange
}

func (s *Status) setWorkspace(path string, c WorkspaceChange) {
	fc := s.Changed[path]
	fc.Workspace = c
	s.Changed[path] = fc
}

func (s *Status) setIndex(path string, c IndexChange) {
	fc := s.Changed[path]
	fc.Index = c
	s.Changed[path] = fc
}

// Loader is the subset of Database StatusScanner needs to resolve HEAD's
// commit and walk its tree.
type Loader interface {
	Parse(id plumbing.ObjectID) (object.Object, error)
}

// HeadReader is the subset of RefStore StatusScanner needs.
type HeadReader interface {
	ReadHEAD() (plumbing.ObjectID, bool, error)
}

// StatusScanner computes a Status by walking the workspace and comparing it
// against the index and HEAD's tree.
type StatusScanner struct {
	workspace *Workspace
	loader    Loader
	refs      HeadReader
}

// NewStatusScanner returns a StatusScanner reading the workspace through
// ws, objects through loader, and HEAD through refs.
func NewStatusScanner(ws *Workspace, loader Loader, refs HeadReader) *StatusScanner {
	return &StatusScanner{workspace: ws, loader: loader, refs: refs}
}

// Scan classifies every workspace path and index entry, opportunistically
// refreshing idx's stat cache for entries it had to rehash but found
// unchanged.
func (s *StatusScanner) Scan(idx *index.Index) (*Status, error) {
	st := &Status{Changed: make(map[string]FileChange)}

	fileStats := make(map[string]index.Stat)
	if err := s.scanWorkspace("", idx, fileStats, st); err != nil {
		return nil, err
	}

	headTree, err := s.loadHEADTree()
	if err != nil {
		return nil, err
	}

	for _, entry := range idx.Entries() {
		if err := s.checkAgainstWorkspace(entry, fileStats, idx, st); err != nil {
			return nil, err
		}
		s.checkAgainstHEAD(entry, headTree, st)
	}

	for path := range headTree {
		if !idx.IsDirectlyTracked(path) {
			st.setIndex(path, IndexDeleted)
		}
	}

	sort.Strings(st.Untracked)
	return st, nil
}

// scanWorkspace walks the workspace under prefix, recursing into tracked
// directories and stopping at the first untracked path in each subtree
// (its descendants are reported as part of it, not individually).
func (s *StatusScanner) scanWorkspace(prefix string, idx *index.Index, fileStats map[string]index.Stat, st *Status) error {
	entries, err := s.workspace.ListDir(prefix)
	if err != nil {
		return err
	}

	for _, path := range entries {
		isDir, err := s.workspace.IsDir(path)
		if err != nil {
			return err
		}

		if idx.IsDirectlyTracked(path) {
			if isDir {
				if err := s.scanWorkspace(path, idx, fileStats, st); err != nil {
					return err
				}
				continue
			}
			stat, _, err := s.workspace.StatFile(path)
			if err != nil {
				return err
			}
			fileStats[path] = stat
			continue
		}

		if isDir {
			path += "/"
		}
		st.Untracked = append(st.Untracked, path)
	}

	return nil
}

func (s *StatusScanner) loadHEADTree() (map[string]diff.Entry, error) {
	tree := make(map[string]diff.Entry)

	oid, ok, err := s.refs.ReadHEAD()
	if err != nil || !ok {
		return tree, err
	}

	obj, err := s.loader.Parse(oid)
	if err != nil {
		return nil, err
	}
	commit, ok := obj.(*object.Commit)
	if !ok {
		return nil, fmt.Errorf("worktree: HEAD %s is a %s, not a commit", oid, obj.Type())
	}

	if err := s.walkTree(commit.Tree, "", tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func (s *StatusScanner) walkTree(id plumbing.ObjectID, prefix string, out map[string]diff.Entry) error {
	if id.IsZero() {
		return nil
	}

	obj, err := s.loader.Parse(id)
	if err != nil {
		return err
	}
	t, ok := obj.(*object.Tree)
	if !ok {
		return fmt.Errorf("worktree: %s is a %s, not a tree", id, obj.Type())
	}

	for _, e := range t.Entries {
		path := e.Name
		if prefix != "" {
			path = prefix + "/" + e.Name
		}

		if e.Mode.IsDir() {
			if err := s.walkTree(e.Hash, path, out); err != nil {
				return err
			}
			continue
		}
		out[path] = diff.Entry{OID: e.Hash, Mode: e.Mode}
	}
	return nil
}

func (s *StatusScanner) checkAgainstWorkspace(entry index.Entry, fileStats map[string]index.Stat, idx *index.Index, st *Status) error {
	stat, ok := fileStats[entry.Path]
	if !ok {
		st.setWorkspace(entry.Path, WorkspaceDeleted)
		return nil
	}

	_, mode, err := s.workspace.StatFile(entry.Path)
	if err != nil {
		return err
	}
	if !entry.StatMatches(stat) || entry.Mode != mode {
		st.setWorkspace(entry.Path, WorkspaceModified)
		return nil
	}
	if entry.TimesMatch(stat) {
		return nil
	}

	content, err := s.workspace.ReadFile(entry.Path)
	if err != nil {
		return err
	}
	if plumbing.ComputeHash(plumbing.BlobObject, content) != entry.OID {
		st.setWorkspace(entry.Path, WorkspaceModified)
		return nil
	}

	return idx.UpdateEntryStat(entry.Path, stat)
}

func (s *StatusScanner) checkAgainstHEAD(entry index.Entry, headTree map[string]diff.Entry, st *Status) {
	headEntry, ok := headTree[entry.Path]
	switch {
	case !ok:
		st.setIndex(entry.Path, IndexAdded)
	case headEntry.OID != entry.OID || headEntry.Mode != entry.Mode:
		st.setIndex(entry.Path, IndexModified)
	}
}
