package worktree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/strata-vcs/strata/diff"
	"github.com/strata-vcs/strata/index"
	"github.com/strata-vcs/strata/plumbing"
	"github.com/strata-vcs/strata/plumbing/object"
)

// ConflictType classifies why PlanChanges refused to touch the workspace.
type ConflictType int

const (
	// StaleFile means a tracked file's on-disk content disagrees with what
	// the index has staged, and the migration would silently discard it.
	StaleFile ConflictType = iota
	// StaleDirectory means a tracked directory on disk still holds tracked
	// descendants that the migration would otherwise need to remove.
	StaleDirectory
	// UntrackedOverwritten means an untracked file or directory sits where
	// the migration needs to write tracked content.
	UntrackedOverwritten
	// UntrackedRemoved means an untracked file sits where the migration
	// needs to remove a path entirely.
	UntrackedRemoved
)

var conflictMessages = map[ConflictType][2]string{
	StaleFile: {
		"error: Your local changes to the following files would be overwritten by checkout:",
		"Please commit your changes or stash them before you switch branches.\nAborting",
	},
	StaleDirectory: {
		"error: Updating the following directories would lose untracked files in them:",
		"Aborting",
	},
	UntrackedOverwritten: {
		"error: The following untracked working tree files would be overwritten by checkout:",
		"Please move or remove them before you switch branches.\nAborting",
	},
	UntrackedRemoved: {
		"error: The following untracked working tree files would be removed by checkout:",
		"Please move or remove them before you switch branches.\nAborting",
	},
}

var conflictOrder = []ConflictType{StaleFile, StaleDirectory, UntrackedOverwritten, UntrackedRemoved}

// ConflictError collects every checkout conflict PlanChanges found. No
// files are touched and HEAD is left unmoved whenever one is returned.
type ConflictError struct {
	paths map[ConflictType][]string
}

func (e *ConflictError) add(kind ConflictType, path string) {
	if e.paths == nil {
		e.paths = make(map[ConflictType][]string)
	}
	e.paths[kind] = append(e.paths[kind], path)
}

// Empty reports whether no conflicts were recorded.
func (e *ConflictError) Empty() bool { return e == nil || len(e.paths) == 0 }

// Paths returns the conflicting paths of the given type, sorted.
func (e *ConflictError) Paths(kind ConflictType) []string {
	paths := append([]string(nil), e.paths[kind]...)
	sort.Strings(paths)
	return paths
}

func (e *ConflictError) Error() string {
	var b strings.Builder
	for _, kind := range conflictOrder {
		paths := e.Paths(kind)
		if len(paths) == 0 {
			continue
		}
		msgs := conflictMessages[kind]
		fmt.Fprintln(&b, msgs[0])
		for _, p := range paths {
			fmt.Fprintf(&b, "\t%s\n", p)
		}
		fmt.Fprintln(&b, msgs[1])
	}
	return strings.TrimRight(b.String(), "\n")
}

type actionKind int

const (
	actionAdd actionKind = iota
	actionModify
	actionDelete
)

type action struct {
	path  string
	kind  actionKind
	entry diff.Entry
}

// Plan is the ordered set of filesystem and index mutations PlanChanges
// computed: conflict-free, ready for Apply.
type Plan struct {
	deletes  []action
	modifies []action
	adds     []action
	mkdirs   []string
	rmdirs   []string
}

// BlobLoader is the subset of Database Migration needs to read a blob's
// content when writing it to the workspace.
type BlobLoader interface {
	Parse(id plumbing.ObjectID) (object.Object, error)
}

// Migration drives index + workspace from one tree to another, given the
// diff.ChangeSet between them.
type Migration struct {
	workspace *Workspace
	index     *index.Index
	loader    BlobLoader
}

// NewMigration returns a Migration writing into ws and idx, reading blob
// bodies through loader.
func NewMigration(ws *Workspace, idx *index.Index, loader BlobLoader) *Migration {
	return &Migration{workspace: ws, index: idx, loader: loader}
}

// PlanChanges classifies every path in changes against the current index
// and workspace, returning a conflict-free Plan or a *ConflictError
// collecting everything that blocks the migration.
func (m *Migration) PlanChanges(changes diff.ChangeSet) (*Plan, error) {
	paths := make([]string, 0, len(changes))
	for p := range changes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	conflicts := &ConflictError{}
	for _, p := range paths {
		if err := m.checkForConflict(p, changes[p], conflicts); err != nil {
			return nil, err
		}
	}
	if !conflicts.Empty() {
		return nil, conflicts
	}

	plan := &Plan{}
	mkdirSet := make(map[string]struct{})
	rmdirSet := make(map[string]struct{})

	for _, p := range paths {
		change := changes[p]
		act := action{path: p, entry: change.New}

		switch change.Kind {
		case diff.Added:
			act.kind = actionAdd
			for _, dir := range parentDirs(p) {
				mkdirSet[dir] = struct{}{}
			}
			plan.adds = append(plan.adds, act)
		case diff.Modified:
			act.kind = actionModify
			for _, dir := range parentDirs(p) {
				mkdirSet[dir] = struct{}{}
			}
			plan.modifies = append(plan.modifies, act)
		case diff.Deleted:
			act.kind = actionDelete
			for _, dir := range parentDirs(p) {
				rmdirSet[dir] = struct{}{}
			}
			plan.deletes = append(plan.deletes, act)
		}
	}

	plan.mkdirs = sortedAsc(mkdirSet)
	plan.rmdirs = sortedDesc(rmdirSet)

	return plan, nil
}

// checkForConflict implements the three-step classification in order: a
// stale index entry, a conflicting workspace stat at path itself, or a
// conflicting ancestor directory blocking path's creation.
func (m *Migration) checkForConflict(path string, change diff.Change, conflicts *ConflictError) error {
	entry, tracked := m.index.EntryByPath(path)

	if tracked && indexDiffersFromBothSides(entry, change) {
		conflicts.add(StaleFile, path)
		return nil
	}

	isDir, err := m.workspace.IsDir(path)
	if err != nil {
		return err
	}
	if isDir {
		if m.index.IsDirectlyTracked(path) {
			conflicts.add(StaleDirectory, path)
		}
		return nil
	}

	exists, err := m.workspace.Exists(path)
	if err != nil {
		return err
	}
	if exists {
		if tracked {
			stat, mode, err := m.workspace.StatFile(path)
			if err != nil {
				return err
			}
			if !entry.StatMatches(stat) || entry.Mode != mode {
				conflicts.add(StaleFile, path)
			}
		} else {
			conflicts.add(untrackedConflictType(change.Kind), path)
		}
		return nil
	}

	if ancestor, blocked, err := m.blockedAncestor(path); err != nil {
		return err
	} else if blocked {
		conflicts.add(untrackedConflictType(change.Kind), ancestor)
	}
	return nil
}

// blockedAncestor reports the first ancestor of path that sits on disk as
// an untracked plain file where a directory needs to exist.
func (m *Migration) blockedAncestor(path string) (string, bool, error) {
	for _, dir := range parentDirs(path) {
		exists, err := m.workspace.Exists(dir)
		if err != nil {
			return "", false, err
		}
		if !exists {
			continue
		}
		isDir, err := m.workspace.IsDir(dir)
		if err != nil {
			return "", false, err
		}
		if !isDir && !m.index.IsDirectlyTracked(dir) {
			return dir, true, nil
		}
	}
	return "", false, nil
}

func untrackedConflictType(kind diff.Kind) ConflictType {
	if kind == diff.Deleted {
		return UntrackedRemoved
	}
	return UntrackedOverwritten
}

func sideMatches(entry index.Entry, side diff.Entry) bool {
	return entry.OID == side.OID && entry.Mode == side.Mode
}

func indexDiffersFromBothSides(entry index.Entry, change diff.Change) bool {
	return !sideMatches(entry, change.Old) && !sideMatches(entry, change.New)
}

// Apply executes plan in the five-step strict order: deletes, rmdirs
// (reverse-sorted), mkdirs (forward-sorted), modifies, adds. Each step
// completes fully before the next begins. The in-memory index is then
// updated delete-then-add-then-modify.
func (m *Migration) Apply(plan *Plan) error {
	for _, act := range plan.deletes {
		if err := m.workspace.Remove(act.path); err != nil {
			return fmt.Errorf("worktree: delete %s: %w", act.path, err)
		}
	}
	for _, dir := range plan.rmdirs {
		if err := m.workspace.RemoveDir(dir); err != nil {
			return fmt.Errorf("worktree: rmdir %s: %w", dir, err)
		}
	}
	for _, dir := range plan.mkdirs {
		if err := m.workspace.EnsureDir(dir); err != nil {
			return fmt.Errorf("worktree: mkdir %s: %w", dir, err)
		}
	}
	for _, act := range plan.modifies {
		if err := m.writeBlob(act); err != nil {
			return err
		}
	}
	for _, act := range plan.adds {
		if err := m.writeBlob(act); err != nil {
			return err
		}
	}

	for _, act := range plan.deletes {
		m.index.Remove(act.path)
	}
	for _, act := range plan.adds {
		m.updateIndex(act)
	}
	for _, act := range plan.modifies {
		m.updateIndex(act)
	}

	return nil
}

func (m *Migration) writeBlob(act action) error {
	obj, err := m.loader.Parse(act.entry.OID)
	if err != nil {
		return fmt.Errorf("worktree: load blob for %s: %w", act.path, err)
	}
	blob, ok := obj.(*object.Blob)
	if !ok {
		return fmt.Errorf("worktree: %s is a %s, not a blob", act.path, obj.Type())
	}
	return m.workspace.WriteFile(act.path, blob.Content, act.entry.Mode)
}

func (m *Migration) updateIndex(act action) {
	stat, _, err := m.workspace.StatFile(act.path)
	if err != nil {
		stat = index.Stat{}
	}
	m.index.Add(index.Entry{Path: act.path, OID: act.entry.OID, Mode: act.entry.Mode, Stat: stat})
}

// parentDirs returns every proper ancestor directory of path, root-most
// first: parentDirs("a/b/c") = ["a", "a/b"].
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

func sortedAsc(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedDesc(set map[string]struct{}) []string {
	out := sortedAsc(set)
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}
