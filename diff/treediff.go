// Package diff implements recursive tree comparison: given two object ids
// (trees, or commits — transparently unwrapped to the tree they snapshot),
// produce a path-keyed set of additions, deletions, and modifications.
package diff

import (
	"fmt"

	"github.com/strata-vcs/strata/plumbing"
	"github.com/strata-vcs/strata/plumbing/filemode"
	"github.com/strata-vcs/strata/plumbing/object"
)

// Kind classifies one entry's change between the old and new side.
type Kind int

const (
	// Added means the path exists only on the new side.
	Added Kind = iota
	// Deleted means the path exists only on the old side.
	Deleted
	// Modified means the path exists on both sides with a different mode or OID.
	Modified
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Deleted:
		return "deleted"
	case Modified:
		return "modified"
	default:
		return "unknown"
	}
}

// Entry is the (mode, object id) pair a change's Old/New side carries; the
// zero Entry represents "absent".
type Entry struct {
	OID  plumbing.ObjectID
	Mode filemode.FileMode
}

func (e Entry) present() bool { return !e.OID.IsZero() }

// Change is one path's transition between the old and new tree.
type Change struct {
	Kind Kind
	Old  Entry
	New  Entry
}

// ChangeSet maps a full relative path to its Change.
type ChangeSet map[string]Change

// Loader is the subset of Database TreeDiff needs: full object parsing, so
// it can unwrap a commit to its tree and recurse into subtrees.
type Loader interface {
	Parse(id plumbing.ObjectID) (object.Object, error)
}

// Compare diffs oldOID against newOID, returning the set of changes needed
// to turn the old side into the new side. Either id may be the zero OID,
// meaning "nothing" (a fresh checkout has no old side; a deletion has no
// new side).
func Compare(loader Loader, oldOID, newOID plumbing.ObjectID) (ChangeSet, error) {
	cs := make(ChangeSet)
	if oldOID == newOID {
		return cs, nil
	}

	oldTree, err := treeOf(loader, oldOID)
	if err != nil {
		return nil, err
	}
	newTree, err := treeOf(loader, newOID)
	if err != nil {
		return nil, err
	}

	if err := compareTrees(loader, oldTree, newTree, "", cs); err != nil {
		return nil, err
	}
	return cs, nil
}

// treeOf resolves id to the Tree it names, transparently following a
// Commit to the tree it snapshots. The zero OID resolves to an empty tree.
func treeOf(loader Loader, id plumbing.ObjectID) (*object.Tree, error) {
	if id.IsZero() {
		return &object.Tree{}, nil
	}

	obj, err := loader.Parse(id)
	if err != nil {
		return nil, err
	}
	switch o := obj.(type) {
	case *object.Tree:
		return o, nil
	case *object.Commit:
		return treeOf(loader, o.Tree)
	default:
		return nil, fmt.Errorf("diff: %s is a %s, not a tree or commit", id, obj.Type())
	}
}

func entriesByName(t *object.Tree) map[string]object.TreeEntry {
	m := make(map[string]object.TreeEntry, len(t.Entries))
	for _, e := range t.Entries {
		m[e.Name] = e
	}
	return m
}

func compareTrees(loader Loader, oldTree, newTree *object.Tree, prefix string, cs ChangeSet) error {
	oldEntries := entriesByName(oldTree)
	newEntries := entriesByName(newTree)

	for name, oldEntry := range oldEntries {
		path := joinPath(prefix, name)
		newEntry, existsInNew := newEntries[name]

		if existsInNew && newEntry.Mode == oldEntry.Mode && newEntry.Hash == oldEntry.Hash {
			continue
		}

		oldIsTree := oldEntry.Mode.IsDir()
		newIsTree := existsInNew && newEntry.Mode.IsDir()

		if oldIsTree || newIsTree {
			var oldSub, newSub *object.Tree
			var err error
			if oldIsTree {
				oldSub, err = loadTree(loader, oldEntry.Hash)
			} else {
				oldSub = &object.Tree{}
			}
			if err != nil {
				return err
			}
			if newIsTree {
				newSub, err = loadTree(loader, newEntry.Hash)
			} else {
				newSub = &object.Tree{}
			}
			if err != nil {
				return err
			}
			if err := compareTrees(loader, oldSub, newSub, path, cs); err != nil {
				return err
			}
		}

		var blobA, blobB Entry
		if !oldIsTree {
			blobA = Entry{OID: oldEntry.Hash, Mode: oldEntry.Mode}
		}
		if existsInNew && !newIsTree {
			blobB = Entry{OID: newEntry.Hash, Mode: newEntry.Mode}
		}
		recordChange(cs, path, blobA, blobB)
	}

	for name, newEntry := range newEntries {
		if _, ok := oldEntries[name]; ok {
			continue
		}
		path := joinPath(prefix, name)

		if newEntry.Mode.IsDir() {
			newSub, err := loadTree(loader, newEntry.Hash)
			if err != nil {
				return err
			}
			if err := compareTrees(loader, &object.Tree{}, newSub, path, cs); err != nil {
				return err
			}
			continue
		}

		cs[path] = Change{Kind: Added, New: Entry{OID: newEntry.Hash, Mode: newEntry.Mode}}
	}

	return nil
}

func recordChange(cs ChangeSet, path string, oldEntry, newEntry Entry) {
	switch {
	case !oldEntry.present() && !newEntry.present():
		return
	case !oldEntry.present():
		cs[path] = Change{Kind: Added, New: newEntry}
	case !newEntry.present():
		cs[path] = Change{Kind: Deleted, Old: oldEntry}
	default:
		cs[path] = Change{Kind: Modified, Old: oldEntry, New: newEntry}
	}
}

func loadTree(loader Loader, id plumbing.ObjectID) (*object.Tree, error) {
	obj, err := loader.Parse(id)
	if err != nil {
		return nil, err
	}
	t, ok := obj.(*object.Tree)
	if !ok {
		return nil, fmt.Errorf("diff: %s is a %s, not a tree", id, obj.Type())
	}
	return t, nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
