package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-vcs/strata/plumbing"
	"github.com/strata-vcs/strata/plumbing/filemode"
	"github.com/strata-vcs/strata/plumbing/object"
)

type fakeLoader struct {
	objs map[plumbing.ObjectID]object.Object
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{objs: make(map[plumbing.ObjectID]object.Object)}
}

func (f *fakeLoader) Parse(id plumbing.ObjectID) (object.Object, error) {
	obj, ok := f.objs[id]
	if !ok {
		return nil, plumbing.ErrObjectNotFound
	}
	return obj, nil
}

func blobID(t *testing.T, label byte) plumbing.ObjectID {
	t.Helper()
	var id plumbing.ObjectID
	id[19] = label
	return id
}

func (f *fakeLoader) tree(label byte, entries ...object.TreeEntry) plumbing.ObjectID {
	var id plumbing.ObjectID
	id[18] = label
	f.objs[id] = &object.Tree{Hash: id, Entries: entries}
	return id
}

func TestCompareIdenticalTreesReturnsNoChanges(t *testing.T) {
	loader := newFakeLoader()
	id := loader.tree(1)

	cs, err := Compare(loader, id, id)
	require.NoError(t, err)
	assert.Empty(t, cs)
}

func TestCompareDetectsAddedFile(t *testing.T) {
	loader := newFakeLoader()
	oldID := loader.tree(1)
	fileID := blobID(t, 2)
	newID := loader.tree(3, object.TreeEntry{Name: "a.txt", Mode: filemode.Regular, Hash: fileID})

	cs, err := Compare(loader, oldID, newID)
	require.NoError(t, err)
	require.Contains(t, cs, "a.txt")
	assert.Equal(t, Added, cs["a.txt"].Kind)
	assert.Equal(t, fileID, cs["a.txt"].New.OID)
}

func TestCompareDetectsDeletedFile(t *testing.T) {
	loader := newFakeLoader()
	fileID := blobID(t, 2)
	oldID := loader.tree(1, object.TreeEntry{Name: "a.txt", Mode: filemode.Regular, Hash: fileID})
	newID := loader.tree(3)

	cs, err := Compare(loader, oldID, newID)
	require.NoError(t, err)
	require.Contains(t, cs, "a.txt")
	assert.Equal(t, Deleted, cs["a.txt"].Kind)
}

func TestCompareDetectsModifiedFile(t *testing.T) {
	loader := newFakeLoader()
	fileID1 := blobID(t, 2)
	fileID2 := blobID(t, 3)
	oldID := loader.tree(1, object.TreeEntry{Name: "a.txt", Mode: filemode.Regular, Hash: fileID1})
	newID := loader.tree(4, object.TreeEntry{Name: "a.txt", Mode: filemode.Regular, Hash: fileID2})

	cs, err := Compare(loader, oldID, newID)
	require.NoError(t, err)
	require.Contains(t, cs, "a.txt")
	change := cs["a.txt"]
	assert.Equal(t, Modified, change.Kind)
	assert.Equal(t, fileID1, change.Old.OID)
	assert.Equal(t, fileID2, change.New.OID)
}

func TestCompareRecursesIntoSubtrees(t *testing.T) {
	loader := newFakeLoader()
	fileID := blobID(t, 9)
	subtreeID := loader.tree(2, object.TreeEntry{Name: "b.txt", Mode: filemode.Regular, Hash: fileID})
	oldID := loader.tree(1)
	newID := loader.tree(3, object.TreeEntry{Name: "dir", Mode: filemode.Dir, Hash: subtreeID})

	cs, err := Compare(loader, oldID, newID)
	require.NoError(t, err)
	require.Contains(t, cs, "dir/b.txt")
	assert.Equal(t, Added, cs["dir/b.txt"].Kind)
}

func TestCompareFileReplacedByDirectory(t *testing.T) {
	loader := newFakeLoader()
	oldFileID := blobID(t, 5)
	oldID := loader.tree(1, object.TreeEntry{Name: "foo", Mode: filemode.Regular, Hash: oldFileID})

	newFileID := blobID(t, 6)
	subtreeID := loader.tree(2, object.TreeEntry{Name: "bar", Mode: filemode.Regular, Hash: newFileID})
	newID := loader.tree(3, object.TreeEntry{Name: "foo", Mode: filemode.Dir, Hash: subtreeID})

	cs, err := Compare(loader, oldID, newID)
	require.NoError(t, err)
	assert.Equal(t, Deleted, cs["foo"].Kind)
	assert.Equal(t, Added, cs["foo/bar"].Kind)
}
