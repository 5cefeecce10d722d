package index

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-vcs/strata/plumbing"
	"github.com/strata-vcs/strata/plumbing/filemode"
)

func newTestIndex() *Index {
	return New(memfs.New(), ".", "index")
}

func entryAt(path string, label byte) Entry {
	var id plumbing.ObjectID
	id[19] = label
	return Entry{Path: path, OID: id, Mode: filemode.Regular}
}

func TestAddAndLookup(t *testing.T) {
	idx := newTestIndex()
	idx.Add(entryAt("a.txt", 1))

	e, ok := idx.EntryByPath("a.txt")
	require.True(t, ok)
	assert.Equal(t, "a.txt", e.Path)
}

func TestAddEvictsAncestorFileEntry(t *testing.T) {
	idx := newTestIndex()
	idx.Add(entryAt("foo", 1))
	idx.Add(entryAt("foo/bar", 2))

	_, ok := idx.EntryByPath("foo")
	assert.False(t, ok, "foo should have been evicted by foo/bar")

	_, ok = idx.EntryByPath("foo/bar")
	assert.True(t, ok)
}

func TestAddEvictsDescendantEntries(t *testing.T) {
	idx := newTestIndex()
	idx.Add(entryAt("foo/bar", 1))
	idx.Add(entryAt("foo/baz", 2))
	idx.Add(entryAt("foo", 3))

	_, ok := idx.EntryByPath("foo/bar")
	assert.False(t, ok)
	_, ok = idx.EntryByPath("foo/baz")
	assert.False(t, ok)

	e, ok := idx.EntryByPath("foo")
	require.True(t, ok)
	assert.Equal(t, "foo", e.Path)
}

func TestIsDirectlyTracked(t *testing.T) {
	idx := newTestIndex()
	idx.Add(entryAt("a/b/c", 1))

	assert.True(t, idx.IsDirectlyTracked("a"))
	assert.True(t, idx.IsDirectlyTracked("a/b"))
	assert.True(t, idx.IsDirectlyTracked("a/b/c"))
	assert.False(t, idx.IsDirectlyTracked("x"))
}

func TestRemoveClearsChildrenTable(t *testing.T) {
	idx := newTestIndex()
	idx.Add(entryAt("a/b", 1))
	idx.Add(entryAt("a/c", 2))

	idx.Remove("a")

	assert.False(t, idx.IsDirectlyTracked("a"))
	_, ok := idx.EntryByPath("a/b")
	assert.False(t, ok)
	_, ok = idx.EntryByPath("a/c")
	assert.False(t, ok)
}

func TestEntriesSortedByPath(t *testing.T) {
	idx := newTestIndex()
	idx.Add(entryAt("z.txt", 1))
	idx.Add(entryAt("a.txt", 2))
	idx.Add(entryAt("m.txt", 3))

	entries := idx.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"a.txt", "m.txt", "z.txt"}, []string{
		entries[0].Path, entries[1].Path, entries[2].Path,
	})
}

func TestUpdateEntryStatLeavesOIDUnchanged(t *testing.T) {
	idx := newTestIndex()
	idx.Add(entryAt("a.txt", 1))

	err := idx.UpdateEntryStat("a.txt", Stat{Size: 42, MtimeSeconds: 100})
	require.NoError(t, err)

	e, ok := idx.EntryByPath("a.txt")
	require.True(t, ok)
	assert.Equal(t, uint32(42), e.Stat.Size)
	assert.Equal(t, entryAt("a.txt", 1).OID, e.OID)
}

func TestUpdateEntryStatMissingPathErrors(t *testing.T) {
	idx := newTestIndex()
	err := idx.UpdateEntryStat("missing", Stat{})
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestWriteUpdatesThenRehydrateRoundTrip(t *testing.T) {
	fs := memfs.New()
	idx := New(fs, ".", "index")
	idx.Add(entryAt("a.txt", 1))
	idx.Add(entryAt("dir/b.txt", 2))

	require.NoError(t, idx.WriteUpdates())

	reloaded := New(fs, ".", "index")
	require.NoError(t, reloaded.Rehydrate())

	entries := reloaded.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[0].Path)
	assert.Equal(t, "dir/b.txt", entries[1].Path)
	assert.True(t, reloaded.IsDirectlyTracked("dir"))
}

func TestRehydrateMissingFileClearsState(t *testing.T) {
	idx := newTestIndex()
	idx.Add(entryAt("a.txt", 1))

	require.NoError(t, idx.Rehydrate())

	_, ok := idx.EntryByPath("a.txt")
	assert.False(t, ok)
}

func TestEntriesUnderPath(t *testing.T) {
	idx := newTestIndex()
	idx.Add(entryAt("a/b", 1))
	idx.Add(entryAt("a/c", 2))
	idx.Add(entryAt("z", 3))

	under := idx.EntriesUnderPath("a")
	assert.Equal(t, []string{"a/b", "a/c"}, under)

	all := idx.EntriesUnderPath(".")
	assert.Equal(t, []string{"a/b", "a/c", "z"}, all)
}
