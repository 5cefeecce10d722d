package filesystem

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-vcs/strata/plumbing"
	"github.com/strata-vcs/strata/plumbing/object"
)

func TestDatabaseStoreLoadParse(t *testing.T) {
	db := NewDatabase(memfs.New(), "objects")

	blob := object.NewBlob([]byte("hello world\n"))
	id, err := db.Store(blob)
	require.NoError(t, err)
	assert.False(t, id.IsZero())

	assert.True(t, db.Exists(id))

	typ, err := db.GetType(id)
	require.NoError(t, err)
	assert.Equal(t, plumbing.BlobObject, typ)

	parsed, err := db.Parse(id)
	require.NoError(t, err)
	got, ok := parsed.(*object.Blob)
	require.True(t, ok)
	assert.Equal(t, "hello world\n", string(got.Content))
}

func TestDatabaseStoreIsIdempotent(t *testing.T) {
	db := NewDatabase(memfs.New(), "objects")

	blob := object.NewBlob([]byte("same content"))
	id1, err := db.Store(blob)
	require.NoError(t, err)
	id2, err := db.Store(blob)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestDatabaseLoadMissing(t *testing.T) {
	db := NewDatabase(memfs.New(), "objects")
	_, err := db.Load(plumbing.ZeroOID)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestDatabaseFindByPrefix(t *testing.T) {
	db := NewDatabase(memfs.New(), "objects")

	id, err := db.Store(object.NewBlob([]byte("prefix test")))
	require.NoError(t, err)

	full := id.String()
	matches, err := db.FindByPrefix(full[:6])
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0])

	none, err := db.FindByPrefix("ffffff")
	require.NoError(t, err)
	assert.Empty(t, none)
}
