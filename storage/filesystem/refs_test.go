package filesystem

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-vcs/strata/plumbing"
)

func testOID(t *testing.T, s string) plumbing.ObjectID {
	t.Helper()
	id, err := plumbing.FromHex(s)
	require.NoError(t, err)
	return id
}

func TestRefStoreUnbornHEAD(t *testing.T) {
	store := NewRefStore(memfs.New(), ".meta")
	_, ok, err := store.ReadHEAD()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefStoreCreateBranchAndReadHEAD(t *testing.T) {
	store := NewRefStore(memfs.New(), ".meta")
	oid := testOID(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	require.NoError(t, store.CreateBranch("main", oid))
	require.NoError(t, store.SetHEAD("main", ""))

	got, ok, err := store.ReadHEAD()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, oid, got)

	name, attached, err := store.CurrentRef()
	require.NoError(t, err)
	assert.True(t, attached)
	assert.Equal(t, "refs/heads/main", name)
}

func TestRefStoreCreateBranchRejectsDuplicate(t *testing.T) {
	store := NewRefStore(memfs.New(), ".meta")
	oid := testOID(t, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	require.NoError(t, store.CreateBranch("main", oid))
	err := store.CreateBranch("main", oid)
	assert.ErrorIs(t, err, ErrBranchExists)
}

func TestRefStoreCreateBranchRejectsInvalidName(t *testing.T) {
	store := NewRefStore(memfs.New(), ".meta")
	oid := testOID(t, "cccccccccccccccccccccccccccccccccccccccc")
	err := store.CreateBranch("../escape", oid)
	assert.ErrorIs(t, err, ErrInvalidBranchName)
}

func TestRefStoreUpdateHEADFollowsSymbolicChain(t *testing.T) {
	store := NewRefStore(memfs.New(), ".meta")
	oid1 := testOID(t, "1111111111111111111111111111111111111111")
	oid2 := testOID(t, "2222222222222222222222222222222222222222")

	require.NoError(t, store.CreateBranch("main", oid1))
	require.NoError(t, store.SetHEAD("main", ""))
	require.NoError(t, store.UpdateHEAD(oid2))

	branchOID, err := store.ReadRef("refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, oid2, branchOID)
}

func TestRefStoreDetachedHEAD(t *testing.T) {
	store := NewRefStore(memfs.New(), ".meta")
	oid := testOID(t, "3333333333333333333333333333333333333333")

	require.NoError(t, store.SetHEAD("nonexistent-branch", oid.String()+"\n"))

	got, ok, err := store.ReadHEAD()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, oid, got)

	name, attached, err := store.CurrentRef()
	require.NoError(t, err)
	assert.False(t, attached)
	assert.Equal(t, headPath, name)
}

func TestRefStoreDeleteBranch(t *testing.T) {
	store := NewRefStore(memfs.New(), ".meta")
	oid := testOID(t, "4444444444444444444444444444444444444444")

	require.NoError(t, store.CreateBranch("feature/x", oid))
	got, err := store.DeleteBranch("feature/x")
	require.NoError(t, err)
	assert.Equal(t, oid, got)

	_, err = store.ReadRef("refs/heads/feature/x")
	assert.ErrorIs(t, err, ErrRefNotFound)
}

func TestRefStoreListAndReverseRefs(t *testing.T) {
	store := NewRefStore(memfs.New(), ".meta")
	oid := testOID(t, "5555555555555555555555555555555555555555")

	require.NoError(t, store.CreateBranch("main", oid))
	require.NoError(t, store.CreateBranch("dev", oid))

	names, err := store.ListBranches()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main", "dev"}, names)

	rev, err := store.ReverseRefs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main", "dev"}, rev[oid])
}

func TestValidBranchName(t *testing.T) {
	valid := []string{"main", "feature/x", "release-1.0"}
	invalid := []string{"", ".hidden", "/abs", "trailing/", "lock.lock", "a..b", "a/.b", "has@{at", "ba*d", "que?ry"}

	for _, name := range valid {
		assert.Truef(t, ValidBranchName(name), "expected %q to be valid", name)
	}
	for _, name := range invalid {
		assert.Falsef(t, ValidBranchName(name), "expected %q to be invalid", name)
	}
}
