package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-vcs/strata/index"
	"github.com/strata-vcs/strata/merge"
	"github.com/strata-vcs/strata/plumbing"
	"github.com/strata-vcs/strata/plumbing/filemode"
	"github.com/strata-vcs/strata/plumbing/object"
	"github.com/strata-vcs/strata/plumbing/revision"
	"github.com/strata-vcs/strata/revlist"
	"github.com/strata-vcs/strata/worktree"
)

func newScenarioRepo(t *testing.T) *Repository {
	t.Helper()
	repo := Open(memfs.New(), ".")
	require.NoError(t, repo.Init("main"))
	return repo
}

// stage writes content into the workspace, stores it as a blob, and adds it
// to the index — the moral equivalent of `add`.
func stage(t *testing.T, repo *Repository, path, content string) {
	t.Helper()
	require.NoError(t, repo.Workspace.WriteFile(path, []byte(content), filemode.Regular))
	oid, err := repo.Database.Store(&object.Blob{Content: []byte(content)})
	require.NoError(t, err)
	stat, mode, err := repo.Workspace.StatFile(path)
	require.NoError(t, err)
	repo.Index.Add(index.Entry{Path: path, OID: oid, Mode: mode, Stat: stat})
}

func unstageRemove(repo *Repository, path string) {
	repo.Index.Remove(path)
}

func commit(t *testing.T, repo *Repository, message string) plumbing.ObjectID {
	t.Helper()
	author := object.Signature{Name: "Test User", Email: "test@example.com", When: time.Unix(1700000000, 0).In(time.UTC)}
	oid, err := repo.CreateCommit(CommitOptions{Message: message, Author: &author, Committer: &author})
	require.NoError(t, err)
	return oid
}

// Scenario: stage two files, commit, delete one, commit again, and confirm
// checking out the first commit restores the deleted file.
func TestScenarioAddDeleteCommitRoundTrip(t *testing.T) {
	repo := newScenarioRepo(t)

	stage(t, repo, "keep.txt", "keep me")
	stage(t, repo, "drop.txt", "drop me")
	first := commit(t, repo, "add two files")

	unstageRemove(repo, "drop.txt")
	require.NoError(t, repo.Workspace.Remove("drop.txt"))
	second := commit(t, repo, "drop one file")

	firstObj, err := repo.Database.Parse(first)
	require.NoError(t, err)
	secondObj, err := repo.Database.Parse(second)
	require.NoError(t, err)
	assert.NotEqual(t, firstObj.(*object.Commit).Tree, secondObj.(*object.Commit).Tree)

	require.NoError(t, repo.Checkout(first))
	content, err := repo.Workspace.ReadFile("drop.txt")
	require.NoError(t, err)
	assert.Equal(t, "drop me", string(content))
}

// Scenario: resolve an abbreviated OID and use it to create a branch.
func TestScenarioAbbreviatedOIDBranchCreation(t *testing.T) {
	repo := newScenarioRepo(t)

	stage(t, repo, "a.txt", "hello")
	oid := commit(t, repo, "initial")

	short := oid.String()[:8]
	resolved, err := repo.Resolve(short)
	require.NoError(t, err)
	assert.Equal(t, oid, resolved)

	require.NoError(t, repo.Refs.CreateBranch("feature", resolved))
	branchOID, err := repo.Refs.ReadRef("refs/heads/feature")
	require.NoError(t, err)
	assert.Equal(t, oid, branchOID)
}

// Scenario: an abbreviated OID that matches more than one commit is
// rejected rather than silently picking one. Exercised directly against a
// resolver over stub implementations, since forcing a genuine SHA-1 prefix
// collision between two real commits isn't practical in a test.
func TestScenarioAmbiguousPrefixRejection(t *testing.T) {
	refs := stubRefs{}
	objs := newStubObjects()
	a := objs.addCommit(t, "aaaaaaaa11111111111111111111111111111111", 1000)
	b := objs.addCommit(t, "aaaaaaaa22222222222222222222222222222222", 1000)

	resolver := &revision.Resolver{Refs: refs, Objects: objs}
	_, err := resolver.ResolveString("aaaaaaaa")
	require.Error(t, err)

	var ambErr *revision.AmbiguousError
	require.ErrorAs(t, err, &ambErr)
	_ = a
	_ = b
}

// Scenario: editing a tracked file on disk without staging the change, then
// checking out a commit that touches the same path, is refused rather than
// silently discarding the edit.
func TestScenarioCheckoutConflictOnStaleFile(t *testing.T) {
	repo := newScenarioRepo(t)

	stage(t, repo, "a.txt", "v1")
	first := commit(t, repo, "v1")

	stage(t, repo, "a.txt", "v2")
	second := commit(t, repo, "v2")

	require.NoError(t, repo.Checkout(first))

	require.NoError(t, repo.Workspace.WriteFile("a.txt", []byte("locally edited"), filemode.Regular))

	err := repo.Checkout(second)
	require.Error(t, err)

	var conflictErr *worktree.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, []string{"a.txt"}, conflictErr.Paths(worktree.StaleFile))
}

// Scenario: a criss-cross merge topology (l2 merges l1 and r1, r2 merges r1
// and l1) yields exactly the non-redundant common ancestors l1 and r1 of the
// two tips; neither merge commit is an ancestor of both tips, and root is an
// ancestor of both l1 and r1.
func TestScenarioCrissCrossBestCommonAncestors(t *testing.T) {
	objs := newStubObjects()

	root := objs.addCommit(t, "", 1000)
	l1 := objs.addCommit(t, "", 1100, root)
	r1 := objs.addCommit(t, "", 1100, root)
	l2 := objs.addCommit(t, "", 1200, l1, r1)
	r2 := objs.addCommit(t, "", 1200, r1, l1)
	leftTip := objs.addCommit(t, "", 1300, l2)
	rightTip := objs.addCommit(t, "", 1300, r2)

	finder := merge.NewFinder(objs)
	bases, err := finder.BestCommonAncestors(leftTip, rightTip)
	require.NoError(t, err)

	assert.ElementsMatch(t, []plumbing.ObjectID{l1, r1}, bases)
}

// Scenario: RevList excludes everything reachable from an excluded tip,
// even when it shares ancestry with an included one.
func TestScenarioLogExclusion(t *testing.T) {
	repo := newScenarioRepo(t)

	stage(t, repo, "a.txt", "1")
	base := commit(t, repo, "base")

	require.NoError(t, repo.Refs.CreateBranch("old", base))

	stage(t, repo, "b.txt", "2")
	tip := commit(t, repo, "feature work")

	resolver := &revision.Resolver{Refs: repo.Refs, Objects: repo.Database}
	rl := revlist.New(repo.Database, resolver)

	ids, err := rl.Walk([]revlist.Target{
		revlist.IncludedRevision{Rev: tip.String()},
		revlist.ExcludedRevision{Rev: "refs/heads/old"},
	})
	require.NoError(t, err)

	assert.Equal(t, []plumbing.ObjectID{tip}, ids)
}

type stubRefs map[string]plumbing.ObjectID

func (s stubRefs) ReadRef(name string) (plumbing.ObjectID, error) {
	id, ok := s[name]
	if !ok {
		return plumbing.ZeroOID, fmt.Errorf("stubRefs: %s not found", name)
	}
	return id, nil
}

type stubObjects struct {
	byID     map[plumbing.ObjectID]object.Object
	byPrefix map[string][]plumbing.ObjectID
}

func newStubObjects() *stubObjects {
	return &stubObjects{byID: make(map[plumbing.ObjectID]object.Object), byPrefix: make(map[string][]plumbing.ObjectID)}
}

func (s *stubObjects) FindByPrefix(prefix string) ([]plumbing.ObjectID, error) {
	return s.byPrefix[prefix], nil
}

func (s *stubObjects) GetType(id plumbing.ObjectID) (plumbing.ObjectType, error) {
	obj, ok := s.byID[id]
	if !ok {
		return 0, fmt.Errorf("stubObjects: %s not found", id)
	}
	return obj.Type(), nil
}

func (s *stubObjects) Parse(id plumbing.ObjectID) (object.Object, error) {
	obj, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("stubObjects: %s not found", id)
	}
	return obj, nil
}

// addCommit registers a synthetic commit under a fixed hex id (when hex is
// non-empty) or a hash derived from its timestamp, wiring it into the
// prefix index for ambiguity testing.
func (s *stubObjects) addCommit(t *testing.T, hex string, seconds int64, parents ...plumbing.ObjectID) plumbing.ObjectID {
	t.Helper()

	var id plumbing.ObjectID
	if hex != "" {
		parsed, err := plumbing.FromHex(hex)
		require.NoError(t, err)
		id = parsed
	} else {
		id = plumbing.ComputeHash(plumbing.CommitObject, []byte(fmt.Sprintf("%d-%v", seconds, parents)))
	}

	sig := object.Signature{Name: "t", Email: "t@t", When: time.Unix(seconds, 0).In(time.UTC)}
	c := &object.Commit{Hash: id, Parents: parents, Author: sig, Committer: sig}
	s.byID[id] = c

	hexStr := id.String()
	for n := 4; n <= len(hexStr); n++ {
		prefix := hexStr[:n]
		s.byPrefix[prefix] = append(s.byPrefix[prefix], id)
	}
	return id
}
