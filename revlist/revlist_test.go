package revlist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-vcs/strata/plumbing"
	"github.com/strata-vcs/strata/plumbing/object"
	"github.com/strata-vcs/strata/plumbing/revision"
)

type fakeRefs map[string]plumbing.ObjectID

func (f fakeRefs) ReadRef(name string) (plumbing.ObjectID, error) {
	id, ok := f[name]
	if !ok {
		return plumbing.ZeroOID, revision.ErrUnknownRevision
	}
	return id, nil
}

type fakeObjects struct {
	objs map[plumbing.ObjectID]object.Object
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objs: make(map[plumbing.ObjectID]object.Object)}
}

func (f *fakeObjects) FindByPrefix(prefix string) ([]plumbing.ObjectID, error) {
	var matches []plumbing.ObjectID
	for id := range f.objs {
		if id.HasPrefix(prefix) {
			matches = append(matches, id)
		}
	}
	return matches, nil
}

func (f *fakeObjects) GetType(id plumbing.ObjectID) (plumbing.ObjectType, error) {
	obj, ok := f.objs[id]
	if !ok {
		return plumbing.InvalidObject, revision.ErrUnknownRevision
	}
	return obj.Type(), nil
}

func (f *fakeObjects) Parse(id plumbing.ObjectID) (object.Object, error) {
	obj, ok := f.objs[id]
	if !ok {
		return nil, revision.ErrUnknownRevision
	}
	return obj, nil
}

// add registers a synthetic commit named by a single byte (for a
// deterministic, readable object id) at the given second offset.
func (f *fakeObjects) add(label byte, seconds int64, parents ...plumbing.ObjectID) plumbing.ObjectID {
	var id plumbing.ObjectID
	id[19] = label
	c := &object.Commit{
		Hash:      id,
		Parents:   parents,
		Committer: object.Signature{When: time.Unix(seconds, 0).UTC()},
	}
	f.objs[id] = c
	return id
}

func newRevList(objs *fakeObjects, refs fakeRefs) *RevList {
	resolver := &revision.Resolver{Refs: refs, Objects: objs}
	return New(objs, resolver)
}

// Linear history: A <- B <- C <- D
func TestWalkSimpleInclusion(t *testing.T) {
	objs := newFakeObjects()
	a := objs.add(1, 100)
	b := objs.add(2, 200, a)
	c := objs.add(3, 300, b)
	d := objs.add(4, 400, c)

	rl := newRevList(objs, fakeRefs{"HEAD": d})

	got, err := rl.Walk([]Target{IncludedRevision{Rev: "HEAD"}})
	require.NoError(t, err)
	assert.Equal(t, []plumbing.ObjectID{d, c, b, a}, got)
}

func TestWalkExclusionRemovesAncestorSubtree(t *testing.T) {
	objs := newFakeObjects()
	a := objs.add(1, 100)
	b := objs.add(2, 200, a)
	c := objs.add(3, 300, b)
	d := objs.add(4, 400, c)

	rl := newRevList(objs, fakeRefs{"HEAD": d})

	got, err := rl.Walk([]Target{
		IncludedRevision{Rev: "HEAD"},
		ExcludedRevision{Rev: hexName(b)},
	})
	require.NoError(t, err)
	assert.Equal(t, []plumbing.ObjectID{d, c}, got)
}

func TestWalkRangeExpressionMatchesDesugaredForm(t *testing.T) {
	objs := newFakeObjects()
	a := objs.add(1, 100)
	b := objs.add(2, 200, a)
	c := objs.add(3, 300, b)
	d := objs.add(4, 400, c)

	rl := newRevList(objs, fakeRefs{"HEAD": d})

	rangeResult, err := rl.Walk([]Target{
		RangeExpression{Excluded: hexName(b), Included: "HEAD"},
	})
	require.NoError(t, err)

	desugared, err := rl.Walk([]Target{
		IncludedRevision{Rev: "HEAD"},
		ExcludedRevision{Rev: hexName(b)},
	})
	require.NoError(t, err)

	assert.Equal(t, desugared, rangeResult)
	assert.Equal(t, []plumbing.ObjectID{d, c}, rangeResult)
}

func TestWalkInjectsImplicitHEADWhenOnlyExclusionGiven(t *testing.T) {
	objs := newFakeObjects()
	a := objs.add(1, 100)
	b := objs.add(2, 200, a)
	c := objs.add(3, 300, b)

	rl := newRevList(objs, fakeRefs{"HEAD": c})

	got, err := rl.Walk([]Target{ExcludedRevision{Rev: hexName(a)}})
	require.NoError(t, err)
	assert.Equal(t, []plumbing.ObjectID{c, b}, got)
}

func TestWalkDiamondVisitsEachCommitOnce(t *testing.T) {
	objs := newFakeObjects()
	root := objs.add(1, 100)
	left := objs.add(2, 200, root)
	right := objs.add(3, 200, root)
	merged := objs.add(4, 300, left, right)

	rl := newRevList(objs, fakeRefs{"HEAD": merged})

	got, err := rl.Walk([]Target{IncludedRevision{Rev: "HEAD"}})
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, merged, got[0])
	assert.Contains(t, got, root)
	assert.Contains(t, got, left)
	assert.Contains(t, got, right)
}

func hexName(id plumbing.ObjectID) string {
	return id.String()
}
