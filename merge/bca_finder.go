// Package merge implements best-common-ancestor discovery: a bidirectional,
// timestamp-ordered walk of the commit graph that finds every common
// ancestor of two (or more) commits and then eliminates the ones that are
// themselves ancestors of another common ancestor.
package merge

import (
	"errors"
	"fmt"

	"github.com/emirpasic/gods/trees/binaryheap"

	"github.com/strata-vcs/strata/plumbing"
	"github.com/strata-vcs/strata/plumbing/object"
)

// ErrNotACommit is returned when a queried id does not name a commit.
var ErrNotACommit = errors.New("merge: object is not a commit")

// CommitLoader is the subset of Database the finder needs: full object
// parsing, so it can read a commit's parents and committer timestamp.
type CommitLoader interface {
	Parse(id plumbing.ObjectID) (object.Object, error)
}

// Finder computes best common ancestors over the commit graph reachable
// through loader.
type Finder struct {
	loader CommitLoader
}

// NewFinder returns a Finder reading commits through loader.
func NewFinder(loader CommitLoader) *Finder {
	return &Finder{loader: loader}
}

func (f *Finder) commit(id plumbing.ObjectID) (*object.Commit, error) {
	obj, err := f.loader.Parse(id)
	if err != nil {
		return nil, err
	}
	c, ok := obj.(*object.Commit)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s", ErrNotACommit, id, obj.Type())
	}
	return c, nil
}

// node is what the heap orders: a commit id plus its committer timestamp,
// so the comparator never needs to re-parse an object to compare two heap
// entries.
type node struct {
	id   plumbing.ObjectID
	unix int64
}

// newHeap returns a max-heap ordered by (timestamp, oid) descending, so the
// newest commit (ties broken by raw OID bytes for determinism) pops first.
func newHeap() *binaryheap.Heap {
	return binaryheap.NewWith(func(a, b interface{}) int {
		na, nb := a.(node), b.(node)
		switch {
		case na.unix != nb.unix:
			if na.unix > nb.unix {
				return -1
			}
			return 1
		default:
			return -na.id.Compare(nb.id)
		}
	})
}

// walk runs the bidirectional flag-propagation walk seeded with sources
// (flagged visitedFromSource) and targets (flagged visitedFromTarget), and
// returns the final flag map over every commit visited.
func (f *Finder) walk(sources, targets []plumbing.ObjectID) (map[plumbing.ObjectID]visitState, error) {
	flags := make(map[plumbing.ObjectID]visitState)
	heap := newHeap()
	pushed := make(map[plumbing.ObjectID]bool)

	seed := func(id plumbing.ObjectID, flag visitState) error {
		flags[id] = flags[id].with(flag)
		if pushed[id] {
			return nil
		}
		c, err := f.commit(id)
		if err != nil {
			return err
		}
		pushed[id] = true
		heap.Push(node{id: id, unix: c.Committer.When.Unix()})
		return nil
	}

	for _, id := range sources {
		if err := seed(id, visitedFromSource); err != nil {
			return nil, err
		}
	}
	for _, id := range targets {
		if err := seed(id, visitedFromTarget); err != nil {
			return nil, err
		}
	}

	for {
		raw, ok := heap.Pop()
		if !ok {
			break
		}
		n := raw.(node)
		cur := flags[n.id]
		if cur.has(stale) {
			continue
		}

		if cur.has(visitedFromBoth) {
			cur = cur.with(result)
			flags[n.id] = cur
		}

		sideFlags := cur & visitedFromBoth

		c, err := f.commit(n.id)
		if err != nil {
			return nil, err
		}

		for _, parentID := range c.Parents {
			before := flags[parentID]
			after := before.with(sideFlags)
			if cur.has(result) {
				after = after.with(stale)
			}
			if after == before {
				continue
			}
			flags[parentID] = after

			parent, err := f.commit(parentID)
			if err != nil {
				return nil, err
			}
			heap.Push(node{id: parentID, unix: parent.Committer.When.Unix()})
		}
	}

	return flags, nil
}

// commonAncestors is phase 1: every commit flagged Result and not Stale
// after the bidirectional walk from a and b.
func (f *Finder) commonAncestors(a, b plumbing.ObjectID) ([]plumbing.ObjectID, error) {
	flags, err := f.walk([]plumbing.ObjectID{a}, []plumbing.ObjectID{b})
	if err != nil {
		return nil, err
	}

	var out []plumbing.ObjectID
	for id, s := range flags {
		if s.has(result) && !s.has(stale) {
			out = append(out, id)
		}
	}
	plumbing.SortHashes(out)
	return out, nil
}

// removeRedundant is phase 2: for each candidate, walk with it as the sole
// source and every other candidate as targets. If the candidate itself
// ends up VisitedFromTarget, it is reachable from another candidate and is
// redundant; any other candidate that ends up VisitedFromSource is an
// ancestor of the one under test and is redundant too.
func (f *Finder) removeRedundant(candidates []plumbing.ObjectID) ([]plumbing.ObjectID, error) {
	if len(candidates) <= 1 {
		return candidates, nil
	}

	redundant := make(map[plumbing.ObjectID]bool)
	for _, c := range candidates {
		if redundant[c] {
			continue
		}
		var rest []plumbing.ObjectID
		for _, other := range candidates {
			if other != c && !redundant[other] {
				rest = append(rest, other)
			}
		}
		if len(rest) == 0 {
			continue
		}

		flags, err := f.walk([]plumbing.ObjectID{c}, rest)
		if err != nil {
			return nil, err
		}

		if flags[c].has(visitedFromTarget) {
			redundant[c] = true
			continue
		}
		for _, other := range rest {
			if flags[other].has(visitedFromSource) {
				redundant[other] = true
			}
		}
	}

	var survivors []plumbing.ObjectID
	for _, c := range candidates {
		if !redundant[c] {
			survivors = append(survivors, c)
		}
	}
	return survivors, nil
}

// BestCommonAncestors returns every non-redundant common ancestor of a and
// b, in ascending OID order. An empty, nil-error result means a and b share
// no history.
func (f *Finder) BestCommonAncestors(a, b plumbing.ObjectID) ([]plumbing.ObjectID, error) {
	candidates, err := f.commonAncestors(a, b)
	if err != nil {
		return nil, err
	}
	return f.removeRedundant(candidates)
}

// BestCommonAncestor returns one survivor (callers that only need a single
// merge base, not the full non-redundant set, can use this); ok is false
// when a and b are disjoint.
func (f *Finder) BestCommonAncestor(a, b plumbing.ObjectID) (id plumbing.ObjectID, ok bool, err error) {
	survivors, err := f.BestCommonAncestors(a, b)
	if err != nil {
		return plumbing.ZeroOID, false, err
	}
	if len(survivors) == 0 {
		return plumbing.ZeroOID, false, nil
	}
	return survivors[0], true, nil
}

// IsAncestor reports whether a is an ancestor of (or equal to) b.
func (f *Finder) IsAncestor(a, b plumbing.ObjectID) (bool, error) {
	if a == b {
		return true, nil
	}
	bca, ok, err := f.BestCommonAncestor(a, b)
	if err != nil {
		return false, err
	}
	return ok && bca == a, nil
}

// Independent drops any commit in ids that is reachable from another
// commit in ids, returning the remaining, pairwise-unrelated set.
func (f *Finder) Independent(ids []plumbing.ObjectID) ([]plumbing.ObjectID, error) {
	dropped := make(map[plumbing.ObjectID]bool)
	for i, a := range ids {
		if dropped[a] {
			continue
		}
		for j, b := range ids {
			if i == j || dropped[b] {
				continue
			}
			anc, err := f.IsAncestor(b, a)
			if err != nil {
				return nil, err
			}
			if anc && b != a {
				dropped[b] = true
			}
		}
	}

	var out []plumbing.ObjectID
	for _, id := range ids {
		if !dropped[id] {
			out = append(out, id)
		}
	}
	return out, nil
}
