// Package revlist implements ancestry traversal with include/exclude
// semantics: the machinery behind "log A B ^C" and "log A..B".
package revlist

import (
	"fmt"

	"github.com/emirpasic/gods/trees/binaryheap"

	"github.com/strata-vcs/strata/plumbing"
	"github.com/strata-vcs/strata/plumbing/object"
	"github.com/strata-vcs/strata/plumbing/revision"
)

// Target is one entry of a RevList query: an inclusion, an exclusion, or a
// range that desugars to one of each.
type Target interface{ isTarget() }

// IncludedRevision walks history starting at, and including, Rev.
type IncludedRevision struct{ Rev string }

// ExcludedRevision removes Rev and everything reachable from it.
type ExcludedRevision struct{ Rev string }

// RangeExpression is "Excluded..Included", desugared to
// ExcludedRevision{Excluded} + IncludedRevision{Included}.
type RangeExpression struct{ Excluded, Included string }

func (IncludedRevision) isTarget() {}
func (ExcludedRevision) isTarget() {}
func (RangeExpression) isTarget()  {}

// CommitLoader is the subset of Database RevList needs.
type CommitLoader interface {
	Parse(id plumbing.ObjectID) (object.Object, error)
}

// RevList resolves Targets against a revision.Resolver and walks the
// resulting commit graph through loader.
type RevList struct {
	loader   CommitLoader
	resolver *revision.Resolver
}

// New returns a RevList reading commits through loader and resolving
// revision expressions through resolver.
func New(loader CommitLoader, resolver *revision.Resolver) *RevList {
	return &RevList{loader: loader, resolver: resolver}
}

type commitFlag uint8

const (
	seen commitFlag = 1 << iota
	added
	uninteresting
	stale
)

func (f commitFlag) has(flag commitFlag) bool { return f&flag == flag }
func (f commitFlag) excluded() bool           { return f.has(uninteresting) || f.has(stale) }

type heapNode struct {
	id   plumbing.ObjectID
	unix int64
}

func newHeap() *binaryheap.Heap {
	return binaryheap.NewWith(func(a, b interface{}) int {
		na, nb := a.(heapNode), b.(heapNode)
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

// Walk resolves targets and returns the commits reachable from any
// inclusion but not from any exclusion, newest first. When targets contains
// no inclusion at all, HEAD is injected as the implicit inclusion.
func (rl *RevList) Walk(targets []Target) ([]plumbing.ObjectID, error) {
	included, excluded := desugar(targets)
	if len(included) == 0 {
		included = []string{"HEAD"}
	}

	flags := make(map[plumbing.ObjectID]commitFlag)

	seedOne := func(rev string, flag commitFlag) error {
		id, err := rl.resolveCommit(rev)
		if err != nil {
			return err
		}
		flags[id] = flags[id] | flag | seen
		return nil
	}

	for _, rev := range included {
		if err := seedOne(rev, 0); err != nil {
			return nil, err
		}
	}
	for _, rev := range excluded {
		if err := seedOne(rev, uninteresting); err != nil {
			return nil, err
		}
	}

	heap, err := rl.seedHeap(flags)
	if err != nil {
		return nil, err
	}

	var result []plumbing.ObjectID
	for {
		raw, ok := heap.Pop()
		if !ok {
			break
		}
		n := raw.(heapNode)
		cur := flags[n.id]
		if cur.has(added) {
			continue
		}
		cur |= added
		flags[n.id] = cur

		if !cur.excluded() {
			result = append(result, n.id)
		}

		c, err := rl.commit(n.id)
		if err != nil {
			return nil, err
		}

		for _, parentID := range c.Parents {
			before := flags[parentID]
			after := before | seen
			if cur.excluded() {
				after |= stale
			}
			if after == before && before.has(seen) {
				continue
			}

			parent, err := rl.commit(parentID)
			if err != nil {
				return nil, err
			}
			flags[parentID] = after
			heap.Push(heapNode{id: parentID, unix: parent.Committer.When.Unix()})
		}
	}

	return result, nil
}

// seedHeap builds the initial heap from flags' keys, reading each seed
// commit once to learn its committer time.
func (rl *RevList) seedHeap(flags map[plumbing.ObjectID]commitFlag) (*binaryheap.Heap, error) {
	heap := newHeap()
	for id := range flags {
		c, err := rl.commit(id)
		if err != nil {
			return nil, err
		}
		heap.Push(heapNode{id: id, unix: c.Committer.When.Unix()})
	}
	return heap, nil
}

func (rl *RevList) commit(id plumbing.ObjectID) (*object.Commit, error) {
	obj, err := rl.loader.Parse(id)
	if err != nil {
		return nil, err
	}
	c, ok := obj.(*object.Commit)
	if !ok {
		return nil, fmt.Errorf("revlist: %s is a %s, not a commit", id, obj.Type())
	}
	return c, nil
}

func (rl *RevList) resolveCommit(rev string) (plumbing.ObjectID, error) {
	return rl.resolver.ResolveString(rev)
}

// desugar splits targets into their included and excluded revision
// strings, expanding each RangeExpression into one of each.
func desugar(targets []Target) (included, excluded []string) {
	for _, t := range targets {
		switch v := t.(type) {
		case IncludedRevision:
			included = append(included, v.Rev)
		case ExcludedRevision:
			excluded = append(excluded, v.Rev)
		case RangeExpression:
			excluded = append(excluded, v.Excluded)
			included = append(included, v.Included)
		}
	}
	return included, excluded
}
