package revision

import (
	"errors"
	"fmt"
	"strings"

	"github.com/strata-vcs/strata/plumbing"
	"github.com/strata-vcs/strata/plumbing/object"
)

// ErrUnknownRevision is returned when a base name resolves to neither an
// existing ref nor a valid, existing object id.
var ErrUnknownRevision = errors.New("unknown revision")

// ErrAmbiguous is returned when an abbreviated OID matches more than one
// commit and cannot be disambiguated.
var ErrAmbiguous = errors.New("short object id is ambiguous")

// ErrNotACommit is returned when a resolved object is asked to behave like
// a commit (for Parent/Ancestor, or by ResolveCommit) but isn't one.
var ErrNotACommit = errors.New("object is not a commit")

// RefReader is the subset of RefStore the resolver needs.
type RefReader interface {
	ReadRef(name string) (plumbing.ObjectID, error)
}

// ObjectReader is the subset of Database the resolver needs.
type ObjectReader interface {
	FindByPrefix(prefix string) ([]plumbing.ObjectID, error)
	GetType(id plumbing.ObjectID) (plumbing.ObjectType, error)
	Parse(id plumbing.ObjectID) (object.Object, error)
}

// Resolver turns a parsed (or raw string) revision expression into an
// object id, consulting Refs first and falling back to OID-prefix
// resolution.
type Resolver struct {
	Refs    RefReader
	Objects ObjectReader
}

// ResolveString parses and resolves s in one step.
func (r *Resolver) ResolveString(s string) (plumbing.ObjectID, error) {
	expr, err := Parse(s)
	if err != nil {
		return plumbing.ZeroOID, err
	}
	return r.Resolve(expr)
}

// Resolve resolves a parsed expression to an object id.
func (r *Resolver) Resolve(expr Expr) (plumbing.ObjectID, error) {
	switch e := expr.(type) {
	case Ref:
		return r.resolveRef(e.Name)
	case Parent:
		id, err := r.Resolve(e.Inner)
		if err != nil {
			return plumbing.ZeroOID, err
		}
		return r.firstParent(id)
	case Ancestor:
		id, err := r.Resolve(e.Inner)
		if err != nil {
			return plumbing.ZeroOID, err
		}
		for i := 0; i < e.N; i++ {
			id, err = r.firstParent(id)
			if err != nil {
				return plumbing.ZeroOID, err
			}
		}
		return id, nil
	default:
		return plumbing.ZeroOID, fmt.Errorf("revision: unknown expression type %T", expr)
	}
}

// ResolveCommit resolves expr and rejects the result if it isn't a commit,
// per the commit-only rule required by branch creation, checkout, and log
// seeding.
func (r *Resolver) ResolveCommit(expr Expr) (plumbing.ObjectID, error) {
	id, err := r.Resolve(expr)
	if err != nil {
		return plumbing.ZeroOID, err
	}
	t, err := r.Objects.GetType(id)
	if err != nil {
		return plumbing.ZeroOID, err
	}
	if t != plumbing.CommitObject {
		return plumbing.ZeroOID, fmt.Errorf("%w: object %s is a %s, not a commit", ErrNotACommit, shortOID(id), t)
	}
	return id, nil
}

func (r *Resolver) firstParent(id plumbing.ObjectID) (plumbing.ObjectID, error) {
	obj, err := r.Objects.Parse(id)
	if err != nil {
		return plumbing.ZeroOID, err
	}
	commit, ok := obj.(*object.Commit)
	if !ok {
		return plumbing.ZeroOID, fmt.Errorf("%w: %s is a %s", ErrNotACommit, shortOID(id), obj.Type())
	}
	parent, ok := commit.FirstParent()
	if !ok {
		return plumbing.ZeroOID, fmt.Errorf("revision: %s has no parent", shortOID(id))
	}
	return parent, nil
}

func (r *Resolver) resolveRef(name string) (plumbing.ObjectID, error) {
	lookup := name
	if name == "@" {
		lookup = "HEAD"
	}

	id, err := r.Refs.ReadRef(lookup)
	if err == nil {
		return id, nil
	}

	if plumbing.IsValidHex(name) {
		return r.resolveOIDPrefix(name)
	}
	return plumbing.ZeroOID, fmt.Errorf("%w: %s", ErrUnknownRevision, name)
}

func (r *Resolver) resolveOIDPrefix(prefix string) (plumbing.ObjectID, error) {
	if len(prefix) == plumbing.HexSize {
		id, err := plumbing.FromHex(prefix)
		if err != nil {
			return plumbing.ZeroOID, fmt.Errorf("%w: %s", ErrUnknownRevision, prefix)
		}
		if _, err := r.Objects.GetType(id); err != nil {
			return plumbing.ZeroOID, fmt.Errorf("%w: %s", ErrUnknownRevision, prefix)
		}
		return id, nil
	}

	matches, err := r.Objects.FindByPrefix(prefix)
	if err != nil {
		return plumbing.ZeroOID, err
	}
	if len(matches) == 0 {
		return plumbing.ZeroOID, fmt.Errorf("%w: %s", ErrUnknownRevision, prefix)
	}
	if len(matches) == 1 {
		return matches[0], nil
	}

	commits := r.filterCommits(matches)
	if len(commits) == 1 {
		return commits[0], nil
	}

	candidates := commits
	if len(candidates) == 0 {
		candidates = matches
	}
	return plumbing.ZeroOID, r.ambiguousError(prefix, candidates)
}

func (r *Resolver) filterCommits(ids []plumbing.ObjectID) []plumbing.ObjectID {
	var commits []plumbing.ObjectID
	for _, id := range ids {
		if t, err := r.Objects.GetType(id); err == nil && t == plumbing.CommitObject {
			commits = append(commits, id)
		}
	}
	return commits
}

func (r *Resolver) ambiguousError(prefix string, candidates []plumbing.ObjectID) error {
	return &AmbiguousError{Prefix: prefix, Candidates: candidates}
}

// AmbiguousError reports an OID prefix that matches more than one object,
// rendering as a header line, a "hint: The candidates are:" line, and one
// "hint:" line per candidate.
type AmbiguousError struct {
	Prefix     string
	Candidates []plumbing.ObjectID
}

func (e *AmbiguousError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "short SHA1 %s is ambiguous", e.Prefix)
	fmt.Fprint(&b, "\nhint: The candidates are:")
	for _, id := range e.Candidates {
		fmt.Fprintf(&b, "\nhint:   %s commit", shortOID(id))
	}
	return b.String()
}

func (e *AmbiguousError) Unwrap() error { return ErrAmbiguous }

func shortOID(id plumbing.ObjectID) string {
	s := id.String()
	return s[:7]
}
