package object

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/strata-vcs/strata/plumbing"
	"github.com/strata-vcs/strata/plumbing/filemode"
)

// TreeEntry binds one path component to the mode and object it names.
type TreeEntry struct {
	Name string
	Mode filemode.FileMode
	Hash plumbing.ObjectID
}

// sortKey returns the name used for ordering: directory entries sort as if
// their name carried a trailing "/", so that "foo.txt" sorts before the
// directory "foo" (whose children would otherwise interleave with siblings
// named "foo<something>"). This matches git's own tree entry ordering.
func (e TreeEntry) sortKey() string {
	if e.Mode.IsDir() {
		return e.Name + "/"
	}
	return e.Name
}

// Tree is an ordered, read-only mapping from a single path component to the
// (mode, object id) of its child, as read back from storage. Entries are
// always held in the canonical sort order described in §3.
type Tree struct {
	Hash    plumbing.ObjectID
	Entries []TreeEntry
}

// Type implements Object.
func (t *Tree) Type() plumbing.ObjectType { return plumbing.TreeObject }

// ID implements Object.
func (t *Tree) ID() plumbing.ObjectID { return t.Hash }

// Entry looks up the entry for name, the single path component (no
// separators). The second return value is false if name is not a direct
// child of this tree.
func (t *Tree) Entry(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// Encode renders the tree body: the concatenation of
// `<octal-mode> <name>\0<20 raw hash bytes>` per entry, in sort order.
func (t *Tree) Encode() []byte {
	entries := make([]TreeEntry, len(t.Entries))
	copy(entries, t.Entries)
	sortEntries(entries)

	var buf []byte
	for _, e := range entries {
		buf = append(buf, strconv.FormatUint(uint64(e.Mode), 8)...)
		buf = append(buf, ' ')
		buf = append(buf, e.Name...)
		buf = append(buf, 0)
		buf = append(buf, e.Hash.Bytes()...)
	}
	return buf
}

func sortEntries(entries []TreeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].sortKey() < entries[j].sortKey()
	})
}

// DecodeTree parses a tree body into its ordered entries.
func DecodeTree(id plumbing.ObjectID, body []byte) (*Tree, error) {
	t := &Tree{Hash: id}
	for len(body) > 0 {
		sp := indexByte(body, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("corrupt tree %s: missing mode separator", id)
		}
		mode, err := filemode.New(string(body[:sp]))
		if err != nil {
			return nil, fmt.Errorf("corrupt tree %s: %w", id, err)
		}
		body = body[sp+1:]

		nul := indexByte(body, 0)
		if nul < 0 {
			return nil, fmt.Errorf("corrupt tree %s: missing name terminator", id)
		}
		name := string(body[:nul])
		if strings.ContainsRune(name, '/') {
			return nil, fmt.Errorf("corrupt tree %s: entry name %q contains a path separator", id, name)
		}
		body = body[nul+1:]

		if len(body) < plumbing.Size {
			return nil, fmt.Errorf("corrupt tree %s: truncated entry hash", id)
		}
		var oid plumbing.ObjectID
		copy(oid[:], body[:plumbing.Size])
		body = body[plumbing.Size:]

		t.Entries = append(t.Entries, TreeEntry{Name: name, Mode: mode, Hash: oid})
	}
	return t, nil
}

// TreeBuilder accumulates entries for a tree being constructed (e.g. from
// the index when making a commit) before it is written to storage. Keeping
// it as a distinct type from Tree means the in-progress, mutable side of a
// tree never aliases the immutable, storage-backed side (see SPEC_FULL.md
// §11, "Tree ownership").
type TreeBuilder struct {
	entries map[string]TreeEntry
}

// NewTreeBuilder returns an empty builder.
func NewTreeBuilder() *TreeBuilder {
	return &TreeBuilder{entries: make(map[string]TreeEntry)}
}

// Add inserts or replaces the entry for name.
func (b *TreeBuilder) Add(name string, mode filemode.FileMode, hash plumbing.ObjectID) {
	b.entries[name] = TreeEntry{Name: name, Mode: mode, Hash: hash}
}

// Len returns the number of entries accumulated so far.
func (b *TreeBuilder) Len() int {
	return len(b.entries)
}

// Build produces the immutable, sorted Tree (without a Hash; the caller
// hashes it via Database.Store, which is the only place an ObjectID is
// minted).
func (b *TreeBuilder) Build() *Tree {
	entries := make([]TreeEntry, 0, len(b.entries))
	for _, e := range b.entries {
		entries = append(entries, e)
	}
	sortEntries(entries)
	return &Tree{Entries: entries}
}
