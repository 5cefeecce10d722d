package repository

import (
	"strings"

	"github.com/strata-vcs/strata/index"
	"github.com/strata-vcs/strata/plumbing"
	"github.com/strata-vcs/strata/plumbing/filemode"
	"github.com/strata-vcs/strata/plumbing/object"
)

// Storer is the subset of Database WriteTree needs to mint tree objects.
type Storer interface {
	Store(obj object.Object) (plumbing.ObjectID, error)
}

// node is one level of the directory structure being assembled from a flat
// list of index entries before it is flattened into nested tree objects.
type node struct {
	files map[string]index.Entry
	dirs  map[string]*node
}

func newNode() *node {
	return &node{files: make(map[string]index.Entry), dirs: make(map[string]*node)}
}

// WriteTree turns the flat, path-keyed entries of a staging area into a
// nested hierarchy of tree objects, storing every level and returning the
// OID of the root. Children are stored before their parent so that a
// parent's entry can embed an OID that already exists in the database.
func WriteTree(store Storer, entries []index.Entry) (plumbing.ObjectID, error) {
	root := newNode()
	for _, e := range entries {
		insert(root, strings.Split(e.Path, "/"), e)
	}
	return storeNode(store, root)
}

// insert walks parts down into root, creating intermediate directory nodes
// as needed, and places entry at the leaf.
func insert(n *node, parts []string, entry index.Entry) {
	if len(parts) == 1 {
		n.files[parts[0]] = entry
		return
	}
	child, ok := n.dirs[parts[0]]
	if !ok {
		child = newNode()
		n.dirs[parts[0]] = child
	}
	insert(child, parts[1:], entry)
}

// storeNode recursively stores every subdirectory of n, then n itself, and
// returns n's OID.
func storeNode(store Storer, n *node) (plumbing.ObjectID, error) {
	builder := object.NewTreeBuilder()

	for name, entry := range n.files {
		builder.Add(name, entry.Mode, entry.OID)
	}
	for name, child := range n.dirs {
		oid, err := storeNode(store, child)
		if err != nil {
			return plumbing.ZeroOID, err
		}
		builder.Add(name, filemode.Dir, oid)
	}

	return store.Store(builder.Build())
}
