// Package object implements the three stored object kinds (blob, tree,
// commit) and their `<type> <len>\0<body>` framing. The graph algorithms
// that operate on them live in the diff, merge and revlist packages.
package object

import "github.com/strata-vcs/strata/plumbing"

// Blob is an opaque byte sequence. It carries no structure of its own: the
// meaning of its bytes (text, binary, symlink target) is entirely up to the
// tree entry mode that references it.
type Blob struct {
	Hash    plumbing.ObjectID
	Content []byte
}

// NewBlob wraps content without computing its hash; callers that need the
// hash should go through Database.Store, which computes it as a side effect
// of framing.
func NewBlob(content []byte) *Blob {
	return &Blob{Content: content}
}

// Type implements Object.
func (b *Blob) Type() plumbing.ObjectType { return plumbing.BlobObject }

// ID implements Object.
func (b *Blob) ID() plumbing.ObjectID { return b.Hash }

// Encode implements Object: a blob's body is exactly its content.
func (b *Blob) Encode() []byte { return b.Content }

// DecodeBlob builds a Blob from an already-unframed body.
func DecodeBlob(id plumbing.ObjectID, body []byte) (*Blob, error) {
	return &Blob{Hash: id, Content: body}, nil
}
