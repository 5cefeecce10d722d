// Package plumbing implements the low-level identifiers and types shared by
// every other package in the module: object identity, object type tags, and
// file modes.
package plumbing

import (
	"bytes"
	"encoding/hex"
	"errors"
	"hash"
	"sort"
	"strconv"

	"github.com/pjbgf/sha1cd"
)

// Size is the number of raw bytes in an ObjectID.
const Size = 20

// HexSize is the length of an ObjectID's full hexadecimal representation.
const HexSize = Size * 2

// ErrInvalidHash is returned when a string cannot be parsed as a 40-character
// hexadecimal object id.
var ErrInvalidHash = errors.New("invalid object id")

// ObjectID is the 20-byte SHA-1 identity of a stored object. The zero value
// represents "no object" and is used as a sentinel (e.g. a commit's missing
// parent, or a tree entry for a deleted path) throughout the package.
type ObjectID [Size]byte

// ZeroOID is the all-zero ObjectID, used as a "no object" sentinel.
var ZeroOID ObjectID

// FromHex parses a full 40-character hexadecimal string into an ObjectID.
func FromHex(s string) (ObjectID, error) {
	var id ObjectID
	if len(s) != HexSize {
		return id, ErrInvalidHash
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, ErrInvalidHash
	}
	copy(id[:], b)
	return id, nil
}

// IsValidHex reports whether s is a syntactically valid abbreviation (4-40
// hex characters) or full object id. It performs no existence check.
func IsValidHex(s string) bool {
	if len(s) < 4 || len(s) > HexSize {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}

// String returns the 40-character lowercase hexadecimal representation.
func (id ObjectID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero ObjectID.
func (id ObjectID) IsZero() bool {
	return id == ZeroOID
}

// Bytes returns the raw 20-byte identity.
func (id ObjectID) Bytes() []byte {
	return id[:]
}

// Compare orders two object ids by their raw bytes, as bytes.Compare does.
func (id ObjectID) Compare(other ObjectID) int {
	return bytes.Compare(id[:], other[:])
}

// Path returns the on-disk loose-object path for id, split as the first two
// hex characters (the fan-out directory) and the remaining 38.
func (id ObjectID) Path() (dir, file string) {
	s := id.String()
	return s[0:2], s[2:]
}

// HasPrefix reports whether id's hex representation begins with prefix.
// prefix is assumed already lowercase hex.
func (id ObjectID) HasPrefix(prefix string) bool {
	s := id.String()
	return len(prefix) <= len(s) && s[:len(prefix)] == prefix
}

// Hasher accumulates the framed `<type> <len>\0<body>` bytes of an object and
// produces its ObjectID. It wraps the collision-detecting SHA-1
// implementation used throughout the module so every hash computed over
// object or index content goes through the same algorithm.
type Hasher struct {
	h hash.Hash
}

// NewHasher returns a ready-to-write Hasher.
func NewHasher() *Hasher {
	return &Hasher{h: sha1cd.New()}
}

// Write implements io.Writer.
func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// Sum returns the ObjectID of everything written so far, without consuming
// the hasher's state.
func (h *Hasher) Sum() ObjectID {
	var id ObjectID
	copy(id[:], h.h.Sum(nil))
	return id
}

// ComputeHash hashes the framed representation of an object directly,
// without requiring callers to drive a Hasher by hand.
func ComputeHash(t ObjectType, content []byte) ObjectID {
	h := NewHasher()
	h.Write(t.Bytes())
	h.Write([]byte(" "))
	h.Write([]byte(strconv.Itoa(len(content))))
	h.Write([]byte{0})
	h.Write(content)
	return h.Sum()
}

// SortHashes sorts a slice of ObjectIDs in ascending byte order.
func SortHashes(ids []ObjectID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Compare(ids[j]) < 0
	})
}
