// Package index implements the binary codec for the staging-area file: the
// fixed 12-byte header, the fixed-prefix-plus-name entry format, and the
// trailing SHA-1 checksum. It knows nothing about locking, directory
// conflicts, or the working tree — that lives one layer up, in package
// index (github.com/strata-vcs/strata/index), which this package's name
// deliberately mirrors the way the teacher's plumbing/format/index sits
// below its own higher-level worktree/index.go.
package index

import (
	"errors"

	"github.com/strata-vcs/strata/plumbing"
)

// Signature is the fixed 4-byte magic at the start of every index file.
var Signature = [4]byte{'D', 'I', 'R', 'C'}

// SupportedVersion is the only on-disk format version this codec reads or
// writes. Later extensions (cache-tree, resolve-undo, split-index,
// untracked-cache, fsmonitor) are out of scope.
const SupportedVersion uint32 = 2

// HeaderSize is the length in bytes of the fixed index header.
const HeaderSize = 12

// EntryFixedSize is the length in bytes of an entry's fixed-field prefix,
// before its NUL-terminated, NUL-padded path.
const EntryFixedSize = 62

// ChecksumSize is the length in bytes of the trailing SHA-1 over the
// header and all entries.
const ChecksumSize = plumbing.Size

var (
	// ErrUnsupportedSignature is returned when the leading 4 bytes are not "DIRC".
	ErrUnsupportedSignature = errors.New("index: unsupported signature")
	// ErrUnsupportedVersion is returned when the version field isn't SupportedVersion.
	ErrUnsupportedVersion = errors.New("index: unsupported version")
	// ErrChecksumMismatch is returned when the trailing SHA-1 doesn't match the content.
	ErrChecksumMismatch = errors.New("index: checksum mismatch")
	// ErrTruncated is returned when the file ends before a declared field or entry is complete.
	ErrTruncated = errors.New("index: truncated index file")
)

// Entry is the on-disk representation of one staged file: the fixed stat
// and identity fields plus its path. Higher layers attach no behavior to
// this type; it exists purely to round-trip through Encode/Decode.
type Entry struct {
	CtimeSeconds     uint32
	CtimeNanoseconds uint32
	MtimeSeconds     uint32
	MtimeNanoseconds uint32
	Dev              uint32
	Inode            uint32
	Mode             uint32
	UID              uint32
	GID              uint32
	Size             uint32
	Hash             plumbing.ObjectID
	Flags            uint16
	Path             string
}

// Index is the fully decoded contents of an index file: the entries in
// whatever order Decode found them (the higher layer is responsible for
// sorting before re-encoding; Encode itself does not re-sort, and the
// higher layer's Index.Entries returns entries sorted by path).
type Index struct {
	Version uint32
	Entries []Entry
}
