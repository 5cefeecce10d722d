// Package filemode defines the small set of tree-entry mode values the
// object model understands and the octal string encoding used on disk, in
// tree bodies, and in the index.
package filemode

import (
	"fmt"
	"os"
	"strconv"
)

// FileMode is the octal mode recorded for a tree entry or index entry.
type FileMode uint32

const (
	// Empty is the mode of a path with no content (used only as a
	// "missing" sentinel when comparing tree sides; never written to disk).
	Empty FileMode = 0
	// Dir marks a tree entry that is itself a tree.
	Dir FileMode = 0o40000
	// Regular is a non-executable file.
	Regular FileMode = 0o100644
	// Deprecated is an old non-executable mode some historic tools wrote;
	// recognized on decode, never produced by this module.
	Deprecated FileMode = 0o100664
	// Executable is a file with the owner execute bit set.
	Executable FileMode = 0o100755
	// Symlink is a symbolic link, stored as a blob holding the link target.
	// The checkout path never creates one; it is recognized so that decoding
	// a tree written by real git does not fail.
	Symlink FileMode = 0o120000
	// Submodule is a gitlink entry pointing at another repository's commit.
	// Submodules are a non-goal; recognized on decode only.
	Submodule FileMode = 0o160000
)

// New parses the octal mode text used in tree entries and `ls-tree`-style
// output. Unlike strconv.ParseUint it tolerates leading zero-padding and
// bare decimal-looking octal strings such as "40000".
func New(s string) (FileMode, error) {
	if s == "" {
		return Empty, fmt.Errorf("invalid file mode %q", s)
	}
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return Empty, fmt.Errorf("invalid file mode %q: %w", s, err)
	}
	return FileMode(n), nil
}

// String renders the mode as a zero-padded six-digit octal string, e.g.
// "100644" or "040000".
func (m FileMode) String() string {
	return fmt.Sprintf("%06o", uint32(m))
}

// IsRegular reports whether m is a non-directory, non-submodule mode
// (Regular, Executable, Deprecated, or Symlink).
func (m FileMode) IsRegular() bool {
	switch m {
	case Regular, Executable, Deprecated, Symlink:
		return true
	default:
		return false
	}
}

// IsExecutable reports whether m has the executable bit meaningful to this
// module's hashing equivalence (§3: "for hashing equivalence only the
// executable bit matters").
func (m FileMode) IsExecutable() bool {
	return m == Executable
}

// IsDir reports whether m names a tree (directory) entry.
func (m FileMode) IsDir() bool {
	return m == Dir
}

// FromOSFileMode derives the tree mode for a regular file or directory from
// its os.FileMode, following the executable-bit-only rule from §9: on
// platforms where a file's owner-execute bit is set, it is Executable;
// otherwise Regular. Directories map to Dir and symlinks to Symlink. Any
// other non-regular mode (device, pipe, ...) is reported as Empty since
// checkout never creates those.
func FromOSFileMode(mode os.FileMode) FileMode {
	switch {
	case mode.IsDir():
		return Dir
	case mode&os.ModeSymlink != 0:
		return Symlink
	case !mode.IsRegular():
		return Empty
	case mode&0o100 != 0:
		return Executable
	default:
		return Regular
	}
}

// ToOSFileMode returns the permission bits to apply with os.Chmod /
// billy.Chmod when writing a file of this mode to the workspace.
func (m FileMode) ToOSFileMode() os.FileMode {
	if m.IsExecutable() {
		return 0o755
	}
	return 0o644
}
