package index

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/strata-vcs/strata/plumbing"
)

// Decode reads a complete index file from r: the 12-byte header, each
// entry's fixed 62-byte prefix plus its NUL-terminated, NUL-padded path,
// and the trailing 20-byte SHA-1 checksum, which is verified against
// everything read before it.
func Decode(r io.Reader) (*Index, error) {
	br := bufio.NewReader(r)
	h := plumbing.NewHasher()
	tr := io.TeeReader(br, h)

	var sig [4]byte
	if _, err := io.ReadFull(tr, sig[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if sig != Signature {
		return nil, ErrUnsupportedSignature
	}

	version, err := readUint32(tr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if version != SupportedVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, version, SupportedVersion)
	}

	count, err := readUint32(tr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}

	idx := &Index{Version: version, Entries: make([]Entry, 0, count)}
	for i := uint32(0); i < count; i++ {
		e, err := decodeEntry(tr)
		if err != nil {
			return nil, fmt.Errorf("index: entry %d: %w", i, err)
		}
		idx.Entries = append(idx.Entries, e)
	}

	computed := h.Sum()
	var stored plumbing.ObjectID
	if _, err := io.ReadFull(br, stored[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if computed != stored {
		return nil, ErrChecksumMismatch
	}

	return idx, nil
}

func decodeEntry(r io.Reader) (Entry, error) {
	var e Entry
	var fixed [EntryFixedSize]byte
	written := 0

	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return e, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	written += EntryFixedSize

	e.CtimeSeconds = binary.BigEndian.Uint32(fixed[0:4])
	e.CtimeNanoseconds = binary.BigEndian.Uint32(fixed[4:8])
	e.MtimeSeconds = binary.BigEndian.Uint32(fixed[8:12])
	e.MtimeNanoseconds = binary.BigEndian.Uint32(fixed[12:16])
	e.Dev = binary.BigEndian.Uint32(fixed[16:20])
	e.Inode = binary.BigEndian.Uint32(fixed[20:24])
	e.Mode = binary.BigEndian.Uint32(fixed[24:28])
	e.UID = binary.BigEndian.Uint32(fixed[28:32])
	e.GID = binary.BigEndian.Uint32(fixed[32:36])
	e.Size = binary.BigEndian.Uint32(fixed[36:40])
	copy(e.Hash[:], fixed[40:60])
	e.Flags = binary.BigEndian.Uint16(fixed[60:62])

	var name []byte
	for {
		b, err := readByte(r)
		if err != nil {
			return e, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		written++
		if b == 0 {
			break
		}
		name = append(name, b)
	}
	e.Path = string(name)

	// Entries are padded with NULs so the fixed prefix + name + NUL(s) is a
	// multiple of 8 bytes; the terminator already consumed above counts as
	// the first padding NUL, so no further NULs follow when it lands on the
	// boundary.
	for written%8 != 0 {
		b, err := readByte(r)
		if err != nil {
			return e, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		if b != 0 {
			return e, fmt.Errorf("index: non-NUL padding byte after entry %q", e.Path)
		}
		written++
	}

	return e, nil
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
