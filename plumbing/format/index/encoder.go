package index

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/strata-vcs/strata/plumbing"
)

// Encode writes idx to w in the on-disk format: header, entries in the
// order given (callers are responsible for sorting; see Index doc comment),
// each padded to a multiple of 8 bytes, followed by the trailing SHA-1
// checksum of everything written before it.
func Encode(w io.Writer, idx *Index) error {
	h := plumbing.NewHasher()
	mw := io.MultiWriter(w, h)

	if _, err := mw.Write(Signature[:]); err != nil {
		return err
	}
	if err := writeUint32(mw, idx.Version); err != nil {
		return err
	}
	if err := writeUint32(mw, uint32(len(idx.Entries))); err != nil {
		return err
	}

	for i, e := range idx.Entries {
		if err := encodeEntry(mw, e); err != nil {
			return fmt.Errorf("index: entry %d (%q): %w", i, e.Path, err)
		}
	}

	sum := h.Sum()
	if _, err := w.Write(sum[:]); err != nil {
		return err
	}
	return nil
}

func encodeEntry(w io.Writer, e Entry) error {
	var fixed [EntryFixedSize]byte
	binary.BigEndian.PutUint32(fixed[0:4], e.CtimeSeconds)
	binary.BigEndian.PutUint32(fixed[4:8], e.CtimeNanoseconds)
	binary.BigEndian.PutUint32(fixed[8:12], e.MtimeSeconds)
	binary.BigEndian.PutUint32(fixed[12:16], e.MtimeNanoseconds)
	binary.BigEndian.PutUint32(fixed[16:20], e.Dev)
	binary.BigEndian.PutUint32(fixed[20:24], e.Inode)
	binary.BigEndian.PutUint32(fixed[24:28], e.Mode)
	binary.BigEndian.PutUint32(fixed[28:32], e.UID)
	binary.BigEndian.PutUint32(fixed[32:36], e.GID)
	binary.BigEndian.PutUint32(fixed[36:40], e.Size)
	copy(fixed[40:60], e.Hash.Bytes())
	binary.BigEndian.PutUint16(fixed[60:62], e.Flags)

	if _, err := w.Write(fixed[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, e.Path); err != nil {
		return err
	}

	// total length including the mandatory terminator NUL, padded up to a
	// multiple of 8.
	total := EntryFixedSize + len(e.Path) + 1
	pad := total
	for pad%8 != 0 {
		pad++
	}
	nuls := make([]byte, pad-(total-1))
	if _, err := w.Write(nuls); err != nil {
		return err
	}
	return nil
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}
