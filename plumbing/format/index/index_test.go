package index

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-vcs/strata/plumbing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	idx := &Index{
		Version: SupportedVersion,
		Entries: []Entry{
			{
				MtimeSeconds: 1000,
				Dev:          4242,
				Inode:        424242,
				Mode:         0o100644,
				UID:          84,
				GID:          8484,
				Size:         42,
				Hash:         mustHash(t, "e25b29c8946e0e192fae2edc1dabf7be71e8ecf3"),
				Path:         "foo",
			},
			{
				MtimeSeconds: 2000,
				Mode:         0o100644,
				Size:         82,
				Path:         "bar",
			},
			{
				MtimeSeconds: 3000,
				Mode:         0o100644,
				Size:         1,
				Path:         strings.Repeat("z", 61),
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, idx))

	got, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, got.Entries, 3)

	assert.Equal(t, idx.Entries[0].Path, got.Entries[0].Path)
	assert.Equal(t, idx.Entries[0].Hash, got.Entries[0].Hash)
	assert.Equal(t, idx.Entries[0].Size, got.Entries[0].Size)
	assert.Equal(t, idx.Entries[1].Path, got.Entries[1].Path)
	assert.Equal(t, idx.Entries[2].Path, got.Entries[2].Path)
}

func TestDecodeRejectsBadSignature(t *testing.T) {
	buf := bytes.NewBufferString("XXXX")
	_, err := Decode(buf)
	assert.ErrorIs(t, err, ErrUnsupportedSignature)
}

func TestDecodeRejectsChecksumMismatch(t *testing.T) {
	idx := &Index{Version: SupportedVersion}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, idx))

	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	_, err := Decode(bytes.NewReader(corrupted))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func mustHash(t *testing.T, s string) plumbing.ObjectID {
	t.Helper()
	id, err := plumbing.FromHex(s)
	require.NoError(t, err)
	return id
}
