package object

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/strata-vcs/strata/plumbing"
)

// Object is the common surface of Blob, Tree, and Commit: anything the
// database can frame, hash, and store.
type Object interface {
	Type() plumbing.ObjectType
	ID() plumbing.ObjectID
	// Encode returns the object's body, i.e. the bytes that follow the
	// `<type> <len>\0` header in its framed form.
	Encode() []byte
}

// Frame renders obj's canonical on-disk representation: the header line
// `<type> <len>\0` followed by its body. The object's ID is the SHA-1 of
// exactly these bytes, uncompressed; Frame does not compute it — that is the
// caller's job (Database.Store does this once, to avoid framing twice).
func Frame(obj Object) []byte {
	body := obj.Encode()
	header := fmt.Sprintf("%s %d\x00", obj.Type(), len(body))
	out := make([]byte, 0, len(header)+len(body))
	out = append(out, header...)
	out = append(out, body...)
	return out
}

// ParseHeader splits a framed object's leading `<type> <len>\0` header from
// its body. It is also used by Database.GetType, which only needs the type
// token; the declared length is still checked against the full body.
func ParseHeader(framed []byte) (t plumbing.ObjectType, size int, body []byte, err error) {
	nul := indexByte(framed, 0)
	if nul < 0 {
		return plumbing.InvalidObject, 0, nil, fmt.Errorf("corrupt object header: missing NUL terminator")
	}
	header := string(framed[:nul])
	sp := strings.IndexByte(header, ' ')
	if sp < 0 {
		return plumbing.InvalidObject, 0, nil, fmt.Errorf("corrupt object header %q", header)
	}
	t, err = plumbing.ParseObjectType(header[:sp])
	if err != nil {
		return plumbing.InvalidObject, 0, nil, fmt.Errorf("corrupt object header %q: %w", header, err)
	}
	size, err = strconv.Atoi(header[sp+1:])
	if err != nil {
		return plumbing.InvalidObject, 0, nil, fmt.Errorf("corrupt object header %q: invalid length: %w", header, err)
	}
	body = framed[nul+1:]
	if len(body) != size {
		return plumbing.InvalidObject, 0, nil, fmt.Errorf("truncated object body: header declares %d bytes, got %d", size, len(body))
	}
	return t, size, body, nil
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

// Decode parses a framed object's body according to its declared type and
// assigns it the given id (the caller has already computed or looked up the
// hash; Decode never recomputes it).
func Decode(id plumbing.ObjectID, framed []byte) (Object, error) {
	t, _, body, err := ParseHeader(framed)
	if err != nil {
		return nil, err
	}

	switch t {
	case plumbing.BlobObject:
		return DecodeBlob(id, body)
	case plumbing.TreeObject:
		return DecodeTree(id, body)
	case plumbing.CommitObject:
		return DecodeCommit(id, body)
	default:
		return nil, plumbing.ErrInvalidType
	}
}
