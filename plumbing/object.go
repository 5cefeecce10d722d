package plumbing

import "errors"

// ErrObjectNotFound is returned when an object is not found in the database.
var ErrObjectNotFound = errors.New("object not found")

// ErrInvalidType is returned when an object header names an unrecognized type.
var ErrInvalidType = errors.New("invalid object type")

// ObjectType identifies the kind of a stored object. Only the three kinds
// named in the data model are meaningful here; packed/delta/tag kinds from
// the wire protocol have no representation since packfiles and tags are out
// of scope.
type ObjectType int8

const (
	// InvalidObject is the zero value and never appears in a stored object.
	InvalidObject ObjectType = iota
	// CommitObject identifies a commit object.
	CommitObject
	// TreeObject identifies a tree object.
	TreeObject
	// BlobObject identifies a blob object.
	BlobObject
)

// String returns the lowercase wire name of the type, as written in an
// object's header line.
func (t ObjectType) String() string {
	switch t {
	case CommitObject:
		return "commit"
	case TreeObject:
		return "tree"
	case BlobObject:
		return "blob"
	default:
		return "invalid"
	}
}

// Bytes returns the wire name as bytes, convenient for header framing.
func (t ObjectType) Bytes() []byte {
	return []byte(t.String())
}

// Valid reports whether t is one of the three object kinds this module
// understands.
func (t ObjectType) Valid() bool {
	return t >= CommitObject && t <= BlobObject
}

// ParseObjectType parses the wire name of an object type header.
func ParseObjectType(s string) (ObjectType, error) {
	switch s {
	case "commit":
		return CommitObject, nil
	case "tree":
		return TreeObject, nil
	case "blob":
		return BlobObject, nil
	default:
		return InvalidObject, ErrInvalidType
	}
}
