// Package filesystem implements the on-disk storage layer: the
// content-addressed object database and the reference store, both built
// atop a billy.Filesystem so the same code serves a real repository on disk
// and an in-memory one in tests.
package filesystem

import (
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-billy/v5"

	"github.com/strata-vcs/strata/plumbing"
	"github.com/strata-vcs/strata/plumbing/object"
)

// ErrObjectNotFound is returned by Load/Parse/GetType when no object exists
// for the given id.
var ErrObjectNotFound = errors.New("object not found")

const objectsDir = "objects"
const tempPrefix = "tmp-obj-"

// Database is the content-addressed object store. It owns one directory
// (conventionally a repository's "objects" directory) and never interprets
// object content beyond framing and type dispatch.
type Database struct {
	fs   billy.Filesystem
	root string
}

// NewDatabase returns a Database rooted at root within fs (fs.Join(root,
// "<2-hex>", "<38-hex>") is where a loose object for a given id lives).
func NewDatabase(fs billy.Filesystem, root string) *Database {
	return &Database{fs: fs, root: root}
}

func (d *Database) path(id plumbing.ObjectID) string {
	dir, file := id.Path()
	return d.fs.Join(d.root, dir, file)
}

func (d *Database) objectsRoot() string {
	return d.fs.Join(d.root)
}

// Store computes obj's framed form and OID, and writes it to disk if it is
// not already present. Content-addressed stores are idempotent: storing the
// same content twice is not an error. Returns the computed OID.
func (d *Database) Store(obj object.Object) (plumbing.ObjectID, error) {
	framed := object.Frame(obj)
	id := plumbing.ComputeHash(obj.Type(), obj.Encode())

	path := d.path(id)
	if _, err := d.fs.Stat(path); err == nil {
		return id, nil
	} else if !os.IsNotExist(err) {
		return id, fmt.Errorf("filesystem: stat %s: %w", path, err)
	}

	dir, _ := id.Path()
	if err := d.fs.MkdirAll(d.fs.Join(d.root, dir), 0o755); err != nil {
		return id, fmt.Errorf("filesystem: mkdir %s: %w", dir, err)
	}

	tmp, err := d.fs.TempFile(d.objectsRoot(), tempPrefix)
	if err != nil {
		return id, fmt.Errorf("filesystem: create temp object: %w", err)
	}
	tmpName := tmp.Name()

	if err := deflateTo(tmp, framed); err != nil {
		tmp.Close()
		d.fs.Remove(tmpName)
		return id, fmt.Errorf("filesystem: write object %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		d.fs.Remove(tmpName)
		return id, fmt.Errorf("filesystem: close temp object: %w", err)
	}

	if err := d.fs.Rename(tmpName, path); err != nil {
		d.fs.Remove(tmpName)
		return id, fmt.Errorf("filesystem: rename into place %s: %w", path, err)
	}

	return id, nil
}

// Load reads and inflates the object stored under id, returning its framed
// `<type> <len>\0<body>` bytes.
func (d *Database) Load(id plumbing.ObjectID) ([]byte, error) {
	f, err := d.fs.Open(d.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
		}
		return nil, fmt.Errorf("filesystem: open %s: %w", id, err)
	}
	defer f.Close()

	zr, err := zlib.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("filesystem: inflate %s: %w", id, err)
	}
	defer zr.Close()

	framed, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("filesystem: inflate %s: %w", id, err)
	}
	return framed, nil
}

// Parse loads and fully decodes the object stored under id.
func (d *Database) Parse(id plumbing.ObjectID) (object.Object, error) {
	framed, err := d.Load(id)
	if err != nil {
		return nil, err
	}
	obj, err := object.Decode(id, framed)
	if err != nil {
		return nil, fmt.Errorf("filesystem: decode %s: %w", id, err)
	}
	return obj, nil
}

// GetType loads and inflates the object under id and parses only its header
// to report its type, without decoding its body.
func (d *Database) GetType(id plumbing.ObjectID) (plumbing.ObjectType, error) {
	framed, err := d.Load(id)
	if err != nil {
		return plumbing.InvalidObject, err
	}
	t, _, _, err := object.ParseHeader(framed)
	if err != nil {
		return plumbing.InvalidObject, fmt.Errorf("filesystem: parse header %s: %w", id, err)
	}
	return t, nil
}

// Exists reports whether an object is stored under id.
func (d *Database) Exists(id plumbing.ObjectID) bool {
	_, err := d.fs.Stat(d.path(id))
	return err == nil
}

// FindByPrefix returns every stored object id whose hex representation
// begins with prefix. A prefix shorter than 2 hex characters forces a scan
// of all 256 fan-out directories; this is expected to be rare (interactive
// abbreviations are virtually always >= 4 chars).
func (d *Database) FindByPrefix(prefix string) ([]plumbing.ObjectID, error) {
	var dirs []string
	if len(prefix) >= 2 {
		dirs = []string{prefix[:2]}
	} else {
		entries, err := d.fs.ReadDir(d.objectsRoot())
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("filesystem: read objects dir: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() && len(e.Name()) == 2 {
				dirs = append(dirs, e.Name())
			}
		}
	}

	var rest string
	if len(prefix) > 2 {
		rest = prefix[2:]
	}

	var matches []plumbing.ObjectID
	for _, dir := range dirs {
		entries, err := d.fs.ReadDir(d.fs.Join(d.root, dir))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("filesystem: read fan-out dir %s: %w", dir, err)
		}
		for _, e := range entries {
			if !bytesHasPrefix(e.Name(), rest) {
				continue
			}
			id, err := plumbing.FromHex(dir + e.Name())
			if err != nil {
				continue
			}
			matches = append(matches, id)
		}
	}
	return matches, nil
}

func bytesHasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func deflateTo(w io.Writer, p []byte) error {
	zw := zlib.NewWriter(w)
	if _, err := zw.Write(p); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
