package filesystem

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/strata-vcs/strata/internal/lockfile"
	"github.com/strata-vcs/strata/plumbing"
)

// maxSymbolicDepth bounds symbolic-ref chain resolution, the same MAXDEPTH
// convention git itself uses to guard against a cyclic or runaway chain.
const maxSymbolicDepth = 10

const headPath = "HEAD"
const headsDir = "refs/heads"
const refsDir = "refs"

var (
	// ErrRefNotFound is returned when a named reference does not exist.
	ErrRefNotFound = errors.New("reference not found")
	// ErrInvalidBranchName is returned by CreateBranch for a syntactically invalid name.
	ErrInvalidBranchName = errors.New("invalid branch name")
	// ErrBranchExists is returned by CreateBranch when the branch already exists.
	ErrBranchExists = errors.New("branch already exists")
	// ErrSymbolicRefTooDeep is returned when a symbolic-ref chain exceeds maxSymbolicDepth.
	ErrSymbolicRefTooDeep = errors.New("symbolic reference chain too deep")
)

// RefStore is the on-disk reference layer: HEAD, symbolic refs, and
// branches under refs/heads. It owns the repository's metadata directory
// root (conventionally ".git" or equivalent).
type RefStore struct {
	fs   billy.Filesystem
	root string
}

// NewRefStore returns a RefStore rooted at root within fs.
func NewRefStore(fs billy.Filesystem, root string) *RefStore {
	return &RefStore{fs: fs, root: root}
}

// ReadHEAD follows the symbolic-ref chain from HEAD and returns the
// terminal OID, or plumbing.ZeroOID with ok=false for an unborn branch
// (HEAD points at a branch ref that does not yet exist).
func (s *RefStore) ReadHEAD() (plumbing.ObjectID, bool, error) {
	_, oid, ok, err := s.resolve(headPath, maxSymbolicDepth)
	return oid, ok, err
}

// CurrentRef returns the terminal ref name of the symbolic chain starting
// at HEAD, and whether HEAD is attached (the chain passes through at least
// one symbolic ref before reaching a direct OID or an unborn file) versus
// detached (HEAD holds an OID directly).
func (s *RefStore) CurrentRef() (name string, attached bool, err error) {
	content, err := s.readFile(headPath)
	if err != nil {
		return "", false, err
	}
	target, isSymbolic := parseSymbolic(content)
	if !isSymbolic {
		return headPath, false, nil
	}
	terminalPath, _, _, err := s.resolve(target, maxSymbolicDepth)
	if err != nil {
		return "", false, err
	}
	return terminalPath, true, nil
}

// ReadRef searches for name at the repository root, under refs/, and under
// refs/heads/, in that order, following any symbolic-ref chain to a final
// OID.
func (s *RefStore) ReadRef(name string) (plumbing.ObjectID, error) {
	path, ok := s.locate(name)
	if !ok {
		return plumbing.ZeroOID, fmt.Errorf("%w: %s", ErrRefNotFound, name)
	}
	_, oid, ok, err := s.resolve(path, maxSymbolicDepth)
	if err != nil {
		return plumbing.ZeroOID, err
	}
	if !ok {
		return plumbing.ZeroOID, fmt.Errorf("%w: %s", ErrRefNotFound, name)
	}
	return oid, nil
}

// locate finds which of the three candidate paths for name exists.
func (s *RefStore) locate(name string) (string, bool) {
	for _, candidate := range []string{name, path.Join(refsDir, name), path.Join(headsDir, name)} {
		if _, err := s.fs.Stat(s.full(candidate)); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// CreateBranch validates name, ensures refs/heads/<name> does not already
// exist, and writes oid atomically.
func (s *RefStore) CreateBranch(name string, oid plumbing.ObjectID) error {
	if !ValidBranchName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidBranchName, name)
	}

	refPath := path.Join(headsDir, name)
	if _, err := s.fs.Stat(s.full(refPath)); err == nil {
		return fmt.Errorf("%w: %s", ErrBranchExists, name)
	}

	return s.withLock(refPath, func() error {
		return s.writeFile(refPath, oid.String()+"\n")
	})
}

// DeleteBranch removes the ref file for name and prunes any parent
// directories left empty, stopping at (and never removing) refs/heads
// itself.
func (s *RefStore) DeleteBranch(name string) (plumbing.ObjectID, error) {
	refPath := path.Join(headsDir, name)

	var oid plumbing.ObjectID
	err := s.withLock(refPath, func() error {
		var err error
		oid, err = s.ReadRef(refPath)
		if err != nil {
			return err
		}
		if err := s.fs.Remove(s.full(refPath)); err != nil {
			return fmt.Errorf("refstore: remove %s: %w", refPath, err)
		}
		s.pruneEmptyDirs(path.Dir(refPath))
		return nil
	})
	return oid, err
}

func (s *RefStore) pruneEmptyDirs(dir string) {
	for dir != "." && dir != "/" && dir != headsDir {
		entries, err := s.fs.ReadDir(s.full(dir))
		if err != nil || len(entries) > 0 {
			return
		}
		if err := s.fs.Remove(s.full(dir)); err != nil {
			return
		}
		dir = path.Dir(dir)
	}
}

// UpdateHEAD follows the symbolic chain starting at HEAD and writes oid at
// the terminal non-symbolic file (a detached HEAD is written directly).
func (s *RefStore) UpdateHEAD(oid plumbing.ObjectID) error {
	termPath, err := s.terminalPath(headPath)
	if err != nil {
		return err
	}
	return s.withLock(termPath, func() error {
		return s.writeFile(termPath, oid.String()+"\n")
	})
}

// SetHEAD points HEAD at refs/heads/<revision> if that branch exists,
// otherwise writes raw verbatim (used to pin a detached HEAD to an OID).
func (s *RefStore) SetHEAD(revision, raw string) error {
	branchPath := path.Join(headsDir, revision)
	if _, err := s.fs.Stat(s.full(branchPath)); err == nil {
		return s.withLock(headPath, func() error {
			return s.writeFile(headPath, fmt.Sprintf("ref: %s\n", branchPath))
		})
	}
	return s.withLock(headPath, func() error {
		return s.writeFile(headPath, raw)
	})
}

// ListBranches returns the names of every branch under refs/heads, in
// directory-walk order.
func (s *RefStore) ListBranches() ([]string, error) {
	var names []string
	err := s.walkRefs(headsDir, func(relPath string) {
		names = append(names, relPath)
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// ReverseRefs returns a map from commit OID to every branch name pointing
// at it, for log decoration.
func (s *RefStore) ReverseRefs() (map[plumbing.ObjectID][]string, error) {
	names, err := s.ListBranches()
	if err != nil {
		return nil, err
	}
	out := make(map[plumbing.ObjectID][]string, len(names))
	for _, name := range names {
		oid, err := s.ReadRef(path.Join(headsDir, name))
		if err != nil {
			continue
		}
		out[oid] = append(out[oid], name)
	}
	return out, nil
}

func (s *RefStore) walkRefs(dir string, visit func(relPath string)) error {
	entries, err := s.fs.ReadDir(s.full(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("refstore: read %s: %w", dir, err)
	}
	for _, e := range entries {
		child := path.Join(dir, e.Name())
		if e.IsDir() {
			if err := s.walkRefs(child, visit); err != nil {
				return err
			}
			continue
		}
		rel := strings.TrimPrefix(child, headsDir+"/")
		visit(rel)
	}
	return nil
}

// resolve follows the symbolic-ref chain starting at refPath, returning the
// terminal path, the resolved OID, and ok=false if the chain ends at a
// non-existent file (unborn branch).
func (s *RefStore) resolve(refPath string, depth int) (terminalPath string, oid plumbing.ObjectID, ok bool, err error) {
	if depth <= 0 {
		return "", plumbing.ZeroOID, false, ErrSymbolicRefTooDeep
	}

	content, err := s.readFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return refPath, plumbing.ZeroOID, false, nil
		}
		return "", plumbing.ZeroOID, false, err
	}

	target, isSymbolic := parseSymbolic(content)
	if isSymbolic {
		return s.resolve(target, depth-1)
	}

	id, err := plumbing.FromHex(strings.TrimSpace(content))
	if err != nil {
		return "", plumbing.ZeroOID, false, fmt.Errorf("refstore: %s: %w", refPath, err)
	}
	return refPath, id, true, nil
}

func (s *RefStore) terminalPath(refPath string) (string, error) {
	p, _, _, err := s.resolve(refPath, maxSymbolicDepth)
	if err != nil {
		return "", err
	}
	return p, nil
}

func (s *RefStore) full(relPath string) string {
	return s.fs.Join(s.root, relPath)
}

func (s *RefStore) readFile(relPath string) (string, error) {
	f, err := s.fs.Open(s.full(relPath))
	if err != nil {
		return "", err
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("refstore: read %s: %w", relPath, err)
	}
	return string(content), nil
}

// writeFile writes content to relPath using the temp-file-then-rename
// discipline, the same atomicity guarantee object writes use.
func (s *RefStore) writeFile(relPath, content string) error {
	dir := path.Dir(s.full(relPath))
	if dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("refstore: mkdir %s: %w", dir, err)
		}
	}

	tmp, err := s.fs.TempFile(dir, "tmp-ref-")
	if err != nil {
		return fmt.Errorf("refstore: create temp ref: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write([]byte(content)); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("refstore: write %s: %w", relPath, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("refstore: close temp ref: %w", err)
	}

	if err := s.fs.Rename(tmpName, s.full(relPath)); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("refstore: rename into place %s: %w", relPath, err)
	}
	return nil
}

// withLock guards a read-modify-write against relPath with an exclusive
// advisory lock on a sibling ".lock" file, matching git's own lockfile
// convention.
func (s *RefStore) withLock(relPath string, fn func() error) error {
	lockPath := s.full(relPath) + ".lock"
	if dir := path.Dir(lockPath); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("refstore: mkdir %s: %w", dir, err)
		}
	}

	fl := lockfile.New(s.fs, lockPath)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("refstore: lock %s: %w", relPath, err)
	}
	defer fl.Unlock()

	return fn()
}

func parseSymbolic(content string) (target string, ok bool) {
	line := strings.TrimSpace(content)
	if !strings.HasPrefix(line, "ref:") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "ref:")), true
}

// ValidBranchName reports whether name is an acceptable branch name per the
// restrictions git itself enforces (a conservative subset sufficient for
// this store's own writes and validation of externally-supplied names).
func ValidBranchName(name string) bool {
	if name == "" {
		return false
	}
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "/") {
		return false
	}
	if strings.HasSuffix(name, "/") || strings.HasSuffix(name, ".lock") {
		return false
	}
	if strings.Contains(name, "..") || strings.Contains(name, "/.") || strings.Contains(name, "@{") {
		return false
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7F {
			return false
		}
		switch r {
		case '*', ':', '?', '[', '\\', '^', '~':
			return false
		}
	}
	return true
}
