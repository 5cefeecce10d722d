// Package lockfile provides the advisory locking primitive shared by the
// index and ref store: an exclusive (or shared, for read paths) lock on a
// companion "<path>.lock" file, matching git's own lockfile convention.
//
// gofrs/flock locks real filesystem paths through the os package, which
// only makes sense when the backing billy.Filesystem is actually rooted on
// disk (osfs). Tests exercise the same code paths against billy/memfs, an
// in-memory filesystem with no real path for flock to lock. Lock resolves
// to a real gofrs/flock.Flock when fs exposes a non-empty on-disk Root, and
// falls back to a process-local mutex keyed by the lock path otherwise —
// sufficient for the single-process in-memory tests that use it, and never
// reached in a real on-disk repository.
package lockfile

import (
	"path/filepath"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/gofrs/flock"
)

// Locker is the minimal surface both the real and in-memory locks provide:
// an exclusive lock for writers, a shared lock for readers.
type Locker interface {
	Lock() error
	Unlock() error
	RLock() error
	RUnlock() error
}

var memoryLocks sync.Map // map[string]*sync.RWMutex

// New returns a Locker guarding lockPath (relative to fs's root).
func New(fs billy.Filesystem, lockPath string) Locker {
	type rooted interface{ Root() string }
	if r, ok := fs.(rooted); ok {
		if root := r.Root(); root != "" {
			return flock.New(filepath.Join(root, lockPath))
		}
	}

	actual, _ := memoryLocks.LoadOrStore(lockPath, &sync.RWMutex{})
	return &memoryLock{mu: actual.(*sync.RWMutex)}
}

type memoryLock struct {
	mu *sync.RWMutex
}

func (m *memoryLock) Lock() error {
	m.mu.Lock()
	return nil
}

func (m *memoryLock) Unlock() error {
	m.mu.Unlock()
	return nil
}

func (m *memoryLock) RLock() error {
	m.mu.RLock()
	return nil
}

func (m *memoryLock) RUnlock() error {
	m.mu.RUnlock()
	return nil
}
