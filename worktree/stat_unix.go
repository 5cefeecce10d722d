//go:build linux || darwin || freebsd || netbsd || openbsd

package worktree

import (
	"golang.org/x/sys/unix"

	"github.com/strata-vcs/strata/index"
)

// fillSystemInfo populates dev/inode/uid/gid/ctime by stat(2)'ing fullPath
// directly through golang.org/x/sys/unix. This sidesteps the os.FileInfo.Sys()
// opaque interface{} (whose dynamic type is a private *syscall.Stat_t,
// unreachable by a clean type assertion across packages) and instead issues
// a second, explicit stat. Only meaningful when fullPath names a real
// on-disk file; callers pass "" when the backing filesystem has no real
// path (billy/memfs in tests), and fillSystemInfo is then a no-op, leaving
// these fields zero — tolerated by Entry.StatMatches. Ctime is read here,
// not derived from info.ModTime(), because it tracks inode metadata changes
// (e.g. a permission change) that never touch mtime — the same
// racy-index protection Entry.TimesMatch exists to provide.
func fillSystemInfo(stat *index.Stat, fullPath string) {
	if fullPath == "" {
		return
	}

	var st unix.Stat_t
	if err := unix.Stat(fullPath, &st); err != nil {
		return
	}

	stat.Dev = uint32(st.Dev)
	stat.Inode = uint32(st.Ino)
	stat.UID = st.Uid
	stat.GID = st.Gid
	stat.CtimeSeconds = uint32(st.Ctim.Sec)
	stat.CtimeNanoseconds = uint32(st.Ctim.Nsec)
}
