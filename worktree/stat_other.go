//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package worktree

import "github.com/strata-vcs/strata/index"

// fillSystemInfo is a no-op on platforms without a POSIX stat(2) (Windows,
// wasm); dev/inode/uid/gid stay zero, tolerated by Entry.StatMatches.
func fillSystemInfo(stat *index.Stat, fullPath string) {}
