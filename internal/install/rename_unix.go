//go:build !windows

package install

import "os"

// atomicReplace renames tmp over dst. os.Rename is atomic on POSIX when
// both paths share a filesystem, which stageAndReplace guarantees by
// staging beside dst.
func atomicReplace(tmp, dst string) error {
	return os.Rename(tmp, dst)
}
