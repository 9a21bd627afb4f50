//go:build windows

package install

import "golang.org/x/sys/windows"

// atomicReplace replaces dst with tmp via MoveFileEx's replace semantics.
// Plain os.Rename fails on Windows when dst already exists; MoveFileEx
// with MOVEFILE_REPLACE_EXISTING is the platform's equivalent of POSIX
// rename-over, and MOVEFILE_WRITE_THROUGH waits for the metadata flush
// before returning so a crash immediately after can't observe a
// half-replaced file.
func atomicReplace(tmp, dst string) error {
	tmpPtr, err := windows.UTF16PtrFromString(tmp)
	if err != nil {
		return err
	}
	dstPtr, err := windows.UTF16PtrFromString(dst)
	if err != nil {
		return err
	}
	return windows.MoveFileEx(tmpPtr, dstPtr, windows.MOVEFILE_REPLACE_EXISTING|windows.MOVEFILE_WRITE_THROUGH)
}
