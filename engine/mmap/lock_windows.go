//go:build windows

package mmap

import (
	"os"

	"golang.org/x/sys/windows"
)

func lockExclusiveBlocking(f *os.File) error {
	h := windows.Handle(f.Fd())
	var ol windows.Overlapped
	// Lock the first byte; this is a common pattern for file-based mutexes.
	return windows.LockFileEx(h, windows.LOCKFILE_EXCLUSIVE_LOCK, 0, 1, 0, &ol)
}

func unlockFile(f *os.File) error {
	h := windows.Handle(f.Fd())
	var ol windows.Overlapped
	return windows.UnlockFileEx(h, 0, 1, 0, &ol)
}
