//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly || solaris || aix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

func lockExclusiveBlocking(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX)
}

func unlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
