//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly || solaris || aix

package mmap

import (
	"golang.org/x/sys/unix"
)

const platformSupported = true

// remap maps the log file into memory read-only. If mapping fails, it is a no-op.
func (lf *logFile) remap() error {
	lf.unmap()
	if lf.size == 0 || lf.f == nil {
		return nil
	}
	b, err := unix.Mmap(int(lf.f.Fd()), 0, int(lf.size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		// ignore mapping errors; readAt falls back to ReadAt
		return nil
	}
	lf.data = b
	return nil
}

// unmap releases any active mapping.
func (lf *logFile) unmap() {
	if lf.data != nil {
		_ = unix.Munmap(lf.data)
		lf.data = nil
	}
}
