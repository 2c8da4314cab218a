//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly || solaris || aix || windows)

package mmap

const platformSupported = false

func (lf *logFile) remap() error {
	lf.data = nil
	return nil
}

func (lf *logFile) unmap() {}
