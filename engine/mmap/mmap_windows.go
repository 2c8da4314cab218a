//go:build windows

package mmap

const platformSupported = true

// On Windows, provide no-op mmap to keep builds portable.
// Reads fall back to direct file I/O via ReadAt.

func (lf *logFile) remap() error {
	lf.data = nil
	return nil
}

func (lf *logFile) unmap() {}
