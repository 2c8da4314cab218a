//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly || solaris || aix || windows)

package mmap

import (
	"os"

	"github.com/viant/mmkv/engine"
)

func lockExclusiveBlocking(*os.File) error { return engine.ErrNotSupported }

func unlockFile(*os.File) error { return nil }
