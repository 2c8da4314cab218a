package mmkv

import (
	"errors"
	"fmt"
	"strings"

	"github.com/viant/mmkv/engine"
)

var (
	ErrEmptyKey     = engine.ErrEmptyKey
	ErrReadOnly     = engine.ErrReadOnly
	ErrClosed       = engine.ErrClosed
	ErrInvalidKey   = engine.ErrInvalidKey
	ErrNotSupported = engine.ErrNotSupported
)

// ConfigError reports a rejected option or argument. Nothing is applied when it is returned.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "mmkv: invalid configuration: " + e.Err.Error()
	}
	return fmt.Sprintf("mmkv: invalid %s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error { return e.Err }

// EngineUnavailableError reports that the storage engine could not be loaded or initialized.
type EngineUnavailableError struct {
	Cause       error
	Sandbox     string
	Suggestions []string
}

const bulletPoint = "\n* "

func (e *EngineUnavailableError) Error() string {
	if e.Sandbox != "" {
		return fmt.Sprintf("mmkv: the storage engine is not supported in the %s sandbox; set MMKV_FALLBACK=local (or memory) or use WithFallback", e.Sandbox)
	}
	msg := "mmkv: failed to create a new instance: the storage engine could not be initialized"
	if e.Cause != nil {
		msg += " (" + e.Cause.Error() + ")"
	}
	if len(e.Suggestions) > 0 {
		msg += bulletPoint + strings.Join(e.Suggestions, bulletPoint)
	}
	return msg
}

// Unwrap returns the loader or initialization error.
func (e *EngineUnavailableError) Unwrap() error { return e.Cause }

func newEngineUnavailable(cause error, goos, goarch string) *EngineUnavailableError {
	if sandbox := sandboxName(goos, goarch); sandbox != "" {
		return &EngineUnavailableError{Cause: cause, Sandbox: sandbox}
	}
	return &EngineUnavailableError{
		Cause: cause,
		Suggestions: []string{
			"Make sure an engine is registered with WithEngine or WithEngineLoader",
			"Make sure the build targets a platform with mmap and file lock support",
			"Make sure the base directory is writable (see MMKV_BASE_DIR)",
			"Make sure you rebuilt the binary after changing build tags",
		},
	}
}

func sandboxName(goos, goarch string) string {
	switch {
	case goos == "js" && goarch == "wasm":
		return "js/wasm"
	case goos == "wasip1":
		return "wasip1"
	}
	return ""
}

// IsEngineUnavailable reports whether err was caused by a missing engine.
func IsEngineUnavailable(err error) bool {
	var target *EngineUnavailableError
	return errors.As(err, &target)
}
