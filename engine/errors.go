package engine

import "errors"

var (
	// ErrEmptyKey is returned when a mutation targets the empty key.
	ErrEmptyKey = errors.New("engine: key must not be empty")

	// ErrReadOnly is returned when a mutation is attempted on a read-only instance.
	ErrReadOnly = errors.New("engine: instance is read-only")

	// ErrClosed is returned when the handle has been closed.
	ErrClosed = errors.New("engine: handle closed")

	// ErrCorrupt indicates on-disk data corruption was detected.
	ErrCorrupt = errors.New("engine: data corruption detected")

	// ErrInvalidKey indicates the encryption key is rejected for the selected cipher,
	// or does not match the key the data was written with.
	ErrInvalidKey = errors.New("engine: invalid encryption key")

	// ErrNotSupported is returned for features the engine (or build) does not provide.
	ErrNotSupported = errors.New("engine: not supported")
)
