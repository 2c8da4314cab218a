package engine

import "fmt"

// DefaultInstanceID is the id of the implicit default instance.
const DefaultInstanceID = "mmkv.default"

// Mode configures process sharing of an instance.
type Mode string

const (
	// SingleProcess instances are only used by this process.
	SingleProcess Mode = "single-process"
	// MultiProcess instances may be opened by several processes at once.
	MultiProcess Mode = "multi-process"
)

// EncryptionType selects the at-rest cipher strength.
type EncryptionType string

const (
	AES128 EncryptionType = "AES-128"
	AES256 EncryptionType = "AES-256"
)

// KeySize returns the cipher key size in bytes.
func (t EncryptionType) KeySize() int {
	if t == AES256 {
		return 32
	}
	return 16
}

// ValidateKey checks that key fits the cipher; an empty key means no encryption.
func (t EncryptionType) ValidateKey(key string) error {
	switch t {
	case "", AES128, AES256:
	default:
		return fmt.Errorf("%w: unknown encryption type %q", ErrInvalidKey, string(t))
	}
	if len(key) > t.KeySize() {
		return fmt.Errorf("%w: key cannot be longer than %d bytes for %s", ErrInvalidKey, t.KeySize(), t.orDefault())
	}
	return nil
}

func (t EncryptionType) orDefault() EncryptionType {
	if t == "" {
		return AES128
	}
	return t
}

// TypeModel describes how a handle keeps value kinds.
type TypeModel int

const (
	// Tagged handles record the kind of every value; a getter for another kind misses.
	Tagged TypeModel = iota
	// Untyped handles keep only a textual form; getters reinterpret it.
	Untyped
)

// Config is the resolved configuration passed to a Factory.
type Config struct {
	ID             string
	RootPath       string
	EncryptionKey  string
	EncryptionType EncryptionType
	Mode           Mode
	ReadOnly       bool
}

// Factory creates and manages engine handles.
type Factory interface {
	// Initialize sets the root directory; it is called once before Create.
	Initialize(rootPath string) error

	// Create opens (or creates) the keyspace described by cfg.
	Create(cfg Config) (Handle, error)

	// Delete removes all persisted data for id.
	Delete(id string) (bool, error)

	// Exists reports whether persisted data for id exists.
	Exists(id string) (bool, error)

	// DefaultInstanceID returns the id used when none is configured.
	DefaultInstanceID() string
}

// Handle is a live keyspace. Implementations must be safe for concurrent use.
type Handle interface {
	// Set stores value under key, replacing any previous value and kind.
	Set(key string, value Value) error

	// Get returns the stored value; ok is false when the key is absent.
	Get(key string) (value Value, ok bool)

	Contains(key string) bool

	// Remove deletes key and reports whether it existed.
	Remove(key string) (bool, error)

	// Keys returns all keys, in no particular order.
	Keys() []string

	// ClearAll removes every key and returns the keys that existed.
	ClearAll() ([]string, error)

	// Size returns the approximate storage footprint in bytes.
	Size() int64

	IsReadOnly() bool

	// Recrypt re-encrypts all data with key; an empty key removes encryption.
	Recrypt(key string, typ EncryptionType) error

	// Trim is an advisory, content preserving compaction hint.
	Trim() error

	TypeModel() TypeModel

	// Close releases resources; the handle is unusable afterwards.
	Close() error
}
