package memory

import (
	"sync"

	"github.com/viant/mmkv/engine"
)

// Store is an in-memory Handle. Values keep their kind tags.
// Nothing survives the process.
type Store struct {
	mu       sync.RWMutex
	id       string
	data     map[string]engine.Value
	size     int64
	readOnly bool
	closed   bool
}

// New creates an empty in-memory store.
func New(id string, readOnly bool) *Store {
	return &Store{id: id, data: map[string]engine.Value{}, readOnly: readOnly}
}

func (s *Store) Set(key string, value engine.Value) error {
	if err := engine.ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writableLocked(); err != nil {
		return err
	}
	if prev, ok := s.data[key]; ok {
		s.size -= footprint(key, prev)
	}
	s.data[key] = value
	s.size += footprint(key, value)
	return nil
}

func (s *Store) Get(key string) (engine.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return engine.Value{}, false
	}
	v, ok := s.data[key]
	return v, ok
}

func (s *Store) Contains(key string) bool {
	_, ok := s.Get(key)
	return ok
}

func (s *Store) Remove(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writableLocked(); err != nil {
		return false, err
	}
	prev, ok := s.data[key]
	if !ok {
		return false, nil
	}
	delete(s.data, key)
	s.size -= footprint(key, prev)
	return true, nil
}

func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

func (s *Store) ClearAll() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writableLocked(); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	s.data = map[string]engine.Value{}
	s.size = 0
	return keys, nil
}

// Size returns the sum of key and payload lengths.
func (s *Store) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

func (s *Store) IsReadOnly() bool { return s.readOnly }

// Recrypt is not supported in memory.
func (s *Store) Recrypt(string, engine.EncryptionType) error {
	return engine.ErrNotSupported
}

// Trim is a no-op.
func (s *Store) Trim() error { return nil }

func (s *Store) TypeModel() engine.TypeModel { return engine.Tagged }

// Close marks the store as closed and drops its data.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.data = nil
	return nil
}

func (s *Store) writableLocked() error {
	if s.closed {
		return engine.ErrClosed
	}
	if s.readOnly {
		return engine.ErrReadOnly
	}
	return nil
}

func footprint(key string, value engine.Value) int64 {
	return int64(len(key) + value.Len())
}

var _ engine.Handle = (*Store)(nil)
