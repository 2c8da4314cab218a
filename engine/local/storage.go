package local

import (
	"sort"
	"strings"
	"sync"
)

// Storage is a flat string key/value store shared by every instance of a Factory.
// It plays the role a browser's local storage plays for web applications.
type Storage interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
	RemoveItem(key string) (bool, error)
	// Keys returns every stored key starting with prefix.
	Keys(prefix string) ([]string, error)
}

// MapStorage is a process-local Storage used when no durable store is available.
type MapStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMapStorage creates an empty MapStorage.
func NewMapStorage() *MapStorage {
	return &MapStorage{items: map[string]string{}}
}

func (m *MapStorage) GetItem(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MapStorage) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *MapStorage) RemoveItem(key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	delete(m.items, key)
	return ok, nil
}

func (m *MapStorage) Keys(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

var _ Storage = (*MapStorage)(nil)
