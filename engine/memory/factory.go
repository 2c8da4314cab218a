package memory

import (
	"fmt"
	"sync"

	"github.com/viant/mmkv/engine"
)

// Factory keeps one in-memory keyspace per id for the lifetime of the process.
// Handles created for the same id share data until Delete.
type Factory struct {
	mu     sync.Mutex
	stores map[string]*Store
}

// NewFactory creates an in-memory factory.
func NewFactory() *Factory {
	return &Factory{stores: map[string]*Store{}}
}

// Initialize is a no-op; the root path is ignored.
func (f *Factory) Initialize(string) error { return nil }

func (f *Factory) Create(cfg engine.Config) (engine.Handle, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("memory: id is required")
	}
	if cfg.EncryptionKey != "" {
		return nil, fmt.Errorf("memory: encryption %w", engine.ErrNotSupported)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.stores[cfg.ID]; ok && !st.isClosed() {
		return &view{Store: st, readOnly: cfg.ReadOnly}, nil
	}
	st := New(cfg.ID, false)
	f.stores[cfg.ID] = st
	return &view{Store: st, readOnly: cfg.ReadOnly}, nil
}

func (f *Factory) Delete(id string) (bool, error) {
	f.mu.Lock()
	st, ok := f.stores[id]
	delete(f.stores, id)
	f.mu.Unlock()
	if ok {
		_ = st.Close()
	}
	return ok, nil
}

func (f *Factory) Exists(id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.stores[id]
	return ok, nil
}

func (f *Factory) DefaultInstanceID() string { return engine.DefaultInstanceID }

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// view applies a per-handle read-only flag over a shared store.
// Closing a view leaves the shared data intact.
type view struct {
	*Store
	readOnly bool
}

func (v *view) Set(key string, value engine.Value) error {
	if v.readOnly {
		return engine.ErrReadOnly
	}
	return v.Store.Set(key, value)
}

func (v *view) Remove(key string) (bool, error) {
	if v.readOnly {
		return false, engine.ErrReadOnly
	}
	return v.Store.Remove(key)
}

func (v *view) ClearAll() ([]string, error) {
	if v.readOnly {
		return nil, engine.ErrReadOnly
	}
	return v.Store.ClearAll()
}

func (v *view) IsReadOnly() bool { return v.readOnly }

func (v *view) Close() error { return nil }

var (
	_ engine.Factory = (*Factory)(nil)
	_ engine.Handle  = (*view)(nil)
)
