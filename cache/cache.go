// Package cache implements a read-through, write-behind cache over an instance.
package cache

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/viant/mmkv"
	"github.com/viant/mmkv/engine"
)

type state uint8

const (
	// notLoaded entries are fetched from the instance on first read.
	notLoaded state = iota
	loaded
	// pendingDelete hides the key until Flush removes it from the instance.
	pendingDelete
)

type entry struct {
	state state
	value engine.Value
	dirty bool
}

// Memory caches instance values. Writes and removals stay in memory until Flush.
type Memory struct {
	inst     *mmkv.Instance
	mu       sync.Mutex
	entries  map[string]*entry
	listener *mmkv.Listener
	loads    int
}

// New creates a cache over inst. Existing keys are registered lazily.
func New(inst *mmkv.Instance) *Memory {
	ret := &Memory{inst: inst, entries: map[string]*entry{}}
	for _, key := range inst.Keys() {
		ret.entries[key] = &entry{state: notLoaded}
	}
	ret.listener = inst.AddListener(ret.invalidate)
	return ret
}

// Get returns the cached value, loading it from the instance when needed.
func (m *Memory) Get(key string) (engine.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if ok {
		switch e.state {
		case loaded:
			return e.value, true
		case pendingDelete:
			return engine.Value{}, false
		}
	}
	value, found := m.inst.Get(key)
	m.loads++
	if !found {
		delete(m.entries, key)
		return engine.Value{}, false
	}
	m.entries[key] = &entry{state: loaded, value: value}
	return value, true
}

// Contains reports whether key is visible through the cache.
func (m *Memory) Contains(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set records value for key without touching the instance.
func (m *Memory) Set(key string, value engine.Value) error {
	if err := engine.ValidateKey(key); err != nil {
		return err
	}
	if !value.IsValid() {
		return fmt.Errorf("cache: value for %q has no kind", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &entry{state: loaded, value: value, dirty: true}
	return nil
}

// Remove marks key as deleted; the instance keeps it until Flush.
func (m *Memory) Remove(key string) error {
	if err := engine.ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &entry{state: pendingDelete, dirty: true}
	return nil
}

// Keys returns the visible keys, sorted.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	for _, key := range m.inst.Keys() {
		seen[key] = true
	}
	for key, e := range m.entries {
		if e.dirty {
			seen[key] = e.state != pendingDelete
		}
	}
	ret := make([]string, 0, len(seen))
	for key, visible := range seen {
		if visible {
			ret = append(ret, key)
		}
	}
	sort.Strings(ret)
	return ret
}

// Pending returns the number of changes not yet flushed.
func (m *Memory) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, e := range m.entries {
		if e.dirty {
			count++
		}
	}
	return count
}

// Loads returns how many times a value was read from the instance.
func (m *Memory) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

// Flush writes pending changes to the instance in key order. Failed keys stay pending.
func (m *Memory) Flush() error {
	m.mu.Lock()
	pending := make(map[string]*entry)
	keys := make([]string, 0, len(m.entries))
	for key, e := range m.entries {
		if e.dirty {
			pending[key] = e
			keys = append(keys, key)
		}
	}
	m.mu.Unlock()
	sort.Strings(keys)
	var errs []error
	for _, key := range keys {
		e := pending[key]
		var err error
		if e.state == pendingDelete {
			_, err = m.inst.Remove(key)
		} else {
			err = m.inst.Set(key, e.value)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		m.mu.Lock()
		if m.entries[key] == e {
			if e.state == pendingDelete {
				delete(m.entries, key)
			} else {
				e.dirty = false
			}
		}
		m.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Close stops tracking instance changes. Unflushed changes are dropped.
func (m *Memory) Close() { m.listener.Remove() }

// invalidate resets clean entries changed by other writers and forgets
// those the instance no longer holds.
func (m *Memory) invalidate(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || e.dirty {
		return
	}
	if !m.inst.Contains(key) {
		delete(m.entries, key)
		return
	}
	e.state = notLoaded
	e.value = engine.Value{}
}
