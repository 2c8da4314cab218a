package binding

import (
	"fmt"
	"sync"

	"github.com/viant/mmkv"
	"github.com/viant/mmkv/engine"
)

type codec[T any] struct {
	encode func(v T) (engine.Value, error)
	decode func(inst *mmkv.Instance, key string) (T, bool)
}

// Binding is a typed view of one key. Its value is re-read after every
// change notification for the key.
type Binding[T any] struct {
	inst  *mmkv.Instance
	key   string
	codec codec[T]

	mu          sync.Mutex
	value       T
	ok          bool
	version     uint64
	listener    *mmkv.Listener
	subscribers map[int]func()
	nextID      int
	closed      bool
}

func bind[T any](b *Binder, key string, instance []*mmkv.Instance, c codec[T]) (ret *Binding[T], err error) {
	if err := engine.ValidateKey(key); err != nil {
		return nil, err
	}
	inst, err := b.instance(instance)
	if err != nil {
		return nil, err
	}
	ret = &Binding[T]{inst: inst, key: key, codec: c, subscribers: map[int]func(){}}
	ret.listener = inst.AddListener(ret.onChange)
	defer func() {
		if r := recover(); r != nil {
			ret.listener.Remove()
			ret, err = nil, fmt.Errorf("binding: read %q: %v", key, r)
		}
	}()
	ret.value, ret.ok = c.decode(inst, key)
	return ret, nil
}

// Key returns the bound key.
func (b *Binding[T]) Key() string { return b.key }

// Instance returns the instance the key belongs to.
func (b *Binding[T]) Instance() *mmkv.Instance { return b.inst }

// Get returns the current value; ok is false when the key is absent or of another type.
func (b *Binding[T]) Get() (value T, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value, b.ok
}

// Version counts the change notifications received for the key.
func (b *Binding[T]) Version() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

// Set stores value under the key.
func (b *Binding[T]) Set(value T) error {
	v, err := b.codec.encode(value)
	if err != nil {
		return fmt.Errorf("binding: encode %q: %w", b.key, err)
	}
	return b.inst.Set(b.key, v)
}

// Delete removes the key.
func (b *Binding[T]) Delete() error {
	_, err := b.inst.Remove(b.key)
	return err
}

// Apply accepts a T (stored), nil (removes the key) or an updater
// func(prev T, ok bool) (next T, keep bool) computing the next value from
// the current one; keep == false removes the key. Anything else fails with
// ErrUnsupportedType.
func (b *Binding[T]) Apply(action any) error {
	switch actual := action.(type) {
	case nil:
		return b.Delete()
	case T:
		return b.Set(actual)
	case func(prev T, ok bool) (T, bool):
		next, keep := actual(b.codec.decode(b.inst, b.key))
		if !keep {
			return b.Delete()
		}
		return b.Set(next)
	}
	return fmt.Errorf("%w: %T for key %q", ErrUnsupportedType, action, b.key)
}

// Subscribe registers fn to run after every refresh. The returned function unsubscribes.
func (b *Binding[T]) Subscribe(fn func()) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
}

// Close stops refreshing. It is safe to call more than once.
func (b *Binding[T]) Close() {
	b.mu.Lock()
	b.closed = true
	b.subscribers = map[int]func(){}
	b.mu.Unlock()
	b.listener.Remove()
}

func (b *Binding[T]) onChange(key string) {
	if key != b.key {
		return
	}
	value, ok := b.codec.decode(b.inst, b.key)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.value, b.ok = value, ok
	b.version++
	subscribers := make([]func(), 0, len(b.subscribers))
	for _, fn := range b.subscribers {
		subscribers = append(subscribers, fn)
	}
	b.mu.Unlock()
	for _, fn := range subscribers {
		fn()
	}
}
