package binding

import (
	"sync"

	"github.com/viant/mmkv"
)

// KeysBinding tracks the key set of an instance. It recomputes the set only
// when a notified key appears or disappears.
type KeysBinding struct {
	inst       *mmkv.Instance
	mu         sync.Mutex
	known      map[string]struct{}
	keys       []string
	recomputes int
	listener   *mmkv.Listener
	onChange   func(keys []string)
}

// Keys binds the key set of the instance. onChange, when not nil, runs after each recompute.
func (b *Binder) Keys(onChange func(keys []string), instance ...*mmkv.Instance) (*KeysBinding, error) {
	inst, err := b.instance(instance)
	if err != nil {
		return nil, err
	}
	ret := &KeysBinding{inst: inst, onChange: onChange}
	ret.listener = inst.AddListener(ret.notified)
	ret.mu.Lock()
	ret.recomputeLocked()
	ret.mu.Unlock()
	return ret, nil
}

// Keys returns the current key set, sorted.
func (k *KeysBinding) Keys() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.keys...)
}

// Recomputes returns how many times the key set was read from the instance.
func (k *KeysBinding) Recomputes() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.recomputes
}

// Close stops tracking.
func (k *KeysBinding) Close() { k.listener.Remove() }

func (k *KeysBinding) recomputeLocked() {
	k.keys = k.inst.Keys()
	k.known = make(map[string]struct{}, len(k.keys))
	for _, key := range k.keys {
		k.known[key] = struct{}{}
	}
	k.recomputes++
}

func (k *KeysBinding) notified(key string) {
	present := k.inst.Contains(key)
	k.mu.Lock()
	if _, known := k.known[key]; known == present {
		k.mu.Unlock()
		return
	}
	k.recomputeLocked()
	keys := append([]string(nil), k.keys...)
	k.mu.Unlock()
	if k.onChange != nil {
		k.onChange(keys)
	}
}
