package mmkv

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Listener is a subscription returned by AddListener.
type Listener struct {
	token    string
	callback func(key string)
	bus      *bus
	removed  atomic.Bool
}

// Token returns the listener's unique token.
func (l *Listener) Token() string { return l.token }

// Remove unsubscribes the listener. It is safe to call more than once; once
// it returns the callback is never invoked again.
func (l *Listener) Remove() {
	if l == nil || l.removed.Swap(true) {
		return
	}
	l.bus.remove(l)
}

// bus fans out key change events to the listeners of one instance.
type bus struct {
	mu        sync.Mutex
	listeners []*Listener
}

func (b *bus) add(callback func(key string)) *Listener {
	l := &Listener{token: uuid.NewString(), callback: callback, bus: b}
	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()
	return l
}

func (b *bus) remove(l *Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, candidate := range b.listeners {
		if candidate == l {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return
		}
	}
}

func (b *bus) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// notify calls every listener subscribed at the time of the call, in order.
// Listeners may subscribe, unsubscribe or mutate the instance from a callback.
func (b *bus) notify(keys ...string) int {
	if len(keys) == 0 {
		return 0
	}
	b.mu.Lock()
	snapshot := b.listeners
	b.mu.Unlock()
	calls := 0
	for _, key := range keys {
		for _, l := range snapshot {
			if l.removed.Load() {
				continue
			}
			l.callback(key)
			calls++
		}
	}
	return calls
}
