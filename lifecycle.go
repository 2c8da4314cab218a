package mmkv

import "sync"

// signal is a host lifecycle event, such as a low memory warning, that
// instances subscribe to.
type signal struct {
	mu       sync.Mutex
	next     uint64
	handlers map[uint64]func()
}

func newSignal() *signal {
	return &signal{handlers: map[uint64]func(){}}
}

// subscribe registers fn and returns a function releasing the subscription.
func (s *signal) subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.handlers[id] = fn
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.handlers, id)
			s.mu.Unlock()
		})
	}
}

func (s *signal) emit() int {
	s.mu.Lock()
	handlers := make([]func(), 0, len(s.handlers))
	for _, fn := range s.handlers {
		handlers = append(handlers, fn)
	}
	s.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
	return len(handlers)
}

func (s *signal) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}
