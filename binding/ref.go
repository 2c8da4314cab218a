package binding

import (
	"sync"

	"github.com/viant/mmkv"
)

// Ref holds an instance for a configuration and resolves a new one only
// when the configuration stops being Equal to the last one.
type Ref struct {
	binder   *Binder
	mu       sync.Mutex
	config   mmkv.Configuration
	inst     *mmkv.Instance
	resolved int
}

// Ref creates an empty instance reference.
func (b *Binder) Ref() *Ref { return &Ref{binder: b} }

// Resolve returns the instance for cfg.
func (r *Ref) Resolve(cfg mmkv.Configuration) (*mmkv.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inst != nil && r.config.Equal(cfg) {
		return r.inst, nil
	}
	inst, err := r.binder.registry.Create(cfg)
	if err != nil {
		return nil, err
	}
	r.config, r.inst = cfg, inst
	r.resolved++
	return inst, nil
}

// Resolutions returns how many times the registry was consulted.
func (r *Ref) Resolutions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolved
}
