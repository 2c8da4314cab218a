package mmkv

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/mmkv/engine"
	"github.com/viant/mmkv/engine/local"
	"github.com/viant/mmkv/engine/memory"
	"github.com/viant/mmkv/engine/mmap"
	"go.uber.org/zap"
)

// Registry creates and caches at most one Instance per id. The engine is
// loaded on the first operation and the outcome, including a failure, is
// kept for the registry lifetime.
type Registry struct {
	mu           sync.Mutex
	loader       func() (engine.Factory, error)
	fallback     Fallback
	fallbackSet  bool
	localStorage local.Storage
	platform     Platform
	registerer   prometheus.Registerer
	logger       *zap.Logger
	metrics      *metrics

	loaded    bool
	factory   engine.Factory
	loadErr   error
	baseDir   string
	instances map[string]*Instance
	lowMemory *signal
	closed    bool
}

// New creates a registry. Without options it uses the mmap engine under the
// platform base directory, or the fallback named by MMKV_FALLBACK.
func New(opts ...Option) *Registry {
	ret := &Registry{
		platform:  DefaultPlatform(),
		logger:    zap.NewNop(),
		instances: map[string]*Instance{},
		lowMemory: newSignal(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if !ret.fallbackSet {
		ret.fallback = Fallback(os.Getenv(envFallback))
	}
	if ret.registerer != nil {
		m, err := newMetrics(ret.registerer)
		if err != nil {
			ret.logger.Warn("metrics disabled", zap.Error(err))
		}
		ret.metrics = m
	}
	return ret
}

// Fallback returns the active fallback mode.
func (r *Registry) Fallback() Fallback { return r.fallback }

func (r *Registry) defaultLoader() (engine.Factory, error) {
	return mmap.NewFactory(mmap.WithLogger(r.logger)), nil
}

func (r *Registry) engineLocked() (engine.Factory, error) {
	if !r.loaded {
		r.factory, r.loadErr = r.load()
		r.loaded = true
		if r.loadErr != nil {
			r.logger.Error("engine unavailable", zap.Error(r.loadErr))
		}
	}
	return r.factory, r.loadErr
}

func (r *Registry) load() (engine.Factory, error) {
	switch r.fallback {
	case FallbackMemory:
		r.logger.Info("using fallback engine", zap.String("fallback", string(r.fallback)))
		return memory.NewFactory(), nil
	case FallbackLocal:
		r.logger.Info("using fallback engine", zap.String("fallback", string(r.fallback)))
		return local.NewFactory(r.localStorage, local.WithLogger(r.logger)), nil
	case FallbackNone:
	default:
		return nil, &ConfigError{Field: "fallback", Err: fmt.Errorf("unknown fallback %q", string(r.fallback))}
	}
	loader := r.loader
	if loader == nil {
		loader = r.defaultLoader
	}
	factory, err := loader()
	if err == nil && factory == nil {
		err = errors.New("engine loader returned no factory")
	}
	if err != nil {
		return nil, newEngineUnavailable(err, runtime.GOOS, runtime.GOARCH)
	}
	base, err := r.platform.BaseDirectory()
	if err != nil {
		return nil, newEngineUnavailable(err, runtime.GOOS, runtime.GOARCH)
	}
	if err := factory.Initialize(base); err != nil {
		return nil, newEngineUnavailable(err, runtime.GOOS, runtime.GOARCH)
	}
	r.baseDir = base
	r.logger.Debug("engine initialized", zap.String("baseDir", base))
	return factory, nil
}

// BaseDirectory returns the resolved engine root, loading the engine if needed.
func (r *Registry) BaseDirectory() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.engineLocked(); err != nil {
		return "", err
	}
	return r.baseDir, nil
}

// Default returns the default instance.
func (r *Registry) Default() (*Instance, error) {
	return r.Create(Configuration{})
}

// Create returns the instance for cfg.ID, creating it on first use. An
// existing instance is returned as is, whatever the other fields of cfg.
func (r *Registry) Create(cfg Configuration) (*Instance, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("mmkv: registry %w", ErrClosed)
	}
	factory, err := r.engineLocked()
	if err != nil {
		return nil, err
	}
	cfg.init(factory.DefaultInstanceID())
	if inst, ok := r.instances[cfg.ID]; ok {
		return inst, nil
	}
	if r.fallback != FallbackNone {
		if cfg.EncryptionKey != "" {
			return nil, &ConfigError{Field: "encryptionKey", Err: fmt.Errorf("%w in %s fallback mode", ErrNotSupported, r.fallback)}
		}
		if cfg.Path != "" {
			return nil, &ConfigError{Field: "path", Err: fmt.Errorf("%w in %s fallback mode", ErrNotSupported, r.fallback)}
		}
	} else if cfg.Path == "" {
		if dir, ok := r.platform.AppGroupDirectory(); ok {
			cfg.Path = dir
		}
	}
	handle, err := factory.Create(cfg.engineConfig())
	r.metrics.op(cfg.ID, "create", err)
	if err != nil {
		return nil, classify("create", cfg.ID, err)
	}
	inst := newInstance(cfg, handle, r.logger, r.metrics)
	inst.detach = r.lowMemory.subscribe(inst.onLowMemory)
	r.instances[cfg.ID] = inst
	r.metrics.setInstances(len(r.instances))
	r.logger.Debug("instance created", zap.String("id", cfg.ID), zap.String("mode", string(cfg.Mode)))
	return inst, nil
}

// Instance returns a live instance by id.
func (r *Registry) Instance(id string) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	return inst, ok
}

// IDs returns the ids of live instances, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]string, 0, len(r.instances))
	for id := range r.instances {
		ret = append(ret, id)
	}
	sort.Strings(ret)
	return ret
}

// Exists reports whether an instance with id is live or persisted.
func (r *Registry) Exists(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	factory, err := r.engineLocked()
	if err != nil {
		return false, err
	}
	if _, ok := r.instances[id]; ok {
		return true, nil
	}
	ok, err := factory.Exists(id)
	if err != nil {
		return false, classify("exists", id, err)
	}
	return ok, nil
}

// Delete closes the instance for id and removes its data. It reports whether
// anything was present. A later Create builds a new, empty instance.
func (r *Registry) Delete(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	factory, err := r.engineLocked()
	if err != nil {
		return false, err
	}
	inst, held := r.instances[id]
	if held {
		delete(r.instances, id)
		r.metrics.setInstances(len(r.instances))
		if err := inst.release(); err != nil {
			r.logger.Warn("close instance", zap.String("id", id), zap.Error(err))
		}
	}
	existed, err := factory.Delete(id)
	r.metrics.op(id, "delete", err)
	if err != nil {
		return held, classify("delete", id, err)
	}
	return existed || held, nil
}

// LowMemory trims every live instance that was not disposed and returns their number.
func (r *Registry) LowMemory() int {
	return r.lowMemory.emit()
}

// Close releases every instance. The registry cannot be used afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	var errs []error
	for id, inst := range r.instances {
		if err := inst.release(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	r.instances = map[string]*Instance{}
	r.metrics.setInstances(0)
	return errors.Join(errs...)
}

// classify turns engine rejections of options into configuration errors.
func classify(op, subject string, err error) error {
	switch {
	case errors.Is(err, engine.ErrInvalidKey):
		return &ConfigError{Field: "encryptionKey", Err: err}
	case errors.Is(err, engine.ErrNotSupported):
		return &ConfigError{Field: op, Err: err}
	case errors.Is(err, engine.ErrEmptyKey), errors.Is(err, local.ErrSeparator):
		return &ConfigError{Field: "key", Err: err}
	}
	return fmt.Errorf("mmkv: %s %q: %w", op, subject, err)
}
