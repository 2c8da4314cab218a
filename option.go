package mmkv

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/mmkv/engine"
	"github.com/viant/mmkv/engine/local"
	"go.uber.org/zap"
)

// Fallback selects a substitute engine used instead of the persistent one.
type Fallback string

const (
	// FallbackNone uses the configured engine.
	FallbackNone Fallback = ""
	// FallbackMemory keeps every instance in process memory.
	FallbackMemory Fallback = "memory"
	// FallbackLocal namespaces every instance in one flat local.Storage.
	FallbackLocal Fallback = "local"
)

// Option configures a Registry.
type Option func(r *Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithEngine uses factory as the storage engine.
func WithEngine(factory engine.Factory) Option {
	return func(r *Registry) {
		r.loader = func() (engine.Factory, error) { return factory, nil }
	}
}

// WithEngineLoader defers engine construction to the first registry operation.
// The result, including an error, is cached.
func WithEngineLoader(loader func() (engine.Factory, error)) Option {
	return func(r *Registry) { r.loader = loader }
}

// WithFallback substitutes the engine with a fallback adapter. It overrides MMKV_FALLBACK.
func WithFallback(fallback Fallback) Option {
	return func(r *Registry) {
		r.fallback = fallback
		r.fallbackSet = true
	}
}

// WithLocalStorage sets the flat storage used by FallbackLocal.
func WithLocalStorage(storage local.Storage) Option {
	return func(r *Registry) { r.localStorage = storage }
}

// WithPlatform sets the directory resolver.
func WithPlatform(platform Platform) Option {
	return func(r *Registry) { r.platform = platform }
}

// WithMetrics registers registry metrics with registerer.
func WithMetrics(registerer prometheus.Registerer) Option {
	return func(r *Registry) { r.registerer = registerer }
}
