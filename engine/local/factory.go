package local

import (
	"fmt"

	"github.com/viant/mmkv/engine"
	"go.uber.org/zap"
)

// Factory creates namespaced handles over one shared Storage.
type Factory struct {
	storage Storage
	logger  *zap.Logger
}

// Option configures a Factory.
type Option func(f *Factory)

// WithLogger sets the logger used for storage read failures.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Factory) { f.logger = logger }
}

// NewFactory creates a factory over storage; a nil storage falls back to a MapStorage.
func NewFactory(storage Storage, opts ...Option) *Factory {
	ret := &Factory{storage: storage, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.storage == nil {
		ret.logger.Warn("durable storage unavailable, using in-memory storage")
		ret.storage = NewMapStorage()
	}
	return ret
}

// Storage returns the shared flat storage.
func (f *Factory) Storage() Storage { return f.storage }

// Initialize is a no-op; custom root paths are not supported.
func (f *Factory) Initialize(string) error { return nil }

func (f *Factory) Create(cfg engine.Config) (engine.Handle, error) {
	if cfg.EncryptionKey != "" {
		return nil, fmt.Errorf("local: 'encryptionKey' %w", engine.ErrNotSupported)
	}
	if cfg.RootPath != "" {
		return nil, fmt.Errorf("local: 'path' %w", engine.ErrNotSupported)
	}
	return newStore(cfg.ID, f.storage, cfg.ReadOnly, f.logger)
}

func (f *Factory) Delete(id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}
	st, err := newStore(id, f.storage, false, f.logger)
	if err != nil {
		return false, err
	}
	removed, err := st.ClearAll()
	return len(removed) > 0, err
}

func (f *Factory) Exists(id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}
	keys, err := f.storage.Keys(id + Separator)
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

func (f *Factory) DefaultInstanceID() string { return engine.DefaultInstanceID }

var _ engine.Factory = (*Factory)(nil)
