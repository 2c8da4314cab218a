// Package binding provides observable, typed views of single keys that
// refresh themselves when the key changes, whichever handle changed it.
package binding

import (
	"encoding/json"
	"errors"

	"github.com/viant/mmkv"
	"github.com/viant/mmkv/engine"
	"go.uber.org/zap"
)

// ErrUnsupportedType is returned by Apply for actions that are neither a value, nil nor an updater.
var ErrUnsupportedType = errors.New("binding: unsupported value type")

// Binder builds bindings over the instances of a registry.
type Binder struct {
	registry *mmkv.Registry
	logger   *zap.Logger
}

// Option configures a Binder.
type Option func(b *Binder)

// WithLogger sets the logger used for decode failures.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Binder) { b.logger = logger }
}

// New creates a Binder over registry.
func New(registry *mmkv.Registry, opts ...Option) *Binder {
	ret := &Binder{registry: registry, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// instance returns the first non-nil instance, or the registry default.
func (b *Binder) instance(instance []*mmkv.Instance) (*mmkv.Instance, error) {
	for _, inst := range instance {
		if inst != nil {
			return inst, nil
		}
	}
	return b.registry.Default()
}

// Bool binds a boolean key.
func (b *Binder) Bool(key string, instance ...*mmkv.Instance) (*Binding[bool], error) {
	return bind(b, key, instance, codec[bool]{
		encode: func(v bool) (engine.Value, error) { return engine.Bool(v), nil },
		decode: func(inst *mmkv.Instance, key string) (bool, bool) { return inst.GetBool(key) },
	})
}

// String binds a string key.
func (b *Binder) String(key string, instance ...*mmkv.Instance) (*Binding[string], error) {
	return bind(b, key, instance, codec[string]{
		encode: func(v string) (engine.Value, error) { return engine.String(v), nil },
		decode: func(inst *mmkv.Instance, key string) (string, bool) { return inst.GetString(key) },
	})
}

// Number binds a number key.
func (b *Binder) Number(key string, instance ...*mmkv.Instance) (*Binding[float64], error) {
	return bind(b, key, instance, codec[float64]{
		encode: func(v float64) (engine.Value, error) { return engine.Number(v), nil },
		decode: func(inst *mmkv.Instance, key string) (float64, bool) { return inst.GetNumber(key) },
	})
}

// Buffer binds a buffer key.
func (b *Binder) Buffer(key string, instance ...*mmkv.Instance) (*Binding[[]byte], error) {
	return bind(b, key, instance, codec[[]byte]{
		encode: func(v []byte) (engine.Value, error) { return engine.Buffer(v), nil },
		decode: func(inst *mmkv.Instance, key string) ([]byte, bool) { return inst.GetBuffer(key) },
	})
}

// Object binds key to a JSON encoded T stored as a string.
func Object[T any](b *Binder, key string, instance ...*mmkv.Instance) (*Binding[T], error) {
	return bind(b, key, instance, codec[T]{
		encode: func(v T) (engine.Value, error) {
			data, err := json.Marshal(v)
			if err != nil {
				return engine.Value{}, err
			}
			return engine.String(string(data)), nil
		},
		decode: func(inst *mmkv.Instance, key string) (T, bool) {
			var ret T
			text, ok := inst.GetString(key)
			if !ok {
				return ret, false
			}
			if err := json.Unmarshal([]byte(text), &ret); err != nil {
				b.logger.Warn("decode object", zap.String("id", inst.ID()), zap.String("key", key), zap.Error(err))
				return ret, false
			}
			return ret, true
		},
	})
}

// Listen subscribes callback to every key change of the instance.
func (b *Binder) Listen(callback func(key string), instance ...*mmkv.Instance) (*mmkv.Listener, error) {
	inst, err := b.instance(instance)
	if err != nil {
		return nil, err
	}
	return inst.AddListener(callback), nil
}
