package mmkv

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/viant/mmkv/engine"
	"go.uber.org/zap"
)

// Instance is a named keyspace. Every successful mutation notifies the
// instance listeners with the affected key, after the write.
type Instance struct {
	id       string
	handle   engine.Handle
	bus      *bus
	logger   *zap.Logger
	metrics  *metrics
	detach   func()
	disposed atomic.Bool

	mu     sync.RWMutex
	config Configuration
}

func newInstance(cfg Configuration, handle engine.Handle, logger *zap.Logger, m *metrics) *Instance {
	return &Instance{
		id:      cfg.ID,
		config:  cfg,
		handle:  handle,
		bus:     &bus{},
		logger:  logger.With(zap.String("id", cfg.ID)),
		metrics: m,
		detach:  func() {},
	}
}

// ID returns the instance id.
func (i *Instance) ID() string { return i.id }

// Config returns a copy of the configuration the instance was created with,
// reflecting later encryption changes.
func (i *Instance) Config() Configuration {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.config
}

// TypeModel reports how the engine keeps value kinds.
func (i *Instance) TypeModel() engine.TypeModel { return i.handle.TypeModel() }

// Set stores value under key and notifies listeners.
func (i *Instance) Set(key string, value engine.Value) error {
	err := i.set(key, value)
	i.metrics.op(i.id, "set", err)
	return err
}

// SetBool stores a boolean.
func (i *Instance) SetBool(key string, value bool) error { return i.Set(key, engine.Bool(value)) }

// SetString stores a string.
func (i *Instance) SetString(key string, value string) error { return i.Set(key, engine.String(value)) }

// SetNumber stores a float64.
func (i *Instance) SetNumber(key string, value float64) error { return i.Set(key, engine.Number(value)) }

// SetBuffer stores a copy of value.
func (i *Instance) SetBuffer(key string, value []byte) error { return i.Set(key, engine.Buffer(value)) }

func (i *Instance) set(key string, value engine.Value) error {
	if err := engine.ValidateKey(key); err != nil {
		return &ConfigError{Field: "key", Err: err}
	}
	if !value.IsValid() {
		return &ConfigError{Field: "value", Err: fmt.Errorf("value for %q has no kind", key)}
	}
	if err := i.writable("set"); err != nil {
		return err
	}
	if err := i.handle.Set(key, value); err != nil {
		return classify("set", key, err)
	}
	i.notify(key)
	return nil
}

// Get returns the stored value as the engine keeps it.
func (i *Instance) Get(key string) (engine.Value, bool) {
	return i.handle.Get(key)
}

func (i *Instance) get(key string, kind engine.Kind) (engine.Value, bool) {
	v, ok := i.handle.Get(key)
	if !ok {
		return engine.Value{}, false
	}
	return engine.Convert(v, kind, i.handle.TypeModel())
}

// GetBool returns the boolean under key.
func (i *Instance) GetBool(key string) (bool, bool) {
	v, ok := i.get(key, engine.KindBool)
	if !ok {
		return false, false
	}
	return v.AsBool()
}

// GetString returns the string under key.
func (i *Instance) GetString(key string) (string, bool) {
	v, ok := i.get(key, engine.KindString)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// GetNumber returns the number under key.
func (i *Instance) GetNumber(key string) (float64, bool) {
	v, ok := i.get(key, engine.KindNumber)
	if !ok {
		return 0, false
	}
	return v.AsNumber()
}

// GetBuffer returns a copy of the buffer under key.
func (i *Instance) GetBuffer(key string) ([]byte, bool) {
	v, ok := i.get(key, engine.KindBuffer)
	if !ok {
		return nil, false
	}
	return v.AsBuffer()
}

// Contains reports whether key is stored.
func (i *Instance) Contains(key string) bool { return i.handle.Contains(key) }

// Remove deletes key and reports whether it existed. Listeners are only
// notified when something was removed.
func (i *Instance) Remove(key string) (bool, error) {
	removed, err := i.remove(key)
	i.metrics.op(i.id, "remove", err)
	return removed, err
}

func (i *Instance) remove(key string) (bool, error) {
	if err := engine.ValidateKey(key); err != nil {
		return false, &ConfigError{Field: "key", Err: err}
	}
	if err := i.writable("remove"); err != nil {
		return false, err
	}
	removed, err := i.handle.Remove(key)
	if err != nil {
		return false, classify("remove", key, err)
	}
	if removed {
		i.notify(key)
	}
	return removed, nil
}

// Keys returns every key, sorted.
func (i *Instance) Keys() []string {
	keys := i.handle.Keys()
	sort.Strings(keys)
	return keys
}

// ClearAll removes every key and notifies once per removed key.
func (i *Instance) ClearAll() error {
	if err := i.writable("clearAll"); err != nil {
		return err
	}
	keys, err := i.handle.ClearAll()
	sort.Strings(keys)
	i.notify(keys...)
	i.metrics.op(i.id, "clearAll", err)
	if err != nil {
		return classify("clearAll", i.id, err)
	}
	return nil
}

// Size returns the approximate storage footprint in bytes.
func (i *Instance) Size() int64 { return i.handle.Size() }

// IsReadOnly reports whether writes are rejected.
func (i *Instance) IsReadOnly() bool { return i.handle.IsReadOnly() }

// Trim asks the engine to compact storage. Contents do not change and no listener is notified.
func (i *Instance) Trim() error {
	err := i.handle.Trim()
	i.metrics.op(i.id, "trim", err)
	if err != nil {
		return classify("trim", i.id, err)
	}
	return nil
}

// Recrypt changes the encryption key, keeping the configured cipher strength.
// An empty key removes encryption.
func (i *Instance) Recrypt(key string) error {
	return i.recrypt(key, i.Config().EncryptionType)
}

// Encrypt encrypts the instance with key using typ.
func (i *Instance) Encrypt(key string, typ EncryptionType) error {
	if key == "" {
		return &ConfigError{Field: "encryptionKey", Err: errors.New("key is required to encrypt")}
	}
	return i.recrypt(key, typ)
}

// Decrypt removes encryption.
func (i *Instance) Decrypt() error {
	return i.recrypt("", i.Config().EncryptionType)
}

func (i *Instance) recrypt(key string, typ EncryptionType) error {
	if typ == "" {
		typ = AES128
	}
	if err := typ.ValidateKey(key); err != nil {
		return &ConfigError{Field: "encryptionKey", Err: err}
	}
	if err := i.writable("recrypt"); err != nil {
		return err
	}
	err := i.handle.Recrypt(key, typ)
	i.metrics.op(i.id, "recrypt", err)
	if err != nil {
		return classify("recrypt", i.id, err)
	}
	i.mu.Lock()
	i.config.EncryptionKey = key
	if key != "" {
		i.config.EncryptionType = typ
	}
	i.mu.Unlock()
	return nil
}

// ImportAllFrom copies every key of other into i, overwriting conflicts, and
// returns the number of keys copied. Keys that fail are skipped; their errors
// are joined into the returned error.
func (i *Instance) ImportAllFrom(other *Instance) (int, error) {
	return i.ImportFrom(other, nil)
}

// ImportFrom is ImportAllFrom restricted to the entries accepted by match.
// A nil match accepts every entry.
func (i *Instance) ImportFrom(other *Instance, match func(key string, value engine.Value) bool) (int, error) {
	if other == nil {
		return 0, &ConfigError{Field: "source", Err: errors.New("source instance is nil")}
	}
	if other == i {
		return 0, nil
	}
	if err := i.writable("importAllFrom"); err != nil {
		return 0, err
	}
	var errs []error
	count := 0
	for _, key := range other.Keys() {
		value, ok := other.handle.Get(key)
		if !ok || (match != nil && !match(key, value)) {
			continue
		}
		if err := i.handle.Set(key, value); err != nil {
			i.logger.Warn("import key failed", zap.String("key", key), zap.String("source", other.id), zap.Error(err))
			errs = append(errs, fmt.Errorf("%q: %w", key, err))
			continue
		}
		count++
		i.notify(key)
	}
	err := errors.Join(errs...)
	i.metrics.op(i.id, "importAllFrom", err)
	if err != nil {
		return count, fmt.Errorf("mmkv: import into %q: %w", i.id, err)
	}
	return count, nil
}

// AddListener subscribes callback to key changes of this instance.
func (i *Instance) AddListener(callback func(key string)) *Listener {
	return i.bus.add(callback)
}

// Listeners returns the number of active listeners.
func (i *Instance) Listeners() int { return i.bus.len() }

// Dispose detaches the instance from the low memory signal. It is idempotent.
// Undisposed instances stay subscribed until the registry is closed.
func (i *Instance) Dispose() {
	if i.disposed.Swap(true) {
		return
	}
	i.detach()
}

// Disposed reports whether Dispose was called.
func (i *Instance) Disposed() bool { return i.disposed.Load() }

func (i *Instance) onLowMemory() {
	if err := i.Trim(); err != nil {
		i.logger.Warn("trim on low memory failed", zap.Error(err))
	}
}

func (i *Instance) release() error {
	i.Dispose()
	return i.handle.Close()
}

func (i *Instance) writable(op string) error {
	if i.handle.IsReadOnly() {
		return fmt.Errorf("mmkv: %s on read-only instance %q: %w", op, i.id, ErrReadOnly)
	}
	return nil
}

func (i *Instance) notify(keys ...string) {
	i.metrics.notified(i.id, i.bus.notify(keys...))
}

// String describes the instance as "MMKV (id): [keys]".
func (i *Instance) String() string {
	return fmt.Sprintf("MMKV (%s): [%s]", i.id, strings.Join(i.Keys(), ", "))
}

// MarshalJSON encodes the instance as {id: keys}.
func (i *Instance) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]string{i.id: i.Keys()})
}
