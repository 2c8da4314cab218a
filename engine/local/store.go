package local

import (
	"errors"
	"fmt"
	"strings"

	"github.com/viant/mmkv/engine"
	"go.uber.org/zap"
)

// Separator delimits the instance id from the key in the flat storage.
const Separator = `\`

// ErrSeparator is returned for ids or keys containing Separator.
var ErrSeparator = errors.New("local: id and key cannot contain the backslash character")

// Store is a Handle over a namespace of a shared flat Storage. Every key is
// stored as "<id>\<key>". Values are kept as text, so getters reinterpret them.
type Store struct {
	id       string
	prefix   string
	storage  Storage
	readOnly bool
	logger   *zap.Logger
}

func newStore(id string, storage Storage, readOnly bool, logger *zap.Logger) (*Store, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return &Store{id: id, prefix: id + Separator, storage: storage, readOnly: readOnly, logger: logger}, nil
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("local: id is required")
	}
	if strings.Contains(id, Separator) {
		return fmt.Errorf("%w: id %q", ErrSeparator, id)
	}
	return nil
}

func (s *Store) prefixedKey(key string) (string, error) {
	if strings.Contains(key, Separator) {
		return "", fmt.Errorf("%w: key %q", ErrSeparator, key)
	}
	return s.prefix + key, nil
}

func (s *Store) Set(key string, value engine.Value) error {
	if err := engine.ValidateKey(key); err != nil {
		return err
	}
	if s.readOnly {
		return engine.ErrReadOnly
	}
	pk, err := s.prefixedKey(key)
	if err != nil {
		return err
	}
	return s.storage.SetItem(pk, value.Text())
}

func (s *Store) Get(key string) (engine.Value, bool) {
	pk, err := s.prefixedKey(key)
	if err != nil {
		return engine.Value{}, false
	}
	text, ok, err := s.storage.GetItem(pk)
	if err != nil {
		s.logger.Warn("get item failed", zap.String("id", s.id), zap.String("key", key), zap.Error(err))
		return engine.Value{}, false
	}
	if !ok {
		return engine.Value{}, false
	}
	return engine.String(text), true
}

func (s *Store) Contains(key string) bool {
	_, ok := s.Get(key)
	return ok
}

func (s *Store) Remove(key string) (bool, error) {
	if s.readOnly {
		return false, engine.ErrReadOnly
	}
	pk, err := s.prefixedKey(key)
	if err != nil {
		return false, err
	}
	return s.storage.RemoveItem(pk)
}

func (s *Store) Keys() []string {
	keys, err := s.storage.Keys(s.prefix)
	if err != nil {
		s.logger.Warn("list keys failed", zap.String("id", s.id), zap.Error(err))
		return nil
	}
	ret := make([]string, 0, len(keys))
	for _, k := range keys {
		ret = append(ret, strings.TrimPrefix(k, s.prefix))
	}
	return ret
}

func (s *Store) ClearAll() ([]string, error) {
	if s.readOnly {
		return nil, engine.ErrReadOnly
	}
	keys, err := s.storage.Keys(s.prefix)
	if err != nil {
		return nil, err
	}
	var removed []string
	var errs []error
	for _, k := range keys {
		ok, err := s.storage.RemoveItem(k)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			removed = append(removed, strings.TrimPrefix(k, s.prefix))
		}
	}
	return removed, errors.Join(errs...)
}

// Size returns the total length of keys and values of this namespace.
func (s *Store) Size() int64 {
	keys, err := s.storage.Keys(s.prefix)
	if err != nil {
		return 0
	}
	var size int64
	for _, k := range keys {
		v, ok, err := s.storage.GetItem(k)
		if err != nil || !ok {
			continue
		}
		size += int64(len(k) + len(v))
	}
	return size
}

func (s *Store) IsReadOnly() bool { return s.readOnly }

func (s *Store) Recrypt(string, engine.EncryptionType) error {
	return fmt.Errorf("local: recrypt %w", engine.ErrNotSupported)
}

func (s *Store) Trim() error { return nil }

func (s *Store) TypeModel() engine.TypeModel { return engine.Untyped }

func (s *Store) Close() error { return nil }

var _ engine.Handle = (*Store)(nil)
