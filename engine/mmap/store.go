package mmap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/viant/mmkv/engine"
	"go.uber.org/zap"
)

const (
	logExt  = ".mmkv"
	metaExt = ".meta"
	lockExt = ".lock"
	// pathExt files under the factory root hold the directory of a store kept elsewhere.
	pathExt = ".path"
)

// Options configures a Store.
type Options struct {
	// Dir is the directory holding the log, meta and lock files.
	Dir string
	// Name is the file base name; defaults to ID.
	Name           string
	ID             string
	EncryptionKey  string
	EncryptionType engine.EncryptionType
	Mode           engine.Mode
	ReadOnly       bool
	Logger         *zap.Logger
}

func (o *Options) withDefaults() {
	if o.Name == "" {
		o.Name = o.ID
	}
	if o.Mode == "" {
		o.Mode = engine.SingleProcess
	}
	if o.EncryptionType == "" {
		o.EncryptionType = engine.AES128
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Stats exposes basic runtime metrics.
type Stats struct {
	Appends      uint64 `json:"appends"`
	BytesWritten uint64 `json:"bytesWritten"`
	Compactions  uint64 `json:"compactions"`
	Reloads      uint64 `json:"reloads"`
}

// Store is an engine.Handle persisting one keyspace as an append-only log.
// The full keyspace is kept in memory; the log is replayed on open and
// compacted on Trim, ClearAll and Recrypt.
type Store struct {
	mu       sync.RWMutex
	id       string
	dir      string
	name     string
	encType  engine.EncryptionType
	readOnly bool
	log      *logFile
	lockFile *os.File
	cipher   *streamCipher
	meta     *meta
	index    map[string]engine.Value
	observed int64
	closed   bool
	logger   *zap.Logger
	stats    Stats
}

// Open creates or opens the Store described by opts.
func Open(opts Options) (*Store, error) {
	opts.withDefaults()
	if opts.Dir == "" {
		return nil, fmt.Errorf("mmap: Dir is required")
	}
	if opts.ID == "" {
		return nil, fmt.Errorf("mmap: ID is required")
	}
	if err := opts.EncryptionType.ValidateKey(opts.EncryptionKey); err != nil {
		return nil, err
	}
	if !opts.ReadOnly {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("mmap: mkdir: %w", err)
		}
	}
	st := &Store{
		id:       opts.ID,
		dir:      opts.Dir,
		name:     opts.Name,
		encType:  opts.EncryptionType,
		readOnly: opts.ReadOnly,
		index:    map[string]engine.Value{},
		logger:   opts.Logger.With(zap.String("id", opts.ID)),
	}
	if opts.Mode == engine.MultiProcess {
		if err := st.openLock(); err != nil {
			return nil, err
		}
	}
	if err := st.withLock(func() error { return st.loadOrInit(opts.EncryptionKey) }); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func (s *Store) path(ext string) string {
	return filepath.Join(s.dir, s.name+ext)
}

func (s *Store) openLock() error {
	f, err := os.OpenFile(s.path(lockExt), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil && s.readOnly {
		f, err = os.Open(s.path(lockExt))
	}
	if err != nil {
		return fmt.Errorf("mmap: open lock: %w", err)
	}
	s.lockFile = f
	return nil
}

// withLock runs fn holding the inter-process lock in multi-process mode.
func (s *Store) withLock(fn func() error) error {
	if s.lockFile == nil {
		return fn()
	}
	if err := lockExclusiveBlocking(s.lockFile); err != nil {
		return fmt.Errorf("mmap: lock: %w", err)
	}
	defer func() { _ = unlockFile(s.lockFile) }()
	return fn()
}

func (s *Store) loadOrInit(key string) error {
	m, err := loadMeta(s.path(metaExt))
	if err != nil {
		return err
	}
	var requested *streamCipher
	if key != "" {
		if requested, err = newCipher(key, s.encType); err != nil {
			return err
		}
	}
	encrypted := m != nil && m.Cipher != ""
	if encrypted {
		if requested == nil || requested.check() != m.KeyCheck {
			return fmt.Errorf("%w: key does not match instance %q", engine.ErrInvalidKey, s.id)
		}
		s.cipher = requested
	}
	s.meta = m
	if err := s.openLogLocked(); err != nil {
		return err
	}
	if err := s.replayLocked(); err != nil {
		return err
	}
	switch {
	case requested != nil && !encrypted && m == nil && s.readOnly:
		s.cipher = requested
		return nil
	case requested != nil && !encrypted:
		if s.readOnly {
			return fmt.Errorf("%w: instance %q is not encrypted", engine.ErrInvalidKey, s.id)
		}
		return s.rewriteLocked(requested)
	case m == nil && !s.readOnly:
		s.meta = &meta{Version: metaVersion, ID: s.id, CreatedAt: time.Now()}
		return persistMeta(s.path(metaExt), s.meta)
	}
	return nil
}

func (s *Store) openLogLocked() error {
	lf, err := openLogFile(s.path(logExt), s.readOnly)
	if err != nil {
		if s.readOnly && errors.Is(err, os.ErrNotExist) {
			s.log = nil
			return nil
		}
		return fmt.Errorf("mmap: open log: %w", err)
	}
	s.log = lf
	return nil
}

func (s *Store) replayLocked() error {
	s.index = map[string]engine.Value{}
	s.observed = 0
	if s.log == nil {
		return nil
	}
	_ = s.log.remap()
	end, err := s.log.scan(s.apply)
	if err != nil {
		return err
	}
	if end < s.log.size {
		s.logger.Warn("truncating invalid log tail", zap.Int64("offset", end), zap.Int64("size", s.log.size))
		if s.readOnly {
			s.log.size = end
		} else if err := s.log.truncate(end); err != nil {
			return err
		}
	}
	s.observed = s.log.size
	return nil
}

func (s *Store) apply(kind byte, payload []byte) error {
	if s.cipher != nil {
		var err error
		if payload, err = s.cipher.open(payload); err != nil {
			return err
		}
	}
	switch kind {
	case kindPut:
		entry, err := engine.UnmarshalEntry(payload)
		if err != nil {
			return fmt.Errorf("mmap: decode entry: %w", err)
		}
		s.index[entry.Key] = entry.Value
	case kindTombstone:
		delete(s.index, string(payload))
	default:
		return fmt.Errorf("%w: unknown record kind 0x%x", engine.ErrCorrupt, kind)
	}
	return nil
}

// refreshLocked reloads the keyspace when another process changed the log.
func (s *Store) refreshLocked() error {
	if s.lockFile == nil || s.closed {
		return nil
	}
	info, err := os.Stat(s.path(logExt))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && s.log == nil {
			return nil
		}
		return err
	}
	if s.log != nil && os.SameFile(info, s.log.info) && info.Size() == s.observed {
		return nil
	}
	m, err := loadMeta(s.path(metaExt))
	if err != nil {
		return err
	}
	if m == nil || m.Cipher == "" {
		s.cipher = nil
	} else if s.cipher == nil || s.cipher.check() != m.KeyCheck {
		return fmt.Errorf("%w: instance %q was re-keyed by another process", engine.ErrInvalidKey, s.id)
	}
	s.meta = m
	if s.log != nil {
		_ = s.log.close(false)
		s.log = nil
	}
	if err := s.openLogLocked(); err != nil {
		return err
	}
	s.stats.Reloads++
	return s.replayLocked()
}

func (s *Store) appendLocked(kind byte, payload []byte) error {
	if s.cipher != nil {
		var err error
		if payload, err = s.cipher.seal(payload); err != nil {
			return err
		}
	}
	if s.log == nil {
		if err := s.reopenLogLocked(); err != nil {
			return err
		}
	}
	n, err := s.log.append(kind, payload)
	if err != nil {
		return err
	}
	s.observed = s.log.size
	s.stats.Appends++
	s.stats.BytesWritten += uint64(n)
	return nil
}

// rewriteLocked compacts the live keyspace into a fresh log sealed with c.
func (s *Store) rewriteLocked(c *streamCipher) error {
	logPath := s.path(logExt)
	tmp := logPath + ".tmp"
	lf, err := openLogFile(tmp, false)
	if err != nil {
		return fmt.Errorf("mmap: open compaction file: %w", err)
	}
	if err := lf.truncate(0); err != nil {
		_ = lf.close(false)
		_ = os.Remove(tmp)
		return err
	}
	for key, value := range s.index {
		payload, err := engine.MarshalEntry(key, value)
		if err == nil && c != nil {
			payload, err = c.seal(payload)
		}
		if err == nil {
			_, err = lf.append(kindPut, payload)
		}
		if err != nil {
			_ = lf.close(false)
			_ = os.Remove(tmp)
			return err
		}
	}
	if err := lf.close(true); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if s.log != nil {
		_ = s.log.close(false)
		s.log = nil
	}
	if err := os.Rename(tmp, logPath); err != nil {
		_ = os.Remove(tmp)
		err = fmt.Errorf("mmap: replace log: %w", err)
		if reopenErr := s.reopenLogLocked(); reopenErr != nil {
			return errors.Join(err, reopenErr)
		}
		return err
	}
	createdAt := time.Now()
	if s.meta != nil {
		createdAt = s.meta.CreatedAt
	}
	s.cipher = c
	s.meta = &meta{Version: metaVersion, ID: s.id, CreatedAt: createdAt, Cipher: c.name(), KeyCheck: c.keyCheck()}
	if err := persistMeta(s.path(metaExt), s.meta); err != nil {
		return err
	}
	if err := s.reopenLogLocked(); err != nil {
		return err
	}
	s.stats.Compactions++
	return nil
}

// reopenLogLocked opens the current log file after it was closed for a rewrite.
func (s *Store) reopenLogLocked() error {
	if err := s.openLogLocked(); err != nil {
		return err
	}
	if s.log == nil {
		return fmt.Errorf("mmap: log of %q is missing", s.id)
	}
	_ = s.log.remap()
	s.observed = s.log.size
	return nil
}

func (s *Store) writableLocked() error {
	if s.closed {
		return engine.ErrClosed
	}
	if s.readOnly {
		return engine.ErrReadOnly
	}
	return nil
}

// update runs fn under the store mutex and the inter-process lock after
// reloading changes made by other processes.
func (s *Store) update(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writableLocked(); err != nil {
		return err
	}
	return s.withLock(func() error {
		if err := s.refreshLocked(); err != nil {
			return err
		}
		return fn()
	})
}

// view runs fn with a consistent keyspace. In multi-process mode it reloads first.
func (s *Store) view(fn func()) {
	if s.lockFile == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		fn()
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.withLock(s.refreshLocked); err != nil {
		s.logger.Warn("refresh failed", zap.Error(err))
	}
	fn()
}

func (s *Store) Set(key string, value engine.Value) error {
	if err := engine.ValidateKey(key); err != nil {
		return err
	}
	payload, err := engine.MarshalEntry(key, value)
	if err != nil {
		return err
	}
	return s.update(func() error {
		if err := s.appendLocked(kindPut, payload); err != nil {
			return err
		}
		s.index[key] = value
		return nil
	})
}

func (s *Store) Get(key string) (value engine.Value, ok bool) {
	s.view(func() {
		if !s.closed {
			value, ok = s.index[key]
		}
	})
	return value, ok
}

func (s *Store) Contains(key string) bool {
	_, ok := s.Get(key)
	return ok
}

func (s *Store) Remove(key string) (removed bool, err error) {
	err = s.update(func() error {
		if _, ok := s.index[key]; !ok {
			return nil
		}
		if err := s.appendLocked(kindTombstone, []byte(key)); err != nil {
			return err
		}
		delete(s.index, key)
		removed = true
		return nil
	})
	return removed, err
}

func (s *Store) Keys() (keys []string) {
	s.view(func() {
		keys = make([]string, 0, len(s.index))
		for k := range s.index {
			keys = append(keys, k)
		}
	})
	return keys
}

func (s *Store) ClearAll() (keys []string, err error) {
	err = s.update(func() error {
		previous := s.index
		s.index = map[string]engine.Value{}
		if err := s.rewriteLocked(s.cipher); err != nil {
			s.index = previous
			return err
		}
		keys = make([]string, 0, len(previous))
		for k := range previous {
			keys = append(keys, k)
		}
		return nil
	})
	return keys, err
}

// Size returns the log size in bytes.
func (s *Store) Size() (size int64) {
	s.view(func() {
		if s.log != nil {
			size = s.log.size
		}
	})
	return size
}

func (s *Store) IsReadOnly() bool { return s.readOnly }

func (s *Store) Recrypt(key string, typ engine.EncryptionType) error {
	var c *streamCipher
	if key != "" {
		var err error
		if c, err = newCipher(key, typ); err != nil {
			return err
		}
	}
	return s.update(func() error { return s.rewriteLocked(c) })
}

// Trim compacts the log. It is a no-op on read-only or closed stores.
func (s *Store) Trim() error {
	s.mu.RLock()
	skip := s.readOnly || s.closed
	s.mu.RUnlock()
	if skip {
		return nil
	}
	return s.update(func() error { return s.rewriteLocked(s.cipher) })
}

func (s *Store) TypeModel() engine.TypeModel { return engine.Tagged }

// Stats returns a snapshot of runtime metrics.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Encrypted reports whether the log is currently encrypted.
func (s *Store) Encrypted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cipher != nil
}

// Close flushes and closes the log and lock files.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.index = nil
	var firstErr error
	if s.log != nil {
		firstErr = s.log.close(!s.readOnly)
		s.log = nil
	}
	if s.lockFile != nil {
		if err := s.lockFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.lockFile = nil
	}
	return firstErr
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

var _ engine.Handle = (*Store)(nil)
