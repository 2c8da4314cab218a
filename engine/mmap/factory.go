package mmap

import (
	"context"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/minio/highwayhash"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/mmkv/engine"
	"go.uber.org/zap"
)

var safeName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Factory opens log-backed stores under <rootPath>/mmkv.
type Factory struct {
	mu     sync.Mutex
	fs     afs.Service
	root   string
	dirs   map[string]string
	open   map[string][]*Store
	logger *zap.Logger
}

// Option configures a Factory.
type Option func(f *Factory)

// WithLogger sets the factory and store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Factory) { f.logger = logger }
}

// NewFactory creates a factory; Initialize must be called before Create.
func NewFactory(opts ...Option) *Factory {
	ret := &Factory{
		fs:     afs.New(),
		dirs:   map[string]string{},
		open:   map[string][]*Store{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Root returns the directory holding the default store files.
func (f *Factory) Root() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.root
}

func (f *Factory) Initialize(rootPath string) error {
	if !platformSupported {
		return fmt.Errorf("mmap: %w on this platform", engine.ErrNotSupported)
	}
	if rootPath == "" {
		return fmt.Errorf("mmap: root path is required")
	}
	root := filepath.Join(rootPath, "mmkv")
	ctx := context.Background()
	ok, err := f.fs.Exists(ctx, root)
	if err != nil {
		return fmt.Errorf("mmap: check root: %w", err)
	}
	if !ok {
		if err := f.fs.Create(ctx, root, file.DefaultDirOsMode, true); err != nil {
			return fmt.Errorf("mmap: create root: %w", err)
		}
	}
	f.mu.Lock()
	f.root = root
	f.mu.Unlock()
	f.logger.Debug("initialized", zap.String("root", root))
	return nil
}

func (f *Factory) Create(cfg engine.Config) (engine.Handle, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("mmap: id is required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.root == "" {
		return nil, fmt.Errorf("mmap: factory is not initialized")
	}
	dir := f.dirLocked(cfg.ID)
	if cfg.RootPath != "" {
		dir = cfg.RootPath
		if err := f.rememberDirLocked(cfg.ID, dir); err != nil {
			return nil, err
		}
	}
	st, err := Open(Options{
		Dir:            dir,
		Name:           fileName(cfg.ID),
		ID:             cfg.ID,
		EncryptionKey:  cfg.EncryptionKey,
		EncryptionType: cfg.EncryptionType,
		Mode:           cfg.Mode,
		ReadOnly:       cfg.ReadOnly,
		Logger:         f.logger,
	})
	if err != nil {
		return nil, err
	}
	live := f.open[cfg.ID][:0]
	for _, prev := range f.open[cfg.ID] {
		if !prev.isClosed() {
			live = append(live, prev)
		}
	}
	f.open[cfg.ID] = append(live, st)
	return st, nil
}

// Delete closes every store opened for id and removes its files, including
// stores kept under a custom path recorded by an earlier Create.
func (f *Factory) Delete(id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, st := range f.open[id] {
		_ = st.Close()
	}
	delete(f.open, id)
	ctx := context.Background()
	base := filepath.Join(f.dirLocked(id), fileName(id))
	existed := false
	for _, ext := range []string{logExt, metaExt, lockExt} {
		ok, err := f.fs.Exists(ctx, base+ext)
		if err != nil {
			return existed, err
		}
		if !ok {
			continue
		}
		if ext != lockExt {
			existed = true
		}
		if err := f.fs.Delete(ctx, base+ext); err != nil {
			return existed, fmt.Errorf("mmap: delete %s: %w", base+ext, err)
		}
	}
	pathURL := f.pathFileLocked(id)
	if ok, _ := f.fs.Exists(ctx, pathURL); ok {
		if err := f.fs.Delete(ctx, pathURL); err != nil {
			return existed, fmt.Errorf("mmap: delete %s: %w", pathURL, err)
		}
	}
	delete(f.dirs, id)
	return existed, nil
}

func (f *Factory) Exists(id string) (bool, error) {
	f.mu.Lock()
	dir := f.dirLocked(id)
	f.mu.Unlock()
	ctx := context.Background()
	for _, ext := range []string{logExt, metaExt} {
		ok, err := f.fs.Exists(ctx, filepath.Join(dir, fileName(id)+ext))
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (f *Factory) DefaultInstanceID() string { return engine.DefaultInstanceID }

// dirLocked returns the directory of id: a custom path from this process or
// from the path file under the root, else the root.
func (f *Factory) dirLocked(id string) string {
	if dir, ok := f.dirs[id]; ok {
		return dir
	}
	if f.root == "" {
		return f.root
	}
	data, err := f.fs.DownloadWithURL(context.Background(), f.pathFileLocked(id))
	if err != nil {
		return f.root
	}
	dir := strings.TrimSpace(string(data))
	if dir == "" {
		return f.root
	}
	f.dirs[id] = dir
	return dir
}

// rememberDirLocked records a custom directory for id so a later process can find it.
func (f *Factory) rememberDirLocked(id, dir string) error {
	if f.dirs[id] == dir {
		return nil
	}
	err := f.fs.Upload(context.Background(), f.pathFileLocked(id), file.DefaultFileOsMode, strings.NewReader(dir))
	if err != nil {
		return fmt.Errorf("mmap: record path of %q: %w", id, err)
	}
	f.dirs[id] = dir
	return nil
}

func (f *Factory) pathFileLocked(id string) string {
	return filepath.Join(f.root, fileName(id)+pathExt)
}

// fileName returns id when it is safe to use as a file name, otherwise a hash of it.
func fileName(id string) string {
	if safeName.MatchString(id) && id != "." && id != ".." {
		return id
	}
	sum := highwayhash.Sum128([]byte(id), hashKey)
	return "h" + hex.EncodeToString(sum[:])
}

var _ engine.Factory = (*Factory)(nil)
