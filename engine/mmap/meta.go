package mmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const metaVersion = 1

// meta describes the log encryption; it is rewritten on every recrypt.
type meta struct {
	Version   int       `json:"version"`
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Cipher    string    `json:"cipher,omitempty"`
	KeyCheck  string    `json:"keyCheck,omitempty"`
}

func loadMeta(path string) (*meta, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mmap: open meta: %w", err)
	}
	defer f.Close()
	ret := &meta{}
	if err := json.NewDecoder(f).Decode(ret); err != nil {
		return nil, fmt.Errorf("mmap: decode meta: %w", err)
	}
	return ret, nil
}

func persistMeta(path string, m *meta) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
