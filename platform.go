package mmkv

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	envBaseDir     = "MMKV_BASE_DIR"
	envAppGroupDir = "MMKV_APP_GROUP_DIR"
	envFallback    = "MMKV_FALLBACK"
)

// Platform resolves the directories used to place instance files.
type Platform interface {
	// BaseDirectory returns the default root for instance files.
	BaseDirectory() (string, error)
	// AppGroupDirectory returns a directory shared with sibling applications, if any.
	AppGroupDirectory() (string, bool)
}

type envPlatform struct{}

// DefaultPlatform reads MMKV_BASE_DIR and MMKV_APP_GROUP_DIR, falling back
// to <user config dir>/mmkv-go for the base directory.
func DefaultPlatform() Platform { return envPlatform{} }

func (envPlatform) BaseDirectory() (string, error) {
	if dir := os.Getenv(envBaseDir); dir != "" {
		return expandUserPath(dir)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("mmkv: resolve base directory: %w", err)
	}
	return filepath.Join(dir, "mmkv-go"), nil
}

func (envPlatform) AppGroupDirectory() (string, bool) {
	dir := os.Getenv(envAppGroupDir)
	if dir == "" {
		return "", false
	}
	expanded, err := expandUserPath(dir)
	if err != nil {
		return "", false
	}
	return expanded, true
}

// StaticPlatform is a Platform with fixed directories.
type StaticPlatform struct {
	Base     string
	AppGroup string
}

// BaseDirectory returns Base.
func (p StaticPlatform) BaseDirectory() (string, error) {
	if p.Base == "" {
		return "", fmt.Errorf("mmkv: base directory is not set")
	}
	return p.Base, nil
}

// AppGroupDirectory returns AppGroup when set.
func (p StaticPlatform) AppGroupDirectory() (string, bool) {
	return p.AppGroup, p.AppGroup != ""
}
