package mmap

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mmkv/engine"
)

func TestFactory_Lifecycle(t *testing.T) {
	if !platformSupported {
		t.Skip("unsupported platform")
	}
	root := t.TempDir()
	f := NewFactory()
	require.NoError(t, f.Initialize(root))
	assert.Equal(t, filepath.Join(root, "mmkv"), f.Root())
	assert.Equal(t, engine.DefaultInstanceID, f.DefaultInstanceID())

	ok, err := f.Exists("users")
	require.NoError(t, err)
	assert.False(t, ok)

	h, err := f.Create(engine.Config{ID: "users"})
	require.NoError(t, err)
	require.NoError(t, h.Set("name", engine.String("ann")))

	ok, err = f.Exists("users")
	require.NoError(t, err)
	assert.True(t, ok)

	deleted, err := f.Delete("users")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.ErrorIs(t, h.Set("name", engine.String("bob")), engine.ErrClosed)

	deleted, err = f.Delete("users")
	require.NoError(t, err)
	assert.False(t, deleted)

	h, err = f.Create(engine.Config{ID: "users"})
	require.NoError(t, err)
	defer h.Close()
	assert.Empty(t, h.Keys())
}

func TestFactory_CustomPath(t *testing.T) {
	if !platformSupported {
		t.Skip("unsupported platform")
	}
	f := NewFactory()
	require.NoError(t, f.Initialize(t.TempDir()))
	custom := t.TempDir()

	h, err := f.Create(engine.Config{ID: "group/settings", RootPath: custom})
	require.NoError(t, err)
	require.NoError(t, h.Set("k", engine.Number(1)))
	require.NoError(t, h.Close())

	assert.FileExists(t, filepath.Join(custom, fileName("group/settings")+logExt))
	ok, err := f.Exists("group/settings")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFactory_CustomPathAfterRestart(t *testing.T) {
	if !platformSupported {
		t.Skip("unsupported platform")
	}
	root := t.TempDir()
	custom := t.TempDir()
	first := NewFactory()
	require.NoError(t, first.Initialize(root))
	h, err := first.Create(engine.Config{ID: "shared", RootPath: custom})
	require.NoError(t, err)
	require.NoError(t, h.Set("k", engine.String("v")))
	require.NoError(t, h.Close())

	second := NewFactory()
	require.NoError(t, second.Initialize(root))
	ok, err := second.Exists("shared")
	require.NoError(t, err)
	assert.True(t, ok)

	h, err = second.Create(engine.Config{ID: "shared"})
	require.NoError(t, err)
	v, found := h.Get("k")
	assert.True(t, found)
	text, _ := v.AsString()
	assert.Equal(t, "v", text)
	require.NoError(t, h.Close())

	deleted, err := second.Delete("shared")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.NoFileExists(t, filepath.Join(custom, fileName("shared")+logExt))
	assert.NoFileExists(t, filepath.Join(custom, fileName("shared")+metaExt))
	assert.NoFileExists(t, filepath.Join(root, "mmkv", fileName("shared")+pathExt))
}

func TestFactory_NotInitialized(t *testing.T) {
	_, err := NewFactory().Create(engine.Config{ID: "x"})
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "mmkv.default", fileName("mmkv.default"))
	hashed := fileName("a/b")
	assert.Len(t, hashed, 33)
	assert.Equal(t, hashed, fileName("a/b"))
	assert.NotEqual(t, hashed, fileName("a/c"))
	assert.NotEqual(t, "..", fileName(".."))
}
