package memory

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mmkv/engine"
)

func TestStore_Operations(t *testing.T) {
	s := New("test", false)

	require.NoError(t, s.Set("a", engine.String("abc")))
	require.NoError(t, s.Set("b", engine.Number(1)))
	assert.Equal(t, int64(len("a")+3+len("b")+8), s.Size())

	require.NoError(t, s.Set("a", engine.Bool(true)))
	_, ok := s.Get("a")
	assert.True(t, ok)
	v, _ := s.Get("a")
	_, isString := v.AsString()
	assert.False(t, isString)
	assert.Equal(t, int64(len("a")+1+len("b")+8), s.Size())

	removed, err := s.Remove("a")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.Remove("a")
	require.NoError(t, err)
	assert.False(t, removed)

	assert.ErrorIs(t, s.Set("", engine.Bool(true)), engine.ErrEmptyKey)
	assert.ErrorIs(t, s.Recrypt("k", engine.AES128), engine.ErrNotSupported)
	assert.NoError(t, s.Trim())
}

func TestStore_ClearAll(t *testing.T) {
	s := New("test", false)
	require.NoError(t, s.Set("x", engine.String("1")))
	require.NoError(t, s.Set("y", engine.String("2")))
	keys, err := s.ClearAll()
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"x", "y"}, keys)
	assert.Empty(t, s.Keys())
	assert.Equal(t, int64(0), s.Size())
}

func TestStore_ReadOnly(t *testing.T) {
	s := New("ro", true)
	assert.ErrorIs(t, s.Set("k", engine.String("v")), engine.ErrReadOnly)
	_, err := s.ClearAll()
	assert.ErrorIs(t, err, engine.ErrReadOnly)
}

func TestFactory_SharesKeyspace(t *testing.T) {
	f := NewFactory()
	first, err := f.Create(engine.Config{ID: "shared"})
	require.NoError(t, err)
	second, err := f.Create(engine.Config{ID: "shared", ReadOnly: true})
	require.NoError(t, err)
	other, err := f.Create(engine.Config{ID: "other"})
	require.NoError(t, err)

	require.NoError(t, first.Set("k", engine.String("v")))
	assert.True(t, second.Contains("k"))
	assert.False(t, other.Contains("k"))
	assert.True(t, second.IsReadOnly())
	assert.ErrorIs(t, second.Set("k", engine.String("x")), engine.ErrReadOnly)

	require.NoError(t, second.Close())
	assert.True(t, first.Contains("k"))

	ok, err := f.Exists("shared")
	require.NoError(t, err)
	assert.True(t, ok)
	deleted, err := f.Delete("shared")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = f.Delete("shared")
	require.NoError(t, err)
	assert.False(t, deleted)

	fresh, err := f.Create(engine.Config{ID: "shared"})
	require.NoError(t, err)
	assert.Empty(t, fresh.Keys())
}

func TestFactory_RejectsEncryption(t *testing.T) {
	_, err := NewFactory().Create(engine.Config{ID: "x", EncryptionKey: "key"})
	assert.ErrorIs(t, err, engine.ErrNotSupported)
}
