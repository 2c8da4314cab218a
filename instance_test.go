package mmkv

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mmkv/engine"
	"github.com/viant/mmkv/engine/local"
)

func TestInstance_RoundTrip(t *testing.T) {
	for name, r := range registries(t) {
		inst, err := r.Create(Configuration{ID: "round-trip"})
		require.NoError(t, err, name)

		require.NoError(t, inst.SetBool("bool", true), name)
		require.NoError(t, inst.SetString("string", "zażółć gęślą jaźń"), name)
		require.NoError(t, inst.SetNumber("number", 3.14159), name)
		require.NoError(t, inst.SetBuffer("buffer", []byte("raw-bytes")), name)

		b, ok := inst.GetBool("bool")
		assert.True(t, ok, name)
		assert.True(t, b, name)
		s, ok := inst.GetString("string")
		assert.True(t, ok, name)
		assert.Equal(t, "zażółć gęślą jaźń", s, name)
		n, ok := inst.GetNumber("number")
		assert.True(t, ok, name)
		assert.Equal(t, 3.14159, n, name)
		buf, ok := inst.GetBuffer("buffer")
		assert.True(t, ok, name)
		assert.Equal(t, []byte("raw-bytes"), buf, name)

		assert.Equal(t, []string{"bool", "buffer", "number", "string"}, inst.Keys(), name)
		assert.Greater(t, inst.Size(), int64(0), name)

		_, ok = inst.GetString("missing")
		assert.False(t, ok, name)
	}
}

func TestInstance_Overwrite(t *testing.T) {
	for name, r := range registries(t) {
		inst, err := r.Create(Configuration{ID: "overwrite"})
		require.NoError(t, err, name)
		require.NoError(t, inst.SetString("k", "first"), name)
		require.NoError(t, inst.SetNumber("k", 7), name)

		n, ok := inst.GetNumber("k")
		assert.True(t, ok, name)
		assert.Equal(t, 7.0, n, name)

		s, ok := inst.GetString("k")
		switch inst.TypeModel() {
		case engine.Tagged:
			assert.False(t, ok, name)
		case engine.Untyped:
			assert.True(t, ok, name)
			assert.Equal(t, "7", s, name)
		}
	}
}

func TestInstance_UntypedReinterpretation(t *testing.T) {
	r := registries(t)["local"]
	inst, err := r.Create(Configuration{ID: "untyped"})
	require.NoError(t, err)
	require.NoError(t, inst.SetString("text", "hello"))
	require.NoError(t, inst.SetString("flag", "true"))

	n, ok := inst.GetNumber("text")
	assert.True(t, ok)
	assert.True(t, math.IsNaN(n))
	b, ok := inst.GetBool("flag")
	assert.True(t, ok)
	assert.True(t, b)
	buf, ok := inst.GetBuffer("text")
	assert.True(t, ok)
	assert.Equal(t, []byte("hello"), buf)
}

func TestInstance_Deletion(t *testing.T) {
	for name, r := range registries(t) {
		inst, err := r.Create(Configuration{ID: "deletion"})
		require.NoError(t, err, name)
		require.NoError(t, inst.SetString("k", "v"), name)

		removed, err := inst.Remove("k")
		require.NoError(t, err, name)
		assert.True(t, removed, name)
		assert.False(t, inst.Contains("k"), name)
		_, ok := inst.GetString("k")
		assert.False(t, ok, name)

		removed, err = inst.Remove("k")
		require.NoError(t, err, name)
		assert.False(t, removed, name)
	}
}

func TestInstance_Isolation(t *testing.T) {
	for name, r := range registries(t) {
		a, err := r.Create(Configuration{ID: "a"})
		require.NoError(t, err, name)
		b, err := r.Create(Configuration{ID: "b"})
		require.NoError(t, err, name)

		var aEvents, bEvents int
		a.AddListener(func(string) { aEvents++ })
		b.AddListener(func(string) { bEvents++ })

		require.NoError(t, a.SetString("k", "v1"), name)
		require.NoError(t, b.SetString("k", "v2"), name)
		v1, _ := a.GetString("k")
		v2, _ := b.GetString("k")
		assert.Equal(t, "v1", v1, name)
		assert.Equal(t, "v2", v2, name)
		assert.Equal(t, 1, aEvents, name)
		assert.Equal(t, 1, bEvents, name)
	}
}

func TestInstance_NotificationFidelity(t *testing.T) {
	for name, r := range registries(t) {
		inst, err := r.Create(Configuration{ID: "notify"})
		require.NoError(t, err, name)
		var events []string
		listener := inst.AddListener(func(key string) { events = append(events, key) })

		require.NoError(t, inst.SetString("k", "1"), name)
		require.NoError(t, inst.SetString("k", "2"), name)
		_, err = inst.Remove("k")
		require.NoError(t, err, name)
		_, err = inst.Remove("k")
		require.NoError(t, err, name)
		inst.Contains("k")
		inst.GetString("k")
		require.NoError(t, inst.Trim(), name)
		assert.Equal(t, []string{"k", "k", "k"}, events, name)

		listener.Remove()
		listener.Remove()
		require.NoError(t, inst.SetString("k", "3"), name)
		assert.Len(t, events, 3, name)
		assert.Equal(t, 0, inst.Listeners(), name)
	}
}

func TestInstance_ClearAllFanOut(t *testing.T) {
	for name, r := range registries(t) {
		inst, err := r.Create(Configuration{ID: "clear"})
		require.NoError(t, err, name)
		for _, key := range []string{"a", "b", "c"} {
			require.NoError(t, inst.SetBool(key, true), name)
		}
		var events []string
		inst.AddListener(func(key string) { events = append(events, key) })

		require.NoError(t, inst.ClearAll(), name)
		assert.Equal(t, []string{"a", "b", "c"}, events, name)
		assert.Empty(t, inst.Keys(), name)
	}
}

func TestInstance_EmptyKey(t *testing.T) {
	for name, r := range registries(t) {
		inst, err := r.Default()
		require.NoError(t, err, name)
		events := 0
		inst.AddListener(func(string) { events++ })

		for _, value := range []engine.Value{engine.Bool(true), engine.String("x"), engine.Number(1), engine.Buffer(nil)} {
			err := inst.Set("", value)
			var configErr *ConfigError
			assert.True(t, errors.As(err, &configErr), name)
			assert.ErrorIs(t, err, ErrEmptyKey, name)
		}
		_, err = inst.Remove("")
		assert.ErrorIs(t, err, ErrEmptyKey, name)
		assert.False(t, inst.Contains(""), name)
		assert.Empty(t, inst.Keys(), name)
		assert.Equal(t, 0, events, name)
		assert.Error(t, inst.Set("k", engine.Value{}), name)
	}
}

func TestInstance_EncryptionRoundTrip(t *testing.T) {
	r := registries(t)["mmap"]
	inst, err := r.Create(Configuration{ID: "crypto"})
	require.NoError(t, err)
	require.NoError(t, inst.SetString("k", "v"))

	require.NoError(t, inst.Encrypt("0123456789abcdef", AES128))
	s, ok := inst.GetString("k")
	assert.True(t, ok)
	assert.Equal(t, "v", s)
	assert.Equal(t, "0123456789abcdef", inst.Config().EncryptionKey)

	require.NoError(t, inst.Recrypt("fedcba9876543210"))
	require.NoError(t, inst.Decrypt())
	s, ok = inst.GetString("k")
	assert.True(t, ok)
	assert.Equal(t, "v", s)
	assert.Empty(t, inst.Config().EncryptionKey)

	err = inst.Encrypt("0123456789abcdef0123456789abcdef-long", AES256)
	var configErr *ConfigError
	require.True(t, errors.As(err, &configErr))
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.Error(t, inst.Encrypt("", AES128))
}

func TestInstance_EncryptedReopen(t *testing.T) {
	base := t.TempDir()
	cfg := Configuration{ID: "vault", EncryptionKey: "0123456789abcdef0123456789abcdef", EncryptionType: AES256}
	r := New(WithFallback(FallbackNone), WithPlatform(StaticPlatform{Base: base}))
	inst, err := r.Create(cfg)
	require.NoError(t, err)
	require.NoError(t, inst.SetNumber("pin", 1234))
	require.NoError(t, r.Close())

	wrong := New(WithFallback(FallbackNone), WithPlatform(StaticPlatform{Base: base}))
	defer wrong.Close()
	_, err = wrong.Create(Configuration{ID: "vault", EncryptionKey: "not-the-key", EncryptionType: AES256})
	var configErr *ConfigError
	require.True(t, errors.As(err, &configErr))
	assert.ErrorIs(t, err, ErrInvalidKey)

	right := New(WithFallback(FallbackNone), WithPlatform(StaticPlatform{Base: base}))
	defer right.Close()
	inst, err = right.Create(cfg)
	require.NoError(t, err)
	n, ok := inst.GetNumber("pin")
	assert.True(t, ok)
	assert.Equal(t, 1234.0, n)
}

func TestInstance_FallbackRecryptUnsupported(t *testing.T) {
	for _, name := range []string{"memory", "local"} {
		inst, err := registries(t)[name].Default()
		require.NoError(t, err, name)
		err = inst.Encrypt("key", AES128)
		var configErr *ConfigError
		assert.True(t, errors.As(err, &configErr), name)
		assert.ErrorIs(t, err, ErrNotSupported, name)
	}
}

func TestInstance_ReadOnly(t *testing.T) {
	base := t.TempDir()
	writer := New(WithFallback(FallbackNone), WithPlatform(StaticPlatform{Base: base}))
	inst, err := writer.Create(Configuration{ID: "ro"})
	require.NoError(t, err)
	require.NoError(t, inst.SetString("k", "v"))
	require.NoError(t, writer.Close())

	reader := New(WithFallback(FallbackNone), WithPlatform(StaticPlatform{Base: base}))
	defer reader.Close()
	ro, err := reader.Create(Configuration{ID: "ro", ReadOnly: true})
	require.NoError(t, err)
	assert.True(t, ro.IsReadOnly())
	events := 0
	ro.AddListener(func(string) { events++ })

	assert.ErrorIs(t, ro.SetString("k", "x"), ErrReadOnly)
	_, err = ro.Remove("k")
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.ErrorIs(t, ro.ClearAll(), ErrReadOnly)
	assert.ErrorIs(t, ro.Decrypt(), ErrReadOnly)
	assert.Equal(t, 0, events)
	s, ok := ro.GetString("k")
	assert.True(t, ok)
	assert.Equal(t, "v", s)
}

func TestInstance_ImportAllFrom(t *testing.T) {
	for name, r := range registries(t) {
		src, err := r.Create(Configuration{ID: "src"})
		require.NoError(t, err, name)
		dst, err := r.Create(Configuration{ID: "dst"})
		require.NoError(t, err, name)
		require.NoError(t, src.SetString("a", "1"), name)
		require.NoError(t, src.SetNumber("b", 2), name)
		require.NoError(t, dst.SetString("a", "old"), name)
		require.NoError(t, dst.SetString("c", "keep"), name)

		var events []string
		dst.AddListener(func(key string) { events = append(events, key) })
		count, err := dst.ImportAllFrom(src)
		require.NoError(t, err, name)
		assert.Equal(t, 2, count, name)
		assert.Equal(t, []string{"a", "b"}, events, name)
		a, _ := dst.GetString("a")
		assert.Equal(t, "1", a, name)
		assert.Equal(t, []string{"a", "b", "c"}, dst.Keys(), name)

		count, err = dst.ImportAllFrom(dst)
		require.NoError(t, err, name)
		assert.Equal(t, 0, count, name)
		_, err = dst.ImportAllFrom(nil)
		assert.Error(t, err, name)
	}
}

func TestInstance_ImportFrom(t *testing.T) {
	regs := registries(t)
	src, err := regs["memory"].Create(Configuration{ID: "filtered-src"})
	require.NoError(t, err)
	dst, err := regs["memory"].Create(Configuration{ID: "filtered-dst"})
	require.NoError(t, err)
	require.NoError(t, src.SetString("user.name", "ann"))
	require.NoError(t, src.SetString("user.token", "secret"))
	require.NoError(t, src.SetString("session", "s1"))

	count, err := dst.ImportFrom(src, func(key string, _ engine.Value) bool {
		return strings.HasPrefix(key, "user.") && key != "user.token"
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"user.name"}, dst.Keys())
}

func TestInstance_ImportSkipsFailingKeys(t *testing.T) {
	regs := registries(t)
	src, err := regs["memory"].Create(Configuration{ID: "mixed"})
	require.NoError(t, err)
	require.NoError(t, src.SetString("a", "1"))
	require.NoError(t, src.SetString(`bad\key`, "x"))
	require.NoError(t, src.SetNumber("z", 3))

	dst, err := regs["local"].Create(Configuration{ID: "target"})
	require.NoError(t, err)
	var events []string
	dst.AddListener(func(key string) { events = append(events, key) })

	count, err := dst.ImportAllFrom(src)
	require.Error(t, err)
	assert.ErrorIs(t, err, local.ErrSeparator)
	assert.Contains(t, err.Error(), `bad\\key`)
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"a", "z"}, events)
	assert.Equal(t, []string{"a", "z"}, dst.Keys())
	n, ok := dst.GetNumber("z")
	assert.True(t, ok)
	assert.Equal(t, 3.0, n)
}

func TestInstance_ImportAcrossEngines(t *testing.T) {
	regs := registries(t)
	src, err := regs["memory"].Create(Configuration{ID: "typed"})
	require.NoError(t, err)
	require.NoError(t, src.SetBool("flag", true))
	require.NoError(t, src.SetNumber("n", 1.5))

	dst, err := regs["mmap"].Create(Configuration{ID: "typed"})
	require.NoError(t, err)
	count, err := dst.ImportAllFrom(src)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	b, ok := dst.GetBool("flag")
	assert.True(t, ok)
	assert.True(t, b)
}

func TestInstance_ReentrantListener(t *testing.T) {
	for name, r := range registries(t) {
		inst, err := r.Create(Configuration{ID: "reentrant"})
		require.NoError(t, err, name)
		var events []string
		inst.AddListener(func(key string) {
			events = append(events, key)
			if key == "trigger" {
				require.NoError(t, inst.SetString("echo", "1"), name)
			}
		})
		require.NoError(t, inst.SetString("trigger", "1"), name)
		assert.Equal(t, []string{"trigger", "echo"}, events, name)
		assert.True(t, inst.Contains("echo"), name)
	}
}

func TestInstance_Describe(t *testing.T) {
	r := New(WithFallback(FallbackMemory))
	inst, err := r.Create(Configuration{ID: "desc"})
	require.NoError(t, err)
	require.NoError(t, inst.SetBool("b", true))
	require.NoError(t, inst.SetBool("a", false))
	assert.Equal(t, "MMKV (desc): [a, b]", inst.String())
	data, err := json.Marshal(inst)
	require.NoError(t, err)
	assert.JSONEq(t, `{"desc":["a","b"]}`, string(data))
}
