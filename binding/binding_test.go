package binding

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mmkv"
)

func newBinder(t *testing.T) *Binder {
	t.Helper()
	registry := mmkv.New(mmkv.WithFallback(mmkv.FallbackMemory))
	t.Cleanup(func() { _ = registry.Close() })
	return New(registry)
}

func TestBinding_CrossBindingRefresh(t *testing.T) {
	b := newBinder(t)
	first, err := b.String("name")
	require.NoError(t, err)
	defer first.Close()
	second, err := b.String("name")
	require.NoError(t, err)
	defer second.Close()

	_, ok := second.Get()
	assert.False(t, ok)

	require.NoError(t, first.Set("ann"))
	value, ok := second.Get()
	assert.True(t, ok)
	assert.Equal(t, "ann", value)
	assert.Equal(t, uint64(1), second.Version())

	require.NoError(t, first.Apply(nil))
	_, ok = second.Get()
	assert.False(t, ok)
	assert.Equal(t, uint64(2), second.Version())
}

func TestBinding_ExternalWrite(t *testing.T) {
	b := newBinder(t)
	inst, err := b.registry.Create(mmkv.Configuration{ID: "profile"})
	require.NoError(t, err)
	require.NoError(t, inst.SetNumber("age", 30))

	age, err := b.Number("age", inst)
	require.NoError(t, err)
	defer age.Close()
	value, ok := age.Get()
	assert.True(t, ok)
	assert.Equal(t, 30.0, value)

	renders := 0
	age.Subscribe(func() { renders++ })
	require.NoError(t, inst.SetNumber("age", 31))
	require.NoError(t, inst.SetNumber("other", 1))
	value, _ = age.Get()
	assert.Equal(t, 31.0, value)
	assert.Equal(t, 1, renders)
}

func TestBinding_Apply(t *testing.T) {
	b := newBinder(t)
	counter, err := b.Number("counter")
	require.NoError(t, err)
	defer counter.Close()

	increment := func(prev float64, ok bool) (float64, bool) {
		if !ok {
			return 1, true
		}
		return prev + 1, true
	}
	require.NoError(t, counter.Apply(increment))
	require.NoError(t, counter.Apply(increment))
	value, _ := counter.Get()
	assert.Equal(t, 2.0, value)

	require.NoError(t, counter.Apply(10.0))
	value, _ = counter.Get()
	assert.Equal(t, 10.0, value)

	require.NoError(t, counter.Apply(func(prev float64, ok bool) (float64, bool) { return 0, false }))
	_, ok := counter.Get()
	assert.False(t, ok)

	err = counter.Apply("ten")
	assert.True(t, errors.Is(err, ErrUnsupportedType))
	err = counter.Apply(func(prev float64) float64 { return prev })
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestBinding_TypedKinds(t *testing.T) {
	b := newBinder(t)
	flag, err := b.Bool("flag")
	require.NoError(t, err)
	defer flag.Close()
	data, err := b.Buffer("data")
	require.NoError(t, err)
	defer data.Close()

	require.NoError(t, flag.Set(true))
	require.NoError(t, data.Set([]byte{1, 2}))
	v, ok := flag.Get()
	assert.True(t, ok)
	assert.True(t, v)
	buf, ok := data.Get()
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2}, buf)

	asString, err := b.String("flag")
	require.NoError(t, err)
	defer asString.Close()
	_, ok = asString.Get()
	assert.False(t, ok)
}

func TestBinding_Object(t *testing.T) {
	type user struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	b := newBinder(t)
	binding, err := Object[user](b, "user")
	require.NoError(t, err)
	defer binding.Close()

	require.NoError(t, binding.Set(user{Name: "ann", Age: 30}))
	value, ok := binding.Get()
	assert.True(t, ok)
	assert.Equal(t, user{Name: "ann", Age: 30}, value)

	inst, err := b.registry.Default()
	require.NoError(t, err)
	raw, _ := inst.GetString("user")
	assert.JSONEq(t, `{"name":"ann","age":30}`, raw)

	require.NoError(t, inst.SetString("user", "not json"))
	_, ok = binding.Get()
	assert.False(t, ok)

	require.NoError(t, binding.Apply(func(prev user, ok bool) (user, bool) {
		return user{Name: "bob"}, true
	}))
	value, _ = binding.Get()
	assert.Equal(t, "bob", value.Name)
}

func TestBinding_Close(t *testing.T) {
	b := newBinder(t)
	inst, err := b.registry.Default()
	require.NoError(t, err)
	binding, err := b.String("k")
	require.NoError(t, err)
	assert.Equal(t, 1, inst.Listeners())

	binding.Close()
	binding.Close()
	assert.Equal(t, 0, inst.Listeners())
	require.NoError(t, inst.SetString("k", "v"))
	_, ok := binding.Get()
	assert.False(t, ok)
	assert.Equal(t, uint64(0), binding.Version())
}

func TestBinding_EmptyKey(t *testing.T) {
	b := newBinder(t)
	_, err := b.String("")
	assert.ErrorIs(t, err, mmkv.ErrEmptyKey)
}

func TestKeysBinding(t *testing.T) {
	b := newBinder(t)
	inst, err := b.registry.Default()
	require.NoError(t, err)
	require.NoError(t, inst.SetString("a", "1"))

	var seen [][]string
	keys, err := b.Keys(func(keys []string) { seen = append(seen, keys) })
	require.NoError(t, err)
	defer keys.Close()
	assert.Equal(t, []string{"a"}, keys.Keys())
	assert.Equal(t, 1, keys.Recomputes())

	require.NoError(t, inst.SetString("a", "2"))
	assert.Equal(t, 1, keys.Recomputes())

	require.NoError(t, inst.SetString("b", "1"))
	assert.Equal(t, 2, keys.Recomputes())
	assert.Equal(t, []string{"a", "b"}, keys.Keys())

	_, err = inst.Remove("a")
	require.NoError(t, err)
	assert.Equal(t, 3, keys.Recomputes())
	assert.Equal(t, [][]string{{"a", "b"}, {"b"}}, seen)
}

func TestListen(t *testing.T) {
	b := newBinder(t)
	var keys []string
	listener, err := b.Listen(func(key string) { keys = append(keys, key) })
	require.NoError(t, err)
	inst, err := b.registry.Default()
	require.NoError(t, err)
	require.NoError(t, inst.SetBool("x", true))
	listener.Remove()
	require.NoError(t, inst.SetBool("y", true))
	assert.Equal(t, []string{"x"}, keys)
}

func TestRef(t *testing.T) {
	b := newBinder(t)
	ref := b.Ref()
	first, err := ref.Resolve(mmkv.Configuration{ID: "a"})
	require.NoError(t, err)
	again, err := ref.Resolve(mmkv.Configuration{ID: "a", ReadOnly: true})
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, ref.Resolutions())

	other, err := ref.Resolve(mmkv.Configuration{ID: "b"})
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, ref.Resolutions())
}
