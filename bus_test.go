package mmkv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_SnapshotDispatch(t *testing.T) {
	b := &bus{}
	var calls []string
	var second *Listener
	first := b.add(func(key string) {
		calls = append(calls, "first:"+key)
		second.Remove()
		b.add(func(key string) { calls = append(calls, "late:"+key) })
	})
	second = b.add(func(key string) { calls = append(calls, "second:"+key) })

	assert.Equal(t, 1, b.notify("k"))
	assert.Equal(t, []string{"first:k"}, calls)
	assert.Equal(t, 2, b.len())

	first.Remove()
	first.Remove()
	calls = nil
	b.notify("x")
	assert.Equal(t, []string{"late:x"}, calls)
}

func TestListener_Token(t *testing.T) {
	b := &bus{}
	l1 := b.add(func(string) {})
	l2 := b.add(func(string) {})
	assert.NotEmpty(t, l1.Token())
	assert.NotEqual(t, l1.Token(), l2.Token())

	var nilListener *Listener
	assert.NotPanics(t, nilListener.Remove)
}

func TestSignal(t *testing.T) {
	s := newSignal()
	count := 0
	release := s.subscribe(func() { count++ })
	s.subscribe(func() { count++ })
	assert.Equal(t, 2, s.emit())
	release()
	release()
	assert.Equal(t, 1, s.emit())
	assert.Equal(t, 3, count)
	assert.Equal(t, 1, s.len())
}
