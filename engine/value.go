package engine

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/viant/bintly"
)

// Kind identifies one of the four supported value kinds.
type Kind uint8

const (
	KindBool Kind = iota + 1
	KindString
	KindNumber
	KindBuffer
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "boolean"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBuffer:
		return "buffer"
	default:
		return "unknown"
	}
}

// Value is a tagged union of boolean, UTF-8 string, float64 and raw bytes.
// The zero Value has no kind.
type Value struct {
	kind Kind
	b    bool
	s    string
	n    float64
	buf  []byte
}

// Bool wraps a boolean.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// String wraps a string.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Number wraps a float64.
func Number(v float64) Value { return Value{kind: KindNumber, n: v} }

// Buffer copies v so later mutations by the caller are not observed.
func Buffer(v []byte) Value {
	buf := make([]byte, len(v))
	copy(buf, v)
	return Value{kind: KindBuffer, buf: buf}
}

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsValid() bool { return v.kind != 0 }

func (v Value) AsBool() (bool, bool)      { return v.b, v.kind == KindBool }
func (v Value) AsString() (string, bool)  { return v.s, v.kind == KindString }
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsBuffer returns a copy of the bytes.
func (v Value) AsBuffer() ([]byte, bool) {
	if v.kind != KindBuffer {
		return nil, false
	}
	ret := make([]byte, len(v.buf))
	copy(ret, v.buf)
	return ret, true
}

// Len returns the payload length in bytes.
func (v Value) Len() int {
	switch v.kind {
	case KindBool:
		return 1
	case KindString:
		return len(v.s)
	case KindNumber:
		return 8
	case KindBuffer:
		return len(v.buf)
	}
	return 0
}

// Equal compares kind and payload; NaN numbers compare equal to each other.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	case KindNumber:
		return v.n == o.n || (math.IsNaN(v.n) && math.IsNaN(o.n))
	case KindBuffer:
		return bytes.Equal(v.buf, o.buf)
	}
	return true
}

// Text returns the textual form used by untyped stores.
func (v Value) Text() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.s
	case KindNumber:
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	case KindBuffer:
		return string(v.buf)
	}
	return ""
}

// Convert returns v as kind. Under the Tagged model only an exact kind matches;
// under the Untyped model the textual form is reinterpreted.
func Convert(v Value, kind Kind, model TypeModel) (Value, bool) {
	if !v.IsValid() {
		return Value{}, false
	}
	if v.kind == kind {
		return v, true
	}
	if model != Untyped {
		return Value{}, false
	}
	text := v.Text()
	switch kind {
	case KindString:
		return String(text), true
	case KindBool:
		return Bool(text == "true"), true
	case KindNumber:
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			n = math.NaN()
		}
		return Number(n), true
	case KindBuffer:
		return Value{kind: KindBuffer, buf: []byte(text)}, true
	}
	return Value{}, false
}

// EncodeBinary encodes the value to a binary stream.
func (v *Value) EncodeBinary(stream *bintly.Writer) error {
	stream.Uint8(uint8(v.kind))
	switch v.kind {
	case KindBool:
		stream.Bool(v.b)
	case KindString:
		stream.String(v.s)
	case KindNumber:
		stream.Float64(v.n)
	case KindBuffer:
		stream.Uint8s(v.buf)
	default:
		return fmt.Errorf("unsupported EncodeBinary kind %d", v.kind)
	}
	return nil
}

// DecodeBinary decodes the value from a binary stream.
func (v *Value) DecodeBinary(stream *bintly.Reader) error {
	var kind uint8
	stream.Uint8(&kind)
	v.kind = Kind(kind)
	switch v.kind {
	case KindBool:
		stream.Bool(&v.b)
	case KindString:
		stream.String(&v.s)
	case KindNumber:
		stream.Float64(&v.n)
	case KindBuffer:
		stream.Uint8s(&v.buf)
	default:
		return fmt.Errorf("%w: unknown value kind %d", ErrCorrupt, kind)
	}
	return nil
}

// Entry is a key with its value, the unit persisted by log based engines.
type Entry struct {
	Key   string
	Value Value
}

// EncodeBinary encodes the entry to a binary stream.
func (e *Entry) EncodeBinary(stream *bintly.Writer) error {
	stream.String(e.Key)
	return e.Value.EncodeBinary(stream)
}

// DecodeBinary decodes the entry from a binary stream.
func (e *Entry) DecodeBinary(stream *bintly.Reader) error {
	stream.String(&e.Key)
	return e.Value.DecodeBinary(stream)
}

var (
	writers = bintly.NewWriters()
	readers = bintly.NewReaders()
)

// MarshalEntry encodes key and value.
func MarshalEntry(key string, value Value) ([]byte, error) {
	w := writers.Get()
	defer writers.Put(w)
	entry := Entry{Key: key, Value: value}
	if err := entry.EncodeBinary(w); err != nil {
		return nil, err
	}
	bs := w.Bytes()
	ret := make([]byte, len(bs))
	copy(ret, bs)
	return ret, nil
}

// UnmarshalEntry decodes an entry produced by MarshalEntry.
func UnmarshalEntry(data []byte) (entry Entry, err error) {
	r := readers.Get()
	defer readers.Put(r)
	if err = r.FromBytes(data); err != nil {
		return entry, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrCorrupt, rec)
		}
	}()
	err = entry.DecodeBinary(r)
	return entry, err
}

// ValidateKey rejects the empty key.
func ValidateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}
