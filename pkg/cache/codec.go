package cache

import "encoding/json"

// Codec converts values to and from their cached byte form.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(b []byte) (T, error)
}

type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec[T]) Decode(b []byte) (T, error) {
	var v T
	err := json.Unmarshal(b, &v)
	return v, err
}

type StringCodec struct{}

func (StringCodec) Encode(v string) ([]byte, error) { return []byte(v), nil }
func (StringCodec) Decode(b []byte) (string, error) { return string(b), nil }

// Portable is implemented by types with their own stable wire form.
type Portable interface {
	ToPortable() ([]byte, error)
}

// PortableCodec encodes with the value's ToPortable and decodes with FromPortable.
type PortableCodec[T Portable] struct {
	FromPortable func([]byte) (T, error)
}

func (c PortableCodec[T]) Encode(v T) ([]byte, error) {
	return v.ToPortable()
}

func (c PortableCodec[T]) Decode(b []byte) (T, error) {
	return c.FromPortable(b)
}
