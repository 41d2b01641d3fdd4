package codec

import (
	"errors"
	"reflect"
)

// Marshaler is implemented by Protocol Buffers style messages.
type Marshaler interface {
	Marshal() ([]byte, error)
}

// Unmarshaler is implemented by Protocol Buffers style messages.
type Unmarshaler interface {
	Unmarshal([]byte) error
}

var (
	// ErrNotMarshaler is returned when a payload has no Marshal method.
	ErrNotMarshaler = errors.New("codec: value does not implement Marshal")

	// ErrNotUnmarshaler is returned when a target has no Unmarshal method.
	ErrNotUnmarshaler = errors.New("codec: value does not implement Unmarshal")
)

// ProtoCodec is a codec for Protocol Buffers messages.
// Values must implement Marshaler to be encoded and Unmarshaler (on a
// pointer) to be decoded.
type ProtoCodec struct{}

// NewProtoCodec creates a new ProtoCodec.
func NewProtoCodec() *ProtoCodec {
	return &ProtoCodec{}
}

// ContentType returns application/x-protobuf.
func (c *ProtoCodec) ContentType() string {
	return "application/x-protobuf"
}

// Marshal encodes v, which must implement Marshaler.
func (c *ProtoCodec) Marshal(v any) ([]byte, error) {
	msg, ok := v.(Marshaler)
	if !ok {
		return nil, ErrNotMarshaler
	}
	return msg.Marshal()
}

// Unmarshal decodes data into v. v must implement Unmarshaler, or be a
// pointer to a value that does (as produced by Decode for pointer types).
func (c *ProtoCodec) Unmarshal(data []byte, v any) error {
	if msg, ok := v.(Unmarshaler); ok {
		return msg.Unmarshal(data)
	}
	return unmarshalIndirect(data, v)
}

// unmarshalIndirect handles a pointer to a (possibly nil) message pointer,
// allocating the message before decoding into it.
func unmarshalIndirect(data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return ErrNotUnmarshaler
	}
	elem := rv.Elem()
	if elem.Kind() != reflect.Ptr {
		return ErrNotUnmarshaler
	}
	if elem.IsNil() {
		elem.Set(reflect.New(elem.Type().Elem()))
	}
	msg, ok := elem.Interface().(Unmarshaler)
	if !ok {
		return ErrNotUnmarshaler
	}
	return msg.Unmarshal(data)
}
