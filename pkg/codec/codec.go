// Package codec provides encoding and decoding functionality for different data formats.
package codec

import (
	"fmt"
	"io"
	"net/http"
)

// Encoder serializes a response payload to its wire format.
type Encoder interface {
	// ContentType is the media type written alongside the encoded body.
	ContentType() string

	// Marshal converts v to the wire format.
	Marshal(v any) ([]byte, error)
}

// Decoder deserializes wire data into a Go value.
type Decoder interface {
	// Unmarshal decodes data into v, which must be a pointer.
	Unmarshal(data []byte, v any) error
}

// Codec is both an Encoder and a Decoder.
type Codec interface {
	Encoder
	Decoder
}

// Decode reads the whole request body and decodes it into a new T using c.
func Decode[T any](c Decoder, r *http.Request) (T, error) {
	var data T

	// Read the request body
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return data, fmt.Errorf("read request body: %w", err)
	}
	defer r.Body.Close()

	if err := c.Unmarshal(body, &data); err != nil {
		return data, fmt.Errorf("decode request body: %w", err)
	}
	return data, nil
}
