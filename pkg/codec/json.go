package codec

import (
	"github.com/bytedance/sonic"
)

// JSONCodec is a codec that uses JSON for marshaling and unmarshaling.
// It is backed by sonic configured to behave like encoding/json.
type JSONCodec struct {
	api sonic.API
}

// NewJSONCodec creates a new JSONCodec compatible with encoding/json.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{api: sonic.ConfigStd}
}

// ContentType returns application/json.
func (c *JSONCodec) ContentType() string {
	return "application/json"
}

// Marshal encodes v as JSON. A nil value encodes to null.
func (c *JSONCodec) Marshal(v any) ([]byte, error) {
	return c.api.Marshal(v)
}

// Unmarshal decodes JSON data into v.
func (c *JSONCodec) Unmarshal(data []byte, v any) error {
	return c.api.Unmarshal(data, v)
}
