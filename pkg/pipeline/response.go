package pipeline

import (
	"fmt"
	"net/http"

	"github.com/checkmarble/marble-frontend-sub003/pkg/codec"
)

// Response is a fully formed transport response. A handler or middleware
// returning one as its payload bypasses serialization entirely.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Write copies the response to w. A zero status code writes 200.
func (r *Response) Write(w http.ResponseWriter) error {
	for name, values := range r.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	status := r.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(r.Body) == 0 {
		return nil
	}
	_, err := w.Write(r.Body)
	return err
}

// Redirect builds a redirect response to location.
func Redirect(location string, code int) *Response {
	h := http.Header{}
	h.Set("Location", location)
	return &Response{StatusCode: code, Header: h}
}

// Text builds a plain text response.
func Text(code int, body string) *Response {
	h := http.Header{}
	h.Set("Content-Type", "text/plain; charset=utf-8")
	return &Response{StatusCode: code, Header: h, Body: []byte(body)}
}

// JSON builds a JSON response from v.
func JSON(code int, v any) (*Response, error) {
	enc := codec.NewJSONCodec()
	body, err := enc.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("pipeline: encode json response: %w", err)
	}
	h := http.Header{}
	h.Set("Content-Type", enc.ContentType())
	return &Response{StatusCode: code, Header: h, Body: body}, nil
}

// Assemble converts a terminal Result into a transport response.
//
// If the payload already is a *Response (or Response) it is returned as is
// and the accumulated headers are NOT applied to it. A nil *Response is
// encoded like a nil payload. Otherwise the payload is encoded with enc and
// every accumulated header is added in order. The encoder's Content-Type is
// only used when no accumulated header sets one.
func Assemble(result *Result, enc codec.Encoder) (*Response, error) {
	if result == nil {
		return nil, ErrNilResult
	}

	payload := result.Payload
	switch p := payload.(type) {
	case *Response:
		if p != nil {
			return p, nil
		}
		payload = nil
	case Response:
		return &p, nil
	}

	body, err := enc.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("pipeline: encode payload: %w", err)
	}

	h := http.Header{}
	result.headers.ApplyTo(h)
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", enc.ContentType())
	}

	return &Response{StatusCode: http.StatusOK, Header: h, Body: body}, nil
}
