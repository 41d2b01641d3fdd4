package common

import (
	"net/http"
)

// MiddlewareChain is an ordered list of transport middlewares.
// The first middleware is the outermost one.
type MiddlewareChain []Middleware

// NewMiddlewareChain creates a new middleware chain
func NewMiddlewareChain(middlewares ...Middleware) MiddlewareChain {
	return append(MiddlewareChain(nil), middlewares...)
}

// Append returns a new chain with middlewares added at the end.
func (c MiddlewareChain) Append(middlewares ...Middleware) MiddlewareChain {
	result := make(MiddlewareChain, 0, len(c)+len(middlewares))
	result = append(result, c...)
	return append(result, middlewares...)
}

// Prepend returns a new chain with middlewares added at the beginning.
func (c MiddlewareChain) Prepend(middlewares ...Middleware) MiddlewareChain {
	result := make(MiddlewareChain, len(middlewares)+len(c))
	copy(result, middlewares)
	copy(result[len(middlewares):], c)
	return result
}

// Then applies the middleware chain to a handler
func (c MiddlewareChain) Then(h http.Handler) http.Handler {
	for i := len(c) - 1; i >= 0; i-- {
		h = c[i](h)
	}
	return h
}

// ThenFunc is Then for a plain handler function.
func (c MiddlewareChain) ThenFunc(fn http.HandlerFunc) http.Handler {
	return c.Then(fn)
}
