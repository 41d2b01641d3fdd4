// Package pipeline composes request-handling middlewares into a single
// execution chain per request. Middlewares declare the middlewares they
// depend on; a dependency shared by several dependents runs at most once
// per request and every dependent observes the context it contributed.
package pipeline

import (
	"context"
	"net/http"
)

// Context is the key/value data visible to a step of the pipeline.
// It is built by shallowly merging the contributions of every step that
// ran before it.
type Context map[string]any

// Clone returns a shallow copy of the context. A nil context clones to an
// empty, non-nil one.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Merge returns a new context holding c overlaid with each delta in order.
// The last write for a key wins. Neither c nor the deltas are modified.
func (c Context) Merge(deltas ...Context) Context {
	out := c.Clone()
	for _, delta := range deltas {
		for k, v := range delta {
			out[k] = v
		}
	}
	return out
}

// Value looks up key in c and asserts it to T.
// The second return value is false when the key is absent or holds another type.
func Value[T any](c Context, key string) (T, bool) {
	v, ok := c[key].(T)
	return v, ok
}

// Params holds the path parameters extracted by the hosting router.
type Params map[string]string

// ByName returns the value of the named parameter, or "" if it is absent.
func (p Params) ByName(name string) string {
	return p[name]
}

// Invocation is what a middleware or server handler receives: the merged
// context visible at that point plus the incoming request and its path
// parameters.
type Invocation struct {
	Context Context
	Request *http.Request
	Params  Params
}

// Ctx returns the request's context.Context, or context.Background when
// the invocation has no request.
func (i *Invocation) Ctx() context.Context {
	if i.Request == nil {
		return context.Background()
	}
	return i.Request.Context()
}
