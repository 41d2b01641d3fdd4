package pipeline

import (
	"fmt"
	"sync/atomic"
)

// NextFunc continues the chain after the calling middleware. Options add
// the middleware's context contribution and response headers. It returns
// the eventual Result of everything that follows.
type NextFunc func(opts ...NextOption) (*Result, error)

// ExitFunc terminates the chain immediately with value as the payload.
// Any headers given are appended to the request-wide header list.
type ExitFunc func(value any, headers ...Header) (*Result, error)

// Handler is the function run by a middleware. It must call exactly one of
// next or exit exactly once, and should return what that call returned.
type Handler func(inv *Invocation, next NextFunc, exit ExitFunc) (*Result, error)

// NextOption configures a call to next.
type NextOption func(*nextArgs)

type nextArgs struct {
	context Context
	headers []Header
}

// WithContext contributes c to the context seen by every later step.
// Several WithContext options are merged in order.
func WithContext(c Context) NextOption {
	return func(a *nextArgs) {
		a.context = a.context.Merge(c)
	}
}

// WithHeader appends a single response header.
func WithHeader(name, value string) NextOption {
	return func(a *nextArgs) {
		a.headers = append(a.headers, Header{Name: name, Value: value})
	}
}

// WithHeaders appends response headers in order.
func WithHeaders(headers ...Header) NextOption {
	return func(a *nextArgs) {
		a.headers = append(a.headers, headers...)
	}
}

var lastDefinitionID atomic.Uint64

// Definition is an immutable middleware: a list of dependencies and a
// handler. Identity is the pointer itself, so two structurally identical
// definitions created separately are distinct middlewares.
type Definition struct {
	id           uint64
	name         string
	dependencies []*Definition
	handler      Handler
}

// DefinitionOption configures a Definition at creation time.
type DefinitionOption func(*Definition)

// WithName sets the name used for the middleware in logs and metrics.
func WithName(name string) DefinitionOption {
	return func(d *Definition) {
		d.name = name
	}
}

// CreateMiddleware returns a new middleware running handler after all of
// its dependencies. Definitions are meant to be created once at wiring time
// and reused across requests and dependents.
//
// It panics if handler or any dependency is nil.
func CreateMiddleware(dependencies []*Definition, handler Handler, opts ...DefinitionOption) *Definition {
	if handler == nil {
		panic(ErrNilHandler)
	}
	for i, dep := range dependencies {
		if dep == nil {
			panic(fmt.Sprintf("pipeline: dependency %d is nil", i))
		}
	}

	d := &Definition{
		id:           lastDefinitionID.Add(1),
		dependencies: append([]*Definition(nil), dependencies...),
		handler:      handler,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.name == "" {
		d.name = fmt.Sprintf("middleware-%d", d.id)
	}
	return d
}

// ID returns the opaque identifier assigned at creation.
func (d *Definition) ID() uint64 {
	return d.id
}

// Name returns the middleware name.
func (d *Definition) Name() string {
	return d.name
}

// Dependencies returns a copy of the declared dependencies.
func (d *Definition) Dependencies() []*Definition {
	return append([]*Definition(nil), d.dependencies...)
}
