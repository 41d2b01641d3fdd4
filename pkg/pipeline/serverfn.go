package pipeline

import (
	"net/http"
	"time"

	"github.com/checkmarble/marble-frontend-sub003/pkg/codec"
	"go.uber.org/zap"
)

// ServerHandler is the terminal business step of a server function. It
// receives the fully merged context and returns the response payload.
type ServerHandler func(inv *Invocation) (any, error)

// ServerFnOption configures a ServerFn.
type ServerFnOption func(*ServerFn)

// WithRoute names the server function in logs and metrics.
func WithRoute(route string) ServerFnOption {
	return func(s *ServerFn) {
		s.route = route
	}
}

// WithLogger sets the logger used for execution debug logs.
func WithLogger(logger *zap.Logger) ServerFnOption {
	return func(s *ServerFn) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver sets the observer notified about execution.
func WithObserver(observer Observer) ServerFnOption {
	return func(s *ServerFn) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// WithEncoder sets the encoder used by Respond for non pass-through payloads.
func WithEncoder(enc codec.Encoder) ServerFnOption {
	return func(s *ServerFn) {
		if enc != nil {
			s.encoder = enc
		}
	}
}

// ServerFn is a route handler together with its route-tier middlewares.
// Each call runs the global tier first, then the route tier, then the
// handler, inside a fresh Environment.
type ServerFn struct {
	middlewares []*Definition
	handler     ServerHandler
	route       string
	logger      *zap.Logger
	observer    Observer
	encoder     codec.Encoder
}

// CreateServerFn returns a server function running middlewares and then
// handler. It panics if handler or any middleware is nil.
func CreateServerFn(middlewares []*Definition, handler ServerHandler, opts ...ServerFnOption) *ServerFn {
	if handler == nil {
		panic(ErrNilHandler)
	}
	for _, m := range middlewares {
		if m == nil {
			panic("pipeline: nil middleware")
		}
	}

	s := &ServerFn{
		middlewares: append([]*Definition(nil), middlewares...),
		handler:     handler,
		logger:      zap.NewNop(),
		observer:    nopObserver{},
		encoder:     codec.NewJSONCodec(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes the pipeline for one request and returns the terminal
// Result. Errors from any middleware or from the handler are returned
// unchanged.
func (s *ServerFn) Run(req *http.Request, params Params) (*Result, error) {
	env := NewEnvironment(req, params, s.logger, s.observer)
	return s.execute(env, GlobalMiddlewares())
}

// Respond runs the pipeline and assembles the transport response.
func (s *ServerFn) Respond(req *http.Request, params Params) (*Response, error) {
	result, err := s.Run(req, params)
	if err != nil {
		return nil, err
	}
	return Assemble(result, s.encoder)
}

// execute chains the global tier into the route tier into the handler.
func (s *ServerFn) execute(env *Environment, globals []*Definition) (result *Result, err error) {
	start := time.Now()
	defer func() {
		s.observer.Completed(s.route, time.Since(start), err)
	}()

	route := env.buildChain(s.middlewares, func(ctx Context) (*Result, error) {
		payload, err := s.handler(&Invocation{Context: ctx, Request: env.Request, Params: env.Params})
		if err != nil {
			return nil, err
		}
		return env.Result(payload), nil
	}, routeTier)

	// The route tier starts from what the global tier promoted.
	global := env.buildChain(globals, func(Context) (*Result, error) {
		return route(env.SharedContext())
	}, globalTier)

	return global(env.SharedContext())
}
