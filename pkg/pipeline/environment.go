package pipeline

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// tier tells which phase of the pipeline a chain belongs to.
type tier int

const (
	globalTier tier = iota
	routeTier
)

// step is one link of a composed chain. It receives the context
// accumulated so far and returns the chain's eventual Result.
type step func(ctx Context) (*Result, error)

// Environment is the per-request execution state: the shared context fed
// by the global tier, the memo table of middlewares that already ran, the
// header list and the incoming request.
//
// An Environment is created for exactly one request and must not be
// shared; it is not safe for concurrent use.
type Environment struct {
	Request *http.Request
	Params  Params

	shared   Context
	memo     map[*Definition]Context
	headers  *HeaderList
	logger   *zap.Logger
	observer Observer
}

// NewEnvironment creates a fresh environment for one request.
func NewEnvironment(req *http.Request, params Params, logger *zap.Logger, observer Observer) *Environment {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if params == nil {
		params = Params{}
	}
	return &Environment{
		Request:  req,
		Params:   params,
		shared:   Context{},
		memo:     make(map[*Definition]Context),
		headers:  &HeaderList{},
		logger:   logger,
		observer: observer,
	}
}

// SharedContext returns a copy of the context promoted by the global tier.
func (e *Environment) SharedContext() Context {
	return e.shared.Clone()
}

// Executed reports whether d has already contributed to this request.
func (e *Environment) Executed(d *Definition) bool {
	_, ok := e.memo[d]
	return ok
}

// Headers returns the headers accumulated so far.
func (e *Environment) Headers() []Header {
	return e.headers.All()
}

// Result wraps payload into a Result carrying the request's headers.
func (e *Environment) Result(payload any) *Result {
	return &Result{Payload: payload, headers: e.headers}
}

// buildChain wraps final with defs from right to left so that defs[0]
// runs first and each step only advances when its handler calls next.
func (e *Environment) buildChain(defs []*Definition, final step, t tier) step {
	chain := final
	for i := len(defs) - 1; i >= 0; i-- {
		chain = e.wrap(defs[i], chain, t)
	}
	return chain
}

// wrap returns the step for d. On a memo hit the handler is skipped and the
// recorded delta is merged before continuing; otherwise d's own
// dependencies run first as a sub-chain that ends in d's handler.
func (e *Environment) wrap(d *Definition, rest step, t tier) step {
	return func(ctx Context) (*Result, error) {
		if delta, ok := e.memo[d]; ok {
			e.logger.Debug("Middleware already executed",
				zap.String("middleware", d.name),
			)
			e.observer.MemoHit(d.name)
			return rest(ctx.Merge(delta))
		}

		sub := e.buildChain(d.dependencies, func(subCtx Context) (*Result, error) {
			return e.invoke(d, subCtx, rest, t)
		}, t)
		return sub(ctx)
	}
}

// invoke runs d's handler with guarded next and exit continuations.
func (e *Environment) invoke(d *Definition, ctx Context, rest step, t tier) (*Result, error) {
	var (
		called  bool
		outcome *Result
	)

	claim := func() error {
		if called {
			return fmt.Errorf("%w: %s", ErrContinuationReused, d.name)
		}
		called = true
		return nil
	}

	next := func(opts ...NextOption) (*Result, error) {
		if err := claim(); err != nil {
			return nil, err
		}

		args := nextArgs{context: Context{}}
		for _, opt := range opts {
			opt(&args)
		}

		// Record before continuing so later dependents see the memo entry.
		e.memo[d] = args.context
		e.headers.Append(args.headers...)
		if t == globalTier {
			e.shared = e.shared.Merge(args.context)
		}

		res, err := rest(ctx.Merge(args.context))
		outcome = res
		return res, err
	}

	exit := func(value any, headers ...Header) (*Result, error) {
		if err := claim(); err != nil {
			return nil, err
		}

		e.logger.Debug("Middleware exited",
			zap.String("middleware", d.name),
		)
		e.observer.Exited(d.name)

		e.headers.Append(headers...)
		outcome = &Result{Payload: value, headers: e.headers, exited: true}
		return outcome, nil
	}

	e.logger.Debug("Invoking middleware",
		zap.String("middleware", d.name),
		zap.Int("dependencies", len(d.dependencies)),
	)
	e.observer.MiddlewareInvoked(d.name)

	inv := &Invocation{Context: ctx.Clone(), Request: e.Request, Params: e.Params}
	res, err := d.handler(inv, next, exit)
	if err != nil {
		return nil, err
	}
	if !called {
		return nil, fmt.Errorf("%w: %s", ErrNoContinuation, d.name)
	}
	if res != nil {
		return res, nil
	}
	if outcome == nil {
		return nil, fmt.Errorf("%w: %s", ErrNilResult, d.name)
	}
	return outcome, nil
}
