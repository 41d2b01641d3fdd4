package middleware

import (
	"github.com/checkmarble/marble-frontend-sub003/pkg/pipeline"
	"go.uber.org/ratelimit"
)

// Throttle returns a middleware pacing requests to at most rps per second
// across all callers. Unlike RateLimit it never rejects: a request waits
// for its slot before continuing.
func Throttle(rps int, opts ...ratelimit.Option) *pipeline.Definition {
	limiter := ratelimit.New(rps, opts...)

	return pipeline.CreateMiddleware(nil, func(inv *pipeline.Invocation, next pipeline.NextFunc, exit pipeline.ExitFunc) (*pipeline.Result, error) {
		limiter.Take()
		return next()
	}, pipeline.WithName("throttle"))
}
