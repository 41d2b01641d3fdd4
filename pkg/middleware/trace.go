package middleware

import (
	"context"
	"net/http"

	"github.com/checkmarble/marble-frontend-sub003/pkg/common"
	"github.com/checkmarble/marble-frontend-sub003/pkg/pipeline"
	"github.com/google/uuid"
)

// TraceHeader is the response header carrying the trace ID.
const TraceHeader = "X-Trace-ID"

type traceIDContextKey struct{}

// TraceMiddleware creates a transport middleware that generates a unique
// trace ID for each request and stores it in the request context, so that
// access logs and the pipeline share the same ID.
func TraceMiddleware() common.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), traceIDContextKey{}, uuid.New().String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTraceID extracts the trace ID from the request context.
// Returns an empty string if no trace ID is found.
func GetTraceID(r *http.Request) string {
	return GetTraceIDFromContext(r.Context())
}

// GetTraceIDFromContext extracts the trace ID from a context.
// Returns an empty string if no trace ID is found.
func GetTraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDContextKey{}).(string); ok {
		return traceID
	}
	return ""
}

// TraceID returns a middleware publishing the request's trace ID under
// TraceIDKey and echoing it in the X-Trace-ID response header. The ID set by
// TraceMiddleware is reused; otherwise a new one is generated.
func TraceID() *pipeline.Definition {
	return pipeline.CreateMiddleware(nil, func(inv *pipeline.Invocation, next pipeline.NextFunc, exit pipeline.ExitFunc) (*pipeline.Result, error) {
		traceID := GetTraceIDFromContext(inv.Ctx())
		if traceID == "" {
			traceID = uuid.New().String()
		}
		return next(
			pipeline.WithContext(pipeline.Context{TraceIDKey: traceID}),
			pipeline.WithHeader(TraceHeader, traceID),
		)
	}, pipeline.WithName("trace_id"))
}
