package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/checkmarble/marble-frontend-sub003/pkg/common"
	"github.com/checkmarble/marble-frontend-sub003/pkg/middleware"
	"github.com/checkmarble/marble-frontend-sub003/pkg/pipeline"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Router is the main router struct that implements http.Handler.
// It provides routing, middleware support and graceful shutdown.
type Router struct {
	config      RouterConfig
	router      *httprouter.Router
	logger      *zap.Logger
	middlewares []common.Middleware
	wg          sync.WaitGroup
	shutdown    bool
	shutdownMu  sync.RWMutex
}

// contextKey is a type for context keys.
type contextKey string

const (
	// ParamsKey is the key used to store pipeline.Params in the request context.
	ParamsKey contextKey = "params"
)

// NewRouter creates a new Router with the given configuration.
// It initializes the underlying httprouter, sets up logging, and registers routes from sub-routers.
func NewRouter(config RouterConfig) *Router {
	logger := config.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}

	r := &Router{
		config:      config,
		router:      httprouter.New(),
		logger:      logger,
		middlewares: append([]common.Middleware(nil), config.Middlewares...),
	}

	// The trace ID must exist before any other middleware logs
	if config.EnableTraceID {
		r.middlewares = append([]common.Middleware{middleware.TraceMiddleware()}, r.middlewares...)
	}

	for _, sr := range config.SubRouters {
		r.registerSubRouter(sr)
	}

	return r
}

// registerSubRouter registers all routes in a sub-router.
// It applies the sub-router's path prefix and middlewares to all routes.
func (r *Router) registerSubRouter(sr SubRouterConfig) {
	for _, route := range sr.Routes {
		fullPath := sr.PathPrefix + route.Path

		timeout := r.getEffectiveTimeout(route.Timeout, sr.TimeoutOverride)
		maxBodySize := r.getEffectiveMaxBodySize(route.MaxBodySize, sr.MaxBodySizeOverride)

		defs := make([]*pipeline.Definition, 0, len(sr.Middlewares)+len(route.Middlewares))
		defs = append(defs, sr.Middlewares...)
		defs = append(defs, route.Middlewares...)

		r.register(fullPath, route.Methods, defs, route.Handler, timeout, maxBodySize)
	}
}

// RegisterRoute registers a route with the router.
// It panics if the handler or one of the middlewares is nil.
func (r *Router) RegisterRoute(route RouteConfig) {
	timeout := r.getEffectiveTimeout(route.Timeout, 0)
	maxBodySize := r.getEffectiveMaxBodySize(route.MaxBodySize, 0)

	r.register(route.Path, route.Methods, route.Middlewares, route.Handler, timeout, maxBodySize)
}

// Handle registers a plain http.Handler, such as a metrics endpoint. It gets
// the transport middlewares and graceful shutdown but no pipeline.
func (r *Router) Handle(method, path string, handler http.Handler) {
	r.router.Handle(method, path, r.convertToHTTPRouterHandle(r.wrapHandler(handler, 0, 0)))
}

func (r *Router) register(path string, methods []string, defs []*pipeline.Definition, handler pipeline.ServerHandler, timeout time.Duration, maxBodySize int64) {
	fn := pipeline.CreateServerFn(defs, handler,
		pipeline.WithRoute(path),
		pipeline.WithLogger(r.logger),
		pipeline.WithObserver(r.config.Observer),
		pipeline.WithEncoder(r.config.Encoder),
	)

	h := r.wrapHandler(r.serverFnHandler(fn), timeout, maxBodySize)
	for _, method := range methods {
		r.router.Handle(method, path, r.convertToHTTPRouterHandle(h))
	}
}

// convertToHTTPRouterHandle converts an http.Handler to an httprouter.Handle.
// It stores the route parameters in the request context so they can be accessed by handlers.
func (r *Router) convertToHTTPRouterHandle(handler http.Handler) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		params := make(pipeline.Params, len(ps))
		for _, p := range ps {
			params[p.Key] = p.Value
		}
		ctx := context.WithValue(req.Context(), ParamsKey, params)
		handler.ServeHTTP(w, req.WithContext(ctx))
	}
}

// outcome is what a server function produced for one request.
type outcome struct {
	resp     *pipeline.Response
	err      error
	panicked any
}

// serverFnHandler runs fn for each request. When the request carries a
// deadline, fn runs in its own goroutine and a timeout answers 408 without
// waiting for it. Nothing is written to w until fn has finished.
func (r *Router) serverFnHandler(fn *pipeline.ServerFn) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		if _, ok := ctx.Deadline(); !ok {
			resp, err := fn.Respond(req, GetParams(req))
			r.writeResponse(w, req, resp, err)
			return
		}

		done := make(chan outcome, 1)
		// The goroutine may outlive a timed-out request, Shutdown waits for it too
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					done <- outcome{panicked: rec}
				}
			}()
			resp, err := fn.Respond(req, GetParams(req))
			done <- outcome{resp: resp, err: err}
		}()

		select {
		case o := <-done:
			if o.panicked != nil {
				// Re-raised here so the recovery middleware sees it
				panic(o.panicked)
			}
			r.writeResponse(w, req, o.resp, o.err)
		case <-ctx.Done():
			r.logger.Error("Request timed out",
				r.requestFields(req, zap.String("client_ip", req.RemoteAddr))...,
			)
			http.Error(w, "Request Timeout", http.StatusRequestTimeout)
		}
	})
}

func (r *Router) writeResponse(w http.ResponseWriter, req *http.Request, resp *pipeline.Response, err error) {
	if err != nil {
		r.handleError(w, req, err, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if err := resp.Write(w); err != nil {
		r.logger.Warn("Failed to write response", r.requestFields(req, zap.Error(err))...)
	}
}

// wrapHandler wraps a handler with all the necessary middleware.
// It applies panic recovery, the transport middlewares, the body size limit,
// graceful shutdown tracking and the timeout deadline.
func (r *Router) wrapHandler(handler http.Handler, timeout time.Duration, maxBodySize int64) http.Handler {
	h := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		// First add to the wait group before checking shutdown status
		r.wg.Add(1)

		r.shutdownMu.RLock()
		isShutdown := r.shutdown
		r.shutdownMu.RUnlock()

		if isShutdown {
			r.wg.Done()
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		defer r.wg.Done()

		if timeout > 0 {
			ctx, cancel := context.WithTimeout(req.Context(), timeout)
			defer cancel()
			req = req.WithContext(ctx)
		}

		handler.ServeHTTP(w, req)
	}))

	chain := common.NewMiddlewareChain(middleware.Recovery(r.logger)).Append(r.middlewares...)
	if maxBodySize > 0 {
		chain = chain.Append(middleware.MaxBodySize(maxBodySize))
	}
	return chain.Then(h)
}

// ServeHTTP implements the http.Handler interface.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// Shutdown gracefully shuts down the router.
// It stops accepting new requests and waits for existing requests to complete.
// If the context is canceled before all requests complete, it returns the context's error.
func (r *Router) Shutdown(ctx context.Context) error {
	r.shutdownMu.Lock()
	r.shutdown = true
	r.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetParams retrieves the path parameters from the request context.
func GetParams(r *http.Request) pipeline.Params {
	params, _ := r.Context().Value(ParamsKey).(pipeline.Params)
	return params
}

// GetParam retrieves a specific parameter from the request context.
func GetParam(r *http.Request, name string) string {
	return GetParams(r).ByName(name)
}

// getEffectiveTimeout returns the effective timeout for a route.
// It considers route-specific, sub-router, and global timeout settings in that order of precedence.
func (r *Router) getEffectiveTimeout(routeTimeout, subRouterTimeout time.Duration) time.Duration {
	if routeTimeout > 0 {
		return routeTimeout
	}
	if subRouterTimeout > 0 {
		return subRouterTimeout
	}
	return r.config.GlobalTimeout
}

// getEffectiveMaxBodySize returns the effective max body size for a route.
// It considers route-specific, sub-router, and global max body size settings in that order of precedence.
func (r *Router) getEffectiveMaxBodySize(routeMaxBodySize, subRouterMaxBodySize int64) int64 {
	if routeMaxBodySize > 0 {
		return routeMaxBodySize
	}
	if subRouterMaxBodySize > 0 {
		return subRouterMaxBodySize
	}
	return r.config.GlobalMaxBodySize
}

// requestFields returns the common log fields for req, trace ID first when enabled.
func (r *Router) requestFields(req *http.Request, extra ...zap.Field) []zap.Field {
	fields := make([]zap.Field, 0, len(extra)+3)
	if r.config.EnableTraceID {
		if traceID := middleware.GetTraceID(req); traceID != "" {
			fields = append(fields, zap.String("trace_id", traceID))
		}
	}
	fields = append(fields,
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
	)
	return append(fields, extra...)
}

// handleError handles an error by logging it and returning an appropriate HTTP response.
// An HTTPError chooses its own status code and message; a body over the size
// limit answers 413 and an expired deadline 408.
func (r *Router) handleError(w http.ResponseWriter, req *http.Request, err error, statusCode int, message string) {
	var httpErr *HTTPError
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &httpErr):
		statusCode = httpErr.StatusCode
		message = httpErr.Message
	case errors.As(err, &maxBytesErr):
		statusCode = http.StatusRequestEntityTooLarge
		message = "Request Entity Too Large"
	case errors.Is(err, context.DeadlineExceeded):
		statusCode = http.StatusRequestTimeout
		message = "Request Timeout"
	}

	fields := r.requestFields(req, zap.Error(err), zap.Int("status", statusCode))
	if statusCode >= http.StatusInternalServerError {
		r.logger.Error(message, fields...)
	} else {
		r.logger.Warn(message, fields...)
	}

	http.Error(w, message, statusCode)
}

// HTTPError represents an HTTP error with a status code and message.
// When returned from a handler or middleware, the router uses the status code
// and message to generate the response.
type HTTPError struct {
	StatusCode int    // HTTP status code (e.g., 400, 404, 500)
	Message    string // Error message to be sent in the response body
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// NewHTTPError creates a new HTTPError with the specified status code and message.
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
	}
}
