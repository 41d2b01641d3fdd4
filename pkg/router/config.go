// Package router hosts server functions on an HTTP router. It maps path
// parameters into the pipeline, applies transport middlewares, timeouts and
// body size limits, and turns pipeline results and errors into responses.
package router

import (
	"time"

	"github.com/checkmarble/marble-frontend-sub003/pkg/codec"
	"github.com/checkmarble/marble-frontend-sub003/pkg/common"
	"github.com/checkmarble/marble-frontend-sub003/pkg/pipeline"
	"go.uber.org/zap"
)

// RouterConfig defines the global configuration for the router.
// It includes settings for logging, timeouts, observation, and middleware.
type RouterConfig struct {
	Logger            *zap.Logger         // Logger for all router operations
	GlobalTimeout     time.Duration       // Default response timeout for all routes
	GlobalMaxBodySize int64               // Default maximum request body size in bytes
	EnableTraceID     bool                // Generate a trace ID per request and include it in logs
	Observer          pipeline.Observer   // Notified about every server function execution (optional)
	Encoder           codec.Encoder       // Encoder for handler payloads, JSON when nil
	Middlewares       []common.Middleware // Transport middlewares applied to all routes
	SubRouters        []SubRouterConfig   // Sub-routers with their own configurations
}

// SubRouterConfig defines configuration for a group of routes with a common path prefix.
// Its pipeline middlewares run before the route's own middlewares.
type SubRouterConfig struct {
	PathPrefix          string                 // Common path prefix for all routes in this sub-router
	TimeoutOverride     time.Duration          // Override global timeout for all routes in this sub-router
	MaxBodySizeOverride int64                  // Override global max body size for all routes in this sub-router
	Routes              []RouteConfig          // Routes in this sub-router
	Middlewares         []*pipeline.Definition // Pipeline middlewares applied to all routes in this sub-router
}

// RouteConfig defines a route served by a server function.
type RouteConfig struct {
	Path        string                 // Route path (will be prefixed with sub-router path prefix if applicable)
	Methods     []string               // HTTP methods this route handles
	Timeout     time.Duration          // Override timeout for this specific route
	MaxBodySize int64                  // Override max body size for this specific route
	Middlewares []*pipeline.Definition // Route tier pipeline middlewares
	Handler     pipeline.ServerHandler // Business handler run after the middlewares
}

// Middleware is an alias for common.Middleware.
type Middleware = common.Middleware
