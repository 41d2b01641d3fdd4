// Package middleware provides ready-made middlewares for server functions
// (trace ID, client IP, locale, authentication, rate limiting, throttling)
// as pipeline definitions, plus transport-level wrappers for the hosting
// HTTP server (recovery, access logging, CORS, body size limit).
package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/checkmarble/marble-frontend-sub003/pkg/common"
	"go.uber.org/zap"
)

// Context keys under which the middlewares of this package publish values.
const (
	TraceIDKey  = "traceId"
	ClientIPKey = "clientIp"
	LocaleKey   = "locale"
	UserKey     = "user"
)

// Use the Middleware type from the common package
type Middleware = common.Middleware

// Recovery is a middleware that recovers from panics
func Recovery(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("Panic recovered",
						zap.Any("panic", rec),
						zap.String("stack", string(debug.Stack())),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
					)

					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Logging is a middleware that logs requests
func Logging(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Create a response writer that captures the status code
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.statusCode),
				zap.Duration("duration", duration),
			}
			if traceID := GetTraceID(r); traceID != "" {
				fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
			}

			// Use appropriate log level based on status code and duration
			switch {
			case rw.statusCode >= 500:
				logger.Error("Server error", append(fields, zap.String("remote_addr", r.RemoteAddr))...)
			case rw.statusCode >= 400:
				logger.Warn("Client error", fields...)
			case duration > 1*time.Second:
				logger.Warn("Slow request", fields...)
			default:
				// Normal requests at Debug level to avoid log spam
				logger.Debug("Request", fields...)
			}
		})
	}
}

// MaxBodySize is a middleware that limits the size of the request body
func MaxBodySize(maxSize int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			next.ServeHTTP(w, r)
		})
	}
}

// CORS is a middleware that adds CORS headers to the response
func CORS(origins []string, methods []string, headers []string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(origins) > 0 {
				w.Header().Set("Access-Control-Allow-Origin", strings.Join(origins, ", "))
			}
			if len(methods) > 0 {
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
			}
			if len(headers) > 0 {
				w.Header().Set("Access-Control-Allow-Headers", strings.Join(headers, ", "))
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter is a wrapper around http.ResponseWriter that captures the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code and calls the underlying ResponseWriter.WriteHeader
func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Flush calls the underlying ResponseWriter.Flush if it implements http.Flusher
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
