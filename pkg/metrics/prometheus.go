// Package metrics exposes Prometheus metrics for server functions: how
// often each middleware runs, is deduplicated or short-circuits, and how
// long whole pipelines take.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/checkmarble/marble-frontend-sub003/pkg/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config defines the metric names.
type Config struct {
	Namespace string
	Subsystem string

	// Buckets for the duration histograms, defaults to prometheus.DefBuckets.
	Buckets []float64
}

// Collector implements pipeline.Observer and an HTTP middleware on top of
// Prometheus collectors.
type Collector struct {
	invocations *prometheus.CounterVec
	memoHits    *prometheus.CounterVec
	exits       *prometheus.CounterVec
	pipelines   *prometheus.HistogramVec
	failures    *prometheus.CounterVec

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseBytes   *prometheus.CounterVec
}

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer, config Config) (*Collector, error) {
	buckets := config.Buckets
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}

	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      name,
			Help:      help,
		}
	}
	histogram := func(name, help string) prometheus.HistogramOpts {
		return prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		}
	}

	c := &Collector{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts(opts(
			"middleware_invocations_total", "Middleware handler invocations.")), []string{"middleware"}),
		memoHits: prometheus.NewCounterVec(prometheus.CounterOpts(opts(
			"middleware_memo_hits_total", "Middleware executions skipped because they already ran in the request.")), []string{"middleware"}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts(opts(
			"middleware_exits_total", "Pipelines short-circuited by a middleware.")), []string{"middleware"}),
		pipelines: prometheus.NewHistogramVec(histogram(
			"pipeline_duration_seconds", "Duration of server function pipelines."), []string{"route"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts(opts(
			"pipeline_errors_total", "Server function pipelines that returned an error.")), []string{"route"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts(opts(
			"http_requests_total", "HTTP requests by method and status.")), []string{"method", "status"}),
		requestDuration: prometheus.NewHistogramVec(histogram(
			"http_request_duration_seconds", "HTTP request latency."), []string{"method"}),
		responseBytes: prometheus.NewCounterVec(prometheus.CounterOpts(opts(
			"http_response_bytes_total", "Bytes written in HTTP responses.")), []string{"method"}),
	}

	for _, collector := range []prometheus.Collector{
		c.invocations, c.memoHits, c.exits, c.pipelines, c.failures,
		c.requests, c.requestDuration, c.responseBytes,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MiddlewareInvoked implements pipeline.Observer.
func (c *Collector) MiddlewareInvoked(name string) {
	c.invocations.WithLabelValues(name).Inc()
}

// MemoHit implements pipeline.Observer.
func (c *Collector) MemoHit(name string) {
	c.memoHits.WithLabelValues(name).Inc()
}

// Exited implements pipeline.Observer.
func (c *Collector) Exited(name string) {
	c.exits.WithLabelValues(name).Inc()
}

// Completed implements pipeline.Observer.
func (c *Collector) Completed(route string, duration time.Duration, err error) {
	c.pipelines.WithLabelValues(route).Observe(duration.Seconds())
	if err != nil {
		c.failures.WithLabelValues(route).Inc()
	}
}

// Middleware returns a transport middleware recording request count,
// latency and response size.
func (c *Collector) Middleware() common.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &metricsResponseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			c.requests.WithLabelValues(r.Method, strconv.Itoa(rw.statusCode)).Inc()
			c.requestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
			c.responseBytes.WithLabelValues(r.Method).Add(float64(rw.bytesWritten))
		})
	}
}

// Handler returns an HTTP handler exposing the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// metricsResponseWriter is a wrapper around http.ResponseWriter that captures metrics
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

// WriteHeader captures the status code and calls the underlying ResponseWriter.WriteHeader
func (rw *metricsResponseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Write captures the number of bytes written and calls the underlying ResponseWriter.Write
func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Flush calls the underlying ResponseWriter.Flush if it implements http.Flusher
func (rw *metricsResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
