package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/checkmarble/marble-frontend-sub003/pkg/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg, Config{Namespace: "marble", Subsystem: "web"})
	if err != nil {
		t.Fatalf("Failed to create collector: %v", err)
	}
	return c, reg
}

func TestCollectorObservesPipeline(t *testing.T) {
	pipeline.ResetGlobalMiddlewares()
	t.Cleanup(pipeline.ResetGlobalMiddlewares)

	c, _ := newTestCollector(t)

	dep := pipeline.CreateMiddleware(nil, func(inv *pipeline.Invocation, next pipeline.NextFunc, exit pipeline.ExitFunc) (*pipeline.Result, error) {
		return next()
	}, pipeline.WithName("dep"))
	a := pipeline.CreateMiddleware([]*pipeline.Definition{dep}, func(inv *pipeline.Invocation, next pipeline.NextFunc, exit pipeline.ExitFunc) (*pipeline.Result, error) {
		return next()
	}, pipeline.WithName("a"))
	guard := pipeline.CreateMiddleware([]*pipeline.Definition{dep}, func(inv *pipeline.Invocation, next pipeline.NextFunc, exit pipeline.ExitFunc) (*pipeline.Result, error) {
		return exit(nil)
	}, pipeline.WithName("guard"))

	fn := pipeline.CreateServerFn([]*pipeline.Definition{a, guard}, func(inv *pipeline.Invocation) (any, error) {
		return nil, nil
	}, pipeline.WithObserver(c), pipeline.WithRoute("/cases"))

	if _, err := fn.Run(httptest.NewRequest("GET", "/cases", nil), nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got := testutil.ToFloat64(c.invocations.WithLabelValues("dep")); got != 1 {
		t.Errorf("Expected dep to be invoked once, got %v", got)
	}
	if got := testutil.ToFloat64(c.memoHits.WithLabelValues("dep")); got != 1 {
		t.Errorf("Expected one memo hit for dep, got %v", got)
	}
	if got := testutil.ToFloat64(c.exits.WithLabelValues("guard")); got != 1 {
		t.Errorf("Expected one exit for guard, got %v", got)
	}
	if got := testutil.CollectAndCount(c.pipelines); got != 1 {
		t.Errorf("Expected one pipeline duration series, got %d", got)
	}
	if got := testutil.ToFloat64(c.failures.WithLabelValues("/cases")); got != 0 {
		t.Errorf("Expected no failures, got %v", got)
	}
}

func TestCollectorCountsFailures(t *testing.T) {
	c, _ := newTestCollector(t)

	c.Completed("/boom", 10*time.Millisecond, errors.New("boom"))
	c.Completed("/boom", 10*time.Millisecond, nil)

	if got := testutil.ToFloat64(c.failures.WithLabelValues("/boom")); got != 1 {
		t.Errorf("Expected one failure, got %v", got)
	}
}

func TestCollectorMiddlewareAndHandler(t *testing.T) {
	c, reg := newTestCollector(t)

	handler := c.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/", nil))

	if got := testutil.ToFloat64(c.requests.WithLabelValues("POST", "201")); got != 1 {
		t.Errorf("Expected one POST 201 request, got %v", got)
	}
	if got := testutil.ToFloat64(c.responseBytes.WithLabelValues("POST")); got != 5 {
		t.Errorf("Expected 5 response bytes, got %v", got)
	}

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), "marble_web_http_requests_total") {
		t.Errorf("Expected exposition to contain marble_web_http_requests_total")
	}
}

func TestNewCollectorDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewCollector(reg, Config{}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := NewCollector(reg, Config{}); err == nil {
		t.Errorf("Expected duplicate registration to fail")
	}
}
