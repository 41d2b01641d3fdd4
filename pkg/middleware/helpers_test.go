package middleware

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/checkmarble/marble-frontend-sub003/pkg/pipeline"
)

// runPipeline executes defs in front of a handler capturing the context it receives
func runPipeline(t *testing.T, req *http.Request, defs ...*pipeline.Definition) (pipeline.Context, *pipeline.Response) {
	t.Helper()
	pipeline.ResetGlobalMiddlewares()
	t.Cleanup(pipeline.ResetGlobalMiddlewares)

	var seen pipeline.Context
	fn := pipeline.CreateServerFn(defs, func(inv *pipeline.Invocation) (any, error) {
		seen = inv.Context
		return "ok", nil
	})

	resp, err := fn.Respond(req, nil)
	if err != nil {
		t.Fatalf("Unexpected pipeline error: %v", err)
	}
	return seen, resp
}

// countingObserver counts middleware invocations by name
type countingObserver struct {
	mu      sync.Mutex
	invoked map[string]int
	hits    map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{invoked: map[string]int{}, hits: map[string]int{}}
}

func (o *countingObserver) MiddlewareInvoked(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.invoked[name]++
}

func (o *countingObserver) MemoHit(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hits[name]++
}

func (o *countingObserver) Exited(string)                          {}
func (o *countingObserver) Completed(string, time.Duration, error) {}
