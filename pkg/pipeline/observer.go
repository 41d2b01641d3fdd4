package pipeline

import "time"

// Observer receives notifications about pipeline execution. It is
// implemented by the metrics collector; all methods must be cheap.
type Observer interface {
	// MiddlewareInvoked is called right before a middleware handler runs.
	MiddlewareInvoked(name string)
	// MemoHit is called when a middleware is skipped because it already
	// ran earlier in the same request.
	MemoHit(name string)
	// Exited is called when a middleware short-circuits the chain.
	Exited(name string)
	// Completed is called once per request when the chain has returned.
	Completed(route string, duration time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) MiddlewareInvoked(string)               {}
func (nopObserver) MemoHit(string)                         {}
func (nopObserver) Exited(string)                          {}
func (nopObserver) Completed(string, time.Duration, error) {}
