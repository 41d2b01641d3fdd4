package pipeline

import "sync"

// The global registry is configured once at process start and read by
// every request. SetGlobalMiddlewares must not race with in-flight
// requests; the lock only keeps snapshots consistent.
var (
	globalMu          sync.RWMutex
	globalMiddlewares []*Definition
)

// SetGlobalMiddlewares installs the process-wide middlewares that run
// before the route tier of every server function.
func SetGlobalMiddlewares(defs ...*Definition) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMiddlewares = append([]*Definition(nil), defs...)
}

// ResetGlobalMiddlewares clears the global registry.
func ResetGlobalMiddlewares() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMiddlewares = nil
}

// GlobalMiddlewares returns a snapshot of the global registry.
func GlobalMiddlewares() []*Definition {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return append([]*Definition(nil), globalMiddlewares...)
}
