package transport

import (
	"context"
	"sync"
)

// InFlightRegistry maps response IDs of active streams to their cancel
// functions so a DELETE can stop a run that is still producing events.
// Cancellation through the registry is abrupt: the stream stops with no
// flush and no terminal event. Safe for concurrent use.
type InFlightRegistry struct {
	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewInFlightRegistry creates an empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{active: make(map[string]context.CancelFunc)}
}

// Register records a stream as cancellable under its response ID.
func (r *InFlightRegistry) Register(id string, cancel context.CancelFunc) {
	r.mu.Lock()
	r.active[id] = cancel
	r.mu.Unlock()
}

// Cancel stops the stream registered under id and reports whether one was
// found. A false return means the run already finished or never existed.
func (r *InFlightRegistry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.active[id]
	if ok {
		cancel()
		delete(r.active, id)
	}
	return ok
}

// Remove drops a finished stream without cancelling it.
func (r *InFlightRegistry) Remove(id string) {
	r.mu.Lock()
	delete(r.active, id)
	r.mu.Unlock()
}
