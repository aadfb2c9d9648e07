// Package registry tracks the cancellation handles of in-flight rounds so
// an out-of-band stop request can abort the upstream call driving a stream.
package registry

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadyRegistered is returned when a round already holds a live handle.
// A duplicate registration would mean two generations are in flight for the
// same round, which the single-flight invariant forbids.
var ErrAlreadyRegistered = errors.New("round already has a cancellation handle")

// Registry maps round IDs to the cancel functions of their upstream calls.
// One instance is constructed at startup and injected where needed; it is
// safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	handles map[int64]context.CancelFunc
}

func New() *Registry {
	return &Registry{handles: make(map[int64]context.CancelFunc)}
}

// Register stores the cancellation handle for a round.
// Registering a round that already has a handle is rejected rather than
// silently replacing it, so a leaked still-running upstream call can never
// be orphaned by a second dispatch.
func (r *Registry) Register(roundID int64, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handles[roundID]; ok {
		return ErrAlreadyRegistered
	}
	r.handles[roundID] = cancel
	return nil
}

// Abort cancels the round's upstream call and removes its handle.
// It reports whether a handle was present; aborting a missing or
// already-cleared round is a no-op.
func (r *Registry) Abort(roundID int64) bool {
	r.mu.Lock()
	cancel, ok := r.handles[roundID]
	if ok {
		delete(r.handles, roundID)
	}
	r.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// Clear removes the handle without cancelling, for rounds that finished
// on their own. Clearing an absent round is a no-op.
func (r *Registry) Clear(roundID int64) {
	r.mu.Lock()
	delete(r.handles, roundID)
	r.mu.Unlock()
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
