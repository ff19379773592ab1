// Package router directs reads to a replica and all mutations to the
// primary. The routing decision is passed explicitly at the call site
// rather than inferred from ambient transactional context; replica reads
// are eventually consistent within a bounded staleness window.
package router

import (
	"context"
	"sync"
	"time"
)

type callerKey struct{}

// WithCaller tags ctx with the logical caller identity used for
// read-after-write pinning.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext extracts the logical caller identity, if any.
func CallerFromContext(ctx context.Context) string {
	caller, _ := ctx.Value(callerKey{}).(string)
	return caller
}

// Router routes operations between a primary and a replica of type T.
// A caller that performed a write within the staleness window has its
// reads pinned to the primary, so a balance check right after a transfer
// never observes replication lag.
type Router[T any] struct {
	primary   T
	replica   T
	staleness time.Duration
	now       func() time.Time

	mu         sync.Mutex
	lastWrites map[string]time.Time
}

// New creates a Router. staleness is the configured replication-lag
// bound; a zero value disables pinning entirely.
func New[T any](primary, replica T, staleness time.Duration) *Router[T] {
	return &Router[T]{
		primary:    primary,
		replica:    replica,
		staleness:  staleness,
		now:        time.Now,
		lastWrites: make(map[string]time.Time),
	}
}

// Write returns the primary and records the caller's write time for
// subsequent read pinning.
func (r *Router[T]) Write(ctx context.Context) T {
	if caller := CallerFromContext(ctx); caller != "" && r.staleness > 0 {
		r.mu.Lock()
		r.lastWrites[caller] = r.now()
		r.prune()
		r.mu.Unlock()
	}

	return r.primary
}

// Read returns the replica, unless the caller wrote within the staleness
// window, in which case the read is routed to the primary.
func (r *Router[T]) Read(ctx context.Context) T {
	caller := CallerFromContext(ctx)
	if caller == "" || r.staleness == 0 {
		return r.replica
	}

	r.mu.Lock()
	last, ok := r.lastWrites[caller]
	r.mu.Unlock()

	if ok && r.now().Sub(last) < r.staleness {
		return r.primary
	}

	return r.replica
}

// Primary returns the primary unconditionally, for operations that must
// never tolerate staleness (invariant checks, reconciliation).
func (r *Router[T]) Primary() T {
	return r.primary
}

// prune drops pin records older than the staleness window. Called with
// r.mu held.
func (r *Router[T]) prune() {
	cutoff := r.now().Add(-r.staleness)
	for caller, at := range r.lastWrites {
		if at.Before(cutoff) {
			delete(r.lastWrites, caller)
		}
	}
}
