// Package intercept wires lock coordination into an invocation framework.
//
// A framework routes every intercepted method call through a Handler. Wrapping
// that Handler with Synchronize makes each call take the target object's read
// lock, and running reconfigurations through Reconfigure makes them take the
// write locks of every object they change. Stub is a small stubbable double
// built on both hooks.
package intercept

import (
	"context"

	"github.com/kneutral-org/stubguard/internal/lock"
)

// Invocation is one intercepted method call.
type Invocation struct {
	Target lock.Key
	Method string
	Args   []any
}

// Handler handles intercepted invocations.
type Handler interface {
	Handle(ctx context.Context, inv *Invocation) (any, error)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(ctx context.Context, inv *Invocation) (any, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, inv *Invocation) (any, error) {
	return f(ctx, inv)
}

// SynchronizedHandler runs a delegate Handler under the read lock of each
// invocation's target.
type SynchronizedHandler struct {
	delegate    Handler
	coordinator *lock.Coordinator
}

// Synchronize wraps h so every invocation holds its target's read lock.
func Synchronize(h Handler, c *lock.Coordinator) *SynchronizedHandler {
	return &SynchronizedHandler{delegate: h, coordinator: c}
}

// Handle runs the delegate under the target's read lock. Lock failures are
// returned without calling the delegate; the delegate's result and error are
// returned unchanged. The delegate's context records the hold, so invocations
// it makes on the same target with that context do not wait again.
func (s *SynchronizedHandler) Handle(ctx context.Context, inv *Invocation) (any, error) {
	var result any
	err := s.coordinator.WithReadLock(ctx, inv.Target, func(ctx context.Context) error {
		var err error
		result, err = s.delegate.Handle(ctx, inv)
		return err
	})
	return result, err
}

// Reconfigure runs body while holding the write locks of every target.
// Invocations body makes with its context do not wait for those locks.
func Reconfigure(ctx context.Context, c *lock.Coordinator, body func(ctx context.Context) error, targets ...lock.Key) error {
	return c.WithAllWriteLocks(ctx, targets, body)
}
