package lock

import (
	"context"
	"slices"
)

type heldKey struct{}

// heldLocks is one level of locks held by the caller owning a context.
type heldLocks struct {
	locks  []*RWLock
	write  bool
	parent *heldLocks
}

// withHeld returns a context recording that locks are held in the given mode
// on top of whatever ctx already records.
func withHeld(ctx context.Context, locks []*RWLock, write bool) context.Context {
	parent, _ := ctx.Value(heldKey{}).(*heldLocks)
	return context.WithValue(ctx, heldKey{}, &heldLocks{
		locks:  slices.Clone(locks),
		write:  write,
		parent: parent,
	})
}

// heldIn reports whether ctx records l as held, and whether the write side is
// among the holds.
func heldIn(ctx context.Context, l *RWLock) (held, write bool) {
	for h, _ := ctx.Value(heldKey{}).(*heldLocks); h != nil; h = h.parent {
		if slices.Contains(h.locks, l) {
			if h.write {
				return true, true
			}
			held = true
		}
	}
	return held, false
}
