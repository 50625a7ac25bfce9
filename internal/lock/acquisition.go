package lock

import (
	"context"
	"time"
)

type acquisitionState int

const (
	stateAcquiring acquisitionState = iota
	stateHeld
	stateRolledBack
	stateReleased
)

func (s acquisitionState) String() string {
	switch s {
	case stateAcquiring:
		return "acquiring"
	case stateHeld:
		return "held"
	case stateRolledBack:
		return "rolled_back"
	case stateReleased:
		return "released"
	}
	return "unknown"
}

// acquisition tracks the write locks of one WithAllWriteLocks call. It only
// ever moves forward: acquiring, then held and released, or rolled back.
type acquisition struct {
	state     acquisitionState
	remaining []*RWLock
	acquired  []*RWLock
	passes    int
}

// newAcquisition starts an acquisition of locks, ignoring repeats so that no
// lock is taken twice by the same call.
func newAcquisition(locks []*RWLock) *acquisition {
	seen := make(map[*RWLock]struct{}, len(locks))
	remaining := make([]*RWLock, 0, len(locks))
	for _, l := range locks {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		remaining = append(remaining, l)
	}
	return &acquisition{
		state:     stateAcquiring,
		remaining: remaining,
		acquired:  make([]*RWLock, 0, len(remaining)),
	}
}

func (a *acquisition) complete() bool {
	return len(a.remaining) == 0
}

// pass sweeps the remaining locks once. Each lock gets a zero-wait try and
// then a wait of at most passWait, cut short at deadline. Locks that could
// not be taken stay for the next pass. An error means ctx ended; the locks
// taken so far stay acquired until rollback.
func (a *acquisition) pass(ctx context.Context, deadline time.Time, passWait time.Duration) error {
	a.passes++
	pending := make([]*RWLock, 0, len(a.remaining))
	for i, l := range a.remaining {
		ok, err := l.Lock(ctx, min(passWait, time.Until(deadline)))
		if err != nil {
			a.remaining = append(pending, a.remaining[i:]...)
			return err
		}
		if ok {
			a.acquired = append(a.acquired, l)
		} else {
			pending = append(pending, l)
		}
	}
	a.remaining = pending
	return nil
}

func (a *acquisition) hold() {
	a.state = stateHeld
}

// rollback releases every lock taken so far after a failed acquisition.
func (a *acquisition) rollback() {
	a.unlockAll()
	a.state = stateRolledBack
}

// release releases the full set once the guarded work is done.
func (a *acquisition) release() {
	a.unlockAll()
	a.state = stateReleased
}

func (a *acquisition) unlockAll() {
	for _, l := range a.acquired {
		l.Unlock()
	}
	a.acquired = a.acquired[:0]
}
