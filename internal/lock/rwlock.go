package lock

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// maxReaders is the number of read holders an RWLock admits at once.
// A writer takes all of them.
const maxReaders int64 = 1 << 30

// RWLock is a fair reader-writer lock whose waits are always bounded.
//
// It is backed by a weighted semaphore: a reader holds one unit and a writer
// holds every unit. Waiters are served in arrival order, so a queued writer
// holds back readers that arrive after it and cannot be starved by a steady
// stream of invocations.
//
// RWLock is not reentrant. A goroutine holding the write side must not ask
// for the read side of the same lock.
type RWLock struct {
	sem *semaphore.Weighted
}

// NewRWLock creates an unlocked RWLock.
func NewRWLock() *RWLock {
	return &RWLock{sem: semaphore.NewWeighted(maxReaders)}
}

// TryRLock takes the read side if it is available right now.
func (l *RWLock) TryRLock() bool {
	return l.sem.TryAcquire(1)
}

// RLock takes the read side, waiting at most wait.
// It returns false with a nil error when the wait elapses, and ctx.Err()
// when ctx is done first.
func (l *RWLock) RLock(ctx context.Context, wait time.Duration) (bool, error) {
	return l.acquire(ctx, 1, wait)
}

// RUnlock releases one read hold. It panics if the read side is not held.
func (l *RWLock) RUnlock() {
	l.sem.Release(1)
}

// TryLock takes the write side if it is available right now.
func (l *RWLock) TryLock() bool {
	return l.sem.TryAcquire(maxReaders)
}

// Lock takes the write side, waiting at most wait. Results follow RLock.
func (l *RWLock) Lock(ctx context.Context, wait time.Duration) (bool, error) {
	return l.acquire(ctx, maxReaders, wait)
}

// Unlock releases the write side. It panics if the write side is not held.
func (l *RWLock) Unlock() {
	l.sem.Release(maxReaders)
}

func (l *RWLock) acquire(ctx context.Context, n int64, wait time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if l.sem.TryAcquire(n) {
		return true, nil
	}
	if wait <= 0 {
		return false, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, n); err != nil {
		// Only the parent being done is an error; our own deadline is a miss.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, nil
	}
	return true, nil
}
