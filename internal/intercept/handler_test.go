package intercept

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kneutral-org/stubguard/internal/lock"
)

type service struct {
	name string
	deps []string
}

func newTestCoordinator() *lock.Coordinator {
	return lock.NewCoordinator(
		lock.WithReadTimeout(200*time.Millisecond),
		lock.WithWriteTimeout(200*time.Millisecond),
		lock.WithPassWait(20*time.Millisecond),
	)
}

func TestHandlerFunc(t *testing.T) {
	h := HandlerFunc(func(ctx context.Context, inv *Invocation) (any, error) {
		return inv.Method + "!", nil
	})

	result, err := h.Handle(context.Background(), &Invocation{Method: "ping"})

	require.NoError(t, err)
	assert.Equal(t, "ping!", result)
}

func TestSynchronizedHandler_HoldsReadLock(t *testing.T) {
	c := newTestCoordinator()
	svc := &service{name: "billing"}
	l, err := c.Registry().Lock(lock.KeyOf(svc))
	require.NoError(t, err)

	var sawWriterExcluded bool
	h := Synchronize(HandlerFunc(func(ctx context.Context, inv *Invocation) (any, error) {
		sawWriterExcluded = !l.TryLock()
		return inv.Args[0], nil
	}), c)

	result, err := h.Handle(context.Background(), &Invocation{
		Target: lock.KeyOf(svc),
		Method: "Echo",
		Args:   []any{42},
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.True(t, sawWriterExcluded)
	assert.True(t, l.TryLock(), "read lock is released after the call")
	l.Unlock()
}

func TestSynchronizedHandler_LockTimeoutSkipsDelegate(t *testing.T) {
	c := newTestCoordinator()
	svc := &service{name: "billing"}
	l, err := c.Registry().Lock(lock.KeyOf(svc))
	require.NoError(t, err)
	require.True(t, l.TryLock())
	defer l.Unlock()

	var called atomic.Bool
	h := Synchronize(HandlerFunc(func(ctx context.Context, inv *Invocation) (any, error) {
		called.Store(true)
		return nil, nil
	}), c)

	_, err = h.Handle(context.Background(), &Invocation{Target: lock.KeyOf(svc), Method: "Echo"})

	assert.ErrorIs(t, err, lock.ErrReadLockTimeout)
	assert.False(t, called.Load())
}

func TestSynchronizedHandler_DelegateErrorUnchanged(t *testing.T) {
	c := newTestCoordinator()
	delegateErr := errors.New("downstream failed")
	h := Synchronize(HandlerFunc(func(ctx context.Context, inv *Invocation) (any, error) {
		return "partial", delegateErr
	}), c)

	result, err := h.Handle(context.Background(), &Invocation{Target: lock.KeyOf(&service{}), Method: "Echo"})

	assert.Same(t, delegateErr, err)
	assert.Equal(t, "partial", result)
}

func TestReconfigure(t *testing.T) {
	c := newTestCoordinator()
	a, b := &service{name: "a"}, &service{name: "b"}

	err := Reconfigure(context.Background(), c, func(context.Context) error {
		a.deps = append(a.deps, "b")
		b.deps = append(b.deps, "a")
		return nil
	}, lock.KeyOf(a), lock.KeyOf(b))

	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, a.deps)
	assert.Equal(t, []string{"a"}, b.deps)
}

func TestReconfigure_Timeout(t *testing.T) {
	c := newTestCoordinator()
	a, b := &service{name: "a"}, &service{name: "b"}
	lb, err := c.Registry().Lock(lock.KeyOf(b))
	require.NoError(t, err)
	require.True(t, lb.TryRLock())
	defer lb.RUnlock()

	err = Reconfigure(context.Background(), c, func(context.Context) error {
		t.Error("body must not run")
		return nil
	}, lock.KeyOf(a), lock.KeyOf(b))

	assert.ErrorIs(t, err, lock.ErrWriteLockTimeout)
	assert.Contains(t, err.Error(), "*intercept.service,*intercept.service")
}
