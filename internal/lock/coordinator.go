package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kneutral-org/stubguard/internal/logging"
	"github.com/kneutral-org/stubguard/internal/metrics"
)

// Coordinator runs invocations under per-object read locks and
// reconfigurations under the write locks of every object they touch.
// A Coordinator is safe for concurrent use; construct one and share it with
// every call site that needs locking.
type Coordinator struct {
	registry *Registry
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	readTimeout  time.Duration
	writeTimeout time.Duration
	passWait     time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRegistry sets the registry the coordinator resolves locks from.
func WithRegistry(r *Registry) Option {
	return func(c *Coordinator) {
		c.registry = r
	}
}

// WithReadTimeout sets how long an invocation waits for its read lock.
// Non-positive values are ignored.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.readTimeout = d
		}
	}
}

// WithWriteTimeout sets the global deadline of a multi-object write
// acquisition. Non-positive values are ignored.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// WithPassWait sets how long a single lock is waited for within one pass.
// It should be well below the write timeout so that several passes fit.
// Non-positive values are ignored.
func WithPassWait(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.passWait = d
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithMetrics records acquisition outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// NewCoordinator creates a Coordinator. Without WithRegistry it gets a
// private registry of its own.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:       zerolog.Nop(),
		readTimeout:  DefaultReadTimeout,
		writeTimeout: DefaultWriteTimeout,
		passWait:     DefaultPassWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = NewRegistry(WithRegistryMetrics(c.metrics))
	}
	return c
}

// Registry returns the registry locks are resolved from.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// WithReadLock runs body while holding the read lock of the keyed object.
// Any number of WithReadLock calls on one object run together. The lock is
// released when body returns or panics, and body's error is returned as is.
//
// body receives a context recording the hold. A nested WithReadLock on that
// context for the same object, or one nested in WithAllWriteLocks for an
// object it holds, runs at once without waiting, even behind a queued writer.
// The context must not outlive body.
func (c *Coordinator) WithReadLock(ctx context.Context, key Key, body func(ctx context.Context) error) error {
	l, err := c.registry.Lock(key)
	if err != nil {
		c.metrics.RecordAcquisition(metrics.ModeRead, metrics.ResultFailed)
		return err
	}
	if held, _ := heldIn(ctx, l); held {
		c.metrics.RecordAcquisition(metrics.ModeRead, metrics.ResultReentered)
		return body(ctx)
	}

	start := time.Now()
	ok, err := l.RLock(ctx, c.readTimeout)
	c.metrics.ObserveWait(metrics.ModeRead, time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordAcquisition(metrics.ModeRead, metrics.ResultInterrupted)
		return &InterruptedError{Types: []string{key.typeName}, Err: err}
	}
	if !ok {
		c.metrics.RecordAcquisition(metrics.ModeRead, metrics.ResultTimeout)
		c.logger.Warn().
			Str("type", key.typeName).
			Dur("timeout", c.readTimeout).
			Msg("read lock timed out")
		return &ReadTimeoutError{Type: key.typeName, Timeout: c.readTimeout}
	}
	c.metrics.RecordAcquisition(metrics.ModeRead, metrics.ResultAcquired)

	defer l.RUnlock()
	return body(withHeld(ctx, []*RWLock{l}, false))
}

// WithAllWriteLocks runs body while holding the write locks of every keyed
// object. keys may repeat and may be empty; with no keys body runs at once.
//
// Locks are gathered in passes. Within a pass each missing lock is tried
// without waiting and then waited for at most the pass wait, so a lock held
// by a competing caller never blocks the others for long. Locks taken stay
// held across passes. If the write timeout passes before the set is
// complete, every lock taken is released and a *WriteTimeoutError is
// returned. If ctx ends during a wait, the same rollback happens and an
// *InterruptedError is returned.
//
// body receives a context recording the holds, as with WithReadLock. Write
// locks the context already holds are not taken again. Read holds cannot be
// upgraded: asking for the write lock of an object whose read lock ctx holds
// times out.
func (c *Coordinator) WithAllWriteLocks(ctx context.Context, keys []Key, body func(ctx context.Context) error) error {
	if len(keys) == 0 {
		return body(ctx)
	}

	locks := make([]*RWLock, 0, len(keys))
	for _, key := range keys {
		l, err := c.registry.Lock(key)
		if err != nil {
			c.metrics.RecordAcquisition(metrics.ModeWrite, metrics.ResultFailed)
			return err
		}
		if _, write := heldIn(ctx, l); write {
			continue
		}
		locks = append(locks, l)
	}
	if len(locks) == 0 {
		c.metrics.RecordAcquisition(metrics.ModeWrite, metrics.ResultReentered)
		return body(ctx)
	}

	logger := logging.AcquisitionLogger(c.logger, uuid.NewString(), metrics.ModeWrite)
	acq := newAcquisition(locks)

	start := time.Now()
	deadline := start.Add(c.writeTimeout)
	for !acq.complete() && time.Now().Before(deadline) {
		if err := acq.pass(ctx, deadline, c.passWait); err != nil {
			acq.rollback()
			c.recordWriteOutcome(acq, start, metrics.ResultInterrupted)
			logger.Warn().
				Err(err).
				Int("passes", acq.passes).
				Str("state", acq.state.String()).
				Msg("write lock acquisition interrupted")
			return &InterruptedError{Types: typeNames(keys), Err: err}
		}
		logger.Debug().
			Int("pass", acq.passes).
			Int("held", len(acq.acquired)).
			Int("remaining", len(acq.remaining)).
			Msg("write lock pass finished")
	}

	if !acq.complete() {
		acq.rollback()
		c.recordWriteOutcome(acq, start, metrics.ResultTimeout)
		logger.Warn().
			Strs("types", typeNames(keys)).
			Int("passes", acq.passes).
			Dur("timeout", c.writeTimeout).
			Str("state", acq.state.String()).
			Msg("write lock acquisition timed out")
		return &WriteTimeoutError{
			Types:    typeNames(keys),
			Timeout:  c.writeTimeout,
			PassWait: c.passWait,
			Passes:   acq.passes,
		}
	}

	acq.hold()
	c.recordWriteOutcome(acq, start, metrics.ResultAcquired)
	defer acq.release()
	return body(withHeld(ctx, acq.acquired, true))
}

func (c *Coordinator) recordWriteOutcome(acq *acquisition, start time.Time, result string) {
	c.metrics.ObserveWait(metrics.ModeWrite, time.Since(start).Seconds())
	c.metrics.ObservePasses(acq.passes)
	c.metrics.RecordAcquisition(metrics.ModeWrite, result)
	if acq.state == stateRolledBack {
		c.metrics.RecordRollback()
	}
}
