package intercept

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kneutral-org/stubguard/internal/lock"
	"github.com/kneutral-org/stubguard/internal/logging"
)

// ErrNotStubbed is returned when a Stub is invoked with a method that has no answer.
var ErrNotStubbed = errors.New("method not stubbed")

// Answer produces the result of a stubbed method. ctx carries the
// invocation's read hold; pass it on when the answer calls back into a stub.
type Answer func(ctx context.Context, args []any) (any, error)

// Return is an Answer that always returns v.
func Return(v any) Answer {
	return func(context.Context, []any) (any, error) {
		return v, nil
	}
}

// Fail is an Answer that always returns err.
func Fail(err error) Answer {
	return func(context.Context, []any) (any, error) {
		return nil, err
	}
}

// Stub is a stubbable test double. Its answers are plain unsynchronized
// state: invocations must go through a SynchronizedHandler and changes
// through Reconfigure, which is exactly what Mocker does.
type Stub struct {
	id      string
	name    string
	answers map[string]Answer
	calls   atomic.Int64
}

// NewStub creates a Stub with no answers.
func NewStub(name string) *Stub {
	return &Stub{
		id:      uuid.NewString(),
		name:    name,
		answers: make(map[string]Answer),
	}
}

// ID returns the unique stub id.
func (s *Stub) ID() string {
	return s.id
}

// Name returns the stub name.
func (s *Stub) Name() string {
	return s.name
}

// Key returns the lock key of the stub.
func (s *Stub) Key() lock.Key {
	return lock.KeyOf(s)
}

// When sets the answer for method. Call it only inside Reconfigure.
func (s *Stub) When(method string, answer Answer) {
	s.answers[method] = answer
}

// Reset removes every answer. Call it only inside Reconfigure.
func (s *Stub) Reset() {
	clear(s.answers)
}

// Calls returns how many invocations reached the stub.
func (s *Stub) Calls() int64 {
	return s.calls.Load()
}

// Handler returns the unsynchronized dispatch of the stub.
func (s *Stub) Handler() Handler {
	return HandlerFunc(s.dispatch)
}

func (s *Stub) dispatch(ctx context.Context, inv *Invocation) (any, error) {
	s.calls.Add(1)
	answer, ok := s.answers[inv.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrNotStubbed, s.name, inv.Method)
	}
	return answer(ctx, inv.Args)
}

// Mocker invokes and reconfigures stubs through one Coordinator.
type Mocker struct {
	coordinator *lock.Coordinator
}

// NewMocker creates a Mocker on c.
func NewMocker(c *lock.Coordinator) *Mocker {
	return &Mocker{coordinator: c}
}

// Coordinator returns the coordinator the Mocker locks through.
func (m *Mocker) Coordinator() *lock.Coordinator {
	return m.coordinator
}

// Invoke calls method on s under its read lock.
func (m *Mocker) Invoke(ctx context.Context, s *Stub, method string, args ...any) (any, error) {
	inv := &Invocation{Target: s.Key(), Method: method, Args: args}
	result, err := Synchronize(s.Handler(), m.coordinator).Handle(ctx, inv)
	if err != nil && s != nil && !errors.Is(err, ErrNotStubbed) {
		logger := logging.StubLogger(logging.LoggerFromContext(ctx), s.id, s.name)
		logger.Debug().Err(err).Str("method", method).Msg("invocation failed")
	}
	return result, err
}

// Stub runs body with the write locks of every given stub held. body is
// where When and Reset calls belong; invocations it makes with its context on
// those stubs do not wait.
func (m *Mocker) Stub(ctx context.Context, body func(ctx context.Context) error, stubs ...*Stub) error {
	keys := make([]lock.Key, len(stubs))
	for i, s := range stubs {
		keys[i] = s.Key()
	}
	err := Reconfigure(ctx, m.coordinator, body, keys...)
	if errors.Is(err, lock.ErrWriteLockTimeout) || errors.Is(err, lock.ErrInterrupted) {
		logger := logging.LoggerFromContext(ctx)
		logger.Warn().Err(err).Int("stubs", len(stubs)).Msg("reconfiguration not applied")
	}
	return err
}
