package lock

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for lock coordination. Use errors.Is to test for them; the
// concrete errors returned carry the details.
var (
	// ErrLockCreation is returned when no lock can be resolved for an object.
	// It is never expected for a valid Key.
	ErrLockCreation = errors.New("lock creation failed")

	// ErrReadLockTimeout is returned when an invocation could not take its
	// read lock in time. The caller may retry.
	ErrReadLockTimeout = errors.New("read lock timeout")

	// ErrWriteLockTimeout is returned when a reconfiguration could not take all
	// of its write locks before the global deadline. Nothing is held when it
	// is returned; the caller may retry the whole operation later.
	ErrWriteLockTimeout = errors.New("write lock acquisition timeout")

	// ErrInterrupted is returned when the caller's context ended during a
	// lock wait. It is never retried internally.
	ErrInterrupted = errors.New("lock wait interrupted")
)

// ReadTimeoutError reports a read lock that could not be taken in time.
type ReadTimeoutError struct {
	Type    string
	Timeout time.Duration
}

func (e *ReadTimeoutError) Error() string {
	return fmt.Sprintf("couldn't lock %s for reading within %s", e.Type, e.Timeout)
}

// Is makes errors.Is(err, ErrReadLockTimeout) hold.
func (e *ReadTimeoutError) Is(target error) bool {
	return target == ErrReadLockTimeout
}

// WriteTimeoutError reports a multi-object write acquisition that ran out of
// time. Types lists every requested object, in request order.
type WriteTimeoutError struct {
	Types    []string
	Timeout  time.Duration
	PassWait time.Duration
	Passes   int
}

func (e *WriteTimeoutError) Error() string {
	return fmt.Sprintf("couldn't acquire locks for objects: %s in time: %s (per-lock wait %s, %d passes)",
		strings.Join(e.Types, ","), e.Timeout, e.PassWait, e.Passes)
}

// Is makes errors.Is(err, ErrWriteLockTimeout) hold.
func (e *WriteTimeoutError) Is(target error) bool {
	return target == ErrWriteLockTimeout
}

// InterruptedError reports a lock wait cut short by the caller's context.
// It wraps the context error.
type InterruptedError struct {
	Types []string
	Err   error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("lock wait for %s interrupted: %v", strings.Join(e.Types, ","), e.Err)
}

// Is makes errors.Is(err, ErrInterrupted) hold.
func (e *InterruptedError) Is(target error) bool {
	return target == ErrInterrupted
}

func (e *InterruptedError) Unwrap() error {
	return e.Err
}
