// Package lock coordinates reader-writer access to shared stubbable objects.
//
// Every invocation of a registered object runs under that object's read lock,
// so any number of invocations proceed together. A reconfiguration runs under
// the write locks of every object it touches, taken all-or-nothing by the
// Coordinator: locks are gathered over repeated bounded passes until either
// the whole set is held or a global deadline passes, in which case everything
// taken so far is released before the error is returned.
package lock

import (
	"time"
)

const (
	// DefaultReadTimeout bounds how long an invocation waits for its read lock.
	DefaultReadTimeout = 15 * time.Second

	// DefaultWriteTimeout bounds a whole multi-object write acquisition.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultPassWait bounds the wait for a single lock within one pass.
	DefaultPassWait = 2 * time.Second

	// DefaultShards is the number of independent registry partitions.
	DefaultShards = 4
)
