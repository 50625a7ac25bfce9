package lock

import (
	"fmt"
	"runtime"
	"unsafe"
	"weak"
)

// Key identifies an object by identity, not by value. Two distinct objects
// with equal contents always have distinct keys.
//
// The registry indexes objects by address and never keeps them alive. The
// Key value itself does hold the object until it is discarded; keep Keys for
// the length of a call, not longer.
type Key struct {
	addr     uintptr
	ptr      unsafe.Pointer
	typeName string
	track    func(evict func()) func() unsafe.Pointer
}

// KeyOf returns the Key of obj. A nil obj yields an invalid Key that the
// Registry refuses with ErrLockCreation.
//
// Any non-nil pointer is accepted, including package-level variables and
// zero-size values. Entries for those are never evicted, and all zero-size
// values may share one address and so one lock. Small pointer-free objects
// (an *int, a struct of a few numbers) can be batched by the allocator, which
// delays their eviction until every object in the batch is unreachable and
// may keep them registered for the life of the process.
func KeyOf[T any](obj *T) Key {
	k := Key{typeName: fmt.Sprintf("%T", obj)}
	if obj == nil {
		return k
	}
	k.ptr = unsafe.Pointer(obj)
	k.addr = uintptr(k.ptr)
	k.track = func(evict func()) func() unsafe.Pointer {
		// AddCleanup does nothing and returns the zero Cleanup for memory the
		// collector does not manage: globals and the shared zero-size base.
		// Only managed objects can die and have their address reused.
		if runtime.AddCleanup(obj, func(fn func()) { fn() }, evict) == (runtime.Cleanup{}) {
			return nil
		}
		wp := weak.Make(obj)
		return func() unsafe.Pointer { return unsafe.Pointer(wp.Value()) }
	}
	return k
}

// Valid reports whether the Key refers to an object.
func (k Key) Valid() bool {
	return k.ptr != nil
}

// TypeName returns the dynamic type of the keyed object, e.g. "*intercept.Stub".
func (k Key) TypeName() string {
	return k.typeName
}

func (k Key) String() string {
	return k.typeName
}

func typeNames(keys []Key) []string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.typeName
	}
	return names
}
