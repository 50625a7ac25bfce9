package lock

import (
	"fmt"
	"hash/maphash"
	"unsafe"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/kneutral-org/stubguard/internal/metrics"
)

// Registry maps objects, by identity, to their RWLock.
//
// Entries are created on first use and are never removed explicitly: each
// entry is evicted by a cleanup attached to its object, which runs once the
// object has been garbage collected. The registry is partitioned into shards
// so that lock creation for unrelated objects rarely contends.
// Registry is safe for concurrent use.
type Registry struct {
	seed    maphash.Seed
	nshards int
	shards  []*xsync.MapOf[uintptr, *entry]
	metrics *metrics.Metrics
}

// entry is the registry record of one object.
type entry struct {
	lock *RWLock
	// ref reports the address of the object the entry was created for, or
	// nil once it is collected. It is nil for objects that are never collected.
	ref func() unsafe.Pointer
}

// owns reports whether e still belongs to the object at p. A collected
// object's address may be handed to a new object before its cleanup runs.
func (e *entry) owns(p unsafe.Pointer) bool {
	return e.ref == nil || e.ref() == p
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithShards sets the number of registry partitions. Values below 1 are ignored.
func WithShards(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.nshards = n
		}
	}
}

// WithRegistryMetrics records lock creation and eviction on m.
func WithRegistryMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		seed:    maphash.MakeSeed(),
		nshards: DefaultShards,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.shards = make([]*xsync.MapOf[uintptr, *entry], r.nshards)
	for i := range r.shards {
		r.shards[i] = xsync.NewMapOf[uintptr, *entry]()
	}
	return r
}

// Lock returns the RWLock for the keyed object, creating it on first use.
// Concurrent calls for the same object always return the same *RWLock.
func (r *Registry) Lock(key Key) (*RWLock, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("%w: nil %s", ErrLockCreation, key.typeName)
	}

	shard := r.shard(key.addr)
	e, loaded := shard.LoadOrCompute(key.addr, func() *entry {
		return r.newEntry(key)
	})
	if !loaded || e.owns(key.ptr) {
		return e.lock, nil
	}

	// The entry belongs to a collected object whose cleanup has not run yet.
	e, _ = shard.Compute(key.addr, func(old *entry, loaded bool) (*entry, bool) {
		if loaded && old.owns(key.ptr) {
			return old, false
		}
		if loaded {
			r.metrics.RecordLockEvicted()
		}
		return r.newEntry(key), false
	})
	return e.lock, nil
}

func (r *Registry) newEntry(key Key) *entry {
	e := &entry{lock: NewRWLock()}
	// The eviction closure must only see the address and the entry, never the object.
	addr := key.addr
	e.ref = key.track(func() { r.evict(addr, e) })
	r.metrics.RecordLockCreated()
	return e
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	n := 0
	for _, s := range r.shards {
		n += s.Size()
	}
	return n
}

// Shards returns the number of partitions.
func (r *Registry) Shards() int {
	return r.nshards
}

// evict removes the entry at addr if it is still e.
func (r *Registry) evict(addr uintptr, e *entry) {
	removed := false
	r.shard(addr).Compute(addr, func(cur *entry, loaded bool) (*entry, bool) {
		if loaded && cur == e {
			removed = true
			return nil, true
		}
		return cur, !loaded
	})
	if removed {
		r.metrics.RecordLockEvicted()
	}
}

func (r *Registry) shard(addr uintptr) *xsync.MapOf[uintptr, *entry] {
	return r.shards[maphash.Comparable(r.seed, addr)%uint64(r.nshards)]
}
