package interaction

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ErrStaleResolution is returned when a resolution arrives for a mutation that has been superseded. It is expected
// under concurrent use and only ever logged.
var ErrStaleResolution = errors.New("stale resolution")

// Transform is an optimistic update. Transforms must be idempotent against their own effect: applying one to a
// value that already reflects the write must not change it.
type Transform[V any] func(V) V

type outstanding[V any] struct {
	seq       uint64
	transform Transform[V]
}

type entry[V any] struct {
	confirmed    V
	hasConfirmed bool
	outstanding  []outstanding[V] // Sorted by seq
	latestSeq    uint64
	confirmedSeq uint64
	commitEpoch  uint64
}

func (e *entry[V]) known() bool {
	return e.hasConfirmed || len(e.outstanding) > 0
}

func (e *entry[V]) remove(seq uint64) (Transform[V], bool) {
	for i, o := range e.outstanding {
		if o.seq == seq {
			e.outstanding = append(e.outstanding[:i:i], e.outstanding[i+1:]...)
			return o.transform, true
		}
	}

	return nil, false
}

// Overlay holds, per key, the last value read from the ledger plus the optimistic transforms not yet resolved. The
// displayed value is always derived from the two, so no partial update can outlive its mutation.
type Overlay[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*entry[V]

	clone  func(V) V
	epoch  *atomic.Uint64
	notify func(K)
}

func newOverlay[K comparable, V any](epoch *atomic.Uint64, clone func(V) V, notify func(K)) *Overlay[K, V] {
	return &Overlay[K, V]{
		entries: make(map[K]*entry[V]),
		clone:   clone,
		epoch:   epoch,
		notify:  notify,
	}
}

// Get returns the displayed value for key, and whether anything is known about it.
func (o *Overlay[K, V]) Get(key K) (V, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	e, ok := o.entries[key]
	if !ok || !e.known() {
		var zero V
		return zero, false
	}

	value := o.clone(e.confirmed)
	for _, pending := range e.outstanding {
		value = pending.transform(value)
	}

	return value, true
}

// Confirmed returns the last value read from the ledger, ignoring outstanding transforms.
func (o *Overlay[K, V]) Confirmed(key K) (V, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	e, ok := o.entries[key]
	if !ok || !e.hasConfirmed {
		var zero V
		return zero, false
	}

	return o.clone(e.confirmed), true
}

// Outstanding reports whether key has any unresolved optimistic transforms.
func (o *Overlay[K, V]) Outstanding(key K) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	e, ok := o.entries[key]
	return ok && len(e.outstanding) > 0
}

// Apply records an optimistic transform. Sequence numbers must increase per key.
func (o *Overlay[K, V]) Apply(key K, seq uint64, transform Transform[V]) error {
	o.mu.Lock()

	e := o.getOrCreate(key)
	if seq <= e.latestSeq {
		o.mu.Unlock()
		return errors.Wrapf(ErrStaleResolution, "apply seq %d, latest seq %d", seq, e.latestSeq)
	}

	e.outstanding = append(e.outstanding, outstanding[V]{seq: seq, transform: transform})
	sort.Slice(e.outstanding, func(i, j int) bool {
		return e.outstanding[i].seq < e.outstanding[j].seq
	})
	e.latestSeq = seq

	o.mu.Unlock()
	o.notify(key)
	return nil
}

// Commit resolves seq as confirmed, replacing the confirmed value with snapshot, a fresh read taken after the
// write was confirmed. If a newer mutation has already committed, the snapshot is discarded.
func (o *Overlay[K, V]) Commit(key K, seq uint64, snapshot V) error {
	o.mu.Lock()

	e := o.getOrCreate(key)
	e.remove(seq)

	if seq < e.confirmedSeq {
		o.mu.Unlock()
		o.notify(key)
		return errors.Wrapf(ErrStaleResolution, "commit seq %d, confirmed seq %d", seq, e.confirmedSeq)
	}

	e.confirmed = o.clone(snapshot)
	e.hasConfirmed = true
	e.confirmedSeq = seq
	e.commitEpoch = o.epoch.Add(1)

	o.mu.Unlock()
	o.notify(key)
	return nil
}

// Promote folds the transform for seq into the confirmed value. It is the fallback for a write that the ledger
// confirmed but which could not be re-read.
func (o *Overlay[K, V]) Promote(key K, seq uint64) error {
	o.mu.Lock()

	e := o.getOrCreate(key)
	transform, ok := e.remove(seq)
	if !ok || seq < e.confirmedSeq {
		o.mu.Unlock()
		o.notify(key)
		return errors.Wrapf(ErrStaleResolution, "promote seq %d, confirmed seq %d", seq, e.confirmedSeq)
	}

	e.confirmed = transform(o.clone(e.confirmed))
	e.hasConfirmed = true
	e.confirmedSeq = seq
	e.commitEpoch = o.epoch.Add(1)

	o.mu.Unlock()
	o.notify(key)
	return nil
}

// Rollback discards the transform for seq. Other outstanding transforms are unaffected.
func (o *Overlay[K, V]) Rollback(key K, seq uint64) error {
	o.mu.Lock()

	e, ok := o.entries[key]
	if !ok {
		o.mu.Unlock()
		return errors.Wrapf(ErrStaleResolution, "rollback seq %d of unknown key", seq)
	}

	if _, ok := e.remove(seq); !ok {
		o.mu.Unlock()
		return errors.Wrapf(ErrStaleResolution, "rollback seq %d not outstanding", seq)
	}

	o.mu.Unlock()
	o.notify(key)
	return nil
}

// Observe folds a read-path snapshot into the confirmed value. epoch must be the store epoch captured before the
// read was issued: if a commit for key has landed since, the snapshot may predate it and is ignored.
func (o *Overlay[K, V]) Observe(key K, epoch uint64, merge func(prev V, known bool) V) bool {
	o.mu.Lock()

	e := o.getOrCreate(key)
	if e.commitEpoch > epoch {
		o.mu.Unlock()
		return false
	}

	e.confirmed = o.clone(merge(e.confirmed, e.hasConfirmed))
	e.hasConfirmed = true

	o.mu.Unlock()
	o.notify(key)
	return true
}

// Forget drops the confirmed value for key, e.g. once the post it describes has been deleted.
func (o *Overlay[K, V]) Forget(key K) {
	o.mu.Lock()

	e, ok := o.entries[key]
	if !ok {
		o.mu.Unlock()
		return
	}

	if len(e.outstanding) == 0 {
		delete(o.entries, key)
	} else {
		var zero V
		e.confirmed = zero
		e.hasConfirmed = false
	}

	o.mu.Unlock()
	o.notify(key)
}

// getOrCreate must be called with mu held.
func (o *Overlay[K, V]) getOrCreate(key K) *entry[V] {
	e, ok := o.entries[key]
	if !ok {
		e = &entry[V]{}
		o.entries[key] = e
	}

	return e
}
