package winpool

import (
	"fmt"
	"sync/atomic"

	"windowpool/channel"
)

// rowClosed is the sentinel state value meaning "closed; do not reuse".
const rowClosed = -1

// PersistenceRow is a heap buffer sized to exactly one record, created
// lazily whenever a position's brick carries no window. Multiple threads
// may hold the same row concurrently (its refCount tracks them); only the
// thread that drives refCount to zero closes it, writing back any dirty
// bytes first (unless the pool is read-only).
type PersistenceRow struct {
	opLock
	position int64
	pageSize int64
	ch       channel.Channel

	data []byte

	dirty int32 // atomic bool

	// refCount is >=0 while live (number of threads currently holding this
	// row's in-use marker) or rowClosed once retired.
	refCount int32
}

// newPersistenceRow reads one record from ch at position into a fresh
// buffer.
func newPersistenceRow(ch channel.Channel, position, pageSize int64) (*PersistenceRow, error) {
	data := make([]byte, pageSize)
	if _, err := ch.ReadAt(data, position*pageSize); err != nil {
		return nil, fmt.Errorf("winpool: row load position=%d: %w", position, err)
	}
	return &PersistenceRow{position: position, pageSize: pageSize, ch: ch, data: data}, nil
}

func (r *PersistenceRow) StartOffset() int64 { return r.position * r.pageSize }
func (r *PersistenceRow) Size() int64        { return r.pageSize }
func (r *PersistenceRow) Bytes() []byte      { return r.data }
func (r *PersistenceRow) IsRow() bool        { return true }
func (r *PersistenceRow) Position() int64    { return r.position }

// MarkDirty flags this row as having staged writes not yet written back to
// the channel. Callers must hold the row's Write lock first.
func (r *PersistenceRow) MarkDirty() {
	atomic.StoreInt32(&r.dirty, 1)
}

func (r *PersistenceRow) isDirty() bool {
	return atomic.LoadInt32(&r.dirty) != 0
}

// markInUse attempts to set this row's in-use marker, failing only if the
// row has already been retired (closed). Safe to call from multiple
// goroutines concurrently.
func (r *PersistenceRow) markInUse() bool {
	for {
		old := atomic.LoadInt32(&r.refCount)
		if old == rowClosed {
			return false
		}
		if atomic.CompareAndSwapInt32(&r.refCount, old, old+1) {
			return true
		}
	}
}

// writeOutAndCloseIfFree implements the release-time handoff described in
// §4.3 step 2: if no other thread currently holds the row (refCount would
// drop to zero), flush a dirty buffer to the channel, retire the row, and
// report true so the caller removes it from the active-row map. Otherwise
// the dirty flag is reset and the row stays alive for its other holder(s) —
// preserved verbatim from the source design, which trusts the remaining
// holder's own eventual release to re-flush if it mutates further.
func (r *PersistenceRow) writeOutAndCloseIfFree(readOnly bool) (closed bool, err error) {
	for {
		old := atomic.LoadInt32(&r.refCount)
		next := old - 1
		if next < 0 {
			return false, fmt.Errorf("%w: row position=%d released while not marked in-use", ErrNotLocked, r.position)
		}
		if next > 0 {
			if atomic.CompareAndSwapInt32(&r.refCount, old, next) {
				atomic.StoreInt32(&r.dirty, 0)
				return false, nil
			}
			continue
		}
		// next == 0: we may be the last holder. Claim retirement via CAS so a
		// concurrent markInUse racing in sees rowClosed and fails cleanly
		// instead of reviving a row mid-close.
		if !atomic.CompareAndSwapInt32(&r.refCount, old, rowClosed) {
			continue
		}
		if r.isDirty() && !readOnly {
			// The releasing caller already holds this row's Write lock (per
			// MarkDirty's documented contract), so writing r.data here needs no
			// further locking — re-locking r.mu would deadlock against the
			// caller's own held lock.
			_, writeErr := r.ch.WriteAt(r.data, r.StartOffset())
			if writeErr != nil {
				// Failed to flush: the row must not look clean, and since it
				// is already retired it cannot be revived, so surface the
				// error to the releasing caller.
				return true, fmt.Errorf("winpool: row flush position=%d: %w", r.position, writeErr)
			}
		}
		return true, nil
	}
}
