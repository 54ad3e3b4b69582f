package winpool

import (
	"fmt"
	"sync/atomic"

	"windowpool/channel"
)

// PlainPersistenceWindow is a brick-sized window backed by a heap buffer,
// eagerly loaded from the channel on allocation. Writes are staged in the
// buffer and written back to the channel on force/close. Used whenever
// memory mapping is unavailable or disabled (useMemoryMapped == false).
type PlainPersistenceWindow struct {
	opLock
	ch       channel.Channel
	start    int64
	size     int64
	data     []byte
	readOnly bool
	dirty    int32 // atomic bool, independent of opLock so MarkDirty is safe under an already-held Write lock
}

// newPlainPersistenceWindow reads [start, start+size) of ch into a fresh
// heap buffer. This read happens synchronously on the calling goroutine —
// per Design Notes §9, no async eviction/prefetch is defined for plain
// windows, so a large brick size here can make acquire block noticeably.
func newPlainPersistenceWindow(ch channel.Channel, start, size int64, readOnly bool) (*PlainPersistenceWindow, error) {
	data := make([]byte, size)
	if _, err := ch.ReadAt(data, start); err != nil {
		return nil, fmt.Errorf("winpool: plain window load start=%d size=%d: %w", start, size, err)
	}
	return &PlainPersistenceWindow{ch: ch, start: start, size: size, data: data, readOnly: readOnly}, nil
}

func (w *PlainPersistenceWindow) StartOffset() int64 { return w.start }
func (w *PlainPersistenceWindow) Size() int64        { return w.size }
func (w *PlainPersistenceWindow) Bytes() []byte      { return w.data }
func (w *PlainPersistenceWindow) IsRow() bool        { return false }

// MarkDirty flags the window as having staged, unflushed writes. Callers
// holding a Write lock on the window should call this after mutating Bytes().
func (w *PlainPersistenceWindow) MarkDirty() {
	atomic.StoreInt32(&w.dirty, 1)
}

// force writes the staged buffer back to the channel if dirty. Takes the
// window's own Write lock internally, so callers must not already hold it.
func (w *PlainPersistenceWindow) force() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.readOnly || atomic.LoadInt32(&w.dirty) == 0 {
		return nil
	}
	if _, err := w.ch.WriteAt(w.data, w.start); err != nil {
		return fmt.Errorf("winpool: plain window flush start=%d: %w", w.start, err)
	}
	atomic.StoreInt32(&w.dirty, 0)
	return nil
}

// close flushes staged writes; the buffer is then abandoned to the GC.
func (w *PlainPersistenceWindow) close() error {
	return w.force()
}

// acceptContents copies a dirty row's bytes into this window at the row's
// offset. Used by release's row-to-window handoff (§4.3 step 2) whenever the
// row's brick has since gained a plain (non-mapped) window. The caller must
// already hold this window's Write lock.
func (w *PlainPersistenceWindow) acceptContents(row *PersistenceRow) {
	off := row.StartOffset() - w.start
	copy(w.data[off:off+row.Size()], row.Bytes())
	w.MarkDirty()
}
