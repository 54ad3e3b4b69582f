//go:build linux || darwin

package winpool

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MappedPersistenceWindow is a brick-sized window backed by an OS memory
// mapping of the channel's underlying file descriptor. Reads and writes go
// straight through the mapping; force/close flush it with msync/munmap.
type MappedPersistenceWindow struct {
	opLock
	start    int64
	size     int64
	data     []byte
	readOnly bool
}

// newMappedPersistenceWindow maps [start, start+size) of fd.
func newMappedPersistenceWindow(fd uintptr, start, size int64, readOnly bool) (*MappedPersistenceWindow, error) {
	prot := unix.PROT_READ
	if !readOnly {
		prot |= unix.PROT_WRITE
	}
	data, err := unix.Mmap(int(fd), start, int(size), prot, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("winpool: mmap start=%d size=%d: %w", start, size, err)
	}
	return &MappedPersistenceWindow{start: start, size: size, data: data, readOnly: readOnly}, nil
}

func (w *MappedPersistenceWindow) StartOffset() int64 { return w.start }
func (w *MappedPersistenceWindow) Size() int64        { return w.size }
func (w *MappedPersistenceWindow) Bytes() []byte      { return w.data }
func (w *MappedPersistenceWindow) IsRow() bool        { return false }

// MarkDirty is a no-op: writes into Bytes() go straight through the mapping
// to the page cache, so there is no staged buffer to track. force (msync)
// is still required before munmap to guarantee durability.
func (w *MappedPersistenceWindow) MarkDirty() {}

// force flushes the mapping to the backing file via msync. No-op for
// read-only mappings.
func (w *MappedPersistenceWindow) force() error {
	if w.readOnly || len(w.data) == 0 {
		return nil
	}
	if err := unix.Msync(w.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("winpool: msync: %w", err)
	}
	return nil
}

// close flushes and unmaps the region. The window must not be referenced
// afterward.
func (w *MappedPersistenceWindow) close() error {
	if err := w.force(); err != nil {
		return err
	}
	if err := unix.Munmap(w.data); err != nil {
		return fmt.Errorf("winpool: munmap: %w", err)
	}
	w.data = nil
	return nil
}
