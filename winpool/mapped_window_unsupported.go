//go:build !linux && !darwin

package winpool

import "fmt"

// MappedPersistenceWindow is unavailable on this platform: brick sizing does
// not look at the platform, so allocateNewWindow can still reach
// newMappedPersistenceWindow, which always fails here. That failure is
// counted as an allocation error and the brick keeps being served by rows.
type MappedPersistenceWindow struct {
	opLock
	start int64
	size  int64
}

func newMappedPersistenceWindow(fd uintptr, start, size int64, readOnly bool) (*MappedPersistenceWindow, error) {
	return nil, fmt.Errorf("winpool: memory mapping unsupported on this platform")
}

func (w *MappedPersistenceWindow) StartOffset() int64 { return w.start }
func (w *MappedPersistenceWindow) Size() int64        { return w.size }
func (w *MappedPersistenceWindow) Bytes() []byte      { return nil }
func (w *MappedPersistenceWindow) IsRow() bool        { return false }
func (w *MappedPersistenceWindow) MarkDirty()         {}
func (w *MappedPersistenceWindow) force() error       { return nil }
func (w *MappedPersistenceWindow) close() error       { return nil }
