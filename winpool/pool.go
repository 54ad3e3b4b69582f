// Package winpool implements the memory-mapped window pool: a caching layer
// that mediates record-granular access to a fixed-record-size backing
// channel by adaptively mapping the hottest bricks into memory and serving
// the remainder through short-lived single-record row windows.
package winpool

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"windowpool/channel"
)

// Tunable constants from §6.
const (
	MaxBrickCount     = 100_000
	RefreshBrickCount = 50_000
	MaxAllocAttempts  = 5
)

// Config holds the construction parameters described in §6.
type Config struct {
	// StoreName is an opaque identifier passed to the monitor.
	StoreName string

	// PageSize R is the number of bytes per record. Must be >= 1.
	PageSize int64

	// Channel is the seekable, sized, force-able backing byte file.
	Channel channel.Channel

	// MappedMem M is the number of bytes available for mappings. 0 disables
	// mapping outright.
	MappedMem int64

	// UseMemoryMapped selects MappedPersistenceWindow when true. When false
	// (the zero value), PlainPersistenceWindow is used even when enough
	// memory is available and mmap is supported.
	UseMemoryMapped bool

	// ReadOnly disables all writes and FlushAll forcing.
	ReadOnly bool

	// ActiveRowWindows, if non-nil, is used instead of a fresh ActiveRowMap.
	ActiveRowWindows *ActiveRowMap

	// BrickFactory, if non-nil, is used instead of DefaultBrickFactory.
	BrickFactory BrickFactory

	// Monitor, if non-nil, receives the advisory callbacks. Defaults to
	// NoOpMonitor.
	Monitor Monitor
}

// WindowPool is the public façade: acquire/release/flushAll/close plus
// getStats, orchestrating brick sizing, expansion, refresh, and window
// allocation.
type WindowPool struct {
	instanceID uuid.UUID
	storeName  string
	pageSize   int64
	ch         channel.Channel
	mappedMem  int64
	useMmap    bool
	readOnly   bool
	monitor    Monitor
	brickFn    BrickFactory

	// brickMu guards the bricks slice and brickSize/memUsed during setup,
	// expansion, and refresh — the only places §5 says memUsed/brickCount
	// are written.
	brickMu    sync.RWMutex
	bricks     []*BrickElement
	brickSize  int64
	memUsed    int64
	mappingOff bool // true once brick sizing disabled mapping for this pool's lifetime

	rows *ActiveRowMap

	c counters

	refreshing int32 // atomic CAS flag: only one thread runs refreshBricks at a time
	closed     int32 // atomic bool
}

// New constructs a WindowPool, performing the brick-sizing computation of
// §4.1 against the channel's current size.
func New(cfg Config) (*WindowPool, error) {
	if cfg.PageSize < 1 {
		return nil, fmt.Errorf("winpool: page size must be >= 1, got %d", cfg.PageSize)
	}
	if cfg.Channel == nil {
		return nil, fmt.Errorf("winpool: channel is required")
	}

	monitor := cfg.Monitor
	if monitor == nil {
		monitor = NoOpMonitor{}
	}
	brickFn := cfg.BrickFactory
	if brickFn == nil {
		brickFn = DefaultBrickFactory
	}
	rows := cfg.ActiveRowWindows
	if rows == nil {
		rows = NewActiveRowMap()
	}

	fileSize, err := cfg.Channel.Size()
	if err != nil {
		return nil, fmt.Errorf("winpool: stat channel: %w", err)
	}

	p := &WindowPool{
		instanceID: uuid.New(),
		storeName:  cfg.StoreName,
		pageSize:   cfg.PageSize,
		ch:         cfg.Channel,
		mappedMem:  cfg.MappedMem,
		useMmap:    cfg.UseMemoryMapped,
		readOnly:   cfg.ReadOnly,
		monitor:    monitor,
		brickFn:    brickFn,
		rows:       rows,
	}

	brickSize, brickCount, mappingOff := sizeBricks(fileSize, cfg.PageSize, cfg.MappedMem, monitor)
	if brickCount > MaxBrickCount {
		return nil, fmt.Errorf("%w: computed %d > %d", ErrTooManyBricks, brickCount, MaxBrickCount)
	}
	p.brickSize = brickSize
	p.mappingOff = mappingOff
	p.bricks = make([]*BrickElement, brickCount)
	for i := range p.bricks {
		p.bricks[i] = brickFn(i)
	}

	monitor.RecordStatus(p.storeName, len(p.bricks), p.brickSize, p.availableMem(), fileSize)
	return p, nil
}

// sizeBricks implements §4.1's brick sizing decision tree. Returns the
// brick size B, brick count N, and whether mapping ended up disabled.
func sizeBricks(fileSize, pageSize, mem int64, monitor Monitor) (brickSize int64, brickCount int, mappingOff bool) {
	if mem == 0 {
		return 0, 0, true
	}
	minMem := 10 * pageSize
	if mem > 0 && mem < minMem {
		monitor.InsufficientMemoryForMapping(mem, minMem)
		return 0, 0, true
	}
	if fileSize > 0 && mem >= fileSize {
		b := roundToBrickMultiple(mem/1000, pageSize)
		n := fileSize / b
		return b, int(n), false
	}
	if fileSize > 0 && mem < fileSize {
		n := ceilDiv(1000*fileSize, mem)
		if n > MaxBrickCount {
			n = MaxBrickCount
		}
		if n < 1 {
			n = 1
		}
		if fileSize/n > mem {
			monitor.InsufficientMemoryForMapping(mem, fileSize/n)
			return 0, 0, true
		}
		b := roundToBrickMultiple(fileSize/n, pageSize)
		return b, int(n), false
	}
	// Empty file, only memory given.
	b := roundToBrickMultiple(mem/100, pageSize)
	return b, 0, false
}

func roundToBrickMultiple(x, r int64) int64 {
	q := (x / r) * r
	if q < r {
		return r
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	if a == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func (p *WindowPool) availableMem() int64 {
	return p.mappedMem
}

func (p *WindowPool) isClosed() bool {
	return atomic.LoadInt32(&p.closed) != 0
}

// PageSize returns the fixed record size R.
func (p *WindowPool) PageSize() int64 { return p.pageSize }

// InstanceID returns this pool's stable per-construction identifier.
func (p *WindowPool) InstanceID() string { return p.instanceID.String() }

// brickCountLocked and brickSizeLocked return the current layout under read
// lock.
func (p *WindowPool) brickCountLocked() int {
	p.brickMu.RLock()
	defer p.brickMu.RUnlock()
	return len(p.bricks)
}

func (p *WindowPool) brickSizeLocked() int64 {
	p.brickMu.RLock()
	defer p.brickMu.RUnlock()
	return p.brickSize
}

// positionToBrick maps a record position to a brick index. Callers must
// first confirm brickSizeLocked() > 0 (mapping enabled for this pool).
func (p *WindowPool) positionToBrick(position int64) int {
	return p.offsetToBrick(position * p.pageSize)
}

// offsetToBrick maps a byte offset to a brick index. Callers must first
// confirm brickSizeLocked() > 0.
func (p *WindowPool) offsetToBrick(offset int64) int {
	return int(offset / p.brickSizeLocked())
}
