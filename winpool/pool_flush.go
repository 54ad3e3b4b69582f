package winpool

import (
	"fmt"
	"sync/atomic"
)

// FlushAll implements §4.7: forces every currently windowed brick, writes
// back every dirty active row, then forces the backing channel itself. A
// no-op for read-only pools.
func (p *WindowPool) FlushAll() error {
	if p.isClosed() {
		return ErrClosed
	}
	if p.readOnly {
		return nil
	}
	return p.flushAllLocked()
}

// Close implements §4.7: flushes everything, unmaps/releases every
// windowed brick, drops the active row map, and reports final statistics
// to the monitor. Close is idempotent; calling it twice is a no-op the
// second time.
func (p *WindowPool) Close() error {
	if !atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		return nil
	}

	var flushErr error
	if !p.readOnly {
		flushErr = p.flushAllLocked()
	}

	p.brickMu.Lock()
	for _, b := range p.bricks {
		if w := b.currentWindow(); w != nil {
			_ = closeWindow(w)
			b.setWindow(nil)
		}
	}
	p.memUsed = 0
	p.brickMu.Unlock()

	p.rows.Clear()

	stats := p.GetStats()
	p.monitor.RecordStatistics(p.storeName, stats.Hit, stats.Miss, stats.Switches, stats.OOE)

	return flushErr
}

// flushAllLocked runs FlushAll's body without the closed/read-only checks,
// shared by FlushAll and Close (which has already claimed the closed flag
// by the time it calls this).
func (p *WindowPool) flushAllLocked() error {
	p.brickMu.RLock()
	bricks := make([]*BrickElement, len(p.bricks))
	copy(bricks, p.bricks)
	p.brickMu.RUnlock()

	for _, b := range bricks {
		if _, err := b.withBrickLock(func(b *BrickElement) (bool, error) {
			w := b.currentWindow()
			if w == nil {
				return false, nil
			}
			return true, forceWindow(w)
		}); err != nil {
			return fmt.Errorf("winpool: flush brick=%d: %w", b.Index(), err)
		}
	}

	p.rows.Range(func(_ int64, row *PersistenceRow) bool {
		if row.isDirty() {
			row.mu.Lock()
			_, _ = row.ch.WriteAt(row.Bytes(), row.StartOffset())
			atomic.StoreInt32(&row.dirty, 0)
			row.mu.Unlock()
		}
		return true
	})

	return p.ch.Sync()
}

// GetStats implements §4.8: a point-in-time snapshot of the pool's
// counters alongside its current layout.
func (p *WindowPool) GetStats() Stats {
	p.brickMu.RLock()
	brickCount := len(p.bricks)
	brickSize := p.brickSize
	memUsed := p.memUsed
	p.brickMu.RUnlock()

	return Stats{
		InstanceID:       p.InstanceID(),
		Hit:              atomic.LoadInt64(&p.c.hit),
		Miss:             atomic.LoadInt64(&p.c.miss),
		Switches:         atomic.LoadInt64(&p.c.switches),
		OOE:              atomic.LoadInt64(&p.c.ooe),
		Refreshes:        atomic.LoadInt64(&p.c.refreshes),
		AvertedRefreshes: atomic.LoadInt64(&p.c.avertedRefreshes),
		AvgRefreshTime:   p.c.avgRefreshTime(),
		BrickCount:       brickCount,
		BrickSize:        brickSize,
		MemUsed:          memUsed,
		AvailableMem:     p.availableMem(),
	}
}
