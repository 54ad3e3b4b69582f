package winpool

import (
	"fmt"
	"sync/atomic"
)

// Acquire implements §4.2: returns a window covering position, already
// locked for op, that will not be evicted until Release is called.
func (p *WindowPool) Acquire(position int64, op OpType) (Window, error) {
	if p.isClosed() {
		return nil, ErrClosed
	}
	if position < 0 {
		return nil, ErrNegativePosition
	}
	if op == Write && p.readOnly {
		return nil, ErrReadOnly
	}

	if atomic.LoadInt64(&p.c.brickMiss) >= RefreshBrickCount {
		p.maybeRefresh()
	}

	brickSize := p.brickSizeLocked()
	if brickSize == 0 {
		// Mapping disabled for this pool's lifetime: every acquire is a row.
		row, err := p.acquireRow(position, nil)
		if err != nil {
			return nil, err
		}
		atomic.AddInt64(&p.c.miss, 1)
		row.Lock(op)
		return row, nil
	}

	k := p.positionToBrick(position)
	if k >= p.brickCountLocked() {
		if err := p.expandBricks(k + 1); err != nil {
			return nil, err
		}
	}
	brick := p.brickAt(k)

	if w, ok := brick.getAndMarkWindow(); ok {
		atomic.AddInt64(&p.c.hit, 1)
		w.Lock(op)
		return w, nil
	}

	atomic.AddInt64(&p.c.miss, 1)
	atomic.AddInt64(&p.c.brickMiss, 1)
	row, err := p.acquireRow(position, brick)
	if err != nil {
		return nil, err
	}
	row.Lock(op)
	return row, nil
}

// acquireRow implements §4.2 step 5's row resolution, including the
// lost-CAS retry loop.
func (p *WindowPool) acquireRow(position int64, brick *BrickElement) (*PersistenceRow, error) {
	for {
		if existing, ok := p.rows.Get(position); ok {
			if existing.markInUse() {
				if brick != nil {
					brick.markLocked()
				}
				return existing, nil
			}
			// existing was retired between Get and markInUse; re-resolve.
			continue
		}

		candidate, err := newPersistenceRow(p.ch, position, p.pageSize)
		if err != nil {
			return nil, err
		}
		candidate.markInUse()

		winner, inserted := p.rows.PutIfAbsent(position, candidate)
		if inserted {
			if brick != nil {
				brick.markLocked()
			}
			return winner, nil
		}

		// Lost the race: another thread's row beat ours into the map. Per
		// Design Notes §9 a losing row's close may run alongside the winner
		// serving the same position; our candidate was never published, so
		// dropping it here is safe regardless.
		if winner.markInUse() {
			if brick != nil {
				brick.markLocked()
			}
			return winner, nil
		}
		// winner was retired between PutIfAbsent and our markInUse; retry.
	}
}

// brickAt returns the brick at index k under the brick-layout read lock.
func (p *WindowPool) brickAt(k int) *BrickElement {
	p.brickMu.RLock()
	defer p.brickMu.RUnlock()
	return p.bricks[k]
}

// Release implements §4.3.
func (p *WindowPool) Release(w Window) error {
	if w == nil {
		return fmt.Errorf("winpool: release of nil window")
	}

	if row, ok := w.(*PersistenceRow); ok {
		return p.releaseRow(row)
	}

	k := p.offsetToBrick(w.StartOffset())
	brick := p.brickAt(k)
	w.Unlock()
	brick.releaseLock()
	return nil
}

// releaseRow implements §4.3 step 2: the row-to-window handoff, the
// write-out-and-maybe-close, and the active-row-map removal.
func (p *WindowPool) releaseRow(row *PersistenceRow) error {
	var brick *BrickElement
	if p.brickSizeLocked() > 0 {
		k := p.offsetToBrick(row.StartOffset())
		if k < p.brickCountLocked() {
			brick = p.brickAt(k)
		}
	}

	if brick != nil && row.isDirty() {
		_, err := brick.withBrickLock(func(b *BrickElement) (bool, error) {
			w := b.currentWindow()
			if w == nil {
				return false, nil
			}
			if plain, ok := w.(*PlainPersistenceWindow); ok {
				plain.Lock(Write)
				plain.acceptContents(row)
				plain.Unlock()
				return true, nil
			}
			// Mapped windows need no transfer: they are backed by the same
			// file region the row itself reads/writes.
			return false, nil
		})
		if err != nil {
			row.Unlock()
			return err
		}
	}

	closed, err := row.writeOutAndCloseIfFree(p.readOnly)
	if closed {
		p.rows.RemoveIfMatch(row.Position(), row)
	}

	row.Unlock()
	if brick != nil {
		brick.releaseLock()
	}
	return err
}
