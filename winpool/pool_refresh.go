package winpool

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slices"
)

// maybeRefresh elects a single goroutine to run refreshBricks via CAS;
// any concurrent caller that loses the race increments avertedRefreshes
// and returns immediately rather than waiting, per §4.4.
func (p *WindowPool) maybeRefresh() {
	if !atomic.CompareAndSwapInt32(&p.refreshing, 0, 1) {
		atomic.AddInt64(&p.c.avertedRefreshes, 1)
		return
	}
	defer atomic.StoreInt32(&p.refreshing, 0)

	start := time.Now()
	p.refreshBricks()
	atomic.AddInt64(&p.c.refreshTimeNanos, int64(time.Since(start)))
	atomic.AddInt64(&p.c.refreshCount, 1)
	atomic.AddInt64(&p.c.refreshes, 1)
	atomic.StoreInt64(&p.c.brickMiss, 0)
}

// refreshBricks implements §4.4: snapshot each brick's hit counter, then
// try to get the hottest unmapped bricks windowed by filling any unused
// memory first and, failing that, swapping a colder mapped brick for a
// hotter unmapped one.
func (p *WindowPool) refreshBricks() {
	p.brickMu.RLock()
	bricks := make([]*BrickElement, len(p.bricks))
	copy(bricks, p.bricks)
	p.brickMu.RUnlock()

	var mapped, unmapped []*BrickElement
	for _, b := range bricks {
		b.snapshotHit()
		if b.hasWindow() {
			mapped = append(mapped, b)
		} else {
			unmapped = append(unmapped, b)
		}
	}
	if len(unmapped) == 0 {
		return
	}

	// Coldest mapped first, hottest unmapped first: both ends of their
	// respective slices are the candidates a swap would touch.
	slices.SortFunc(mapped, func(a, b *BrickElement) bool { return a.hitSnapshot < b.hitSnapshot })
	slices.SortFunc(unmapped, func(a, b *BrickElement) bool { return a.hitSnapshot > b.hitSnapshot })

	ui := 0

	// Fill-unused-memory pass: window unmapped bricks while there is slack
	// below the memory ceiling, without evicting anything.
	for ui < len(unmapped) {
		b := unmapped[ui]
		p.brickMu.RLock()
		slack := p.availableMem() - p.memUsed
		p.brickMu.RUnlock()
		if slack < p.brickSizeLocked() {
			break
		}
		ok, err := p.allocateNewWindow(b)
		if err != nil || !ok {
			break
		}
		ui++
	}

	// Swap pass: a hotter unmapped brick displaces a colder mapped one,
	// using a sign-only comparison so hit counts near overflow never wrap
	// the comparison result.
	mi := 0
	for ui < len(unmapped) && mi < len(mapped) {
		cold := mapped[mi]
		hot := unmapped[ui]
		if signum(hot.hitSnapshot-cold.hitSnapshot) <= 0 {
			break
		}
		if p.evictBrick(cold) {
			atomic.AddInt64(&p.c.switches, 1)
			if ok, err := p.allocateNewWindow(hot); err == nil && ok {
				ui++
			}
		}
		mi++
	}
}

func signum(x int64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// evictBrick forces and closes b's window if nothing currently holds it.
// Reports whether the brick ended up windowless.
func (p *WindowPool) evictBrick(b *BrickElement) bool {
	ok, _ := b.withBrickLock(func(b *BrickElement) (bool, error) {
		if b.currentLockCount() != 0 {
			return false, nil
		}
		w := b.currentWindow()
		if w == nil {
			return true, nil
		}
		if err := closeWindow(w); err != nil {
			return false, err
		}
		b.setWindow(nil)
		p.brickMu.Lock()
		p.memUsed -= p.brickSize
		p.brickMu.Unlock()
		return true, nil
	})
	return ok
}

// closeWindow dispatches to the concrete window's unexported close method.
func closeWindow(w Window) error {
	switch win := w.(type) {
	case *MappedPersistenceWindow:
		return win.close()
	case *PlainPersistenceWindow:
		return win.close()
	default:
		return fmt.Errorf("winpool: cannot close window of type %T", w)
	}
}

func forceWindow(w Window) error {
	switch win := w.(type) {
	case *MappedPersistenceWindow:
		return win.force()
	case *PlainPersistenceWindow:
		return win.force()
	default:
		return fmt.Errorf("winpool: cannot force window of type %T", w)
	}
}

// expandBricks implements §4.5: grows the brick array to at least newN
// entries, evicting the coldest mapped brick first if memory is already
// tight, then eagerly windows the freshly created bricks while there is
// room under the memory ceiling.
func (p *WindowPool) expandBricks(newN int) error {
	p.brickMu.Lock()
	if newN <= len(p.bricks) {
		p.brickMu.Unlock()
		return nil
	}
	firstNew := len(p.bricks)
	grown := make([]*BrickElement, newN)
	copy(grown, p.bricks)
	for i := firstNew; i < newN; i++ {
		grown[i] = p.brickFn(i)
	}
	p.bricks = grown
	mem := p.availableMem()
	brickSize := p.brickSize
	p.brickMu.Unlock()

	if brickSize == 0 || mem == 0 {
		return nil
	}

	p.brickMu.RLock()
	tight := mem-p.memUsed < brickSize
	p.brickMu.RUnlock()
	if tight {
		p.evictColdestMapped()
	}

	for i := firstNew; i < newN; i++ {
		p.brickMu.RLock()
		slack := mem - p.memUsed
		b := p.bricks[i]
		p.brickMu.RUnlock()
		if slack < brickSize {
			break
		}
		if _, err := p.allocateNewWindow(b); err != nil {
			return err
		}
	}
	return nil
}

// evictColdestMapped scans the current bricks for the one with the lowest
// hitSnapshot that currently carries a window and frees it. Reports
// whether it found and freed one.
func (p *WindowPool) evictColdestMapped() bool {
	p.brickMu.RLock()
	bricks := make([]*BrickElement, len(p.bricks))
	copy(bricks, p.bricks)
	p.brickMu.RUnlock()

	var coldest *BrickElement
	for _, b := range bricks {
		if !b.hasWindow() {
			continue
		}
		if coldest == nil || b.hitSnapshot < coldest.hitSnapshot {
			coldest = b
		}
	}
	if coldest == nil {
		return false
	}
	return p.evictBrick(coldest)
}

// allocateNewWindow implements §4.6: maps or heap-loads a window for an
// unwindowed brick, retrying up to MaxAllocAttempts times if the brick is
// momentarily locked by a concurrent acquirer. Reports false (no error) if
// the brick already carries a window or the allocation could not be
// attempted because the brick stayed locked across every retry.
func (p *WindowPool) allocateNewWindow(brick *BrickElement) (bool, error) {
	p.brickMu.RLock()
	brickSize := p.brickSize
	mem := p.availableMem()
	mappingOff := p.mappingOff
	p.brickMu.RUnlock()
	if mappingOff || brickSize == 0 {
		return false, nil
	}

	start := int64(brick.Index()) * brickSize

	for attempt := 0; attempt < MaxAllocAttempts; attempt++ {
		ok, err := brick.withBrickLock(func(b *BrickElement) (bool, error) {
			if b.currentWindow() != nil {
				return false, nil
			}
			if b.currentLockCount() != 0 {
				return false, errAllocationFailed
			}

			var w Window
			var werr error
			if p.useMmap {
				if fd, hasFd := p.ch.Fd(); hasFd {
					w, werr = newMappedPersistenceWindow(fd, start, brickSize, p.readOnly)
				} else {
					w, werr = newPlainPersistenceWindow(p.ch, start, brickSize, p.readOnly)
				}
			} else {
				w, werr = newPlainPersistenceWindow(p.ch, start, brickSize, p.readOnly)
			}
			if werr != nil {
				return false, werr
			}
			b.setWindow(w)
			return true, nil
		})

		if ok {
			p.brickMu.Lock()
			p.memUsed += brickSize
			p.brickMu.Unlock()
			return true, nil
		}
		if err == errAllocationFailed {
			// brick momentarily locked by a concurrent acquirer; yield and retry.
			runtime.Gosched()
			continue
		}
		if err != nil {
			atomic.AddInt64(&p.c.ooe, 1)
			p.monitor.AllocationError(p.storeName, err, fmt.Sprintf("allocate window brick=%d", brick.Index()))
			if mem < brickSize {
				p.monitor.InsufficientMemoryForMapping(mem, brickSize)
			}
			return false, err
		}
		return false, nil
	}
	return false, nil
}
