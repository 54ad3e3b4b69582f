package winpool

import "errors"

// Sentinel errors surfaced across acquire/release/flushAll/close.
var (
	// ErrClosed is returned by Acquire and FlushAll once Close has been
	// called.
	ErrClosed = errors.New("winpool: pool is closed")

	// ErrReadOnly is returned when a WRITE acquire is attempted against a
	// read-only pool. (FlushAll on a read-only pool is a no-op returning nil.)
	ErrReadOnly = errors.New("winpool: pool is read-only")

	// ErrNegativePosition is returned for a negative record position.
	ErrNegativePosition = errors.New("winpool: position must be non-negative")

	// ErrTooManyBricks is returned when brick sizing would exceed
	// MaxBrickCount.
	ErrTooManyBricks = errors.New("winpool: brick count exceeds maximum")

	// ErrNotLocked is returned (wrapped) by Release of a row whose in-use
	// marker was already clear.
	ErrNotLocked = errors.New("winpool: window was not locked")

	// errAllocationFailed is internal to allocateNewWindow: it signals that
	// the brick is still referenced (lockCount != 0) and the attempt should
	// be retried. It is never returned to callers.
	errAllocationFailed = errors.New("winpool: window allocation failed")
)
