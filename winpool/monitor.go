package winpool

// Monitor is the pool's purely advisory observer hook. Implementations must
// not block meaningfully — callbacks run on the caller's own goroutine,
// inline with acquire/release/refresh.
type Monitor interface {
	// RecordStatistics reports the running hit/miss/switch/out-of-memory
	// counters for storeName.
	RecordStatistics(storeName string, hit, miss, switches, ooe int64)

	// RecordStatus reports the current brick layout for storeName.
	RecordStatus(storeName string, brickCount int, brickSize int64, availableMem, fileSize int64)

	// AllocationError reports a failure to install a window on a brick.
	AllocationError(storeName string, cause error, description string)

	// InsufficientMemoryForMapping reports that available memory fell short
	// of what mapping needs: at setup, the 10*pageSize minimum or the
	// computed per-brick size (mapping is then disabled); after a failed
	// window allocation, the brick size.
	InsufficientMemoryForMapping(available, wanted int64)
}

// NoOpMonitor is the sentinel Monitor: every callback is a no-op. It is the
// default when a pool is constructed without an explicit monitor.
type NoOpMonitor struct{}

func (NoOpMonitor) RecordStatistics(string, int64, int64, int64, int64)          {}
func (NoOpMonitor) RecordStatus(string, int, int64, int64, int64)               {}
func (NoOpMonitor) AllocationError(string, error, string)                       {}
func (NoOpMonitor) InsufficientMemoryForMapping(int64, int64)                   {}

var _ Monitor = NoOpMonitor{}
