// Package channel provides the backing byte-file collaborator the window
// pool reads and writes through: something seekable, sized, and force-able.
package channel

import "io"

// Channel is the contract WindowPool depends on for its backing file. It is
// deliberately narrow: everything about file creation, growth policy, and
// durability beyond Sync belongs to the caller.
type Channel interface {
	// ReadAt reads len(p) bytes starting at offset off, like io.ReaderAt.
	ReadAt(p []byte, off int64) (int, error)

	// WriteAt writes p at offset off, like io.WriterAt.
	WriteAt(p []byte, off int64) (int, error)

	// Size returns the current length of the channel in bytes.
	Size() (int64, error)

	// Truncate grows or shrinks the channel to exactly size bytes.
	Truncate(size int64) error

	// Sync forces any buffered writes out to stable storage.
	Sync() error

	// Fd returns the raw OS file descriptor backing this channel, needed by
	// MappedPersistenceWindow to mmap a region of it. Channels that cannot
	// expose a descriptor should return ok=false; the pool then disables
	// memory mapping and serves every brick through PlainPersistenceWindow.
	Fd() (fd uintptr, ok bool)

	io.Closer
}
