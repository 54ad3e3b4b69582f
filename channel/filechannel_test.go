package channel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTempChannel(t *testing.T) (*FileChannel, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.db")
	c, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, path
}

func TestFileChannelWriteReadRoundTrip(t *testing.T) {
	c, _ := newTempChannel(t)

	require.NoError(t, c.Truncate(1024))
	want := []byte("hello, window pool")
	n, err := c.WriteAt(want, 100)
	require.NoError(t, err)
	require.Equal(t, len(want), n)

	got := make([]byte, len(want))
	n, err = c.ReadAt(got, 100)
	require.NoError(t, err)
	require.Equal(t, len(want), n)
	require.Equal(t, want, got)
}

func TestFileChannelSizeAndTruncate(t *testing.T) {
	c, _ := newTempChannel(t)

	size, err := c.Size()
	require.NoError(t, err)
	require.Zero(t, size)

	require.NoError(t, c.Truncate(4096))
	size, err = c.Size()
	require.NoError(t, err)
	require.EqualValues(t, 4096, size)
}

func TestFileChannelSyncThenReopenVisible(t *testing.T) {
	c, path := newTempChannel(t)

	require.NoError(t, c.Truncate(512))
	_, err := c.WriteAt([]byte("durable"), 0)
	require.NoError(t, err)
	require.NoError(t, c.Sync())
	require.NoError(t, c.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got := make([]byte, len("durable"))
	_, err = reopened.ReadAt(got, 0)
	require.NoError(t, err)
	require.Equal(t, "durable", string(got))
}

func TestFileChannelFd(t *testing.T) {
	c, _ := newTempChannel(t)
	fd, ok := c.Fd()
	require.True(t, ok)
	require.NotZero(t, fd+1) // fd can legitimately be 0 in exotic setups; just exercise the call
}

func TestFileChannelInstrumentationLogs(t *testing.T) {
	c, _ := newTempChannel(t)
	require.NoError(t, c.Truncate(64))

	_, err := c.WriteAt([]byte("x"), 0)
	require.NoError(t, err)
	_, err = c.ReadAt(make([]byte, 1), 0)
	require.NoError(t, err)

	require.Len(t, c.WriteLog(), 1)
	require.Len(t, c.ReadLog(), 1)
	require.EqualValues(t, 1, c.BytesWritten())
	require.EqualValues(t, 1, c.BytesRead())
}

func TestOpenReadOnlyRejectsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ro.db")
	require.NoError(t, os.WriteFile(path, make([]byte, 16), 0644))

	c, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.WriteAt([]byte("x"), 0)
	require.Error(t, err)
}
