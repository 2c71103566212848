package lock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquirePIDLockWritesPID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run", "derafu-github.pid")
	l, err := AcquirePIDLock(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Release() })

	assert.Equal(t, path, l.Path())
	pid, err := ReadPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquirePIDLockIsExclusive(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "derafu-github.pid")
	l, err := AcquirePIDLock(path)
	require.NoError(t, err)

	_, err = AcquirePIDLock(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, l.Release())
	require.NoError(t, l.Release(), "release is idempotent")

	l2, err := AcquirePIDLock(path)
	require.NoError(t, err)
	require.NoError(t, l2.Release())
}

func TestStatus(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "derafu-github.pid")

	_, running, err := Status(path)
	require.NoError(t, err)
	assert.False(t, running, "missing pid file")

	l, err := AcquirePIDLock(path)
	require.NoError(t, err)

	pid, running, err := Status(path)
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, l.Release())
	_, running, err = Status(path)
	require.NoError(t, err)
	assert.False(t, running, "stale pid file")
}

func TestAcquirePIDLockEmptyPath(t *testing.T) {
	_, err := AcquirePIDLock("")
	assert.Error(t, err)
}

func TestReadPIDInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pid")
	require.NoError(t, os.WriteFile(path, []byte("nope\n"), 0o644))
	_, err := ReadPID(path)
	assert.Error(t, err)
}
