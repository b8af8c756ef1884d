package lock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", FileName)

	l, err := Acquire(path)
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())
	assert.Equal(t, os.Getpid(), HolderPID(path))

	_, err = Acquire(path)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, l.Release())
	require.NoError(t, l.Release())
	assert.Zero(t, HolderPID(path))

	again, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestHolderPIDGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path+".pid", []byte("nope"), 0644))
	assert.Zero(t, HolderPID(path))
}
