// pkg/lock/lock.go - single-instance guard for commands that change installed
// packages.

package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/windowsadmins/appstore/pkg/logging"
)

// ErrLocked is returned when another appstore process holds the lock.
var ErrLocked = errors.New("another appstore operation is already running")

// FileName is the lock file created in the cache directory.
const FileName = "appstore.lock"

// Lock is a held file lock.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the lock at path without waiting. The holder's PID is
// written into the file for diagnostics.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !locked {
		if pid := HolderPID(path); pid != 0 {
			return nil, fmt.Errorf("%w (PID %d)", ErrLocked, pid)
		}
		return nil, ErrLocked
	}

	// Kept beside the lock file: Windows locks its whole byte range.
	if err := os.WriteFile(path+".pid", []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		logging.Debug("Could not write lock PID file", "path", path, "error", err)
	}
	logging.Debug("Acquired lock", "path", path)
	return &Lock{fl: fl}, nil
}

// HolderPID returns the PID recorded by the current holder, or 0.
func HolderPID(path string) int {
	data, err := os.ReadFile(path + ".pid")
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.fl.Path()
}

// Release unlocks and removes the PID file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	path := l.fl.Path()
	err := l.fl.Unlock()
	l.fl = nil
	os.Remove(path + ".pid")
	logging.Debug("Released lock", "path", path)
	return err
}
