// Package lockfile provides the single-instance exclusive lock the sync
// orchestrator must hold before doing any work (spec.md §4.3, §5). There is
// no flock-style library in the dependency pack for this; syscall.Flock is
// the standard, minimal-dependency way to do this on Unix and is the one
// stdlib exception this repository takes deliberately (see DESIGN.md).
package lockfile

import (
	"fmt"
	"os"
	"syscall"
)

// ErrHeld is returned by Acquire when another process already holds the
// lock.
var ErrHeld = fmt.Errorf("lock held by another process")

// Lock is an acquired exclusive, non-blocking file lock. Release is safe to
// call even if the holding process is about to crash, since the kernel
// releases flock locks automatically when the owning file descriptor is
// closed.
type Lock struct {
	file *os.File
}

// Acquire attempts to take an exclusive, non-blocking lock on the file at
// path, creating it if necessary. Returns ErrHeld if another process holds
// it.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("lockfile: opening %s: %w", path, err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, ErrHeld
		}
		return nil, fmt.Errorf("lockfile: locking %s: %w", path, err)
	}

	return &Lock{file: f}, nil
}

// Release releases the lock and closes the underlying file descriptor.
// Safe to call multiple times.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("lockfile: unlocking: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("lockfile: closing: %w", closeErr)
	}
	return nil
}
