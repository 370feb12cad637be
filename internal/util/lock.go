package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
)

// LockFileName is created inside an output directory while a run uses it.
const LockFileName = ".packgrab.lock"

// ErrDirLocked means another run holds the output directory.
var ErrDirLocked = errors.New("output directory is in use by another run")

// DirLock is an exclusive advisory lock on a directory.
type DirLock struct {
	lock *flock.Flock
}

// LockDir takes the lock for dir without waiting.
func LockDir(dir string) (*DirLock, error) {
	path := filepath.Join(dir, LockFileName)
	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDirLocked, dir)
	}
	return &DirLock{lock: l}, nil
}

// Path returns the lock file path.
func (d *DirLock) Path() string { return d.lock.Path() }

// Unlock releases the lock and removes the lock file.
func (d *DirLock) Unlock() error {
	if err := d.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", d.lock.Path(), err)
	}
	if err := os.Remove(d.lock.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock %s: %w", d.lock.Path(), err)
	}
	return nil
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
