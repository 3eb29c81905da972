package storage

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"os"
)

// DefaultLockPath is the well-known lockfile arbitrating all processes on the
// host.
const DefaultLockPath = "/tmp/vex.lock"

// Lock is the whole-database advisory lock. It uses BSD-style flock semantics,
// which associate the lock with the open file rather than the process: a load
// holds it exclusively for its entire duration, queries share it. Acquisition
// blocks without a deadline.
type Lock struct {
	file *os.File
}

func OpenLock(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0700)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to open or create lock file %s", path)
	}
	return &Lock{file: file}, nil
}

// Exclusive blocks until no other process holds the lock in any mode.
func (l *Lock) Exclusive() error {
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_EX)
	return errors.Wrapf(err, "Unable to acquire exclusive lock on %s", l.file.Name())
}

// Shared blocks while a writer holds the lock; other readers are admitted
// concurrently.
func (l *Lock) Shared() error {
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_SH)
	return errors.Wrapf(err, "Unable to acquire shared lock on %s", l.file.Name())
}

func (l *Lock) Unlock() error {
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	return errors.Wrapf(err, "Unable to release lock on %s", l.file.Name())
}

func (l *Lock) Close() error {
	err := l.file.Close()
	return errors.Wrapf(err, "Unable to close lock file %s", l.file.Name())
}
