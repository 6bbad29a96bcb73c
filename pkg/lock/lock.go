package lock

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

var ErrLocked = errors.New("lock is held by another process")

// Locker guards disks against being served by two daemons at once.
// Blocks until the lock is acquired or the context is done.
type Locker interface {
	AcquireLock(ctx context.Context, key digest.Digest) (Lock, error)
}

// Lock represents an acquired lock that must be released
type Lock interface {
	Release() error
}

// KeyFor derives the lock key of a disk path. Symlinks such as
// /dev/disk/by-uuid entries are resolved, so every alias of a device shares
// its lock. Paths that cannot be resolved are only made absolute.
func KeyFor(path string) digest.Digest {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return digest.FromString(path)
}
