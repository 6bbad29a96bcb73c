//go:build unix

package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sys/unix"
)

const retryEvery = 50 * time.Millisecond

// FileLocker takes flock(2) locks on files named after the key inside Dir.
// Locks die with the process holding them.
type FileLocker struct {
	Dir string
}

func NewFileLocker(dir string) *FileLocker {
	return &FileLocker{Dir: dir}
}

// AcquireLock tries once, then keeps retrying until ctx is done. A context
// without deadline that is already cancelled still gets one attempt.
func (l *FileLocker) AcquireLock(ctx context.Context, key digest.Digest) (Lock, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lock key: %w", err)
	}

	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	path := filepath.Join(l.Dir, key.Encoded()+".lock")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	ticker := time.NewTicker(retryEvery)
	defer ticker.Stop()

	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &fileLock{f: f}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			_ = f.Close()
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		case <-ticker.C:
		}
	}
}

type fileLock struct {
	f *os.File
}

func (l *fileLock) Release() error {
	return errors.Join(
		unix.Flock(int(l.f.Fd()), unix.LOCK_UN),
		l.f.Close(),
	)
}
