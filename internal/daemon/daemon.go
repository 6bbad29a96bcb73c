// Package daemon detaches the mount daemon from the invoking process and
// turns the daemon's outcome byte into the launcher's exit code.
//
// A running Go program cannot fork, so the daemon is the same binary started
// again with the same arguments. EnvDaemon tells the new process which side
// it is on, and the write end of the handshake channel is inherited as fd 3.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ghatdev/redoxfs/internal/handshake"
)

const (
	EnvDaemon = "REDOXFS_DAEMON"

	handshakeFD = 3
)

// Process exit codes. Outcome bytes map onto the first two unchanged.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitFatal   = 2
)

// Spawner starts the daemon process, handing it hs as fd 3. It must not wait
// for the daemon to exit.
type Spawner interface {
	Spawn(ctx context.Context, hs *os.File) error
}

type Launcher struct {
	spawner    Spawner
	newChannel func() (*handshake.Reader, *handshake.Writer, error)
	logger     *slog.Logger
}

func NewLauncher(spawner Spawner, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		spawner:    spawner,
		newChannel: handshake.New,
		logger:     logger,
	}
}

// Launch spawns the daemon and blocks until it reports. The returned exit code
// equals the reported byte. Channel and spawn failures, and a daemon that
// exits without reporting, return ExitFatal with an error.
func (l *Launcher) Launch(ctx context.Context) (int, error) {
	r, w, err := l.newChannel()
	if err != nil {
		return ExitFatal, fmt.Errorf("%w: %w", ErrChannel, err)
	}

	f, ok := w.File()
	if !ok {
		err = errors.Join(r.Close(), w.Close())
		return ExitFatal, fmt.Errorf("%w: write end is not a file: %w", ErrChannel, err)
	}

	if err := l.spawner.Spawn(ctx, f); err != nil {
		err = errors.Join(err, r.Close(), w.Close())
		return ExitFatal, fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	// the daemon holds its own copy; ours has to go or Await never sees EOF
	if err := w.Close(); err != nil {
		l.logger.WarnContext(ctx, "failed to close handshake write end", "error", err)
	}

	outcome, err := r.Await()
	if err != nil {
		return ExitFatal, err
	}

	l.logger.DebugContext(ctx, "daemon reported", "outcome", outcome)
	return int(outcome), nil
}

// IsDaemon reports whether this process was started by a Launcher.
func IsDaemon() bool {
	return os.Getenv(EnvDaemon) == "1"
}

// HandshakeWriter wraps the write end inherited from the launcher.
func HandshakeWriter() (*handshake.Writer, error) {
	return handshake.FromFD(handshakeFD)
}
