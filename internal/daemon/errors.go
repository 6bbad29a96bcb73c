package daemon

import "errors"

var (
	// ErrChannel means the handshake channel could not be created.
	ErrChannel = errors.New("failed to create handshake channel")
	// ErrSpawn means the daemon process could not be started.
	ErrSpawn = errors.New("failed to spawn daemon")
)
