package resolver

import (
	"context"

	"github.com/google/uuid"

	"github.com/ghatdev/redoxfs/internal/handshake"
	"github.com/ghatdev/redoxfs/pkg/fs"
)

// Engine is the filesystem layer the resolver drives.
type Engine interface {
	OpenDisk(ctx context.Context, path string) (fs.Disk, error)
	// OpenFileSystem takes ownership of the disk only on success.
	OpenFileSystem(ctx context.Context, d fs.Disk) (fs.FileSystem, error)
	Mount(ctx context.Context, fsys fs.FileSystem, mountpoint string, onReady func()) error
}

// Reporter carries the outcome byte back to the launcher.
type Reporter interface {
	Report(o handshake.Outcome) error
}

// Recorder keeps track of mounts served by this daemon.
type Recorder interface {
	Mounted(ctx context.Context, m MountInfo) (string, error)
	Unmounted(ctx context.Context, id string) error
	Lost(ctx context.Context, id string, cause error) error
}

// MountInfo describes a mount that became ready.
type MountInfo struct {
	DiskPath   string
	FSUUID     uuid.UUID
	Mountpoint string
}

// Request is one resolution run.
type Request struct {
	Candidates []string
	// Target is set for UUID selectors. Only filesystems whose header UUID is
	// byte-equal to it are mounted.
	Target     *uuid.UUID
	Mountpoint string
	// Description names the selector in the final failure message,
	// e.g. "path /dev/sda1".
	Description string
}

// Status is the terminal state of a run.
type Status int

const (
	// Exhausted: no candidate could be mounted. Outcome 1 was reported.
	Exhausted Status = iota
	// Served: a candidate was mounted, served and cleanly unmounted.
	Served
	// Lost: a candidate was mounted but serving it failed.
	Lost
)

func (s Status) String() string {
	switch s {
	case Exhausted:
		return "exhausted"
	case Served:
		return "served"
	case Lost:
		return "lost"
	default:
		return "unknown"
	}
}

// Result is what Resolve returns instead of exiting the process.
type Result struct {
	Status Status
	Path   string // the mounted candidate, empty when Exhausted
	Err    error  // set when Lost
}
