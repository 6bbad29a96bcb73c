package fs

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Disk is an opened block device or disk image.
type Disk interface {
	io.ReaderAt

	Path() string
	Size() int64
	IsBlockDevice() bool
	Close() error
}

// FileSystem is a filesystem found on a Disk. Closing it closes the disk.
type FileSystem interface {
	Disk() Disk
	Type() string
	UUID() uuid.UUID
	Label() string
	Close() error
}

// Mounter attaches a filesystem and serves it until it is unmounted.
//
// onReady is called once the filesystem is attached, before Mount starts
// blocking. Mount returns nil after a clean unmount.
type Mounter interface {
	Mount(ctx context.Context, fsys FileSystem, mountpoint string, onReady func()) error
}
