package fs

import "errors"

var (
	ErrNotExt4             = errors.New("not an ext4 filesystem")
	ErrNotADisk            = errors.New("not a block device or regular image file")
	ErrUnsupportedPlatform = errors.New("mounting is not supported on this platform")
	ErrUnmountTimeout      = errors.New("filesystem stayed busy until the unmount timeout")
)
