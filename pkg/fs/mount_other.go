//go:build !linux

package fs

import (
	"context"
	"fmt"
)

func isMountpoint(path string) (bool, error) {
	return false, ErrUnsupportedPlatform
}

func (m *KernelMounter) Mount(ctx context.Context, fsys FileSystem, mountpoint string, onReady func()) error {
	return fmt.Errorf("mount %s: %w", fsys.Disk().Path(), ErrUnsupportedPlatform)
}
