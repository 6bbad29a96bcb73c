//go:build linux

package fs

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/moby/sys/mountinfo"
	"golang.org/x/sys/unix"
)

func isMountpoint(path string) (bool, error) {
	return mountinfo.Mounted(path)
}

// Mount attaches fsys at mountpoint, calls onReady and then blocks until the
// mountpoint is unmounted from outside or ctx is cancelled. On cancellation
// the filesystem is unmounted before returning.
func (m *KernelMounter) Mount(ctx context.Context, fsys FileSystem, mountpoint string, onReady func()) error {
	if err := m.attach(ctx, fsys, mountpoint); err != nil {
		return err
	}

	onReady()

	return m.serve(ctx, mountpoint)
}

func (m *KernelMounter) attach(ctx context.Context, fsys FileSystem, mountpoint string) error {
	disk := fsys.Disk()
	fsType := m.fsType(fsys)

	if disk.IsBlockDevice() {
		var flags uintptr
		if m.opts.ReadOnly {
			flags |= unix.MS_RDONLY
		}
		if err := unix.Mount(disk.Path(), mountpoint, fsType, flags, m.opts.Data); err != nil {
			return fmt.Errorf("mount %s on %s: %w", disk.Path(), mountpoint, err)
		}
		return nil
	}

	// image files need a loop device, mount(8) sets one up with autoclear
	out, err := exec.CommandContext(ctx, "mount", "-t", fsType, "-o", m.loopOptions(), disk.Path(), mountpoint).CombinedOutput()
	if err != nil {
		return fmt.Errorf("loop mount %s on %s: %s: %w", disk.Path(), mountpoint, strings.TrimSpace(string(out)), err)
	}
	return nil
}

func (m *KernelMounter) serve(ctx context.Context, mountpoint string) error {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("unmounting", "mountpoint", mountpoint, "reason", context.Cause(ctx))
			return m.unmount(mountpoint)
		case <-ticker.C:
			mounted, err := m.mounted(mountpoint)
			if err != nil {
				return fmt.Errorf("check mount table for %s: %w", mountpoint, err)
			}
			if !mounted {
				m.logger.Info("mountpoint was unmounted", "mountpoint", mountpoint)
				return nil
			}
		}
	}
}

// unmount retries while the filesystem is busy, up to the unmount timeout.
func (m *KernelMounter) unmount(mountpoint string) error {
	deadline := time.Now().Add(m.unmountTimeout)
	var lastWarning time.Time

	for {
		err := unix.Unmount(mountpoint, 0)
		if err == nil || errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOENT) {
			return nil
		}
		if !errors.Is(err, unix.EBUSY) {
			return fmt.Errorf("unmount %s: %w", mountpoint, err)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrUnmountTimeout, mountpoint)
		}
		if time.Since(lastWarning) > 10*time.Second {
			lastWarning = time.Now()
			m.logger.Warn("filesystem is busy, waiting before trying again", "mountpoint", mountpoint)
		}

		time.Sleep(time.Second)
	}
}
