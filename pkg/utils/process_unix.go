//go:build unix

package utils

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ProcessAlive sends signal 0 to pid. A process owned by another user still
// counts as alive.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
