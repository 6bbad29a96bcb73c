//go:build !linux

package candidates

import "log/slog"

// NewPlatformScanner returns the scanner for this platform. Disk enumeration
// is only implemented on Linux.
func NewPlatformScanner(root, prefix string, logger *slog.Logger) Scanner {
	return NewNoOpScanner()
}
