//go:build linux

package candidates

import "log/slog"

// NewPlatformScanner returns the scanner for this platform.
func NewPlatformScanner(root, prefix string, logger *slog.Logger) Scanner {
	return NewDirScanner(root, prefix, logger)
}
