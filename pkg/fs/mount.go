package fs

import (
	"log/slog"
	"strings"
	"time"
)

// KernelOptions control how the kernel attaches a filesystem.
type KernelOptions struct {
	FSType   string `mapstructure:"fstype"`
	ReadOnly bool   `mapstructure:"read_only"`
	Data     string `mapstructure:"data"` // comma separated fs specific options
}

// KernelMounter mounts through mount(2) and then watches the mount table
// until the mountpoint goes away.
type KernelMounter struct {
	opts           KernelOptions
	pollInterval   time.Duration
	unmountTimeout time.Duration
	logger         *slog.Logger

	// mounted reports whether path is currently a mountpoint
	mounted func(path string) (bool, error)
}

func NewKernelMounter(opts KernelOptions, pollInterval, unmountTimeout time.Duration, logger *slog.Logger) *KernelMounter {
	if logger == nil {
		logger = slog.Default()
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if unmountTimeout <= 0 {
		unmountTimeout = 30 * time.Second
	}

	return &KernelMounter{
		opts:           opts,
		pollInterval:   pollInterval,
		unmountTimeout: unmountTimeout,
		logger:         logger,
		mounted:        isMountpoint,
	}
}

func (m *KernelMounter) fsType(fsys FileSystem) string {
	if m.opts.FSType != "" {
		return m.opts.FSType
	}
	return fsys.Type()
}

// loopOptions builds the -o argument of mount(8) for image files.
func (m *KernelMounter) loopOptions() string {
	opts := []string{"loop"}
	if m.opts.ReadOnly {
		opts = append(opts, "ro")
	}
	if m.opts.Data != "" {
		opts = append(opts, m.opts.Data)
	}
	return strings.Join(opts, ",")
}
