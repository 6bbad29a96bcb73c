package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultLockDir      = "/run/redoxfs/locks"
	DefaultRegistryPath = "/var/lib/redoxfs/mounts.db"
)

// setViperDefaults covers the settings whose zero value is meaningful and so
// cannot be filled in by ApplyDefaults.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("lock.dir", DefaultLockDir)
	v.SetDefault("registry.enabled", true)
}

// ApplyDefaults replaces zero values with defaults. Explicit values are kept.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyDiscoveryDefaults(&cfg.Discovery)
	applyMountDefaults(&cfg.Mount)
	applyLockDefaults(&cfg.Lock)
	applyRegistryDefaults(&cfg.Registry)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyDiscoveryDefaults(cfg *DiscoveryConfig) {
	if cfg.Root == "" {
		cfg.Root = "/dev/disk"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "by-"
	}
}

func applyMountDefaults(cfg *MountConfig) {
	if cfg.Type == "" {
		cfg.Type = "kernel"
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.UnmountTimeout == 0 {
		cfg.UnmountTimeout = 10 * time.Second
	}
	if cfg.Kernel == nil {
		cfg.Kernel = map[string]any{}
	}
}

func applyLockDefaults(cfg *LockConfig) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
}

func applyRegistryDefaults(cfg *RegistryConfig) {
	if cfg.Path == "" {
		cfg.Path = DefaultRegistryPath
	}
}

// GetDefaultConfig returns a configuration with every default applied.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Lock:     LockConfig{Dir: DefaultLockDir},
		Registry: RegistryConfig{Enabled: true},
	}
	ApplyDefaults(cfg)
	return cfg
}
