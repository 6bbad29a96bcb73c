// Package config loads redoxfs configuration from an optional YAML file and
// REDOXFS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	rfs "github.com/ghatdev/redoxfs/pkg/fs"
)

// Config is the complete redoxfs configuration.
//
// Precedence, highest first: environment variables (REDOXFS_*), the config
// file, defaults.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Mount     MountConfig     `mapstructure:"mount"`
	Lock      LockConfig      `mapstructure:"lock"`
	Registry  RegistryConfig  `mapstructure:"registry"`
}

type LoggingConfig struct {
	// Level: DEBUG, INFO, WARN, ERROR (normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR"`

	// Format: text or json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output: stdout, stderr or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// DiscoveryConfig controls where UUID selectors look for candidate disks.
type DiscoveryConfig struct {
	Root   string `mapstructure:"root" validate:"required"`
	Prefix string `mapstructure:"prefix"`
}

type MountConfig struct {
	// Type selects the mount engine. Only "kernel" exists today.
	Type string `mapstructure:"type" validate:"required,oneof=kernel"`

	// PollInterval is how often the mount table is checked while serving.
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"required,gt=0"`

	// UnmountTimeout bounds the busy retries on shutdown.
	UnmountTimeout time.Duration `mapstructure:"unmount_timeout" validate:"required,gt=0"`

	// Kernel holds the options of the kernel engine, see fs.KernelOptions.
	// An empty fstype uses the type detected on the disk.
	Kernel map[string]any `mapstructure:"kernel"`
}

type LockConfig struct {
	// Dir holds the disk lock files. An explicitly empty value disables
	// disk locking.
	Dir     string        `mapstructure:"dir"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

type RegistryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

// KernelOptions decodes the kernel engine section.
func (c MountConfig) KernelOptions() (rfs.KernelOptions, error) {
	var opts rfs.KernelOptions
	// values coming from REDOXFS_MOUNT_KERNEL_* are strings
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return opts, err
	}
	if err := dec.Decode(c.Kernel); err != nil {
		return opts, fmt.Errorf("failed to decode mount.kernel: %w", err)
	}
	return opts, nil
}

// keys lists every scalar key so REDOXFS_* variables apply even when no
// config file mentions them.
var keys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"discovery.root",
	"discovery.prefix",
	"mount.type",
	"mount.poll_interval",
	"mount.unmount_timeout",
	"mount.kernel.fstype",
	"mount.kernel.read_only",
	"mount.kernel.data",
	"lock.dir",
	"lock.timeout",
	"registry.enabled",
	"registry.path",
}

// Load loads configuration from file, environment and defaults. An empty
// configPath looks for config.yaml in the default directory and tolerates its
// absence; an explicit path must exist.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	// REDOXFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("REDOXFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
	setViperDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper, configPath string) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
	switch {
	case missing && configPath == "":
		return nil
	case missing:
		return fmt.Errorf("config file %s does not exist", configPath)
	default:
		return fmt.Errorf("failed to read config file: %w", err)
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/redoxfs, falling back to
// ~/.config/redoxfs, or "." when no home directory is known.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "redoxfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "redoxfs")
}

func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
