// Package config loads process configuration from an optional YAML file,
// WINVAULT_* environment variables and defaults, in that order of
// precedence from lowest to highest: defaults, file, environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// AppName names the data directory.
const AppName = "WinVault"

// Config is the process configuration. User preferences such as theme or
// log level live in the settings store instead.
type Config struct {
	// DataDir holds settings, logs, caches and exports.
	DataDir string `mapstructure:"data_dir" validate:"required"`

	Logging   LoggingConfig   `mapstructure:"logging"`
	Command   CommandConfig   `mapstructure:"command"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Sampler   SamplerConfig   `mapstructure:"sampler"`
	Status    StatusConfig    `mapstructure:"status"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type LoggingConfig struct {
	// Level overrides the level stored in settings when set.
	Level      string `mapstructure:"level" validate:"omitempty,oneof=verbose debug information info warning warn error fatal Verbose Debug Information Warning Error Fatal"`
	Console    bool   `mapstructure:"console"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

type CommandConfig struct {
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Encoding string        `mapstructure:"encoding"`
}

type LifecycleConfig struct {
	// InitTimeout bounds each service's startup. Zero disables the bound.
	InitTimeout     time.Duration `mapstructure:"init_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type SamplerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
	DiskPath string `mapstructure:"disk_path"`
}

type StatusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DefaultDataDir returns the per-user data directory, falling back to a
// directory under the working directory.
func DefaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(".", "."+strings.ToLower(AppName))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())

	v.SetDefault("logging.level", "")
	v.SetDefault("logging.console", false)
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 31)

	v.SetDefault("command.timeout", "30s")
	v.SetDefault("command.encoding", "utf-8")

	v.SetDefault("lifecycle.init_timeout", "0s")
	v.SetDefault("lifecycle.shutdown_timeout", "15s")

	v.SetDefault("sampler.enabled", true)
	v.SetDefault("sampler.schedule", "@every 30s")
	v.SetDefault("sampler.disk_path", "")

	v.SetDefault("status.enabled", false)
	v.SetDefault("status.addr", "127.0.0.1:7420")

	v.SetDefault("telemetry.enabled", true)
}

// Load reads the YAML file at path when it is non-empty, otherwise looks
// for config.yaml in the default data directory. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WINVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(DefaultDataDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func Validate(cfg *Config) error {
	return validate.Struct(cfg)
}

// Paths lists the directories and files under the data directory.
type Paths struct {
	Root        string
	Logs        string
	Cache       string
	Temp        string
	Exports     string
	Settings    string
	Telemetry   string
	Diagnostics string
}

// Paths resolves the data layout under DataDir.
func (c *Config) Paths() Paths {
	root := c.DataDir
	return Paths{
		Root:        root,
		Logs:        filepath.Join(root, "Logs"),
		Cache:       filepath.Join(root, "Cache"),
		Temp:        filepath.Join(root, "Temp"),
		Exports:     filepath.Join(root, "Exports"),
		Settings:    filepath.Join(root, "app_settings.json"),
		Telemetry:   filepath.Join(root, "telemetry.log"),
		Diagnostics: filepath.Join(root, "Logs", "startup_diagnostics.log"),
	}
}

// Dirs returns the directories that must exist before startup.
func (p Paths) Dirs() []string {
	return []string{p.Root, p.Logs, p.Cache, p.Temp, p.Exports}
}

// Ensure creates every directory in p.
func (p Paths) Ensure() error {
	for _, dir := range p.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
