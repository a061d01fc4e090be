// Package config provides configuration management for mediaexport using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxIdleTime = 30 * time.Minute
	defaultQuality         = "original"
	defaultFormat          = "mp4"
	defaultFragmentSamples = 256
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Export   ExportConfig   `mapstructure:"export"`
}

// ServerConfig holds HTTP status API configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds export-history database configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn" masq:"secret"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	// OutputDir is the default directory for exported files when the caller
	// does not provide an explicit output path.
	OutputDir string `mapstructure:"output_dir"`
	// TempDir is used for scratch space during exports.
	TempDir string `mapstructure:"temp_dir"`
	// MaxOutputSize rejects exports whose estimated output exceeds this size.
	// Zero disables the check. Supports human-readable values like "2GB".
	MaxOutputSize ByteSize `mapstructure:"max_output_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // trace, debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// ExportConfig holds export pipeline defaults.
type ExportConfig struct {
	// DefaultQuality is applied when the caller does not pick a quality tier.
	DefaultQuality string `mapstructure:"default_quality"` // low, medium, high, ultra, original
	// DefaultFormat is the output container when none is requested.
	DefaultFormat string `mapstructure:"default_format"` // mp4, webm, matroska
	// FragmentSamples bounds how many samples the container writer buffers
	// before flushing a fragment.
	FragmentSamples int `mapstructure:"fragment_samples"`
	// KeepPartialOnError keeps partially written output files on failure
	// instead of deleting them. Intended for debugging only.
	KeepPartialOnError bool `mapstructure:"keep_partial_on_error"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration and are
// prefixed with MEDIAEXPORT_, using underscores for nesting.
// Example: MEDIAEXPORT_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/mediaexport")
		v.AddConfigPath("$HOME/.mediaexport")
	}

	v.SetEnvPrefix("MEDIAEXPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && configPath != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(DecodeHooks())); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SetDefaults registers all default configuration values on the given Viper
// instance. Called both by Load and by the CLI before flag binding.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "mediaexport.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("storage.output_dir", "./exports")
	v.SetDefault("storage.temp_dir", "")
	v.SetDefault("storage.max_output_size", "0")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", "")

	v.SetDefault("export.default_quality", defaultQuality)
	v.SetDefault("export.default_format", defaultFormat)
	v.SetDefault("export.fragment_samples", defaultFragmentSamples)
	v.SetDefault("export.keep_partial_on_error", false)
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("invalid database driver %q (want sqlite, postgres or mysql)", c.Database.Driver)
	}

	switch c.Export.DefaultQuality {
	case "low", "medium", "high", "ultra", "original":
	default:
		return fmt.Errorf("invalid default quality %q", c.Export.DefaultQuality)
	}

	switch c.Export.DefaultFormat {
	case "mp4", "webm", "matroska":
	default:
		return fmt.Errorf("invalid default format %q", c.Export.DefaultFormat)
	}

	if c.Export.FragmentSamples <= 0 {
		return errors.New("export.fragment_samples must be positive")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}

	return nil
}
