// Package config provides configuration management for the packager core
// using Viper, following the same nested-struct-per-concern layout the
// teacher host application used, with its own VODPACKAGER_ env-var prefix.
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
	defaultSegmentDurationMS   = 4000
	defaultFragmentFilePrefix  = "Seg"
	defaultBootstrapFilePrefix = "Bootstrap"
	defaultLoggingLevel        = "info"
	defaultLoggingFormat       = "json"
	minSegmentDurationMS       = 500
)

// Config holds the packager core's configuration: the packaging knobs spec
// §6 names as external configuration, plus ambient logging.
type Config struct {
	Packager PackagerConfig `mapstructure:"packager"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// PackagerConfig mirrors spec §6's external Configuration input:
// {segment_duration_ms, fragment_file_name_prefix, bootstrap_file_name_prefix,
// absolute_manifest_urls, encryption}.
type PackagerConfig struct {
	SegmentDurationMS       int               `mapstructure:"segment_duration_ms"`
	FragmentFileNamePrefix  string            `mapstructure:"fragment_file_name_prefix"`
	BootstrapFileNamePrefix string            `mapstructure:"bootstrap_file_name_prefix"`
	AbsoluteManifestURLs    bool              `mapstructure:"absolute_manifest_urls"`
	Encryption              *EncryptionConfig `mapstructure:"encryption"`

	// MaxFrameSize is loaded as a human-readable size via ByteSize. The
	// parser does not read it: samples above the fixed model.MaxFrameSize
	// (10 MiB) are rejected as BadData regardless of this value.
	MaxFrameSize ByteSize `mapstructure:"max_frame_size"`
}

// EncryptionConfig carries the CENC key material the host's DRM key
// provisioning service (an external collaborator, spec §1) hands to the
// core — hex-encoded, since this struct is itself only a config-loading
// convenience; callers convert to model.EncryptionParams before use.
type EncryptionConfig struct {
	KeyHex  string `mapstructure:"key"`
	IVHex   string `mapstructure:"iv"`
	KIDHex  string `mapstructure:"kid"`
	PSSHHex string `mapstructure:"pssh"`
}

// LoggingConfig holds logging configuration, unchanged from the host
// application's layout (internal/observability builds a *slog.Logger from
// this).
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with VODPACKAGER_ and use underscores
// for nesting. Example: VODPACKAGER_PACKAGER_SEGMENT_DURATION_MS=6000.
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
		v.AddConfigPath("/etc/vodpackager")
		v.AddConfigPath("$HOME/.vodpackager")
	}

	v.SetEnvPrefix("VODPACKAGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults
// are in place.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("packager.segment_duration_ms", defaultSegmentDurationMS)
	v.SetDefault("packager.fragment_file_name_prefix", defaultFragmentFilePrefix)
	v.SetDefault("packager.bootstrap_file_name_prefix", defaultBootstrapFilePrefix)
	v.SetDefault("packager.absolute_manifest_urls", false)
	v.SetDefault("packager.max_frame_size", int64(5*1024*1024))

	v.SetDefault("logging.level", defaultLoggingLevel)
	v.SetDefault("logging.format", defaultLoggingFormat)
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Packager.SegmentDurationMS < minSegmentDurationMS {
		return fmt.Errorf("packager.segment_duration_ms must be at least %dms", minSegmentDurationMS)
	}
	if c.Packager.FragmentFileNamePrefix == "" {
		return fmt.Errorf("packager.fragment_file_name_prefix is required")
	}
	if c.Packager.BootstrapFileNamePrefix == "" {
		return fmt.Errorf("packager.bootstrap_file_name_prefix is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
