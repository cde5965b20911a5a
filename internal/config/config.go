package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/scanwell/internal/barcode"
	"github.com/MeKo-Tech/scanwell/internal/scan"
	"github.com/MeKo-Tech/scanwell/internal/strategy"
)

// Config is the complete configuration for scanwell. It covers every command
// (image, frames, pdf, strategies, serve) and is loaded from configuration
// files, environment variables and command-line flags.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Scan   ScanConfig   `mapstructure:"scan" yaml:"scan" json:"scan"`
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
	Batch  BatchConfig  `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// ScanConfig controls the scan engine and the decoder behind it.
type ScanConfig struct {
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts" json:"max_attempts"`
	// Strategies overrides the catalog's default order. Empty keeps it.
	Strategies []string `mapstructure:"strategies" yaml:"strategies" json:"strategies"`
	Debug      bool     `mapstructure:"debug" yaml:"debug" json:"debug"`

	// Formats restricts the decoder to these symbologies. Empty means all.
	Formats   []string `mapstructure:"formats" yaml:"formats" json:"formats"`
	TryHarder bool     `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`

	// MaxDimension downscales frames before scanning; 0 disables it.
	MaxDimension int `mapstructure:"max_dimension" yaml:"max_dimension" json:"max_dimension"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
	// Trace includes every attempt in the output.
	Trace bool `mapstructure:"trace" yaml:"trace" json:"trace"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig configures per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// BatchConfig contains settings for scanning many files.
type BatchConfig struct {
	Workers   int      `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Include   []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude   []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
	// ContinueOnError keeps scanning after a file fails to load.
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}

// Output formats understood by the CLI.
var validOutputFormats = []string{"text", "json", "yaml", "csv"}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Scan: ScanConfig{
			MaxAttempts:  scan.DefaultMaxAttempts,
			MaxDimension: 1024,
		},
		Output: OutputConfig{
			Format: "text",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     20,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 120,
				RequestsPerHour:   3000,
				MaxRequestsPerDay: 20000,
				MaxDataPerDay:     2 << 30,
			},
		},
		Batch: BatchConfig{
			Workers: 4,
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Output.Format != "" && !contains(validOutputFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)",
			c.Output.Format, strings.Join(validOutputFormats, ", "))
	}

	if c.Scan.MaxAttempts < 0 {
		return fmt.Errorf("invalid scan max attempts: %d (must be >= 0)", c.Scan.MaxAttempts)
	}
	if c.Scan.MaxDimension < 0 {
		return fmt.Errorf("invalid scan max dimension: %d (must be >= 0)", c.Scan.MaxDimension)
	}
	if _, err := c.ToScanOptions(strategy.Default()); err != nil {
		return err
	}
	if _, err := c.ToDecoderOptions(); err != nil {
		return err
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout: %d (must be >= 0)", c.Server.ShutdownTimeout)
	}
	rl := c.Server.RateLimit
	if rl.RequestsPerMinute < 0 || rl.RequestsPerHour < 0 || rl.MaxRequestsPerDay < 0 || rl.MaxDataPerDay < 0 {
		return errors.New("invalid rate limit: limits must be >= 0")
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}

	return nil
}

// ToScanOptions resolves the scan section against catalog.
func (c *Config) ToScanOptions(catalog *strategy.Catalog) (scan.Options, error) {
	opts := scan.Options{
		MaxAttempts: c.Scan.MaxAttempts,
		Debug:       c.Scan.Debug,
	}
	if len(c.Scan.Strategies) > 0 {
		list, err := strategy.Parse(catalog, splitList(c.Scan.Strategies))
		if err != nil {
			return scan.Options{}, fmt.Errorf("invalid scan strategies: %w", err)
		}
		opts.Strategies = list
	}
	if err := opts.Validate(); err != nil {
		return scan.Options{}, err
	}
	return opts, nil
}

// ToDecoderOptions resolves the decoder settings of the scan section.
func (c *Config) ToDecoderOptions() (barcode.Options, error) {
	formats, err := barcode.ParseFormats(splitList(c.Scan.Formats))
	if err != nil {
		return barcode.Options{}, fmt.Errorf("invalid scan formats: %w", err)
	}
	return barcode.Options{Formats: formats, TryHarder: c.Scan.TryHarder}, nil
}

// splitList accepts both YAML lists and comma-separated values from flags or
// environment variables.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
