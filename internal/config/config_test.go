package config

import (
	"strings"
	"testing"

	"github.com/MeKo-Tech/scanwell/internal/barcode"
	"github.com/MeKo-Tech/scanwell/internal/scan"
	"github.com/MeKo-Tech/scanwell/internal/strategy"
)

const infoLevel = "info"

// TestDefaultConfig tests that the default configuration is valid.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected log level %s, got %s", infoLevel, cfg.LogLevel)
	}
	if cfg.Scan.MaxAttempts != scan.DefaultMaxAttempts {
		t.Errorf("Expected max attempts %d, got %d", scan.DefaultMaxAttempts, cfg.Scan.MaxAttempts)
	}
	if cfg.Output.Format != "text" {
		t.Errorf("Expected output format text, got %s", cfg.Output.Format)
	}
	if cfg.Batch.Workers <= 0 {
		t.Errorf("Expected positive worker count, got %d", cfg.Batch.Workers)
	}
}

// TestConfigValidation tests configuration validation.
func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid default", modify: func(*Config) {}},
		{name: "invalid log level", modify: func(c *Config) { c.LogLevel = "loud" }, wantErr: "invalid log level"},
		{name: "invalid output format", modify: func(c *Config) { c.Output.Format = "xml" }, wantErr: "invalid output format"},
		{name: "negative max attempts", modify: func(c *Config) { c.Scan.MaxAttempts = -1 }, wantErr: "max attempts"},
		{name: "zero max attempts", modify: func(c *Config) { c.Scan.MaxAttempts = 0 }},
		{name: "negative max dimension", modify: func(c *Config) { c.Scan.MaxDimension = -5 }, wantErr: "max dimension"},
		{name: "unknown strategy", modify: func(c *Config) { c.Scan.Strategies = []string{"blur"} }, wantErr: "invalid scan strategies"},
		{name: "duplicate strategy", modify: func(c *Config) { c.Scan.Strategies = []string{"grayscale,grayscale"} }, wantErr: "listed twice"},
		{name: "known strategies", modify: func(c *Config) { c.Scan.Strategies = []string{"invert", "otsuthreshold"} }},
		{name: "unknown format", modify: func(c *Config) { c.Scan.Formats = []string{"maxicode"} }, wantErr: "invalid scan formats"},
		{name: "known formats", modify: func(c *Config) { c.Scan.Formats = []string{"qr,ean13"} }},
		{name: "invalid port", modify: func(c *Config) { c.Server.Port = 70000 }, wantErr: "invalid server port"},
		{name: "zero upload size", modify: func(c *Config) { c.Server.MaxUploadMB = 0 }, wantErr: "max upload size"},
		{name: "zero timeout", modify: func(c *Config) { c.Server.TimeoutSec = 0 }, wantErr: "invalid timeout"},
		{name: "negative shutdown timeout", modify: func(c *Config) { c.Server.ShutdownTimeout = -1 }, wantErr: "shutdown timeout"},
		{name: "negative rate limit", modify: func(c *Config) { c.Server.RateLimit.RequestsPerHour = -1 }, wantErr: "rate limit"},
		{name: "zero workers", modify: func(c *Config) { c.Batch.Workers = 0 }, wantErr: "batch workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestToScanOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scan.MaxAttempts = 3
	cfg.Scan.Debug = true
	cfg.Scan.Strategies = []string{"invert, contrastBoost", "otsuThreshold"}

	opts, err := cfg.ToScanOptions(strategy.Default())
	if err != nil {
		t.Fatalf("ToScanOptions() unexpected error: %v", err)
	}
	if opts.MaxAttempts != 3 || !opts.Debug {
		t.Errorf("unexpected options %+v", opts)
	}
	want := []strategy.Strategy{strategy.Invert, strategy.ContrastBoost, strategy.OtsuThreshold}
	if len(opts.Strategies) != len(want) {
		t.Fatalf("Expected %d strategies, got %v", len(want), opts.Strategies)
	}
	for i := range want {
		if opts.Strategies[i] != want[i] {
			t.Errorf("strategy %d: expected %s, got %s", i, want[i], opts.Strategies[i])
		}
	}
}

func TestToScanOptionsDefaultOrder(t *testing.T) {
	cfg := DefaultConfig()
	opts, err := cfg.ToScanOptions(strategy.Default())
	if err != nil {
		t.Fatalf("ToScanOptions() unexpected error: %v", err)
	}
	if opts.Strategies != nil {
		t.Errorf("Expected catalog order (nil strategies), got %v", opts.Strategies)
	}
}

func TestToDecoderOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scan.Formats = []string{"qr", "datamatrix"}
	cfg.Scan.TryHarder = true

	opts, err := cfg.ToDecoderOptions()
	if err != nil {
		t.Fatalf("ToDecoderOptions() unexpected error: %v", err)
	}
	if !opts.TryHarder {
		t.Error("Expected TryHarder to be set")
	}
	if len(opts.Formats) != 2 || opts.Formats[0] != barcode.FormatQR || opts.Formats[1] != barcode.FormatDataMatrix {
		t.Errorf("unexpected formats %v", opts.Formats)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList([]string{" a, b ", "", "c,,"})
	want := []string{"a", "b", "c"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("splitList() = %v, want %v", got, want)
	}
	if splitList(nil) != nil {
		t.Error("splitList(nil) should be nil")
	}
}
