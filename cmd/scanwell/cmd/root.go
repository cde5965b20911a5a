package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/scanwell/internal/config"
	"github.com/MeKo-Tech/scanwell/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "scanwell",
	Short: "Read QR codes and barcodes from difficult images",
	Long: `scanwell decodes optical codes (QR, DataMatrix, Aztec, EAN, UPC, Code 128 and
more) from photos, video frames and PDF documents. Each frame is retried
through a ladder of preprocessing strategies (contrast, sharpening,
thresholding, ...) until one makes the code readable, and frame sequences
remember which strategy worked last.

Examples:
  scanwell image ticket.jpg
  scanwell frames ./capture --format json
  scanwell pdf invoice.pdf --pages 1-2
  scanwell strategies
  scanwell serve --port 8080`,
	Version: version.String(),
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.SetVersionTemplate("scanwell {{.Version}}\n")

	// Assigned here because initConfig reads rootCmd's flags.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		setupLogging(cmd, globalConfig)
		return nil
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/scanwell, /etc/scanwell)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")

	// Scan settings shared by every scanning command
	pf.StringSliceP("strategies", "s", nil, "strategy order to try, comma-separated (default: built-in order)")
	pf.Int("max-attempts", 7, "maximum strategy attempts per frame before the fallback (0 = fallback only)")
	pf.Bool("debug-scan", false, "log every scan attempt at debug level")
	pf.StringSlice("formats", nil, "restrict decoding to these symbologies, e.g. qr,ean13")
	pf.Bool("try-harder", false, "spend more time per decode attempt")
	pf.Int("max-dimension", 1024, "downscale frames so neither side exceeds this (0 = never)")

	// Output settings
	pf.StringP("format", "f", "text", "output format (text, json, yaml, csv)")
	pf.StringP("output", "o", "", "write results to this file instead of stdout")
	pf.Bool("trace", false, "include every scan attempt in the output")
}

// flagBindings maps config keys to the persistent flags that override them.
var flagBindings = map[string]string{
	"verbose":            "verbose",
	"log_level":          "log-level",
	"scan.strategies":    "strategies",
	"scan.max_attempts":  "max-attempts",
	"scan.debug":         "debug-scan",
	"scan.formats":       "formats",
	"scan.try_harder":    "try-harder",
	"scan.max_dimension": "max-dimension",
	"output.format":      "format",
	"output.file":        "output",
	"output.trace":       "trace",
}

// initConfig reads the config file, environment variables and bound flags
// into a fresh viper instance.
func initConfig() error {
	v := viper.New()
	for key, flag := range flagBindings {
		if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}
	configLoader = config.NewLoaderWithViper(v)

	cfg, err := configLoader.LoadWithFile(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	globalConfig = cfg
	return nil
}

// setupLogging installs a JSON slog handler on stderr at the configured level.
func setupLogging(cmd *cobra.Command, cfg *config.Config) {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}

// GetConfig returns the global configuration.
func GetConfig() *config.Config {
	if globalConfig == nil {
		if err := initConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}
	return globalConfig
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}
