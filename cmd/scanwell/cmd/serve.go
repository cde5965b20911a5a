package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/scanwell/internal/config"
	"github.com/MeKo-Tech/scanwell/internal/server"
	"github.com/MeKo-Tech/scanwell/internal/strategy"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the scan API",
	Long: `Start an HTTP server that scans uploaded images and WebSocket frame streams.

The server provides the following endpoints:
  POST /scan/image        - Scan an uploaded image (multipart field "image")
  GET  /scan/stream       - WebSocket; every connection is one scan session
  GET  /strategies        - List preprocessing strategies
  GET  /strategies/{name} - Describe one strategy
  GET  /health            - Health check endpoint
  GET  /metrics           - Prometheus metrics

Examples:
  scanwell serve
  scanwell serve --port 8080
  scanwell serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := GetConfig()
		serverConfig, shutdownTimeout, err := configToServerConfig(cfg, cmd)
		if err != nil {
			return err
		}

		engine, err := newEngine(cfg)
		if err != nil {
			return err
		}
		scanServer, err := server.NewServer(serverConfig, engine, strategy.Default())
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}
		httpServer := scanServer.HTTPServer(serverConfig.Addr())

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		errCh := make(chan error, 1)
		go func() {
			slog.Info("Starting scan server", "host", serverConfig.Host, "port", serverConfig.Port)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err, ok := <-errCh:
			if ok {
				slog.Error("Server error", "error", err)
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
			slog.Info("Received shutdown signal")
		}

		slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
			return err
		}
		slog.Info("Graceful shutdown completed")
		return nil
	},
}

// configToServerConfig maps the centralized configuration to server.Config.
// Command-line flags override config file values.
func configToServerConfig(cfg *config.Config, cmd *cobra.Command) (server.Config, time.Duration, error) {
	opts, err := cfg.ToScanOptions(strategy.Default())
	if err != nil {
		return server.Config{}, 0, err
	}

	s := cfg.Server
	flags := cmd.Flags()
	if flags.Changed("host") {
		s.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		s.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		s.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("max-upload-size") {
		s.MaxUploadMB, _ = flags.GetInt("max-upload-size")
	}
	if flags.Changed("timeout") {
		s.TimeoutSec, _ = flags.GetInt("timeout")
	}
	if flags.Changed("shutdown-timeout") {
		s.ShutdownTimeout, _ = flags.GetInt("shutdown-timeout")
	}
	if flags.Changed("rate-limit-enabled") {
		s.RateLimit.Enabled, _ = flags.GetBool("rate-limit-enabled")
	}
	if flags.Changed("requests-per-minute") {
		s.RateLimit.RequestsPerMinute, _ = flags.GetInt("requests-per-minute")
	}
	if flags.Changed("requests-per-hour") {
		s.RateLimit.RequestsPerHour, _ = flags.GetInt("requests-per-hour")
	}
	if flags.Changed("max-requests-per-day") {
		s.RateLimit.MaxRequestsPerDay, _ = flags.GetInt("max-requests-per-day")
	}
	if flags.Changed("max-data-per-day") {
		s.RateLimit.MaxDataPerDay, _ = flags.GetInt64("max-data-per-day")
	}

	if s.Port < 1 || s.Port > 65535 {
		return server.Config{}, 0, fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", s.Port)
	}

	return server.Config{
		Host:         s.Host,
		Port:         s.Port,
		CORSOrigin:   s.CORSOrigin,
		MaxUploadMB:  int64(s.MaxUploadMB),
		TimeoutSec:   s.TimeoutSec,
		ScanOptions:  opts,
		MaxDimension: cfg.Scan.MaxDimension,
		RateLimit: server.RateLimitConfig{
			Enabled:           s.RateLimit.Enabled,
			RequestsPerMinute: s.RateLimit.RequestsPerMinute,
			RequestsPerHour:   s.RateLimit.RequestsPerHour,
			MaxRequestsPerDay: s.RateLimit.MaxRequestsPerDay,
			MaxDataPerDay:     s.RateLimit.MaxDataPerDay,
		},
		Logger: slog.Default(),
	}, time.Duration(s.ShutdownTimeout) * time.Second, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 20, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 30, "request read timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 120, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 3000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 20000, "maximum requests per day per client")
	serveCmd.Flags().Int64("max-data-per-day", 2<<30, "maximum data scanned per day per client (bytes)")
}
