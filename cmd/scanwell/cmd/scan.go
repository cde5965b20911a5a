package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/MeKo-Tech/scanwell/internal/barcode"
	"github.com/MeKo-Tech/scanwell/internal/batch"
	"github.com/MeKo-Tech/scanwell/internal/config"
	"github.com/MeKo-Tech/scanwell/internal/scan"
	"github.com/MeKo-Tech/scanwell/internal/strategy"
	"github.com/spf13/cobra"
)

// newEngine builds a ZXing-backed engine from the scan section of cfg.
func newEngine(cfg *config.Config) (*scan.Engine, error) {
	decoderOpts, err := cfg.ToDecoderOptions()
	if err != nil {
		return nil, err
	}
	decoder, err := barcode.NewZXing(decoderOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	return scan.NewEngine(decoder, scan.WithLogger(slog.Default()))
}

// addBatchFlags registers the file discovery and worker flags of the
// scanning commands.
func addBatchFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("workers", "w", 4, "number of images scanned concurrently")
	cmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	cmd.Flags().StringSlice("include", nil, "only scan files matching these glob patterns")
	cmd.Flags().StringSlice("exclude", nil, "skip files matching these glob patterns")
	cmd.Flags().Bool("continue-on-error", false, "record unreadable files instead of aborting")
	cmd.Flags().Bool("progress", false, "report progress on stderr")
	cmd.Flags().Bool("stats", false, "print scan statistics on stderr")
	cmd.Flags().BoolP("quiet", "q", false, "suppress informational messages")
}

// configToBatchConfig maps the centralized configuration to batch.Config.
// Command-line flags override config file values.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command) (*batch.Config, error) {
	opts, err := cfg.ToScanOptions(strategy.Default())
	if err != nil {
		return nil, err
	}

	bc := &batch.Config{
		Options:         opts,
		Workers:         cfg.Batch.Workers,
		MaxDimension:    cfg.Scan.MaxDimension,
		Trace:           cfg.Output.Trace,
		ContinueOnError: cfg.Batch.ContinueOnError,
		Recursive:       cfg.Batch.Recursive,
		IncludePatterns: cfg.Batch.Include,
		ExcludePatterns: cfg.Batch.Exclude,
	}

	flags := cmd.Flags()
	if flags.Changed("workers") {
		bc.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("recursive") {
		bc.Recursive, _ = flags.GetBool("recursive")
	}
	if flags.Changed("include") {
		bc.IncludePatterns, _ = flags.GetStringSlice("include")
	}
	if flags.Changed("exclude") {
		bc.ExcludePatterns, _ = flags.GetStringSlice("exclude")
	}
	if flags.Changed("continue-on-error") {
		bc.ContinueOnError, _ = flags.GetBool("continue-on-error")
	}
	if bc.Workers < 1 {
		return nil, fmt.Errorf("invalid workers: %d (must be positive)", bc.Workers)
	}

	if progress, _ := flags.GetBool("progress"); progress {
		bc.Progress = consoleProgress(cmd.ErrOrStderr())
	}
	return bc, nil
}

// consoleProgress returns a progress callback that rewrites one status line.
func consoleProgress(w io.Writer) func(done, total int) {
	var mu sync.Mutex
	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		_, _ = fmt.Fprintf(w, "\rScanning: %d/%d", done, total)
		if done == total {
			_, _ = fmt.Fprintln(w)
		}
	}
}

// writeBatchResult prints r the way the output flags ask for.
func writeBatchResult(cmd *cobra.Command, cfg *config.Config, r *batch.Result) error {
	quiet, _ := cmd.Flags().GetBool("quiet")
	if err := r.SaveResults(cmd.OutOrStdout(), cfg.Output.Format, cfg.Output.File, quiet); err != nil {
		return err
	}
	if stats, _ := cmd.Flags().GetBool("stats"); stats && !quiet {
		r.PrintStats(cmd.ErrOrStderr())
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
