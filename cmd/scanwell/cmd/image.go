package cmd

import (
	"github.com/MeKo-Tech/scanwell/internal/batch"
	"github.com/spf13/cobra"
)

// imageCmd scans each image on its own.
var imageCmd = &cobra.Command{
	Use:   "image [files or directories...]",
	Short: "Scan independent images for codes",
	Long: `Scan every image for a single optical code. Each file gets its own scan
through the strategy ladder; files are scanned in parallel and reported in
the order they were found.

Supported formats: JPEG, PNG, BMP, TIFF, WebP

Examples:
  scanwell image ticket.jpg
  scanwell image photos/ --recursive --workers 8
  scanwell image a.png b.png --strategies invert,otsuThreshold --max-attempts 2
  scanwell image shelf/ --format csv --output codes.csv`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		bc, err := configToBatchConfig(cfg, cmd)
		if err != nil {
			return err
		}
		engine, err := newEngine(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		result, err := batch.ScanImages(ctx, engine, args, bc)
		if err != nil {
			return err
		}
		return writeBatchResult(cmd, cfg, result)
	},
}

func init() {
	rootCmd.AddCommand(imageCmd)
	addBatchFlags(imageCmd)
}
