package cmd

import (
	"github.com/MeKo-Tech/scanwell/internal/batch"
	"github.com/spf13/cobra"
)

// framesCmd feeds images through one session, like frames of a video.
var framesCmd = &cobra.Command{
	Use:   "frames [directory or files...]",
	Short: "Scan an ordered frame sequence through one session",
	Long: `Scan images as consecutive frames of one video stream. Directories are
read in lexical file name order. The session tries the strategy that decoded
the previous code first, and every tenth frame falls back to the full order.

Examples:
  scanwell frames ./capture
  scanwell frames frame_001.png frame_002.png frame_003.png --trace
  scanwell frames ./capture --format json --stats`,
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

		result, err := batch.ScanSequence(ctx, engine, args, bc)
		if err != nil {
			return err
		}
		return writeBatchResult(cmd, cfg, result)
	},
}

func init() {
	rootCmd.AddCommand(framesCmd)
	addBatchFlags(framesCmd)
	// Frames are scanned strictly in order.
	_ = framesCmd.Flags().MarkHidden("workers")
}
