package cmd

import (
	"github.com/MeKo-Tech/scanwell/internal/batch"
	"github.com/MeKo-Tech/scanwell/internal/pdf"
	"github.com/spf13/cobra"
)

// pdfCmd scans the images embedded in a PDF.
var pdfCmd = &cobra.Command{
	Use:   "pdf [file]",
	Short: "Scan the images embedded in a PDF document",
	Long: `Extract the raster images embedded in a PDF and scan each for a code.
Vector-drawn codes are not rendered and therefore not found.

Examples:
  scanwell pdf invoice.pdf
  scanwell pdf scans.pdf --pages 1-3,7 --format json
  scanwell pdf locked.pdf --password secret`,
	Args:         cobra.ExactArgs(1),
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

		var opts pdf.Options
		opts.Pages, _ = cmd.Flags().GetString("pages")
		opts.UserPassword, _ = cmd.Flags().GetString("password")
		opts.OwnerPassword, _ = cmd.Flags().GetString("owner-password")

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		result, err := batch.ScanPDF(ctx, engine, args[0], opts, bc)
		if err != nil {
			return err
		}
		return writeBatchResult(cmd, cfg, result)
	},
}

func init() {
	rootCmd.AddCommand(pdfCmd)
	addBatchFlags(pdfCmd)
	for _, name := range []string{"recursive", "include", "exclude"} {
		_ = pdfCmd.Flags().MarkHidden(name)
	}
	pdfCmd.Flags().String("pages", "", "page range to scan, e.g. 1-3,7 (default: all pages)")
	pdfCmd.Flags().String("password", "", "user password for encrypted PDFs")
	pdfCmd.Flags().String("owner-password", "", "owner password for encrypted PDFs")
}
