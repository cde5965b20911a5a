package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/MeKo-Tech/scanwell/internal/strategy"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// strategyRow describes one catalog entry.
type strategyRow struct {
	Position    int    `json:"position,omitempty" yaml:"position,omitempty"`
	Name        string `json:"name" yaml:"name"`
	Default     bool   `json:"default" yaml:"default"`
	Description string `json:"description" yaml:"description"`
}

// strategiesCmd lists the preprocessing strategies.
var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the preprocessing strategies",
	Long: `List every preprocessing strategy the scanner knows. Strategies with a
position make up the default order; the others can be selected with
--strategies.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rows := strategyRows(strategy.Default())
		return writeStrategies(cmd.OutOrStdout(), GetConfig().Output.Format, rows)
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}

func strategyRows(c *strategy.Catalog) []strategyRow {
	position := make(map[strategy.Strategy]int)
	for i, s := range c.List() {
		position[s] = i + 1
	}

	rows := make([]strategyRow, 0, len(c.Entries()))
	for _, e := range c.Entries() {
		rows = append(rows, strategyRow{
			Position:    position[e.Name],
			Name:        e.Name.String(),
			Default:     !e.Extended,
			Description: e.Description,
		})
	}
	return rows
}

func writeStrategies(w io.Writer, format string, rows []strategyRow) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return enc.Encode(rows)
	case "", "text", "csv":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "POS\tNAME\tDESCRIPTION")
		for _, r := range rows {
			pos := "-"
			if r.Position > 0 {
				pos = strconv.Itoa(r.Position)
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", pos, r.Name, r.Description)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
