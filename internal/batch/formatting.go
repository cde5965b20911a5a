package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// formatBatchResults formats the batch results in the specified format.
func formatBatchResults(r *Result, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(r)
	case "yaml":
		return formatYAML(r)
	case "csv":
		return formatCSV(r)
	case "", "text":
		return formatText(r), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

type report struct {
	Result  `yaml:",inline"`
	Summary Summary `json:"summary" yaml:"summary"`
}

func formatJSON(r *Result) (string, error) {
	bts, err := json.MarshalIndent(report{Result: *r, Summary: r.Summary()}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bts) + "\n", nil
}

func formatYAML(r *Result) (string, error) {
	bts, err := yaml.Marshal(report{Result: *r, Summary: r.Summary()})
	if err != nil {
		return "", err
	}
	return string(bts), nil
}

// formatCSV writes one row per item; absent and failed items have an empty
// payload.
func formatCSV(r *Result) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	rows := [][]string{{"file", "page", "frame", "found", "payload", "format", "strategy", "x", "y", "width", "height", "error"}}

	for _, it := range r.Items {
		row := []string{it.File, strconv.Itoa(it.Page), strconv.Itoa(it.Frame), strconv.FormatBool(it.Found()), "", "", "", "", "", "", "", it.Error}
		if res := it.Result; res != nil {
			box := res.Location.BBox
			row[4] = res.Payload
			row[5] = res.Format.String()
			row[6] = string(res.Strategy)
			row[7] = strconv.Itoa(box.Min.X)
			row[8] = strconv.Itoa(box.Min.Y)
			row[9] = strconv.Itoa(box.Dx())
			row[10] = strconv.Itoa(box.Dy())
		}
		rows = append(rows, row)
	}

	if err := writer.WriteAll(rows); err != nil {
		return "", err
	}
	return output.String(), nil
}

// formatText prints one block per item.
func formatText(r *Result) string {
	var output strings.Builder
	for i, it := range r.Items {
		if i > 0 {
			output.WriteString("\n")
		}
		output.WriteString("# " + itemLabel(it) + "\n")
		switch {
		case it.Error != "":
			fmt.Fprintf(&output, "error: %s\n", it.Error)
		case it.Result == nil:
			output.WriteString("no code found\n")
		default:
			fmt.Fprintf(&output, "%s [%s via %s]\n", it.Result.Payload, it.Result.Format, it.Result.Strategy)
		}
		if it.Trace != nil {
			for _, a := range it.Trace.Attempts {
				name := string(a.Strategy)
				if a.Fallback {
					name += " (fallback)"
				}
				fmt.Fprintf(&output, "  - %s: %s\n", name, a.Outcome)
			}
		}
	}
	return output.String()
}

func itemLabel(it Item) string {
	switch {
	case it.Page > 0:
		return fmt.Sprintf("%s (page %d)", it.File, it.Page)
	case it.Frame > 0:
		return fmt.Sprintf("%s (frame %d)", it.File, it.Frame)
	default:
		return it.File
	}
}
