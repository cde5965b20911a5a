package batch

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/scanwell/internal/scan"
)

// Mode names how a batch was scanned.
type Mode string

const (
	// ModeIndependent scans every file on its own with a fresh engine run.
	ModeIndependent Mode = "independent"
	// ModeSequence feeds the files through one session as consecutive frames.
	ModeSequence Mode = "sequence"
	// ModePDF scans the images embedded in a PDF independently.
	ModePDF Mode = "pdf"
)

// Config holds all configuration for batch scanning.
type Config struct {
	Options scan.Options

	// Workers bounds concurrent scans in independent and PDF mode.
	Workers int
	// MaxDimension downscales frames before scanning; 0 disables it.
	MaxDimension int
	// Trace records every attempt per item.
	Trace bool
	// ContinueOnError records load failures on the item instead of aborting.
	ContinueOnError bool

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Progress is called after each finished item. It may be called from
	// several goroutines at once.
	Progress func(done, total int)
}

// Item is the outcome for one image.
type Item struct {
	File   string       `json:"file" yaml:"file"`
	Page   int          `json:"page,omitempty" yaml:"page,omitempty"`
	Frame  int          `json:"frame,omitempty" yaml:"frame,omitempty"`
	Width  int          `json:"width,omitempty" yaml:"width,omitempty"`
	Height int          `json:"height,omitempty" yaml:"height,omitempty"`
	Result *scan.Result `json:"result,omitempty" yaml:"result,omitempty"`
	Trace  *scan.Trace  `json:"trace,omitempty" yaml:"trace,omitempty"`
	Error  string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// Found reports whether the item decoded.
func (it Item) Found() bool { return it.Result != nil }

// Result holds the result of a batch scan.
type Result struct {
	Mode        Mode          `json:"mode" yaml:"mode"`
	Items       []Item        `json:"items" yaml:"items"`
	Duration    time.Duration `json:"duration_ns" yaml:"duration_ns"`
	WorkerCount int           `json:"workers" yaml:"workers"`
	// Session is the final session state in sequence mode.
	Session *scan.Stats `json:"session,omitempty" yaml:"session,omitempty"`
}

// Summary counts items by outcome.
type Summary struct {
	Total  int `json:"total" yaml:"total"`
	Found  int `json:"found" yaml:"found"`
	Absent int `json:"absent" yaml:"absent"`
	Failed int `json:"failed" yaml:"failed"`
}

// Summary counts the items of r.
func (r *Result) Summary() Summary {
	s := Summary{Total: len(r.Items)}
	for _, it := range r.Items {
		switch {
		case it.Error != "":
			s.Failed++
		case it.Found():
			s.Found++
		default:
			s.Absent++
		}
	}
	return s
}

// FormatResults formats the batch results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r, format)
}

// SaveResults writes the formatted results to outputFile, or to stdout when
// outputFile is empty.
func (r *Result) SaveResults(stdout io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(stdout, "Results written to %s\n", outputFile)
		}
		return nil
	}

	_, _ = fmt.Fprint(stdout, output)
	return nil
}

// PrintStats prints scanning statistics.
func (r *Result) PrintStats(w io.Writer) {
	s := r.Summary()
	_, _ = fmt.Fprintf(w, "\nScan Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Mode: %s\n", r.Mode)
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", s.Total)
	_, _ = fmt.Fprintf(w, "  Found: %d\n", s.Found)
	_, _ = fmt.Fprintf(w, "  Absent: %d\n", s.Absent)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", s.Failed)
	if r.WorkerCount > 0 {
		_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.WorkerCount)
	}
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if s.Total > 0 {
		avg := r.Duration / time.Duration(s.Total)
		_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", avg.Round(time.Microsecond))
		if secs := r.Duration.Seconds(); secs > 0 {
			_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", float64(s.Total)/secs)
		}
	}
	if r.Session != nil {
		last := string(r.Session.LastSuccessful)
		if last == "" {
			last = "-"
		}
		_, _ = fmt.Fprintf(w, "  Session: %d frames, last successful %s\n", r.Session.FrameCount, last)
	}
}
