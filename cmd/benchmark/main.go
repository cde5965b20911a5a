package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/MeKo-Tech/scanwell/internal/barcode"
	"github.com/MeKo-Tech/scanwell/internal/benchmark"
	"github.com/MeKo-Tech/scanwell/internal/frame"
	"github.com/MeKo-Tech/scanwell/internal/scan"
	"github.com/MeKo-Tech/scanwell/internal/strategy"
	"github.com/MeKo-Tech/scanwell/internal/testutil"
)

func main() {
	var (
		iterations = flag.Int("iterations", 3, "Number of iterations per frame")
		payloads   = flag.String("payloads", "scanwell,https://example.com/ticket/42", "Comma-separated payloads for synthetic samples")
		imagesDir  = flag.String("images", "", "Directory of real captures to add as samples (optional)")
		strategies = flag.String("strategies", "", "Comma-separated strategies to benchmark (default: whole catalog)")
		outputFile = flag.String("output", "", "Output file for JSON results (optional)")
		verbose    = flag.Bool("verbose", false, "Verbose output")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("scanwell Strategy Benchmark")
	fmt.Println("===========================")

	catalog := strategy.Default()
	list, err := selectStrategies(catalog, *strategies)
	if err != nil {
		log.Fatalf("Invalid strategies: %v", err)
	}

	samples, err := syntheticSamples(strings.Split(*payloads, ","))
	if err != nil {
		log.Fatalf("Failed to build samples: %v", err)
	}
	if *imagesDir != "" {
		extra, err := loadSamples(*imagesDir)
		if err != nil {
			log.Fatalf("Failed to load images: %v", err)
		}
		samples = append(samples, extra...)
	}
	if *verbose {
		for _, s := range samples {
			fmt.Printf("Sample: %s (%dx%d)\n", s.Name, s.Frame.Width(), s.Frame.Height())
		}
	}

	decoder, err := barcode.NewZXing(barcode.Options{})
	if err != nil {
		log.Fatalf("Failed to create decoder: %v", err)
	}
	engine, err := scan.NewEngine(decoder)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	runner, err := benchmark.NewRunner(engine, *iterations)
	if err != nil {
		log.Fatalf("Failed to create runner: %v", err)
	}

	fmt.Printf("Running %d strategies over %d samples with %d iterations...\n\n", len(list), len(samples), *iterations)
	results, err := runner.RunAll(ctx, list, samples)
	if err != nil {
		log.Printf("Benchmark interrupted: %v", err)
	}

	printResults(os.Stdout, results)

	if *outputFile != "" {
		if err := saveResultsToFile(*outputFile, results); err != nil {
			log.Printf("Failed to save results to file: %v", err)
		} else {
			fmt.Printf("Results saved to: %s\n", *outputFile)
		}
	}
}

func selectStrategies(c *strategy.Catalog, raw string) ([]strategy.Strategy, error) {
	if strings.TrimSpace(raw) == "" {
		var all []strategy.Strategy
		for _, e := range c.Entries() {
			all = append(all, e.Name)
		}
		return all, nil
	}
	return strategy.Parse(c, strings.Split(raw, ","))
}

// syntheticSamples renders each payload under every degradation.
func syntheticSamples(payloads []string) ([]benchmark.Sample, error) {
	var out []benchmark.Sample
	for i, p := range payloads {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		img, err := testutil.GenerateQR(testutil.DefaultQRConfig(p))
		if err != nil {
			return nil, err
		}
		for _, d := range testutil.Degradations() {
			buf, err := frame.Wrap(d.Apply(img))
			if err != nil {
				return nil, err
			}
			out = append(out, benchmark.Sample{Name: fmt.Sprintf("qr%d_%s", i+1, d.Name), Frame: buf, Want: p})
		}
	}
	return out, nil
}

// loadSamples reads every supported image in dir. Their payloads are unknown,
// so any decode counts.
func loadSamples(dir string) ([]benchmark.Sample, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []benchmark.Sample
	for _, e := range entries {
		if e.IsDir() || !frame.IsSupported(e.Name()) {
			continue
		}
		buf, _, err := frame.Load(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, benchmark.Sample{Name: e.Name(), Frame: frame.Fit(buf, 1024)})
	}
	return out, nil
}

func printResults(w io.Writer, results []benchmark.StrategyResult) {
	_, _ = fmt.Fprintln(w, "Benchmark Results:")
	_, _ = fmt.Fprintln(w, "==================")
	for _, r := range results {
		_, _ = fmt.Fprintln(w, r.String())
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Ranking:")
	for i, r := range benchmark.Rank(results) {
		_, _ = fmt.Fprintf(w, "%2d. %s\n", i+1, r.Name)
	}

	rescued := benchmark.Rescued(results)
	if len(rescued) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "Rescued beyond the baseline:")
		for _, r := range results {
			if names, ok := rescued[r.Name]; ok {
				_, _ = fmt.Fprintf(w, "  %s: %s\n", r.Name, strings.Join(names, ", "))
			}
		}
	}
	_, _ = fmt.Fprintln(w)
}

func saveResultsToFile(filename string, results []benchmark.StrategyResult) error {
	data, err := json.MarshalIndent(struct {
		Results []benchmark.StrategyResult `json:"results"`
		Ranking []benchmark.StrategyResult `json:"ranking"`
		Rescued map[string][]string        `json:"rescued"`
	}{results, benchmark.Rank(results), benchmark.Rescued(results)}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, append(data, '\n'), 0o600)
}
