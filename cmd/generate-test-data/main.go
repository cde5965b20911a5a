package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/scanwell/internal/testutil"
	"github.com/disintegration/imaging"
)

// Fixture is one generated image and the payload a scan should recover.
type Fixture struct {
	File        string `json:"file"`
	Payload     string `json:"payload,omitempty"`
	Degradation string `json:"degradation,omitempty"`
	// Frame is the 1-based position within a generated sequence.
	Frame int `json:"frame,omitempty"`
}

// Manifest lists every fixture written in one run.
type Manifest struct {
	Images   []Fixture `json:"images"`
	Sequence []Fixture `json:"sequence"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir   = flag.String("out", "testdata/generated", "Output directory, relative to the project root")
		payload  = flag.String("payload", "scanwell-fixture", "Payload encoded in every code")
		frames   = flag.Int("frames", 8, "Number of frames in the generated sequence (0 to skip)")
		moduleSz = flag.Int("module-size", 4, "Pixels per QR module")
		verbose  = flag.Bool("v", false, "Verbose output")
		help     = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate degraded QR fixtures for scanwell testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                      # Generate all fixtures\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -frames 0            # Images only, no sequence\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -payload 'hello'     # Custom payload\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	if err := os.Chdir(root); err != nil {
		slog.Error("Failed to change to project root", "error", err)
		os.Exit(1)
	}

	cfg := testutil.DefaultQRConfig(*payload)
	cfg.ModuleSize = *moduleSz

	slog.Info("Generating fixtures", "out", *outDir, "payload", *payload, "frames", *frames)

	manifest, err := generate(*outDir, cfg, *frames, *verbose)
	if err != nil {
		slog.Error("Failed to generate fixtures", "error", err)
		os.Exit(1)
	}

	if err := writeManifest(filepath.Join(*outDir, "manifest.json"), manifest); err != nil {
		slog.Error("Failed to write manifest", "error", err)
		os.Exit(1)
	}

	slog.Info("Fixture generation completed", "images", len(manifest.Images), "sequence", len(manifest.Sequence))
}

func generate(outDir string, cfg testutil.QRConfig, frames int, verbose bool) (Manifest, error) {
	var m Manifest

	img, err := testutil.GenerateQR(cfg)
	if err != nil {
		return m, fmt.Errorf("failed to render code: %w", err)
	}

	imagesDir := filepath.Join(outDir, "images")
	if err := testutil.EnsureDir(imagesDir); err != nil {
		return m, fmt.Errorf("failed to create images directory: %w", err)
	}
	degradations := testutil.Degradations()
	for _, d := range degradations {
		path := filepath.Join(imagesDir, d.Name+".png")
		if err := imaging.Save(d.Apply(img), path); err != nil {
			return m, fmt.Errorf("failed to save %s: %w", path, err)
		}
		if verbose {
			slog.Info("Wrote image", "path", path)
		}
		m.Images = append(m.Images, Fixture{File: path, Payload: cfg.Text, Degradation: d.Name})
	}

	blankPath := filepath.Join(imagesDir, "blank.png")
	b := img.Bounds()
	if err := imaging.Save(imaging.New(b.Dx(), b.Dy(), cfg.Light), blankPath); err != nil {
		return m, fmt.Errorf("failed to save %s: %w", blankPath, err)
	}
	m.Images = append(m.Images, Fixture{File: blankPath})

	if frames <= 0 {
		return m, nil
	}

	// The sequence cycles through the degradations with a blank frame every
	// third position, like a camera that loses the code now and then.
	seqDir := filepath.Join(outDir, "sequence")
	if err := testutil.EnsureDir(seqDir); err != nil {
		return m, fmt.Errorf("failed to create sequence directory: %w", err)
	}
	for i := range frames {
		path := filepath.Join(seqDir, fmt.Sprintf("frame_%03d.png", i+1))
		f := Fixture{File: path, Frame: i + 1}
		if (i+1)%3 == 0 {
			err = imaging.Save(imaging.New(b.Dx(), b.Dy(), cfg.Light), path)
		} else {
			d := degradations[i%len(degradations)]
			f.Payload, f.Degradation = cfg.Text, d.Name
			err = imaging.Save(d.Apply(img), path)
		}
		if err != nil {
			return m, fmt.Errorf("failed to save %s: %w", path, err)
		}
		m.Sequence = append(m.Sequence, f)
	}
	return m, nil
}

func writeManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
