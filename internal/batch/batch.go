// Package batch scans many images at once: independent files on a worker
// pool, ordered frames through one scan session, or the images of a PDF.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/scanwell/internal/frame"
	"github.com/MeKo-Tech/scanwell/internal/pdf"
	"github.com/MeKo-Tech/scanwell/internal/scan"
	"golang.org/x/sync/errgroup"
)

// ErrNoEngine is returned when no engine is supplied.
var ErrNoEngine = errors.New("batch: engine is required")

// ScanImages scans every discovered image independently, Workers at a time.
// Items keep the discovery order regardless of completion order.
func ScanImages(ctx context.Context, engine *scan.Engine, args []string, config *Config) (*Result, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}
	if err := config.Options.Validate(); err != nil {
		return nil, err
	}
	files, err := discoverImageFiles(args, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}

	items := make([]Item, len(files))
	for i, f := range files {
		items[i].File = f
	}

	sc := engineScanner{engine: engine, opts: config.Options}
	workers := workerCount(config.Workers, len(files))
	startTime := time.Now()
	err = runParallel(ctx, workers, len(items), config.Progress, func(i int) error {
		item := &items[i]
		buf, err := loadFrame(item.File, config.MaxDimension)
		if err != nil {
			return handleItemError(item, err, config.ContinueOnError)
		}
		return handleItemError(item, scanFrame(sc, buf, item, config.Trace), config.ContinueOnError)
	})
	if err != nil {
		return nil, fmt.Errorf("batch scan failed: %w", err)
	}

	return &Result{
		Mode:        ModeIndependent,
		Items:       items,
		Duration:    time.Since(startTime),
		WorkerCount: workers,
	}, nil
}

// ScanSequence feeds the discovered images through one session in order, the
// way consecutive video frames would arrive. Files that fail to load never
// reach the session and do not advance its frame count.
func ScanSequence(ctx context.Context, engine *scan.Engine, args []string, config *Config) (*Result, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}
	session, err := scan.NewSession(engine, config.Options)
	if err != nil {
		return nil, err
	}
	files, err := discoverImageFiles(args, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}

	sc := sessionScanner{session: session}
	items := make([]Item, len(files))
	startTime := time.Now()
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := &items[i]
		item.File = f

		buf, err := loadFrame(f, config.MaxDimension)
		if err == nil {
			err = scanFrame(sc, buf, item, config.Trace)
			item.Frame = session.Stats().FrameCount
		}
		if err := handleItemError(item, err, config.ContinueOnError); err != nil {
			return nil, fmt.Errorf("sequence scan failed: %w", err)
		}
		if config.Progress != nil {
			config.Progress(i+1, len(files))
		}
	}

	stats := session.Stats()
	return &Result{
		Mode:        ModeSequence,
		Items:       items,
		Duration:    time.Since(startTime),
		WorkerCount: 1,
		Session:     &stats,
	}, nil
}

// ScanPDF extracts the embedded images of filename and scans each one
// independently.
func ScanPDF(ctx context.Context, engine *scan.Engine, filename string, pdfOpts pdf.Options, config *Config) (*Result, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}
	if err := config.Options.Validate(); err != nil {
		return nil, err
	}

	startTime := time.Now()
	images, err := pdf.ExtractImages(filename, pdfOpts)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		slog.Warn("PDF contains no extractable images", "file", filename, "pages", pdfOpts.Pages)
		return &Result{Mode: ModePDF, Items: []Item{}, Duration: time.Since(startTime)}, nil
	}

	items := make([]Item, len(images))
	sc := engineScanner{engine: engine, opts: config.Options}
	workers := workerCount(config.Workers, len(images))
	err = runParallel(ctx, workers, len(images), config.Progress, func(i int) error {
		img := images[i]
		item := &items[i]
		item.File, item.Page = img.Name, img.Page
		buf := frame.Fit(img.Frame, config.MaxDimension)
		return handleItemError(item, scanFrame(sc, buf, item, config.Trace), config.ContinueOnError)
	})
	if err != nil {
		return nil, fmt.Errorf("PDF scan failed: %w", err)
	}

	return &Result{
		Mode:        ModePDF,
		Items:       items,
		Duration:    time.Since(startTime),
		WorkerCount: workers,
	}, nil
}

// runParallel calls fn for every index with at most workers in flight and
// stops handing out work after the first error.
func runParallel(ctx context.Context, workers, n int, progress func(done, total int), fn func(i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var done atomic.Int64
	for i := range n {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fn(i); err != nil {
				return err
			}
			if progress != nil {
				progress(int(done.Add(1)), n)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// Cancelled before any worker ran.
	return ctx.Err()
}

// handleItemError records err on item when failures are tolerated.
func handleItemError(item *Item, err error, continueOnError bool) error {
	if err == nil {
		return nil
	}
	if !continueOnError {
		return err
	}
	slog.Warn("skipping image", "file", item.File, "error", err)
	item.Error = err.Error()
	return nil
}

func workerCount(workers, items int) int {
	if workers < 1 {
		workers = 1
	}
	return min(workers, items)
}
