package batch

import (
	"fmt"

	"github.com/MeKo-Tech/scanwell/internal/frame"
	"github.com/MeKo-Tech/scanwell/internal/scan"
)

// scanner is what a single item is scanned with: an Engine with fixed options
// or a Session.
type scanner interface {
	scan(buf *frame.Buffer, trace bool) (*scan.Result, *scan.Trace, error)
}

type engineScanner struct {
	engine *scan.Engine
	opts   scan.Options
}

func (e engineScanner) scan(buf *frame.Buffer, trace bool) (*scan.Result, *scan.Trace, error) {
	if trace {
		return e.engine.ScanTrace(buf, e.opts)
	}
	res, err := e.engine.Scan(buf, e.opts)
	return res, nil, err
}

type sessionScanner struct {
	session *scan.Session
}

func (s sessionScanner) scan(buf *frame.Buffer, trace bool) (*scan.Result, *scan.Trace, error) {
	if trace {
		return s.session.ScanFrameTrace(buf)
	}
	res, err := s.session.ScanFrame(buf)
	return res, nil, err
}

// loadFrame loads path and fits it to maxDim.
func loadFrame(path string, maxDim int) (*frame.Buffer, error) {
	if !frame.IsSupported(path) {
		return nil, fmt.Errorf("unsupported image format: %s", path)
	}
	buf, _, err := frame.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return frame.Fit(buf, maxDim), nil
}

// scanFrame fills item from one scan of buf.
func scanFrame(sc scanner, buf *frame.Buffer, item *Item, trace bool) error {
	item.Width, item.Height = buf.Width(), buf.Height()
	res, tr, err := sc.scan(buf, trace)
	if err != nil {
		return fmt.Errorf("scan failed for %s: %w", item.File, err)
	}
	item.Result, item.Trace = res, tr
	return nil
}
