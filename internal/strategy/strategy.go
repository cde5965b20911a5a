// Package strategy defines the catalog of pixel transforms the scan engine tries
// against a frame before handing it to the decoder.
//
// The catalog is ordered: List returns the canonical default order, which encodes
// which transforms are most likely to rescue a difficult frame, cheapest first.
// The reserved None value is not a transform; it labels results produced by the
// decoder's own search on the untransformed frame.
package strategy

import (
	"errors"
	"fmt"
)

// Strategy names a deterministic frame transform.
type Strategy string

// None is the sentinel for "no transform, let the decoder search on its own".
const None Strategy = "none"

// Default-order strategies.
const (
	Grayscale         Strategy = "grayscale"
	HistogramStretch  Strategy = "histogramStretch"
	ContrastBoost     Strategy = "contrastBoost"
	Sharpen           Strategy = "sharpen"
	OtsuThreshold     Strategy = "otsuThreshold"
	AdaptiveThreshold Strategy = "adaptiveThreshold"
	GammaDarken       Strategy = "gammaDarken"
)

// Extended strategies: registered and selectable by name, not tried by default.
const (
	Invert     Strategy = "invert"
	Denoise    Strategy = "denoise"
	Upscale    Strategy = "upscale"
	MorphClose Strategy = "morphClose"
)

// ErrUnknownStrategy is returned when a strategy is not in the catalog.
var ErrUnknownStrategy = errors.New("unknown strategy")

// TransformError reports a strategy that could not be applied to a frame.
type TransformError struct {
	Strategy Strategy
	Err      error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("strategy %s: %v", e.Strategy, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

func (s Strategy) String() string { return string(s) }
