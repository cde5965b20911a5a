// Package barcode is the boundary to the single-shot optical code decoder.
//
// The scan engine never looks inside a decoder: it hands over one frame and a
// polarity mode and gets back either a Detection or ErrNotFound.
package barcode

import (
	"errors"
	"image"

	"github.com/MeKo-Tech/scanwell/internal/frame"
)

// ErrNotFound means the decoder saw no readable code. It is the expected
// outcome for most video frames.
var ErrNotFound = errors.New("barcode: no code found")

// Polarity selects which pixel interpretations a decode attempt searches.
type Polarity int

const (
	// PolaritySingle reads dark modules on a light background only.
	PolaritySingle Polarity = iota
	// PolarityBoth additionally tries the inverted interpretation.
	PolarityBoth
)

func (p Polarity) String() string {
	if p == PolarityBoth {
		return "both"
	}
	return "single"
}

// Point is an integer point in image coordinates.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Location is the geometry the decoder reported for a code: finder pattern
// centres or line end points, plus their bounding box.
type Location struct {
	Points []Point         `json:"points,omitempty" yaml:"points,omitempty"`
	BBox   image.Rectangle `json:"bbox" yaml:"bbox"`
}

// Detection is one decoded code.
type Detection struct {
	Text     string   `json:"text" yaml:"text"`
	Format   Format   `json:"format" yaml:"format"`
	Location Location `json:"location" yaml:"location"`
}

// Decoder decodes at most one code from a frame.
//
// Implementations return ErrNotFound (possibly wrapped) when nothing is
// readable. They must not search both polarities unless asked to.
type Decoder interface {
	Decode(buf *frame.Buffer, polarity Polarity) (*Detection, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(buf *frame.Buffer, polarity Polarity) (*Detection, error)

// Decode calls f.
func (f DecoderFunc) Decode(buf *frame.Buffer, polarity Polarity) (*Detection, error) {
	return f(buf, polarity)
}

// Options controls the ZXing decoder.
type Options struct {
	// Formats restricts the symbologies searched. Empty means all supported.
	Formats []Format

	// TryHarder trades speed for a more exhaustive search per attempt.
	TryHarder bool
}

func rectFromPoints(pts []Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	r := image.Rect(pts[0].X, pts[0].Y, pts[0].X+1, pts[0].Y+1)
	for _, p := range pts[1:] {
		r = r.Union(image.Rect(p.X, p.Y, p.X+1, p.Y+1))
	}
	return r
}
