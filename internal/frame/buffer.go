// Package frame holds the immutable pixel buffers the scan engine works on.
//
// A Buffer is a snapshot of one video frame (or a region of it). Nothing in the
// module mutates a Buffer after construction: every transform produces a new one,
// so many strategies can be tried against the same source without interference.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ErrEmpty is returned when a buffer would have no pixels.
var ErrEmpty = errors.New("frame: empty buffer")

// Error describes a failure while building or loading a frame.
type Error struct {
	Operation string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("frame error in %s: %v", e.Operation, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Buffer is an immutable NRGBA pixel grid anchored at the origin.
type Buffer struct {
	img *image.NRGBA
}

// New copies img into a fresh Buffer.
func New(img image.Image) (*Buffer, error) {
	if img == nil {
		return nil, &Error{Operation: "new", Err: errors.New("input image is nil")}
	}
	if img.Bounds().Empty() {
		return nil, &Error{Operation: "new", Err: ErrEmpty}
	}
	return &Buffer{img: imaging.Clone(img)}, nil
}

// Wrap takes ownership of img without copying when it is already compact and
// origin-anchored. The caller must not modify img afterwards.
func Wrap(img *image.NRGBA) (*Buffer, error) {
	if img == nil {
		return nil, &Error{Operation: "wrap", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, &Error{Operation: "wrap", Err: ErrEmpty}
	}
	if b.Min != (image.Point{}) || img.Stride != 4*b.Dx() {
		return &Buffer{img: imaging.Clone(img)}, nil
	}
	return &Buffer{img: img}, nil
}

// FromRGBA builds a Buffer from tightly packed, non-premultiplied RGBA bytes,
// the layout browsers hand out for canvas ImageData.
func FromRGBA(pix []byte, width, height int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, &Error{Operation: "rgba", Err: fmt.Errorf("invalid dimensions %dx%d", width, height)}
	}
	if len(pix) != 4*width*height {
		return nil, &Error{
			Operation: "rgba",
			Err:       fmt.Errorf("pixel data length %d does not match %dx%d", len(pix), width, height),
		}
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, pix)
	return &Buffer{img: img}, nil
}

// FromGray expands a luminance plane into an opaque grey Buffer.
func FromGray(lum []uint8, width, height int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, &Error{Operation: "gray", Err: fmt.Errorf("invalid dimensions %dx%d", width, height)}
	}
	if len(lum) != width*height {
		return nil, &Error{
			Operation: "gray",
			Err:       fmt.Errorf("luminance length %d does not match %dx%d", len(lum), width, height),
		}
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, v := range lum {
		o := i * 4
		img.Pix[o] = v
		img.Pix[o+1] = v
		img.Pix[o+2] = v
		img.Pix[o+3] = 0xff
	}
	return &Buffer{img: img}, nil
}

// Empty reports whether b has no pixels. A nil or zero-value Buffer is empty.
func (b *Buffer) Empty() bool {
	return b == nil || b.img == nil || b.img.Bounds().Empty()
}

// Width returns the buffer width in pixels.
func (b *Buffer) Width() int { return b.img.Bounds().Dx() }

// Height returns the buffer height in pixels.
func (b *Buffer) Height() int { return b.img.Bounds().Dy() }

// Bounds returns the pixel rectangle, always anchored at the origin.
func (b *Buffer) Bounds() image.Rectangle { return b.img.Bounds() }

// Image exposes the pixels for read-only consumers such as decoders and encoders.
func (b *Buffer) Image() image.Image { return b.img }

// At returns the colour at (x, y).
func (b *Buffer) At(x, y int) color.NRGBA { return b.img.NRGBAAt(x, y) }

// Gray returns a freshly allocated BT.601 luminance plane, row-major.
// Alpha is ignored; frames coming from cameras are opaque.
func (b *Buffer) Gray() []uint8 {
	w, h := b.Width(), b.Height()
	out := make([]uint8, w*h)
	for i := range out {
		o := i * 4
		r := uint32(b.img.Pix[o])
		g := uint32(b.img.Pix[o+1])
		bl := uint32(b.img.Pix[o+2])
		out[i] = uint8((299*r + 587*g + 114*bl + 500) / 1000) //nolint:gosec // G115: weighted mean of bytes fits in a byte
	}
	return out
}

// Equal reports whether two buffers hold bit-identical pixels.
func (b *Buffer) Equal(o *Buffer) bool {
	if b == nil || o == nil {
		return b == o
	}
	return b.Bounds() == o.Bounds() && bytes.Equal(b.img.Pix, o.img.Pix)
}
