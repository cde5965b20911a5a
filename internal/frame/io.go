package frame

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxPixels caps the decoded size of an image. Dimensions are checked from the
// header before any pixel data is decoded, so a small, highly compressed file
// cannot expand into gigabytes of memory.
const MaxPixels = 40_000_000

// ErrTooLarge is returned for images whose header exceeds MaxPixels.
var ErrTooLarge = errors.New("frame: image too large")

// SupportedExtensions lists file extensions Load accepts.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".webp"}

// IsSupported reports whether the path has a supported image extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Metadata captures lightweight file and pixel information.
type Metadata struct {
	Path      string `json:"path" yaml:"path"`
	Format    string `json:"format" yaml:"format"`
	SizeBytes int64  `json:"size_bytes" yaml:"size_bytes"`
	Width     int    `json:"width" yaml:"width"`
	Height    int    `json:"height" yaml:"height"`
}

// Decode reads an encoded image (PNG, JPEG, BMP, TIFF, WebP) into a Buffer.
// Images larger than MaxPixels are rejected with ErrTooLarge.
func Decode(r io.Reader) (*Buffer, string, error) {
	var header bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		return nil, "", &Error{Operation: "decode", Err: err}
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, "", &Error{
			Operation: "decode",
			Err:       fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, MaxPixels),
		}
	}

	img, format, err := image.Decode(io.MultiReader(&header, r))
	if err != nil {
		return nil, "", &Error{Operation: "decode", Err: err}
	}
	buf, err := New(img)
	if err != nil {
		return nil, "", err
	}
	return buf, format, nil
}

// Load opens and decodes an image file.
func Load(path string) (*Buffer, Metadata, error) {
	if path == "" {
		return nil, Metadata{}, &Error{Operation: "load", Err: errors.New("empty path")}
	}
	if !IsSupported(path) {
		return nil, Metadata{}, &Error{Operation: "load", Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}

	f, err := os.Open(path) //nolint:gosec // G304: reading a user-provided image path is expected
	if err != nil {
		return nil, Metadata{}, &Error{Operation: "load", Err: err}
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, Metadata{}, &Error{Operation: "load", Err: err}
	}

	buf, format, err := Decode(f)
	if err != nil {
		return nil, Metadata{}, err
	}

	return buf, Metadata{
		Path:      path,
		Format:    format,
		SizeBytes: fi.Size(),
		Width:     buf.Width(),
		Height:    buf.Height(),
	}, nil
}

// Fit scales b down so neither side exceeds maxDim, preserving aspect ratio.
// Smaller frames decode faster; buffers already within bounds are returned as is.
func Fit(b *Buffer, maxDim int) *Buffer {
	if b.Empty() || maxDim <= 0 || (b.Width() <= maxDim && b.Height() <= maxDim) {
		return b
	}
	return &Buffer{img: imaging.Fit(b.img, maxDim, maxDim, imaging.Lanczos)}
}
