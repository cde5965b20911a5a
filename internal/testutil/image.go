package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/scanwell/internal/frame"
	"github.com/disintegration/imaging"
	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/require"
)

// QRConfig describes a synthetic QR code image.
type QRConfig struct {
	Text       string
	ModuleSize int // pixels per module
	QuietZone  int // modules of light border on each side
	Dark       color.NRGBA
	Light      color.NRGBA
}

// DefaultQRConfig returns a crisp black-on-white code for text.
func DefaultQRConfig(text string) QRConfig {
	return QRConfig{
		Text:       text,
		ModuleSize: 4,
		QuietZone:  4,
		Dark:       color.NRGBA{0, 0, 0, 255},
		Light:      color.NRGBA{255, 255, 255, 255},
	}
}

// GenerateQR renders a QR code with the gozxing writer.
func GenerateQR(cfg QRConfig) (*image.NRGBA, error) {
	if cfg.ModuleSize <= 0 {
		return nil, fmt.Errorf("module size must be positive, got %d", cfg.ModuleSize)
	}
	hints := map[gozxing.EncodeHintType]interface{}{
		gozxing.EncodeHintType_MARGIN: 0,
	}
	matrix, err := qrcode.NewQRCodeWriter().Encode(cfg.Text, gozxing.BarcodeFormat_QR_CODE, 0, 0, hints)
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", cfg.Text, err)
	}

	mw, mh := matrix.GetWidth(), matrix.GetHeight()
	border := cfg.QuietZone * cfg.ModuleSize
	img := image.NewNRGBA(image.Rect(0, 0, mw*cfg.ModuleSize+2*border, mh*cfg.ModuleSize+2*border))
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetNRGBA(x, y, cfg.Light)
		}
	}
	for my := range mh {
		for mx := range mw {
			if !matrix.Get(mx, my) {
				continue
			}
			for dy := range cfg.ModuleSize {
				for dx := range cfg.ModuleSize {
					img.SetNRGBA(border+mx*cfg.ModuleSize+dx, border+my*cfg.ModuleSize+dy, cfg.Dark)
				}
			}
		}
	}
	return img, nil
}

// QRFrame returns a default QR code for text as a frame.
func QRFrame(t testing.TB, text string) *frame.Buffer {
	t.Helper()
	return QRFrameWith(t, DefaultQRConfig(text))
}

// QRFrameWith renders cfg as a frame.
func QRFrameWith(t testing.TB, cfg QRConfig) *frame.Buffer {
	t.Helper()

	img, err := GenerateQR(cfg)
	require.NoError(t, err)
	buf, err := frame.Wrap(img)
	require.NoError(t, err)
	return buf
}

// InvertedQRFrame returns a light-on-dark code that only a polarity-aware
// decode can read.
func InvertedQRFrame(t testing.TB, text string) *frame.Buffer {
	t.Helper()

	cfg := DefaultQRConfig(text)
	cfg.Dark, cfg.Light = cfg.Light, cfg.Dark
	return QRFrameWith(t, cfg)
}

// BlankFrame returns a uniform frame without any code.
func BlankFrame(t testing.TB, width, height int, c color.Color) *frame.Buffer {
	t.Helper()

	buf, err := frame.Wrap(imaging.New(width, height, c))
	require.NoError(t, err)
	return buf
}

// SaveImage writes img to path; the format follows the extension.
func SaveImage(t testing.TB, img image.Image, path string) {
	t.Helper()

	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)
	require.NoError(t, imaging.Save(img, path), "Failed to save image %s", path)
}

// WriteFrames saves each frame as dir/frame_NNN.png and returns the paths in order.
func WriteFrames(t testing.TB, dir string, frames ...*frame.Buffer) []string {
	t.Helper()

	paths := make([]string, 0, len(frames))
	for i, f := range frames {
		p := filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i))
		SaveImage(t, f.Image(), p)
		paths = append(paths, p)
	}
	return paths
}

// PNGHeaderWithSize returns a tiny PNG whose header claims width x height
// pixels. Only the header is valid at that size, which is all a dimension
// check reads.
func PNGHeaderWithSize(t testing.TB, width, height uint32) []byte {
	t.Helper()

	var out bytes.Buffer
	require.NoError(t, imaging.Encode(&out, image.NewNRGBA(image.Rect(0, 0, 1, 1)), imaging.PNG))
	data := out.Bytes()
	// Signature (8), IHDR length (4) and type (4), then width and height.
	binary.BigEndian.PutUint32(data[16:20], width)
	binary.BigEndian.PutUint32(data[20:24], height)
	// The IHDR CRC covers the chunk type and its 13 data bytes.
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

// EncodePNG returns buf encoded as PNG, the way a client would upload it.
func EncodePNG(t testing.TB, buf *frame.Buffer) []byte {
	t.Helper()

	var out bytes.Buffer
	require.NoError(t, imaging.Encode(&out, buf.Image(), imaging.PNG))
	return out.Bytes()
}
