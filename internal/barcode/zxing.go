package barcode

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/scanwell/internal/frame"
	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/aztec"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// zxingReaders lists the supported symbologies in search order: 2D first,
// since a 1D reader can occasionally misread a matrix code's timing pattern.
var zxingReaders = []struct {
	format Format
	zxing  gozxing.BarcodeFormat
	reader func() gozxing.Reader
}{
	{FormatQR, gozxing.BarcodeFormat_QR_CODE, func() gozxing.Reader { return qrcode.NewQRCodeReader() }},
	{FormatDataMatrix, gozxing.BarcodeFormat_DATA_MATRIX, func() gozxing.Reader { return datamatrix.NewDataMatrixReader() }},
	{FormatAztec, gozxing.BarcodeFormat_AZTEC, func() gozxing.Reader { return aztec.NewAztecReader() }},
	{FormatCode128, gozxing.BarcodeFormat_CODE_128, func() gozxing.Reader { return oned.NewCode128Reader() }},
	{FormatCode39, gozxing.BarcodeFormat_CODE_39, func() gozxing.Reader { return oned.NewCode39Reader() }},
	{FormatEAN13, gozxing.BarcodeFormat_EAN_13, func() gozxing.Reader { return oned.NewEAN13Reader() }},
	{FormatEAN8, gozxing.BarcodeFormat_EAN_8, func() gozxing.Reader { return oned.NewEAN8Reader() }},
	{FormatUPCA, gozxing.BarcodeFormat_UPC_A, func() gozxing.Reader { return oned.NewUPCAReader() }},
	{FormatUPCE, gozxing.BarcodeFormat_UPC_E, func() gozxing.Reader { return oned.NewUPCEReader() }},
	{FormatITF, gozxing.BarcodeFormat_ITF, func() gozxing.Reader { return oned.NewITFReader() }},
	{FormatCodabar, gozxing.BarcodeFormat_CODABAR, func() gozxing.Reader { return oned.NewCodaBarReader() }},
}

// SupportedFormats returns the symbologies the ZXing decoder can read, in search order.
func SupportedFormats() []Format {
	out := make([]Format, len(zxingReaders))
	for i, r := range zxingReaders {
		out[i] = r.format
	}
	return out
}

func formatFromZXing(bf gozxing.BarcodeFormat) Format {
	for _, r := range zxingReaders {
		if r.zxing == bf {
			return r.format
		}
	}
	return FormatUnknown
}

// ZXing decodes frames with the gozxing port of ZXing.
//
// Readers are constructed per call, so a single ZXing value can be shared by
// concurrent scans.
type ZXing struct {
	formats   []Format
	tryHarder bool
}

// NewZXing returns a decoder restricted to opts.Formats.
func NewZXing(opts Options) (*ZXing, error) {
	formats := opts.Formats
	if len(formats) == 0 {
		formats = SupportedFormats()
	}
	seen := make(map[Format]bool, len(formats))
	for _, f := range formats {
		if formatIndex(f) < 0 {
			return nil, fmt.Errorf("barcode: format %s is not supported", f)
		}
		if seen[f] {
			return nil, fmt.Errorf("barcode: format %s listed twice", f)
		}
		seen[f] = true
	}
	// Keep the canonical search order regardless of how formats were listed.
	ordered := make([]Format, 0, len(formats))
	for _, r := range zxingReaders {
		if seen[r.format] {
			ordered = append(ordered, r.format)
		}
	}
	return &ZXing{formats: ordered, tryHarder: opts.TryHarder}, nil
}

// Formats returns the symbologies this decoder searches.
func (z *ZXing) Formats() []Format {
	out := make([]Format, len(z.formats))
	copy(out, z.formats)
	return out
}

// Decode implements Decoder.
func (z *ZXing) Decode(buf *frame.Buffer, polarity Polarity) (*Detection, error) {
	if buf.Empty() {
		return nil, frame.ErrEmpty
	}
	src := gozxing.NewLuminanceSourceFromImage(buf.Image())

	det, err := z.decodeSource(src)
	if err == nil || polarity != PolarityBoth || !errors.Is(err, ErrNotFound) {
		return det, err
	}
	return z.decodeSource(src.Invert())
}

func (z *ZXing) decodeSource(src gozxing.LuminanceSource) (*Detection, error) {
	bmp, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(src))
	if err != nil {
		return nil, fmt.Errorf("barcode: binarize: %w", err)
	}

	var lastErr error
	for _, f := range z.formats {
		reader := zxingReaders[formatIndex(f)].reader()
		res, err := reader.Decode(bmp, z.hints())
		if err != nil {
			// NotFound, Format and Checksum exceptions all mean "not readable here".
			lastErr = err
			continue
		}
		return toDetection(res), nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, lastErr)
	}
	return nil, ErrNotFound
}

func (z *ZXing) hints() map[gozxing.DecodeHintType]interface{} {
	hints := make(map[gozxing.DecodeHintType]interface{}, 1)
	if z.tryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	return hints
}

func formatIndex(f Format) int {
	for i, r := range zxingReaders {
		if r.format == f {
			return i
		}
	}
	return -1
}

func toDetection(r *gozxing.Result) *Detection {
	var points []Point
	if pts := r.GetResultPoints(); len(pts) > 0 {
		points = make([]Point, 0, len(pts))
		for _, p := range pts {
			points = append(points, Point{X: int(p.GetX()), Y: int(p.GetY())})
		}
	}
	return &Detection{
		Text:   r.GetText(),
		Format: formatFromZXing(r.GetBarcodeFormat()),
		Location: Location{
			Points: points,
			BBox:   rectFromPoints(points),
		},
	}
}
