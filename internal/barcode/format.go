package barcode

import (
	"fmt"
	"strings"
)

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatQR
	FormatDataMatrix
	FormatAztec
	// FormatPDF417 is recognised by name only; the ZXing backend has no reader for it.
	FormatPDF417
	FormatCode128
	FormatCode39
	FormatEAN8
	FormatEAN13
	FormatUPCA
	FormatUPCE
	FormatITF
	FormatCodabar
)

var formatNames = map[Format]string{
	FormatQR:         "qr",
	FormatDataMatrix: "datamatrix",
	FormatAztec:      "aztec",
	FormatPDF417:     "pdf417",
	FormatCode128:    "code128",
	FormatCode39:     "code39",
	FormatEAN8:       "ean8",
	FormatEAN13:      "ean13",
	FormatUPCA:       "upca",
	FormatUPCE:       "upce",
	FormatITF:        "itf",
	FormatCodabar:    "codabar",
}

var formatAliases = map[string]Format{
	"qrcode":          FormatQR,
	"qr-code":         FormatQR,
	"data-matrix":     FormatDataMatrix,
	"code-128":        FormatCode128,
	"code-39":         FormatCode39,
	"ean-8":           FormatEAN8,
	"ean-13":          FormatEAN13,
	"upc-a":           FormatUPCA,
	"upc-e":           FormatUPCE,
	"interleaved2of5": FormatITF,
	"i2/5":            FormatITF,
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return "unknown"
}

// ParseFormat resolves a symbology name such as "qr" or "ean-13".
func ParseFormat(s string) (Format, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	for f, name := range formatNames {
		if name == key {
			return f, true
		}
	}
	f, ok := formatAliases[key]
	return f, ok
}

// ParseFormats resolves a list of names, failing on the first unknown one.
func ParseFormats(names []string) ([]Format, error) {
	out := make([]Format, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		f, ok := ParseFormat(n)
		if !ok {
			return nil, fmt.Errorf("barcode: unknown format %q", n)
		}
		out = append(out, f)
	}
	return out, nil
}

// MarshalText renders the format name for JSON and YAML output.
func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText accepts any name ParseFormat does.
func (f *Format) UnmarshalText(b []byte) error {
	v, ok := ParseFormat(string(b))
	if !ok {
		return fmt.Errorf("barcode: unknown format %q", b)
	}
	*f = v
	return nil
}
