package server

import (
	"bytes"
	"image/color"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/scanwell/internal/barcode"
	"github.com/MeKo-Tech/scanwell/internal/scan"
	"github.com/MeKo-Tech/scanwell/internal/strategy"
	"github.com/MeKo-Tech/scanwell/internal/testutil"
	"github.com/stretchr/testify/require"
)

// newTestServer builds a server around a QR-only ZXing engine.
func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()

	d, err := barcode.NewZXing(barcode.Options{Formats: []barcode.Format{barcode.FormatQR}})
	require.NoError(t, err)
	engine, err := scan.NewEngine(d)
	require.NoError(t, err)

	cfg := Config{
		CORSOrigin:  "*",
		MaxUploadMB: 5,
		TimeoutSec:  10,
		ScanOptions: scan.DefaultOptions(),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewServer(cfg, engine, strategy.Default())
	require.NoError(t, err)
	return s
}

// multipartRequest builds a POST with an "image" file part and extra fields.
func multipartRequest(t *testing.T, target string, image []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if image != nil {
		part, err := writer.CreateFormFile("image", "upload.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// blankUpload is a small PNG without any code.
func blankUpload(t *testing.T) []byte {
	t.Helper()
	return testutil.EncodePNG(t, testutil.BlankFrame(t, 40, 40, color.White))
}
