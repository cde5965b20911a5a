package scan

import (
	"image/color"
	"testing"

	"github.com/MeKo-Tech/scanwell/internal/barcode"
	"github.com/MeKo-Tech/scanwell/internal/strategy"
	"github.com/MeKo-Tech/scanwell/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zxingEngine(t *testing.T) *Engine {
	t.Helper()
	d, err := barcode.NewZXing(barcode.Options{Formats: []barcode.Format{barcode.FormatQR}})
	require.NoError(t, err)
	e, err := NewEngine(d)
	require.NoError(t, err)
	return e
}

func TestZXingEngineReadsPlainCode(t *testing.T) {
	res, err := zxingEngine(t).Scan(testutil.QRFrame(t, "plain"), DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "plain", res.Payload)
	assert.Equal(t, strategy.Grayscale, res.Strategy)
	assert.Equal(t, barcode.FormatQR, res.Format)
}

func TestZXingEngineInvertedCodeNeedsFallback(t *testing.T) {
	res, tr, err := zxingEngine(t).ScanTrace(testutil.InvertedQRFrame(t, "inverted"), DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "inverted", res.Payload)
	assert.Equal(t, strategy.None, res.Strategy)
	assert.Len(t, tr.Attempts, len(strategy.List())+1)
}

func TestZXingEngineInvertStrategy(t *testing.T) {
	opts := Options{MaxAttempts: 1, Strategies: []strategy.Strategy{strategy.Invert}}
	res, err := zxingEngine(t).Scan(testutil.InvertedQRFrame(t, "flip"), opts)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, strategy.Invert, res.Strategy)
}

func TestZXingEngineBlankFrame(t *testing.T) {
	res, err := zxingEngine(t).Scan(testutil.BlankFrame(t, 200, 150, color.Gray{Y: 128}), DefaultOptions())
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestZXingSessionStream(t *testing.T) {
	s, err := NewSession(zxingEngine(t), DefaultOptions())
	require.NoError(t, err)

	for range 3 {
		res, err := s.ScanFrame(testutil.QRFrame(t, "stream"))
		require.NoError(t, err)
		require.NotNil(t, res)
	}
	stats := s.Stats()
	assert.Equal(t, 3, stats.FrameCount)
	assert.Equal(t, strategy.Grayscale, stats.LastSuccessful)
}
