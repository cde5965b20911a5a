package scan

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/MeKo-Tech/scanwell/internal/barcode"
	"github.com/MeKo-Tech/scanwell/internal/frame"
	"github.com/MeKo-Tech/scanwell/internal/strategy"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanOnlyContrastBoostReadable(t *testing.T) {
	h := newHarness(strategy.ContrastBoost)

	res, err := h.engine(t).Scan(testBuffer(t), DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, payload, res.Payload)
	assert.Equal(t, strategy.ContrastBoost, res.Strategy)
	assert.Equal(t, barcode.FormatQR, res.Format)
	assert.Len(t, res.Location.Points, 3)

	want := []call{
		{strategy.Grayscale, barcode.PolaritySingle},
		{strategy.HistogramStretch, barcode.PolaritySingle},
		{strategy.ContrastBoost, barcode.PolaritySingle},
	}
	if diff := cmp.Diff(want, h.decodes); diff != "" {
		t.Errorf("decode calls mismatch (-want +got):\n%s", diff)
	}
}

func TestScanFallsBackToBidirectionalDecode(t *testing.T) {
	h := newHarness()
	h.fallback = true

	res, err := h.engine(t).Scan(testBuffer(t), DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, strategy.None, res.Strategy)
	assert.Equal(t, payload, res.Payload)

	require.Len(t, h.decodes, len(defaultOrder)+1)
	for _, c := range h.decodes[:len(defaultOrder)] {
		assert.Equal(t, barcode.PolaritySingle, c.Polarity, "strategy attempts must not search both polarities")
	}
	assert.Equal(t, call{strategy.None, barcode.PolarityBoth}, h.decodes[len(defaultOrder)])
}

func TestScanUndecodableIsAbsentNotError(t *testing.T) {
	h := newHarness()

	res, err := h.engine(t).Scan(testBuffer(t), DefaultOptions())
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Len(t, h.decodes, len(defaultOrder)+1)
}

func TestScanZeroAttemptsOnlyFallback(t *testing.T) {
	h := newHarness(defaultOrder...)

	res, err := h.engine(t).Scan(testBuffer(t), Options{MaxAttempts: 0})
	require.NoError(t, err)
	assert.Nil(t, res, "readable strategies must not be tried")
	assert.Empty(t, h.applied)
	assert.Equal(t, []call{{strategy.None, barcode.PolarityBoth}}, h.decodes)

	h.clearCalls()
	h.fallback = true
	res, err = h.engine(t).Scan(testBuffer(t), Options{MaxAttempts: 0})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, strategy.None, res.Strategy)
}

func TestScanTruncatesNotFilters(t *testing.T) {
	h := newHarness(strategy.OtsuThreshold) // fifth in the default order

	res, err := h.engine(t).Scan(testBuffer(t), Options{MaxAttempts: 3})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, defaultOrder[:3], h.applied)
}

func TestScanMaxAttemptsBeyondList(t *testing.T) {
	h := newHarness(strategy.GammaDarken)

	res, err := h.engine(t).Scan(testBuffer(t), Options{MaxAttempts: 50})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, strategy.GammaDarken, res.Strategy)
	assert.Equal(t, defaultOrder, h.applied)
}

func TestScanIsolatesFailingTransforms(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
	}{
		{"error", func(h *harness) { h.failing[strategy.HistogramStretch] = true }},
		{"panic", func(h *harness) { h.panicking[strategy.HistogramStretch] = true }},
		{"decoder error", func(h *harness) { h.decodeErr[strategy.HistogramStretch] = errors.New("decoder exploded") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(strategy.Sharpen, strategy.HistogramStretch)
			tt.setup(h)

			res, err := h.engine(t).Scan(testBuffer(t), DefaultOptions())
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.Equal(t, strategy.Sharpen, res.Strategy)
		})
	}
}

func TestScanIsolatesUnknownStrategy(t *testing.T) {
	h := newHarness(strategy.Sharpen)
	opts := Options{MaxAttempts: 3, Strategies: []strategy.Strategy{"sepia", strategy.Sharpen}}

	res, err := h.engine(t).Scan(testBuffer(t), opts)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, strategy.Sharpen, res.Strategy)
	assert.Equal(t, []strategy.Strategy{"sepia", strategy.Sharpen}, h.applied)
}

func TestScanWithRealCatalogIsolatesUnknownStrategy(t *testing.T) {
	h := newHarness()
	h.fallback = true
	e, err := NewEngine(h)
	require.NoError(t, err)

	res, tr, err := e.ScanTrace(testBuffer(t), Options{MaxAttempts: 2, Strategies: []strategy.Strategy{"sepia", strategy.Grayscale}})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, strategy.None, res.Strategy)
	require.Len(t, tr.Attempts, 3)
	assert.Equal(t, OutcomeTransformError, tr.Attempts[0].Outcome)
	assert.Contains(t, tr.Attempts[0].Error, "unknown strategy")
	assert.Equal(t, OutcomeNotFound, tr.Attempts[1].Outcome)
	assert.True(t, tr.Attempts[2].Fallback)
}

func TestScanMemoizedNoneCandidate(t *testing.T) {
	h := newHarness()
	h.rawReadable = true

	res, err := h.engine(t).Scan(testBuffer(t), Options{MaxAttempts: 2, Strategies: []strategy.Strategy{strategy.None, strategy.Grayscale}})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, strategy.None, res.Strategy)
	assert.Empty(t, h.applied, "none is decoded without a transform")
	assert.Equal(t, []call{{strategy.None, barcode.PolaritySingle}}, h.decodes)
}

func TestScanRejectsInvalidInput(t *testing.T) {
	h := newHarness()
	e := h.engine(t)

	_, err := e.Scan(testBuffer(t), Options{MaxAttempts: -1})
	require.ErrorIs(t, err, ErrInvalidOptions)

	_, err = e.Scan(testBuffer(t), Options{MaxAttempts: 3, Strategies: []strategy.Strategy{strategy.Sharpen, strategy.Sharpen}})
	require.ErrorIs(t, err, ErrInvalidOptions)

	_, err = e.Scan(nil, DefaultOptions())
	require.ErrorIs(t, err, ErrInvalidFrame)

	require.NotPanics(t, func() { _, err = e.Scan(&frame.Buffer{}, DefaultOptions()) })
	require.ErrorIs(t, err, ErrInvalidFrame)

	assert.Empty(t, h.decodes, "invalid input must fail before any decode")
}

func TestNewEngineRequiresDecoder(t *testing.T) {
	_, err := NewEngine(nil)
	assert.Error(t, err)

	_, err = NewEngine(newHarness(), WithCatalog(nil))
	assert.Error(t, err)
}

func TestScanTraceRecordsAttempts(t *testing.T) {
	h := newHarness(strategy.Sharpen)
	h.failing[strategy.HistogramStretch] = true

	res, tr, err := h.engine(t).ScanTrace(testBuffer(t), DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NotNil(t, tr)

	assert.Equal(t, defaultOrder, tr.Candidates)
	got := make([]Outcome, len(tr.Attempts))
	for i, a := range tr.Attempts {
		got[i] = a.Outcome
	}
	assert.Equal(t, []Outcome{OutcomeNotFound, OutcomeTransformError, OutcomeNotFound, OutcomeDecoded}, got)
	assert.Contains(t, tr.Attempts[1].Error, "malformed input")
	assert.Positive(t, tr.Duration)
}

func TestScanDebugTracingDoesNotChangeOutcome(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	run := func(debug bool) *Result {
		h := newHarness(strategy.OtsuThreshold)
		h.failing[strategy.Grayscale] = true
		e, err := NewEngine(h, WithCatalog(h), WithLogger(logger))
		require.NoError(t, err)
		opts := DefaultOptions()
		opts.Debug = debug
		res, err := e.Scan(testBuffer(t), opts)
		require.NoError(t, err)
		return res
	}

	quiet := run(false)
	assert.Empty(t, logs.String())

	loud := run(true)
	assert.Equal(t, quiet, loud)
	assert.Equal(t, 5, strings.Count(logs.String(), "scan attempt"))
	assert.Contains(t, logs.String(), "transform_error")
	assert.Contains(t, logs.String(), "scan finished")
}

func TestCandidates(t *testing.T) {
	e := newHarness().engine(t)

	assert.Equal(t, defaultOrder[:2], e.Candidates(Options{MaxAttempts: 2}))
	assert.Empty(t, e.Candidates(Options{}))
	custom := []strategy.Strategy{strategy.Sharpen, strategy.Grayscale}
	assert.Equal(t, custom, e.Candidates(Options{MaxAttempts: 7, Strategies: custom}))

	// The returned slice never aliases the options.
	got := e.Candidates(Options{MaxAttempts: 7, Strategies: custom})
	got[0] = "tampered"
	assert.Equal(t, strategy.Sharpen, custom[0])
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())
	assert.NoError(t, Options{}.Validate())
	assert.ErrorIs(t, Options{MaxAttempts: -3}.Validate(), ErrInvalidOptions)
	assert.ErrorIs(t, Options{MaxAttempts: 1, Strategies: []strategy.Strategy{""}}.Validate(), ErrInvalidOptions)
	assert.Equal(t, DefaultMaxAttempts, DefaultOptions().MaxAttempts)
}
