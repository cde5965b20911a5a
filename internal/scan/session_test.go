package scan

import (
	"testing"

	"github.com/MeKo-Tech/scanwell/internal/barcode"
	"github.com/MeKo-Tech/scanwell/internal/strategy"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, h *harness, opts Options) *Session {
	t.Helper()
	s, err := NewSession(h.engine(t), opts)
	require.NoError(t, err)
	return s
}

func TestSessionLocality(t *testing.T) {
	h := newHarness(strategy.OtsuThreshold)
	s := newTestSession(t, h, DefaultOptions())

	for frame := 1; frame <= fullSweepInterval; frame++ {
		h.clearCalls()
		res, err := s.ScanFrame(testBuffer(t))
		require.NoError(t, err)
		require.NotNil(t, res, "frame %d", frame)
		assert.Equal(t, strategy.OtsuThreshold, res.Strategy)

		switch frame {
		case 1, fullSweepInterval:
			assert.Equal(t, defaultOrder[:5], h.decodeOrder(), "frame %d walks the default order", frame)
		default:
			assert.Equal(t, []strategy.Strategy{strategy.OtsuThreshold}, h.decodeOrder(), "frame %d tries the memo first", frame)
		}
	}
	assert.Equal(t, fullSweepInterval, s.Stats().FrameCount)
}

func TestSessionResilience(t *testing.T) {
	h := newHarness(strategy.Sharpen)
	s := newTestSession(t, h, DefaultOptions())

	for range 3 {
		_, err := s.ScanFrame(testBuffer(t))
		require.NoError(t, err)
	}

	h.setReadable()
	res, err := s.ScanFrame(testBuffer(t))
	require.NoError(t, err)
	assert.Nil(t, res)

	stats := s.Stats()
	assert.Equal(t, 4, stats.FrameCount)
	assert.True(t, stats.Warm)
	assert.Equal(t, strategy.Sharpen, stats.LastSuccessful)

	h.setReadable(strategy.Sharpen)
	h.clearCalls()
	res, err = s.ScanFrame(testBuffer(t))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []strategy.Strategy{strategy.Sharpen}, h.decodeOrder())
}

func TestSessionResetMatchesFreshSession(t *testing.T) {
	fresh := newHarness()
	freshSession := newTestSession(t, fresh, DefaultOptions())
	_, err := freshSession.ScanFrame(testBuffer(t))
	require.NoError(t, err)

	h := newHarness(strategy.GammaDarken)
	s := newTestSession(t, h, DefaultOptions())
	for range 4 {
		_, err := s.ScanFrame(testBuffer(t))
		require.NoError(t, err)
	}
	require.True(t, s.Stats().Warm)

	s.Reset()
	assert.Equal(t, Stats{}, s.Stats())

	h.setReadable()
	h.clearCalls()
	res, err := s.ScanFrame(testBuffer(t))
	require.NoError(t, err)
	assert.Nil(t, res)
	if diff := cmp.Diff(fresh.decodes, h.decodes); diff != "" {
		t.Errorf("reset session differs from a fresh one (-fresh +reset):\n%s", diff)
	}
	assert.Equal(t, 1, s.Stats().FrameCount)
}

func TestSessionMemoizesNone(t *testing.T) {
	h := newHarness()
	h.fallback = true
	s := newTestSession(t, h, DefaultOptions())

	res, err := s.ScanFrame(testBuffer(t))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, strategy.None, res.Strategy)
	assert.Equal(t, strategy.None, s.Stats().LastSuccessful)

	next := s.Candidates()
	assert.Equal(t, strategy.None, next[0])
	assert.Equal(t, defaultOrder, next[1:])

	h.clearCalls()
	h.rawReadable = true
	res, err = s.ScanFrame(testBuffer(t))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, strategy.None, res.Strategy)
	assert.Equal(t, []call{{strategy.None, barcode.PolaritySingle}}, h.decodes)
}

func TestSessionWarmCandidatesHaveNoDuplicates(t *testing.T) {
	h := newHarness(strategy.AdaptiveThreshold)
	s := newTestSession(t, h, DefaultOptions())

	assert.Equal(t, defaultOrder, s.Candidates(), "cold session uses the default order")

	_, err := s.ScanFrame(testBuffer(t))
	require.NoError(t, err)

	want := []strategy.Strategy{
		strategy.AdaptiveThreshold,
		strategy.Grayscale,
		strategy.HistogramStretch,
		strategy.ContrastBoost,
		strategy.Sharpen,
		strategy.OtsuThreshold,
		strategy.GammaDarken,
	}
	if diff := cmp.Diff(want, s.Candidates()); diff != "" {
		t.Errorf("warm candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionSweepFrameIgnoresMemo(t *testing.T) {
	h := newHarness(strategy.GammaDarken)
	s := newTestSession(t, h, DefaultOptions())

	for range fullSweepInterval - 1 {
		_, err := s.ScanFrame(testBuffer(t))
		require.NoError(t, err)
	}
	assert.Equal(t, defaultOrder, s.Candidates(), "the tenth frame is a full sweep")

	_, err := s.ScanFrame(testBuffer(t))
	require.NoError(t, err)
	assert.Equal(t, strategy.GammaDarken, s.Candidates()[0], "frame 11 is warm again")
}

func TestSessionCustomStrategies(t *testing.T) {
	h := newHarness(strategy.Sharpen)
	custom := []strategy.Strategy{strategy.Grayscale, strategy.Sharpen}
	s := newTestSession(t, h, Options{MaxAttempts: 2, Strategies: custom})

	_, err := s.ScanFrame(testBuffer(t))
	require.NoError(t, err)
	assert.Equal(t, []strategy.Strategy{strategy.Sharpen, strategy.Grayscale}, s.Candidates())

	// The session keeps its own copy of the options.
	custom[0] = "tampered"
	assert.Equal(t, strategy.Grayscale, s.Options().Strategies[0])
}

func TestSessionAttemptsTruncatesToMaxAttempts(t *testing.T) {
	h := newHarness(strategy.Sharpen)
	custom := []strategy.Strategy{strategy.Invert, strategy.Grayscale, strategy.Sharpen}
	s := newTestSession(t, h, Options{MaxAttempts: 1, Strategies: custom})

	assert.Equal(t, custom, s.Candidates())
	assert.Equal(t, []strategy.Strategy{strategy.Invert}, s.Attempts())

	zero := newTestSession(t, h, Options{MaxAttempts: 0})
	assert.Empty(t, zero.Attempts())

	wide := newTestSession(t, h, Options{MaxAttempts: 20, Strategies: custom})
	assert.Equal(t, custom, wide.Attempts())
}

func TestSessionCountsFailedAndInvalidFrames(t *testing.T) {
	h := newHarness()
	s := newTestSession(t, h, DefaultOptions())

	_, err := s.ScanFrame(testBuffer(t))
	require.NoError(t, err)
	_, err = s.ScanFrame(nil)
	require.ErrorIs(t, err, ErrInvalidFrame)

	assert.Equal(t, 2, s.Stats().FrameCount)
	assert.False(t, s.Stats().Warm)
}

func TestSessionTrace(t *testing.T) {
	h := newHarness(strategy.ContrastBoost)
	s := newTestSession(t, h, DefaultOptions())

	res, tr, err := s.ScanFrameTrace(testBuffer(t))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Len(t, tr.Attempts, 3)

	_, tr, err = s.ScanFrameTrace(testBuffer(t))
	require.NoError(t, err)
	assert.Equal(t, strategy.ContrastBoost, tr.Candidates[0])
	assert.Len(t, tr.Attempts, 1)
}

func TestNewSessionValidates(t *testing.T) {
	h := newHarness()
	_, err := NewSession(nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrNoEngine)

	_, err = NewSession(h.engine(t), Options{MaxAttempts: -1})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = NewSession(h.engine(t), Options{MaxAttempts: 2, Strategies: []strategy.Strategy{strategy.Sharpen, strategy.Sharpen}})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}
