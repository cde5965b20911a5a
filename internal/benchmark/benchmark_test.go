package benchmark

import (
	"context"
	"image/color"
	"testing"
	"time"

	"github.com/MeKo-Tech/scanwell/internal/barcode"
	"github.com/MeKo-Tech/scanwell/internal/frame"
	"github.com/MeKo-Tech/scanwell/internal/scan"
	"github.com/MeKo-Tech/scanwell/internal/strategy"
	"github.com/MeKo-Tech/scanwell/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pixelDecoder reads "x" from any frame whose top-left pixel is dark. The
// bidirectional fallback only succeeds on frames exactly 10 pixels wide.
func pixelDecoder() barcode.Decoder {
	return barcode.DecoderFunc(func(buf *frame.Buffer, p barcode.Polarity) (*barcode.Detection, error) {
		if p == barcode.PolarityBoth {
			if buf.Width() == 10 {
				return &barcode.Detection{Text: "x", Format: barcode.FormatQR}, nil
			}
			return nil, barcode.ErrNotFound
		}
		if buf.At(0, 0).R < 128 {
			return &barcode.Detection{Text: "x", Format: barcode.FormatQR}, nil
		}
		return nil, barcode.ErrNotFound
	})
}

func newRunner(t *testing.T, iterations int) *Runner {
	t.Helper()
	engine, err := scan.NewEngine(pixelDecoder())
	require.NoError(t, err)
	r, err := NewRunner(engine, iterations)
	require.NoError(t, err)
	return r
}

func samples(t *testing.T) []Sample {
	t.Helper()
	return []Sample{
		{Name: "white", Frame: testutil.BlankFrame(t, 8, 8, color.White), Want: "x"},
		{Name: "black", Frame: testutil.BlankFrame(t, 10, 10, color.Black), Want: "x"},
		{Name: "wrong", Frame: testutil.BlankFrame(t, 8, 8, color.Black), Want: "y"},
	}
}

func TestNewRunnerValidation(t *testing.T) {
	_, err := NewRunner(nil, 1)
	require.Error(t, err)

	engine, err := scan.NewEngine(pixelDecoder())
	require.NoError(t, err)
	_, err = NewRunner(engine, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "iterations must be positive")
}

func TestRunStrategyCountsOnlyItsOwnDecodes(t *testing.T) {
	r := newRunner(t, 2)
	ctx := context.Background()

	gray := r.RunStrategy(ctx, strategy.Grayscale, samples(t))
	assert.Equal(t, "grayscale", gray.Name)
	assert.Equal(t, 1, gray.Decoded)
	assert.Equal(t, 1, gray.Mismatched)
	assert.Equal(t, []string{"black"}, gray.Solved)
	assert.Equal(t, 3, gray.Samples)
	assert.Equal(t, 2, gray.Iterations)
	assert.Empty(t, gray.Error)
	assert.InDelta(t, 1.0/3, gray.Rate(), 1e-9)

	inv := r.RunStrategy(ctx, strategy.Invert, samples(t))
	assert.Equal(t, 1, inv.Decoded)
	assert.Equal(t, 0, inv.Mismatched)
	assert.Equal(t, []string{"white"}, inv.Solved)
}

func TestRunBaseline(t *testing.T) {
	r := newRunner(t, 1)

	base := r.RunBaseline(context.Background(), samples(t))
	assert.Equal(t, Baseline, base.Name)
	assert.Equal(t, 1, base.Decoded)
	assert.Equal(t, []string{"black"}, base.Solved)
}

func TestRunAllAndRescued(t *testing.T) {
	r := newRunner(t, 1)

	results, err := r.RunAll(context.Background(), []strategy.Strategy{strategy.Grayscale, strategy.Invert}, samples(t))
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, Baseline, results[0].Name)
	assert.Equal(t, "grayscale", results[1].Name)
	assert.Equal(t, "invert", results[2].Name)

	rescued := Rescued(results)
	assert.Equal(t, map[string][]string{"invert": {"white"}}, rescued)

	ranked := Rank(results)
	require.Len(t, ranked, 2)
	for _, res := range ranked {
		assert.NotEqual(t, Baseline, res.Name)
	}
}

func TestRunAllCancelled(t *testing.T) {
	r := newRunner(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := r.RunAll(ctx, []strategy.Strategy{strategy.Grayscale}, samples(t))
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Error, "context canceled")
}

func TestRunReportsInvalidFrame(t *testing.T) {
	r := newRunner(t, 1)

	res := r.RunStrategy(context.Background(), strategy.Grayscale, []Sample{{Name: "nil"}})
	assert.Contains(t, res.Error, "nil")
	assert.Contains(t, res.String(), "ERROR")
}

func TestRankOrdersByDecodesThenSpeed(t *testing.T) {
	results := []StrategyResult{
		{Name: Baseline, Decoded: 9, Samples: 9, Iterations: 1},
		{Name: "slow", Decoded: 2, Samples: 4, Iterations: 1, Duration: 40 * time.Millisecond},
		{Name: "fast", Decoded: 2, Samples: 4, Iterations: 1, Duration: 4 * time.Millisecond},
		{Name: "best", Decoded: 3, Samples: 4, Iterations: 1, Duration: time.Second},
		{Name: "broken", Decoded: 4, Error: "boom"},
	}

	var names []string
	for _, r := range Rank(results) {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"best", "fast", "slow"}, names)
}

func TestStrategyResultFormatting(t *testing.T) {
	r := StrategyResult{Name: "sharpen", Decoded: 1, Samples: 2, Iterations: 2, Duration: 8 * time.Millisecond, AllocatedKB: 12}
	assert.Equal(t, 2*time.Millisecond, r.AvgDuration())
	assert.Equal(t, "sharpen: 1/2 decoded (50%), avg: 2ms, mem: +12 KB", r.String())

	var empty StrategyResult
	assert.Zero(t, empty.Rate())
	assert.Zero(t, empty.AvgDuration())
}

func TestGetMemoryStats(t *testing.T) {
	stats := GetMemoryStats()
	assert.Positive(t, stats.TotalAllocBytes)
	assert.Contains(t, stats.String(), "Alloc:")
}

func BenchmarkScanCleanQR(b *testing.B) {
	decoder, err := barcode.NewZXing(barcode.Options{Formats: []barcode.Format{barcode.FormatQR}})
	require.NoError(b, err)
	engine, err := scan.NewEngine(decoder)
	require.NoError(b, err)
	buf := testutil.QRFrame(b, "benchmark")
	opts := scan.DefaultOptions()

	b.ResetTimer()
	for b.Loop() {
		if _, err := engine.Scan(buf, opts); err != nil {
			b.Fatal(err)
		}
	}
}
