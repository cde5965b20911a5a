package scan

import (
	"errors"
	"testing"

	"github.com/MeKo-Tech/scanwell/internal/barcode"
	"github.com/MeKo-Tech/scanwell/internal/frame"
	"github.com/MeKo-Tech/scanwell/internal/strategy"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// call is one decoder invocation as seen by the harness.
type call struct {
	Strategy strategy.Strategy
	Polarity barcode.Polarity
}

// harness is a scripted catalog and decoder in one. Transformed frames are
// tagged with the strategy that produced them, so the decoder can answer
// according to which strategies are marked readable.
type harness struct {
	order []strategy.Strategy

	readable    map[strategy.Strategy]bool
	fallback    bool // untransformed frame decodes with PolarityBoth
	rawReadable bool // untransformed frame decodes with PolaritySingle
	failing     map[strategy.Strategy]bool
	panicking   map[strategy.Strategy]bool
	decodeErr   map[strategy.Strategy]error

	produced map[*frame.Buffer]strategy.Strategy
	applied  []strategy.Strategy
	decodes  []call
}

const payload = "X"

var defaultOrder = []strategy.Strategy{
	strategy.Grayscale,
	strategy.HistogramStretch,
	strategy.ContrastBoost,
	strategy.Sharpen,
	strategy.OtsuThreshold,
	strategy.AdaptiveThreshold,
	strategy.GammaDarken,
}

func newHarness(readable ...strategy.Strategy) *harness {
	h := &harness{
		order:     append([]strategy.Strategy(nil), defaultOrder...),
		readable:  make(map[strategy.Strategy]bool),
		failing:   make(map[strategy.Strategy]bool),
		panicking: make(map[strategy.Strategy]bool),
		decodeErr: make(map[strategy.Strategy]error),
		produced:  make(map[*frame.Buffer]strategy.Strategy),
	}
	h.setReadable(readable...)
	return h
}

func (h *harness) setReadable(ss ...strategy.Strategy) {
	h.readable = make(map[strategy.Strategy]bool, len(ss))
	for _, s := range ss {
		h.readable[s] = true
	}
}

func (h *harness) List() []strategy.Strategy {
	return append([]strategy.Strategy(nil), h.order...)
}

func (h *harness) Apply(buf *frame.Buffer, s strategy.Strategy) (*frame.Buffer, error) {
	h.applied = append(h.applied, s)
	known := false
	for _, o := range h.order {
		known = known || o == s
	}
	switch {
	case !known:
		return nil, &strategy.TransformError{Strategy: s, Err: strategy.ErrUnknownStrategy}
	case h.panicking[s]:
		panic("transform blew up on " + string(s))
	case h.failing[s]:
		return nil, &strategy.TransformError{Strategy: s, Err: errors.New("malformed input")}
	}
	out, err := frame.New(buf.Image())
	if err != nil {
		return nil, err
	}
	h.produced[out] = s
	return out, nil
}

func (h *harness) Decode(buf *frame.Buffer, p barcode.Polarity) (*barcode.Detection, error) {
	s, transformed := h.produced[buf]
	if !transformed {
		s = strategy.None
	}
	h.decodes = append(h.decodes, call{Strategy: s, Polarity: p})

	if err := h.decodeErr[s]; err != nil {
		return nil, err
	}
	ok := h.readable[s]
	if !transformed {
		ok = (p == barcode.PolarityBoth && h.fallback) || (p == barcode.PolaritySingle && h.rawReadable)
	}
	if !ok {
		return nil, barcode.ErrNotFound
	}
	return &barcode.Detection{
		Text:   payload,
		Format: barcode.FormatQR,
		Location: barcode.Location{
			Points: []barcode.Point{{X: 1, Y: 1}, {X: 8, Y: 1}, {X: 1, Y: 8}},
		},
	}, nil
}

// decodeOrder returns the strategies passed to the decoder since the last reset.
func (h *harness) decodeOrder() []strategy.Strategy {
	out := make([]strategy.Strategy, len(h.decodes))
	for i, c := range h.decodes {
		out[i] = c.Strategy
	}
	return out
}

func (h *harness) clearCalls() {
	h.applied = nil
	h.decodes = nil
	h.produced = make(map[*frame.Buffer]strategy.Strategy)
}

func (h *harness) engine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(h, WithCatalog(h))
	require.NoError(t, err)
	return e
}

func testBuffer(t *testing.T) *frame.Buffer {
	t.Helper()
	buf, err := frame.FromGray(make([]uint8, 16*16), 16, 16)
	require.NoError(t, err)
	return buf
}
