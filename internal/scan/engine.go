// Package scan runs decode attempts against a frame, one preprocessing strategy
// at a time, and remembers across a video stream which strategy worked.
//
// An Engine is stateless: each Scan tries a bounded candidate list in order,
// decodes every transformed frame with single polarity, and finishes with one
// bidirectional decode of the untouched frame. A Session wraps an Engine for a
// single stream and moves the last winning strategy to the front.
package scan

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/scanwell/internal/barcode"
	"github.com/MeKo-Tech/scanwell/internal/frame"
	"github.com/MeKo-Tech/scanwell/internal/strategy"
)

// Transformer is the part of a strategy catalog the engine needs.
type Transformer interface {
	List() []strategy.Strategy
	Apply(buf *frame.Buffer, s strategy.Strategy) (*frame.Buffer, error)
}

// Result is a decoded code and the strategy that made it readable.
type Result struct {
	Payload  string            `json:"payload" yaml:"payload"`
	Strategy strategy.Strategy `json:"strategy" yaml:"strategy"`
	Format   barcode.Format    `json:"format" yaml:"format"`
	Location barcode.Location  `json:"location" yaml:"location"`
}

// Outcome classifies one attempt.
type Outcome string

const (
	OutcomeDecoded        Outcome = "decoded"
	OutcomeNotFound       Outcome = "not_found"
	OutcomeTransformError Outcome = "transform_error"
	OutcomeDecodeError    Outcome = "decode_error"
)

// Attempt records one decode attempt.
type Attempt struct {
	Strategy strategy.Strategy `json:"strategy" yaml:"strategy"`
	Polarity barcode.Polarity  `json:"-" yaml:"-"`
	Fallback bool              `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	Outcome  Outcome           `json:"outcome" yaml:"outcome"`
	Error    string            `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration     `json:"duration_ns" yaml:"duration_ns"`
}

// Trace lists every attempt of one scan, in order.
type Trace struct {
	Candidates []strategy.Strategy `json:"candidates" yaml:"candidates"`
	Attempts   []Attempt           `json:"attempts" yaml:"attempts"`
	Duration   time.Duration       `json:"duration_ns" yaml:"duration_ns"`
}

// Engine tries strategies against frames. It holds no per-scan state and is
// safe for concurrent use when its decoder is.
type Engine struct {
	decoder barcode.Decoder
	catalog Transformer
	logger  *slog.Logger
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithCatalog replaces the built-in strategy catalog.
func WithCatalog(c Transformer) EngineOption {
	return func(e *Engine) { e.catalog = c }
}

// WithLogger sets the logger used for debug tracing.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine builds an engine around decoder.
func NewEngine(decoder barcode.Decoder, opts ...EngineOption) (*Engine, error) {
	if decoder == nil {
		return nil, errors.New("scan: decoder is required")
	}
	e := &Engine{
		decoder: decoder,
		catalog: strategy.Default(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.catalog == nil {
		return nil, errors.New("scan: catalog is required")
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e, nil
}

// DefaultOrder returns the catalog order used when Options.Strategies is empty.
func (e *Engine) DefaultOrder() []strategy.Strategy { return e.catalog.List() }

// Candidates returns the strategies a scan with opts would try, in order.
func (e *Engine) Candidates(opts Options) []strategy.Strategy {
	base := opts.Strategies
	if len(base) == 0 {
		base = e.catalog.List()
	}
	n := min(len(base), max(opts.MaxAttempts, 0))
	out := make([]strategy.Strategy, n)
	copy(out, base[:n])
	return out
}

// Scan returns the first decode of buf, or nil when no strategy and not the
// fallback could read a code. Only invalid input produces an error.
func (e *Engine) Scan(buf *frame.Buffer, opts Options) (*Result, error) {
	res, _, err := e.run(buf, opts, false)
	return res, err
}

// ScanTrace is Scan that also reports every attempt made.
func (e *Engine) ScanTrace(buf *frame.Buffer, opts Options) (*Result, *Trace, error) {
	return e.run(buf, opts, true)
}

func (e *Engine) run(buf *frame.Buffer, opts Options, trace bool) (*Result, *Trace, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}
	if buf.Empty() {
		return nil, nil, ErrInvalidFrame
	}

	start := time.Now()
	candidates := e.Candidates(opts)
	var tr *Trace
	if trace {
		tr = &Trace{Candidates: candidates}
	}
	attempts := 0
	record := func(a Attempt) {
		attempts++
		scanAttemptsTotal.WithLabelValues(string(a.Strategy), string(a.Outcome)).Inc()
		if opts.Debug {
			e.logger.Debug("scan attempt",
				"strategy", a.Strategy,
				"polarity", a.Polarity,
				"fallback", a.Fallback,
				"outcome", a.Outcome,
				"error", a.Error,
				"duration", a.Duration)
		}
		if tr != nil {
			tr.Attempts = append(tr.Attempts, a)
		}
	}
	finish := func(res *Result) (*Result, *Trace, error) {
		elapsed := time.Since(start)
		scanDuration.Observe(elapsed.Seconds())
		label := "absent"
		if res != nil {
			label = string(res.Strategy)
		}
		scansTotal.WithLabelValues(label).Inc()
		if tr != nil {
			tr.Duration = elapsed
		}
		if opts.Debug {
			e.logger.Debug("scan finished", "result", label, "attempts", attempts, "duration", elapsed)
		}
		return res, tr, nil
	}

	for _, s := range candidates {
		res, a := e.attempt(buf, s)
		record(a)
		if res != nil {
			return finish(res)
		}
	}

	res, a := e.decode(buf, strategy.None, barcode.PolarityBoth)
	a.Fallback = true
	record(a)
	return finish(res)
}

// attempt applies s and decodes the result with single polarity. A None
// candidate, which a session may have memoized, decodes the frame as is.
func (e *Engine) attempt(buf *frame.Buffer, s strategy.Strategy) (*Result, Attempt) {
	if s == strategy.None {
		return e.decode(buf, s, barcode.PolaritySingle)
	}

	start := time.Now()
	transformed, err := e.apply(buf, s)
	if err != nil {
		return nil, Attempt{
			Strategy: s,
			Polarity: barcode.PolaritySingle,
			Outcome:  OutcomeTransformError,
			Error:    err.Error(),
			Duration: time.Since(start),
		}
	}

	res, a := e.decode(transformed, s, barcode.PolaritySingle)
	a.Duration = time.Since(start)
	return res, a
}

// apply runs one transform, turning a panic or a missing frame into an error.
func (e *Engine) apply(buf *frame.Buffer, s strategy.Strategy) (out *frame.Buffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, &strategy.TransformError{Strategy: s, Err: fmt.Errorf("transform panicked: %v", r)}
		}
	}()
	out, err = e.catalog.Apply(buf, s)
	if err == nil && out == nil {
		err = &strategy.TransformError{Strategy: s, Err: errors.New("transform produced no frame")}
	}
	return out, err
}

func (e *Engine) decode(buf *frame.Buffer, s strategy.Strategy, p barcode.Polarity) (res *Result, a Attempt) {
	start := time.Now()
	a = Attempt{Strategy: s, Polarity: p}

	// A decoder panic is a defect in one attempt, not in the scan.
	defer func() {
		if r := recover(); r != nil {
			res = nil
			a.Outcome = OutcomeDecodeError
			a.Error = fmt.Sprintf("decoder panicked: %v", r)
		}
		a.Duration = time.Since(start)
	}()

	det, err := e.decoder.Decode(buf, p)
	switch {
	case err == nil && det != nil:
		a.Outcome = OutcomeDecoded
		return &Result{
			Payload:  det.Text,
			Strategy: s,
			Format:   det.Format,
			Location: det.Location,
		}, a
	case err == nil, errors.Is(err, barcode.ErrNotFound):
		a.Outcome = OutcomeNotFound
	default:
		a.Outcome = OutcomeDecodeError
		a.Error = err.Error()
	}
	return nil, a
}
