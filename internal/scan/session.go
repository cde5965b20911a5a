package scan

import (
	"github.com/MeKo-Tech/scanwell/internal/frame"
	"github.com/MeKo-Tech/scanwell/internal/strategy"
)

// fullSweepInterval forces the unmodified candidate order on every Nth frame
// so a memo that has gone stale under drifting light gets re-checked.
const fullSweepInterval = 10

// Stats is a snapshot of a session.
type Stats struct {
	FrameCount int `json:"frame_count" yaml:"frame_count"`
	// LastSuccessful is empty while the session is cold.
	LastSuccessful strategy.Strategy `json:"last_successful,omitempty" yaml:"last_successful,omitempty"`
	Warm           bool              `json:"warm" yaml:"warm"`
}

// Session scans consecutive frames of one stream, trying the strategy that
// last succeeded first.
//
// A Session is not safe for concurrent use; give every stream its own.
type Session struct {
	engine *Engine
	opts   Options

	frameCount     int
	lastSuccessful strategy.Strategy
	warm           bool
}

// NewSession validates opts and returns a cold session.
func NewSession(engine *Engine, opts Options) (*Session, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Session{engine: engine, opts: opts.clone()}, nil
}

// ScanFrame counts the frame, orders the candidates and scans buf.
func (s *Session) ScanFrame(buf *frame.Buffer) (*Result, error) {
	res, _, err := s.scanFrame(buf, false)
	return res, err
}

// ScanFrameTrace is ScanFrame that also reports every attempt made.
func (s *Session) ScanFrameTrace(buf *frame.Buffer) (*Result, *Trace, error) {
	return s.scanFrame(buf, true)
}

func (s *Session) scanFrame(buf *frame.Buffer, trace bool) (*Result, *Trace, error) {
	s.frameCount++

	ordering := "cold"
	switch {
	case s.frameCount%fullSweepInterval == 0:
		ordering = "sweep"
	case s.warm:
		ordering = "warm"
	}
	sessionFramesTotal.WithLabelValues(ordering).Inc()

	opts := s.opts
	opts.Strategies = s.candidates(s.frameCount)

	var (
		res *Result
		tr  *Trace
		err error
	)
	if trace {
		res, tr, err = s.engine.ScanTrace(buf, opts)
	} else {
		res, err = s.engine.Scan(buf, opts)
	}
	if err != nil {
		return nil, nil, err
	}
	if res != nil {
		s.lastSuccessful = res.Strategy
		s.warm = true
	}
	return res, tr, nil
}

// Candidates returns the full candidate order the next ScanFrame call will
// hand to the engine, before MaxAttempts truncation.
func (s *Session) Candidates() []strategy.Strategy {
	return s.candidates(s.frameCount + 1)
}

// Attempts returns the strategies the next ScanFrame call will actually try,
// in order: Candidates truncated to MaxAttempts. The fallback is not listed.
func (s *Session) Attempts() []strategy.Strategy {
	c := s.Candidates()
	return c[:min(len(c), max(s.opts.MaxAttempts, 0))]
}

func (s *Session) candidates(frameNumber int) []strategy.Strategy {
	base := s.opts.Strategies
	if len(base) == 0 {
		base = s.engine.DefaultOrder()
	}
	out := make([]strategy.Strategy, 0, len(base)+1)
	if !s.warm || frameNumber%fullSweepInterval == 0 {
		return append(out, base...)
	}

	out = append(out, s.lastSuccessful)
	for _, c := range base {
		if c != s.lastSuccessful {
			out = append(out, c)
		}
	}
	return out
}

// Reset returns the session to its initial cold state.
func (s *Session) Reset() {
	s.frameCount = 0
	s.lastSuccessful = ""
	s.warm = false
}

// Stats returns a snapshot of the session.
func (s *Session) Stats() Stats {
	return Stats{
		FrameCount:     s.frameCount,
		LastSuccessful: s.lastSuccessful,
		Warm:           s.warm,
	}
}

// Options returns the options the session scans with.
func (s *Session) Options() Options { return s.opts.clone() }
