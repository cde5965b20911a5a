package scan

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/scanwell/internal/strategy"
)

// DefaultMaxAttempts caps strategy-based decode attempts per frame.
const DefaultMaxAttempts = 7

var (
	// ErrInvalidOptions is wrapped by every options validation failure.
	ErrInvalidOptions = errors.New("scan: invalid options")

	// ErrInvalidFrame is returned for a nil or empty frame.
	ErrInvalidFrame = errors.New("scan: invalid frame")

	// ErrNoEngine is returned when a session is built without an engine.
	ErrNoEngine = errors.New("scan: engine is required")
)

// Options configures a scan.
type Options struct {
	// MaxAttempts truncates the candidate list. Zero skips every transform and
	// goes straight to the bidirectional fallback.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// Strategies is the candidate order. Empty means the catalog's default order.
	Strategies []strategy.Strategy `json:"strategies,omitempty" yaml:"strategies,omitempty"`

	// Debug logs every attempt. It never changes the outcome.
	Debug bool `json:"debug" yaml:"debug"`
}

// DefaultOptions returns options with the default attempt cap and catalog order.
func DefaultOptions() Options {
	return Options{MaxAttempts: DefaultMaxAttempts}
}

// Validate rejects negative caps and duplicate strategies. Unknown strategy
// names are not rejected here; the engine isolates them per attempt.
func (o Options) Validate() error {
	if o.MaxAttempts < 0 {
		return fmt.Errorf("%w: max attempts must be >= 0, got %d", ErrInvalidOptions, o.MaxAttempts)
	}
	seen := make(map[strategy.Strategy]struct{}, len(o.Strategies))
	for _, s := range o.Strategies {
		if s == "" {
			return fmt.Errorf("%w: empty strategy name", ErrInvalidOptions)
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("%w: strategy %s listed twice", ErrInvalidOptions, s)
		}
		seen[s] = struct{}{}
	}
	return nil
}

// clone returns o with its own copy of Strategies.
func (o Options) clone() Options {
	if o.Strategies != nil {
		o.Strategies = append([]strategy.Strategy(nil), o.Strategies...)
	}
	return o
}
