package strategy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/scanwell/internal/frame"
)

// Transform maps a frame to a new frame. It must not modify src.
type Transform func(src *frame.Buffer) (*frame.Buffer, error)

// Entry registers one strategy in a catalog.
type Entry struct {
	Name        Strategy
	Description string
	Transform   Transform
	// Extended entries can be selected by name but are left out of List.
	Extended bool
}

// Catalog is an immutable table of strategies with a default order.
// It is safe for concurrent use.
type Catalog struct {
	order    []Strategy
	extended []Strategy
	entries  map[Strategy]Entry
	names    map[string]Strategy
}

// NewCatalog builds a catalog. Non-extended entries form the default order in
// the order given.
func NewCatalog(entries ...Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make(map[Strategy]Entry, len(entries)),
		names:   make(map[string]Strategy, len(entries)),
	}
	for _, e := range entries {
		switch {
		case e.Name == "":
			return nil, errors.New("strategy: entry without a name")
		case e.Name == None:
			return nil, fmt.Errorf("strategy: %q is reserved", None)
		case e.Transform == nil:
			return nil, fmt.Errorf("strategy: %s has no transform", e.Name)
		}
		key := strings.ToLower(string(e.Name))
		if _, dup := c.names[key]; dup {
			return nil, fmt.Errorf("strategy: duplicate entry %s", e.Name)
		}
		c.names[key] = e.Name
		c.entries[e.Name] = e
		if e.Extended {
			c.extended = append(c.extended, e.Name)
		} else {
			c.order = append(c.order, e.Name)
		}
	}
	return c, nil
}

// List returns the default order. The slice is a copy.
func (c *Catalog) List() []Strategy {
	out := make([]Strategy, len(c.order))
	copy(out, c.order)
	return out
}

// Entries returns every registered entry, default order first, then extended.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.order)+len(c.extended))
	for _, s := range c.order {
		out = append(out, c.entries[s])
	}
	for _, s := range c.extended {
		out = append(out, c.entries[s])
	}
	return out
}

// Lookup resolves a strategy name case-insensitively.
func (c *Catalog) Lookup(name string) (Strategy, bool) {
	s, ok := c.names[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// Describe returns the entry registered for s.
func (c *Catalog) Describe(s Strategy) (Entry, bool) {
	e, ok := c.entries[s]
	return e, ok
}

// Apply runs strategy s on buf. Failures, including a panicking transform, come
// back as *TransformError; unknown names (and None) wrap ErrUnknownStrategy.
func (c *Catalog) Apply(buf *frame.Buffer, s Strategy) (out *frame.Buffer, err error) {
	if s == None {
		return nil, &TransformError{Strategy: s, Err: fmt.Errorf("%w: %s is reserved for the fallback decode", ErrUnknownStrategy, s)}
	}
	e, ok := c.entries[s]
	if !ok {
		return nil, &TransformError{Strategy: s, Err: ErrUnknownStrategy}
	}
	if buf.Empty() {
		return nil, &TransformError{Strategy: s, Err: frame.ErrEmpty}
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &TransformError{Strategy: s, Err: fmt.Errorf("transform panicked: %v", r)}
		}
	}()

	out, err = e.Transform(buf)
	if err != nil {
		return nil, &TransformError{Strategy: s, Err: err}
	}
	if out == nil {
		return nil, &TransformError{Strategy: s, Err: errors.New("transform produced no frame")}
	}
	return out, nil
}

var defaultCatalog = mustCatalog(builtinEntries())

func mustCatalog(entries []Entry) *Catalog {
	c, err := NewCatalog(entries...)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the built-in catalog.
func Default() *Catalog { return defaultCatalog }

// List returns the built-in default order.
func List() []Strategy { return defaultCatalog.List() }

// Apply runs s from the built-in catalog.
func Apply(buf *frame.Buffer, s Strategy) (*frame.Buffer, error) { return defaultCatalog.Apply(buf, s) }

// Lookup resolves a name in the built-in catalog.
func Lookup(name string) (Strategy, bool) { return defaultCatalog.Lookup(name) }

// Parse resolves a list of names, failing on the first unknown one.
func Parse(c *Catalog, names []string) ([]Strategy, error) {
	out := make([]Strategy, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		s, ok := c.Lookup(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, n)
		}
		out = append(out, s)
	}
	return out, nil
}
