package fswatch

import (
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxCallbacks bounds the callback registry when no capacity is given.
const DefaultMaxCallbacks = 20

// Handler consumes the directory and bare filename of a dispatched event.
type Handler interface {
	Handle(path, name string)
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(path, name string)

// Handle calls f(path, name).
func (f HandlerFunc) Handle(path, name string) { f(path, name) }

// CallbackEntry is one registration. An empty Pattern matches every name.
type CallbackEntry struct {
	Mask    EventMask
	Pattern string
	Handler Handler

	glob string
}

// Callbacks is a bounded, ordered list of callback entries. Registration
// happens at startup; afterwards the list is only read.
type Callbacks struct {
	capacity int
	entries  []CallbackEntry
}

// NewCallbacks creates a callback registry. A capacity below one selects
// DefaultMaxCallbacks.
func NewCallbacks(capacity int) *Callbacks {
	if capacity < 1 {
		capacity = DefaultMaxCallbacks
	}
	return &Callbacks{capacity: capacity}
}

// Register appends an entry and returns its id, which is its position in
// dispatch order.
func (c *Callbacks) Register(mask EventMask, pattern string, h Handler) (int, error) {
	if h == nil {
		return -1, fmt.Errorf("fswatch: nil handler")
	}
	if len(c.entries) >= c.capacity {
		return -1, fmt.Errorf("%w (max=%d)", ErrCallbacksFull, c.capacity)
	}
	var glob string
	if pattern != "" {
		pattern = norm.NFC.String(pattern)
		var err error
		if glob, err = compileGlob(pattern); err != nil {
			return -1, err
		}
	}
	c.entries = append(c.entries, CallbackEntry{Mask: mask, Pattern: pattern, Handler: h, glob: glob})
	return len(c.entries) - 1, nil
}

// RegisterFunc is Register for a plain function.
func (c *Callbacks) RegisterFunc(mask EventMask, pattern string, fn func(path, name string)) (int, error) {
	return c.Register(mask, pattern, HandlerFunc(fn))
}

// Dispatch invokes, in registration order, every entry whose mask shares a
// bit with mask and whose pattern is empty or matches name. It returns the
// number of handlers invoked.
func (c *Callbacks) Dispatch(mask EventMask, path, name string) int {
	fired := 0
	normalized := ""
	for i := range c.entries {
		e := &c.entries[i]
		if !e.Mask.Any(mask) {
			continue
		}
		if e.Pattern != "" {
			if normalized == "" {
				normalized = norm.NFC.String(name)
			}
			if !globMatch(e.glob, normalized) {
				continue
			}
		}
		e.Handler.Handle(path, name)
		fired++
	}
	return fired
}

// Len returns the number of registered entries.
func (c *Callbacks) Len() int { return len(c.entries) }

// Release drops every entry and its pattern.
func (c *Callbacks) Release() {
	for i := range c.entries {
		c.entries[i] = CallbackEntry{}
	}
	c.entries = nil
}
