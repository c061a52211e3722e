// Package toggle holds the process-wide switch that gates external alert delivery.
package toggle

import "sync/atomic"

// Toggle is safe for concurrent use. The zero value is disabled.
type Toggle struct {
	enabled atomic.Bool
}

// New returns a Toggle with the given initial state.
func New(enabled bool) *Toggle {
	t := &Toggle{}
	t.enabled.Store(enabled)
	return t
}

// Enabled reports the current state.
func (t *Toggle) Enabled() bool {
	return t.enabled.Load()
}

// Set stores v and returns the previous state.
func (t *Toggle) Set(v bool) bool {
	return t.enabled.Swap(v)
}
