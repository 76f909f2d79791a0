// Package readiness holds the startup gate shared between the bootstrap
// routine and the request-handling service. The flag is one-way: once the
// backing store is reachable and migrations have had a chance to apply, it
// flips to ready and never flips back.
package readiness

import "sync/atomic"

// State is the startup readiness flag. The zero value is "not ready".
type State struct {
	ready atomic.Bool
}

func NewState() *State {
	return &State{}
}

// MarkReady opens the gate. Safe to call more than once.
func (s *State) MarkReady() {
	s.ready.Store(true)
}

// Ready reports whether the gate is open. This is advisory: callers that
// arrive before readiness fail immediately rather than queueing.
func (s *State) Ready() bool {
	return s.ready.Load()
}
