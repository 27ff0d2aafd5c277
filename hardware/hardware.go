// Package hardware defines the optional hardware-in-the-loop capability a
// reactor can call between steps.
package hardware

import (
	"context"
	"errors"
	"maps"
)

// ErrUnavailable is reported when no simulator is configured.
var ErrUnavailable = errors.New("hardware simulator unavailable")

// State is the key/value state exchanged with a simulator.
type State map[string]any

// Clone returns a shallow copy.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	return maps.Clone(s)
}

// HighLoad reports whether the state carries a string "load" marker.
func (s State) HighLoad() bool {
	_, ok := s["load"].(string)
	return ok
}

// Simulator runs one hardware exchange. Calls run to completion; the caller
// classifies slow calls after they return.
type Simulator interface {
	Simulate(ctx context.Context, in State) (State, error)
}

// None is the absent capability.
type None struct{}

// Simulate always fails with ErrUnavailable.
func (None) Simulate(context.Context, State) (State, error) {
	return nil, ErrUnavailable
}

// Available reports whether sim can be called. None, in value or pointer
// form, counts as absent.
func Available(sim Simulator) bool {
	switch sim.(type) {
	case nil, None, *None:
		return false
	}
	return true
}

// Func adapts a plain function to Simulator.
type Func func(ctx context.Context, in State) (State, error)

// Simulate calls f.
func (f Func) Simulate(ctx context.Context, in State) (State, error) {
	return f(ctx, in)
}
