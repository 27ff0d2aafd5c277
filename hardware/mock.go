package hardware

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Mock is a configurable stand-in for real hardware.
type Mock struct {
	// Delay is slept before answering. The sleep ignores ctx so a slow call
	// always completes.
	Delay time.Duration
	// FailEvery makes every n-th call fail; 0 never fails.
	FailEvery int
	// Load, when set, is reported under the "load" key.
	Load string

	calls atomic.Int64
}

// Calls returns how many times Simulate ran.
func (m *Mock) Calls() int64 { return m.calls.Load() }

// Simulate copies in, bumps the "i" counter and applies the configured
// delay, load marker and failures.
func (m *Mock) Simulate(_ context.Context, in State) (State, error) {
	n := m.calls.Add(1)
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	if m.FailEvery > 0 && n%int64(m.FailEvery) == 0 {
		return nil, fmt.Errorf("mock hardware fault on call %d", n)
	}

	out := in.Clone()
	i, _ := out["i"].(int)
	out["i"] = i + 1
	out["calls"] = n
	if m.Load != "" {
		out["load"] = m.Load
	}
	return out, nil
}
