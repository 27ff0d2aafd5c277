package reactor

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/pthm-cable/vortex/hardware"
	"github.com/pthm-cable/vortex/telemetry"
)

// ErrHardwareTimeout matches any *TimeoutError.
var ErrHardwareTimeout = errors.New("hardware timeout")

// TimeoutError reports a hardware call that finished after its limit.
type TimeoutError struct {
	Elapsed time.Duration
	Limit   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("hardware timeout: call took %s, limit %s", e.Elapsed, e.Limit)
}

func (e *TimeoutError) Unwrap() error { return ErrHardwareTimeout }

// longTimeout marks timeouts that also get the hardware_timeout_60s event.
const longTimeout = 60 * time.Second

// StepWithHardware exchanges state with the hardware simulator and then
// steps the reactor by dt.
//
// The call is never interrupted; it is classified once it returns. A call
// that succeeds but takes longer than timeout is logged and returned as a
// *TimeoutError without stepping. A missing simulator or a failing call is
// logged and swallowed: the step is skipped and nil is returned. A call
// failing with hardware.ErrUnavailable is treated as a missing simulator.
func (r *Reactor) StepWithHardware(ctx context.Context, dt float64, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("hardware step: %w", err)
	}
	r.perf.StartStep()
	defer r.perf.EndStep()
	r.perf.StartPhase(telemetry.PhaseHardware)

	if !hardware.Available(r.hw) {
		r.hardwareUnavailable()
		return nil
	}

	highLoad := r.hwState.HighLoad()
	start := r.now()
	out, err := r.hw.Simulate(ctx, r.hwState.Clone())
	elapsed := r.now().Sub(start)

	if errors.Is(err, hardware.ErrUnavailable) {
		r.hardwareUnavailable()
		return nil
	}
	if err != nil {
		telemetry.ObserveHardware(telemetry.HardwareError)
		d := telemetry.Details{"error": err.Error()}
		kind := telemetry.KindHardwareError
		if highLoad {
			kind = telemetry.KindProductionHWError
		}
		r.emitHardware(kind, telemetry.StatusFail, d)
		r.emitHardware(telemetry.KindHardwareSpecific, telemetry.StatusFail, d)
		if highLoad {
			r.emitHardware(telemetry.KindHighLoadHWError, telemetry.StatusFail, d)
		}
		return nil
	}

	if elapsed > timeout {
		telemetry.ObserveHardware(telemetry.HardwareTimeout)
		r.emitHardware(telemetry.KindHardwareTimeout, telemetry.StatusFail, telemetry.Details{
			"elapsed_s": elapsed.Seconds(),
			"timeout_s": timeout.Seconds(),
		})
		if highLoad {
			r.emitHardware(telemetry.KindHighLoadTimeout, telemetry.StatusWarn, nil)
		}
		if timeout >= longTimeout {
			r.emitHardware(telemetry.KindHardwareTimeout60s, telemetry.StatusFail, nil)
		}
		return &TimeoutError{Elapsed: elapsed, Limit: timeout}
	}

	telemetry.ObserveHardware(telemetry.HardwareOK)
	maps.Copy(r.hwState, out)
	r.step(dt)
	return nil
}

func (r *Reactor) hardwareUnavailable() {
	telemetry.ObserveHardware(telemetry.HardwareUnavailable)
	r.emitHardware(telemetry.KindHardwareError, telemetry.StatusFail, telemetry.Details{
		"error": hardware.ErrUnavailable.Error(),
	})
}

// emitHardware routes hardware events to the timeline while it is active and
// to the progress sink otherwise. They never consume budget.
func (r *Reactor) emitHardware(kind telemetry.Kind, status telemetry.Status, d telemetry.Details) {
	sink := r.progress
	if r.timelineActive() {
		sink = r.timeline
	}
	r.emit(sink, telemetry.NewEvent(kind, status, d))
}
