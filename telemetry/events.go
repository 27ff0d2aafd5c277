// Package telemetry provides the reactor event timeline: events, sinks, the
// logging budget, one-shot latches, CSV output and run summaries.
package telemetry

import "time"

// Kind names a timeline event.
type Kind string

const (
	KindVortexStabilized   Kind = "vortex_stabilized"
	KindConfinement        Kind = "confinement_achieved"
	KindDensityEnforced    Kind = "density_enforced"
	KindAntiprotonYield    Kind = "antiproton_yield"
	KindBFieldCheck        Kind = "b_field_check"
	KindStabilityCheck     Kind = "stability_check"
	KindHardwareError      Kind = "hardware_error"
	KindHardwareTimeout    Kind = "hardware_timeout"
	KindHardwareTimeout60s Kind = "hardware_timeout_60s"
	KindHighLoadTimeout    Kind = "high_load_timeout"
	KindProductionHWError  Kind = "production_hardware_error"
	KindHardwareSpecific   Kind = "hardware_specific_error"
	KindHighLoadHWError    Kind = "high_load_hardware_error"
	KindHardwareSimulation Kind = "hardware_simulation"
	KindProductionMetrics  Kind = "production_metrics"
	KindProductionFailure  Kind = "production_failure"
	KindEdgeProductionFail Kind = "edge_production_failure"
)

// Status is the outcome attached to an event.
type Status string

const (
	StatusOK   Status = "ok"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
	StatusInfo Status = "info"
)

// Details carries event-specific values.
type Details map[string]any

// Event is one immutable timeline record, written as a single NDJSON line.
type Event struct {
	Event   Kind      `json:"event"`
	Status  Status    `json:"status"`
	TS      time.Time `json:"ts"`
	Details Details   `json:"details,omitempty"`
	Code    string    `json:"code,omitempty"`
}

// NewEvent stamps an event with the current UTC time.
func NewEvent(kind Kind, status Status, details Details) Event {
	return Event{
		Event:   kind,
		Status:  status,
		TS:      time.Now().UTC(),
		Details: details,
	}
}

// StatusFor maps a pass/fail outcome onto ok or fail.
func StatusFor(pass bool) Status {
	if pass {
		return StatusOK
	}
	return StatusFail
}
