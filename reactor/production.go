package reactor

import (
	"github.com/pthm-cable/vortex/feasibility"
	"github.com/pthm-cable/vortex/telemetry"
)

// Production summarises antiproton output at the current state.
type Production struct {
	YieldCm3S float64 `json:"yield_cm3_s"`
	EnergyJ   float64 `json:"energy_J"`
	FOM       float64 `json:"fom"`
}

// Production evaluates the physics yield against the energy spent so far.
func (r *Reactor) Production() Production {
	y := feasibility.AntiprotonYield(r.neCm3, r.teEV, r.yield.WithModel(feasibility.YieldPhysics))
	e := r.energyJ()
	return Production{YieldCm3S: y, EnergyJ: e, FOM: feasibility.FigureOfMerit(y, e)}
}

// Failed reports whether p misses the production gates.
func (p Production) Failed(th feasibility.Thresholds) bool {
	return p.FOM < th.FOMMin || p.YieldCm3S < th.ProductionYieldMin
}

func (p Production) details() telemetry.Details {
	return telemetry.Details{"yield": p.YieldCm3S, "fom": p.FOM, "energy_J": p.EnergyJ}
}

// LogProductionMetrics appends a production_metrics event to sink.
func (r *Reactor) LogProductionMetrics(sink telemetry.Sink) Production {
	p := r.Production()
	r.emit(sink, telemetry.NewEvent(telemetry.KindProductionMetrics, telemetry.StatusOK, p.details()))
	return p
}

// LogProductionFailure appends production_failure when the gates are missed
// and reports whether it did.
func (r *Reactor) LogProductionFailure(sink telemetry.Sink) bool {
	return r.logFailure(sink, telemetry.KindProductionFailure)
}

// LogEdgeProductionFailure is LogProductionFailure for edge-case runs.
func (r *Reactor) LogEdgeProductionFailure(sink telemetry.Sink) bool {
	return r.logFailure(sink, telemetry.KindEdgeProductionFail)
}

func (r *Reactor) logFailure(sink telemetry.Sink, kind telemetry.Kind) bool {
	p := r.Production()
	if !p.Failed(r.th) {
		return false
	}
	r.emit(sink, telemetry.NewEvent(kind, telemetry.StatusFail, p.details()))
	return true
}

// LogHardware appends the hardware state as a hardware_simulation event.
func (r *Reactor) LogHardware(sink telemetry.Sink) {
	r.emit(sink, telemetry.NewEvent(telemetry.KindHardwareSimulation, telemetry.StatusOK,
		telemetry.Details(r.hwState.Clone())))
}
