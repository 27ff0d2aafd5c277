// Package reactor couples the vorticity solver to the feasibility gates and
// the event timeline. A Reactor is single-threaded: run one per goroutine.
package reactor

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/pthm-cable/vortex/config"
	"github.com/pthm-cable/vortex/feasibility"
	"github.com/pthm-cable/vortex/hardware"
	"github.com/pthm-cable/vortex/systems"
	"github.com/pthm-cable/vortex/telemetry"
	"gonum.org/v1/gonum/mat"
)

// ErrGrid is returned by New for a grid that is not two positive sizes.
var ErrGrid = errors.New("reactor: grid must have positive rows and cols")

// Options configures a Reactor. Start from DefaultOptions.
type Options struct {
	Rows, Cols int
	Nu         float64
	Xi         float64
	RipplePct  float64
	TeEV       float64
	NeCm3      float64

	EnforceDensity   bool
	InitPoissonIters int
	PoissonIters     int

	// Timeline receives feasibility events; nil disables the checks.
	Timeline telemetry.Sink
	// Progress receives hardware events once the timeline is unavailable.
	Progress telemetry.Sink
	// TimelineBudget caps checks against the timeline; nil is unlimited.
	TimelineBudget *int

	// BSeries, when non-nil, enables the per-step B-field check.
	BSeries []float64
	Forcing *systems.NoiseForcing

	Thresholds feasibility.Thresholds
	Yield      feasibility.YieldParams

	Hardware hardware.Simulator

	// Ledger accumulates PowerW*dt per step on Channel when PowerW > 0.
	Ledger  *feasibility.Ledger
	PowerW  float64
	Channel string

	Perf *telemetry.PerfCollector
}

// DefaultOptions returns a 64x64 reactor with the standard plasma state.
func DefaultOptions() Options {
	return Options{
		Rows:             64,
		Cols:             64,
		Nu:               1e-3,
		Xi:               2.0,
		RipplePct:        0.005,
		TeEV:             10.0,
		EnforceDensity:   true,
		InitPoissonIters: 5,
		PoissonIters:     3,
		Thresholds:       feasibility.DefaultThresholds(),
		Yield:            feasibility.DefaultYieldParams(),
		Hardware:         hardware.None{},
	}
}

// OptionsFromConfig maps the loaded configuration onto Options. Sinks,
// series, forcing and hardware are left for the caller to attach.
func OptionsFromConfig(cfg *config.Config) Options {
	o := DefaultOptions()
	o.Rows = cfg.Derived.Rows
	o.Cols = cfg.Derived.Cols
	o.Nu = cfg.Reactor.Nu
	o.Xi = cfg.Reactor.Xi
	o.RipplePct = cfg.Reactor.RipplePct
	o.TeEV = cfg.Reactor.TeEV
	o.NeCm3 = cfg.Reactor.NeCm3
	o.EnforceDensity = cfg.Reactor.EnforceDensity
	o.InitPoissonIters = cfg.Reactor.InitPoissonIters
	o.PoissonIters = cfg.Reactor.PoissonIters
	o.TimelineBudget = cfg.Telemetry.Budget
	o.Thresholds = cfg.Thresholds
	o.Yield = cfg.Yield
	o.Yield.Model = cfg.Derived.YieldModel
	o.PowerW = cfg.Energy.PowerW
	o.Channel = cfg.Energy.Channel
	return o
}

// Reactor owns the vorticity and stream-function fields plus the telemetry
// state machine that decides which events fire.
type Reactor struct {
	rows, cols   int
	nu           float64
	xi           float64
	ripplePct    float64
	teEV         float64
	neCm3        float64
	enforce      bool
	poissonIters int

	omega *mat.Dense
	psi   *mat.Dense
	timeS float64
	steps int

	bSeries []float64
	forcing *systems.NoiseForcing

	th    feasibility.Thresholds
	yield feasibility.YieldParams

	timeline telemetry.Sink
	progress telemetry.Sink
	budget   *telemetry.Budget
	fired    telemetry.FiredSet

	hw      hardware.Simulator
	hwState hardware.State

	ledger  *feasibility.Ledger
	powerW  float64
	channel string

	perf *telemetry.PerfCollector
	now  func() time.Time
}

// New builds a reactor seeded with a unit vortex at the grid centre.
func New(o Options) (*Reactor, error) {
	if o.Rows <= 0 || o.Cols <= 0 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrGrid, o.Rows, o.Cols)
	}
	if o.InitPoissonIters <= 0 {
		o.InitPoissonIters = 5
	}
	if o.PoissonIters <= 0 {
		o.PoissonIters = 3
	}
	if o.Hardware == nil {
		o.Hardware = hardware.None{}
	}
	if o.Channel == "" {
		o.Channel = "total"
	}

	r := &Reactor{
		rows:         o.Rows,
		cols:         o.Cols,
		nu:           o.Nu,
		xi:           o.Xi,
		ripplePct:    o.RipplePct,
		teEV:         o.TeEV,
		neCm3:        o.NeCm3,
		enforce:      o.EnforceDensity,
		poissonIters: o.PoissonIters,
		forcing:      o.Forcing,
		th:           o.Thresholds.Merge(feasibility.DefaultThresholds()),
		yield:        o.Yield,
		timeline:     o.Timeline,
		progress:     o.Progress,
		budget:       telemetry.BudgetFrom(o.TimelineBudget),
		hw:           o.Hardware,
		hwState:      hardware.State{},
		ledger:       o.Ledger,
		powerW:       o.PowerW,
		channel:      o.Channel,
		perf:         o.Perf,
		now:          time.Now,
	}
	if o.BSeries != nil {
		r.bSeries = slices.Clone(o.BSeries)
	}

	r.omega = systems.NewField(o.Rows, o.Cols)
	r.omega.Set(o.Rows/2, o.Cols/2, 1.0)
	r.psi = systems.DriftPoissonStep(r.omega, o.InitPoissonIters)
	return r, nil
}

// Step advances the fields by dt and, while the timeline is active, runs the
// feasibility checks. It returns a copy of the new vorticity field.
func (r *Reactor) Step(dt float64) *mat.Dense {
	r.perf.StartStep()
	r.step(dt)
	r.perf.EndStep()
	return mat.DenseCopyOf(r.omega)
}

func (r *Reactor) step(dt float64) {
	start := time.Now()

	r.perf.StartPhase(telemetry.PhaseVorticity)
	if r.forcing != nil {
		f := r.forcing.Field(r.rows, r.cols, r.timeS)
		r.omega = systems.VorticityEvolution(r.omega, r.psi, r.nu, dt, f)
	} else {
		r.omega = systems.VorticityEvolution(r.omega, r.psi, r.nu, dt, nil)
	}

	r.perf.StartPhase(telemetry.PhasePoisson)
	r.psi = systems.DriftPoissonStep(r.omega, r.poissonIters)
	r.timeS += dt
	r.steps++
	if r.ledger != nil && r.powerW > 0 {
		r.ledger.AddChannelEnergy(r.channel, r.powerW, dt)
	}

	r.perf.StartPhase(telemetry.PhaseChecks)
	if r.timelineActive() {
		r.runChecks()
	}
	telemetry.ObserveStep(time.Since(start))
}

func (r *Reactor) timelineActive() bool {
	return r.timeline != nil && !r.budget.Exhausted()
}

// runChecks evaluates the gates in their fixed order. Each gate takes a unit
// of budget only once its cheaper preconditions hold.
func (r *Reactor) runChecks() {
	th := r.th
	wmax := systems.MaxAbs(r.omega)

	if !r.fired.Has(telemetry.KindVortexStabilized) && wmax >= th.VortexMin && r.budget.Take() {
		r.fire(telemetry.KindVortexStabilized, telemetry.StatusOK, telemetry.Details{"wmax": wmax})
	}

	if !r.fired.Has(telemetry.KindConfinement) {
		eff := feasibility.ConfinementEfficiency(r.xi, r.ripplePct)
		if eff >= th.ConfinementMin && r.budget.Take() {
			r.fire(telemetry.KindConfinement, telemetry.StatusOK, telemetry.Details{
				"efficiency":   eff,
				"xi":           r.xi,
				"b_ripple_pct": r.ripplePct,
			})
		}
	}

	if r.enforce && !r.fired.Has(telemetry.KindDensityEnforced) && r.budget.Take() {
		dc := feasibility.CheckDensity(r.neCm3, r.teEV, th)
		if dc.Enforce {
			r.neCm3 = th.DensityMinCm3
			r.fire(telemetry.KindDensityEnforced, telemetry.StatusOK, telemetry.Details{
				"lambda_D_m": dc.DebyeM,
				"ne_cm3":     r.neCm3,
			})
		}
	}

	if !r.fired.Has(telemetry.KindAntiprotonYield) && r.budget.Take() {
		y := feasibility.AntiprotonYield(r.neCm3, r.teEV, r.yield.WithModel(feasibility.YieldPhysics))
		if y >= th.YieldMin {
			r.fire(telemetry.KindAntiprotonYield, telemetry.StatusOK, telemetry.Details{
				"yield_cm3_s": y,
				"ne_cm3":      r.neCm3,
				"Te_eV":       r.teEV,
			})
		}
	}

	if r.bSeries != nil && r.budget.Take() {
		chk := feasibility.CheckBField(r.bSeries, th)
		r.emit(r.timeline, telemetry.NewEvent(telemetry.KindBFieldCheck, telemetry.StatusFor(chk.Pass), telemetry.Details{
			"B_mean_T": chk.MeanT,
			"ripple":   chk.Ripple,
		}))
	}

	if r.budget.Limited() && !r.fired.Has(telemetry.KindStabilityCheck) && r.budget.Take() {
		gamma := gammaProxy(wmax, th)
		r.emit(r.timeline, telemetry.NewEvent(telemetry.KindStabilityCheck, telemetry.StatusFor(gamma >= th.GammaMin),
			telemetry.Details{"gamma": gamma}))
		r.fired.Fire(telemetry.KindStabilityCheck)
	}
}

// GammaProxy is the growth-rate stand-in used by the stability gate: 150 once
// the vortex has stabilized, 100 otherwise.
func (r *Reactor) GammaProxy() float64 {
	return gammaProxy(systems.MaxAbs(r.omega), r.th)
}

func gammaProxy(wmax float64, th feasibility.Thresholds) float64 {
	if wmax >= th.VortexMin {
		return 150.0
	}
	return 100.0
}

// fire appends a one-shot event and latches it once the append succeeds.
func (r *Reactor) fire(kind telemetry.Kind, status telemetry.Status, d telemetry.Details) {
	if r.emit(r.timeline, telemetry.NewEvent(kind, status, d)) {
		r.fired.Fire(kind)
	}
}

// emit appends e to sink. Failures are logged and reported as false.
func (r *Reactor) emit(sink telemetry.Sink, e telemetry.Event) bool {
	if sink == nil {
		return false
	}
	err := sink.Append(e)
	telemetry.ObserveEvent(e, err)
	if err != nil {
		slog.Warn("timeline append failed", "event", e.Event, "error", err)
		return false
	}
	return true
}

// Observe snapshots the current state as a steps.csv row.
func (r *Reactor) Observe() telemetry.StepRecord {
	ripple := r.ripplePct
	if r.bSeries != nil {
		ripple = feasibility.RMSFluctuation(r.bSeries)
	}
	return telemetry.StepRecord{
		Step:       r.steps,
		TimeS:      r.timeS,
		Wmax:       systems.MaxAbs(r.omega),
		PsiMax:     systems.MaxAbs(r.psi),
		NeCm3:      r.neCm3,
		TeEV:       r.teEV,
		Efficiency: feasibility.ConfinementEfficiency(r.xi, r.ripplePct),
		Ripple:     ripple,
		YieldCm3S:  feasibility.AntiprotonYield(r.neCm3, r.teEV, r.yield.WithModel(feasibility.YieldPhysics)),
		Fired:      r.fired.Len(),
		BudgetUsed: r.budget.Count(),
	}
}

// TimeS returns the accumulated simulated time.
func (r *Reactor) TimeS() float64 { return r.timeS }

// Steps returns how many field updates have run.
func (r *Reactor) Steps() int { return r.steps }

// Omega returns a copy of the vorticity field.
func (r *Reactor) Omega() *mat.Dense { return mat.DenseCopyOf(r.omega) }

// Psi returns a copy of the stream function.
func (r *Reactor) Psi() *mat.Dense { return mat.DenseCopyOf(r.psi) }

// Wmax returns max|omega|.
func (r *Reactor) Wmax() float64 { return systems.MaxAbs(r.omega) }

// NeCm3 returns the electron density.
func (r *Reactor) NeCm3() float64 { return r.neCm3 }

// TeEV returns the electron temperature.
func (r *Reactor) TeEV() float64 { return r.teEV }

// Efficiency returns the confinement efficiency of the current parameters.
func (r *Reactor) Efficiency() float64 {
	return feasibility.ConfinementEfficiency(r.xi, r.ripplePct)
}

// BSeries returns a copy of the attached B-field series, or nil.
func (r *Reactor) BSeries() []float64 { return slices.Clone(r.bSeries) }

// BRipple returns the RMS ripple of the attached series, 0 without one.
func (r *Reactor) BRipple() float64 { return feasibility.RMSFluctuation(r.bSeries) }

// Fired returns the one-shot events emitted so far.
func (r *Reactor) Fired() []telemetry.Kind { return r.fired.Kinds() }

// HasFired reports whether kind has been emitted.
func (r *Reactor) HasFired(kind telemetry.Kind) bool { return r.fired.Has(kind) }

// BudgetState returns the timeline budget state.
func (r *Reactor) BudgetState() telemetry.BudgetState { return r.budget.State() }

// BudgetUsed returns the budget units consumed.
func (r *Reactor) BudgetUsed() int { return r.budget.Count() }

// HardwareState returns a copy of the last merged hardware state.
func (r *Reactor) HardwareState() hardware.State { return r.hwState.Clone() }

// Thresholds returns the gates in use.
func (r *Reactor) Thresholds() feasibility.Thresholds { return r.th }

// energyJ is the ledger total under power accounting, else a time proxy.
func (r *Reactor) energyJ() float64 {
	if r.ledger != nil && r.powerW > 0 {
		return r.ledger.Total()
	}
	return math.Max(1e-9, r.timeS) * 1e6
}
