// Package ensemble runs many independent reactors over a parameter scan.
//
// Scan points live as entities in an ECS world. Each sweep snapshots the
// world, steps one Reactor per point on a bounded worker pool and writes the
// outcomes back single-threaded, so results never depend on scheduling.
package ensemble

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/mlange-42/ark/ecs"
	"github.com/pthm-cable/vortex/feasibility"
	"github.com/pthm-cable/vortex/reactor"
	"github.com/pthm-cable/vortex/telemetry"
	"golang.org/x/sync/errgroup"
)

// ScanPoint is one parameter combination. Zero NeCm3 or TeEV inherit the
// base options.
type ScanPoint struct {
	Xi        float64
	RipplePct float64
	NeCm3     float64
	TeEV      float64
}

// Outcome is the state of one reactor after the sweep.
type Outcome struct {
	Index      int
	Point      ScanPoint
	Efficiency float64
	Wmax       float64
	Production reactor.Production
	Fired      []telemetry.Kind
	Events     int
	Confined   bool
	// ProductionFailed is set when the point missed the FOM or yield gate.
	ProductionFailed bool
	// Ledger is the point's energy account, nil when Base.PowerW is zero.
	Ledger *feasibility.Ledger
	Done   bool
}

// Options configures a sweep.
type Options struct {
	// Base is copied per point; its sinks, hardware and perf collector are
	// replaced.
	Base    reactor.Options
	Steps   int
	DT      float64
	Workers int
	// Progress receives an edge_production_failure event for every point
	// that misses the production gates. It is shared by all workers.
	Progress telemetry.Sink
}

// Sweep steps one reactor per point and returns the outcomes in scan order.
// A cancelled ctx stops the sweep and returns ctx.Err().
func Sweep(ctx context.Context, o Options, points []ScanPoint) ([]Outcome, error) {
	if len(points) == 0 {
		return nil, nil
	}
	if o.DT <= 0 {
		o.DT = 0.01
	}
	workers := o.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	world := ecs.NewWorld()
	mapper := ecs.NewMap2[ScanPoint, Outcome](world)
	filter := ecs.NewFilter2[ScanPoint, Outcome](world)
	outMap := ecs.NewMap1[Outcome](world)

	for i := range points {
		p := points[i]
		out := Outcome{Index: i, Point: p}
		mapper.NewEntity(&p, &out)
	}

	// Snapshot (single-threaded)
	type job struct {
		entity ecs.Entity
		index  int
		point  ScanPoint
	}
	jobs := make([]job, 0, len(points))
	query := filter.Query()
	for query.Next() {
		p, out := query.Get()
		jobs = append(jobs, job{entity: query.Entity(), index: out.Index, point: *p})
	}

	// Compute (parallel, one reactor per goroutine)
	results := make([]Outcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for k, j := range jobs {
		g.Go(func() error {
			out, err := runPoint(gctx, o, j.point)
			if err != nil {
				return fmt.Errorf("scan point %d: %w", j.index, err)
			}
			out.Index = j.index
			results[k] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Apply (single-threaded)
	for k, j := range jobs {
		if out := outMap.Get(j.entity); out != nil {
			*out = results[k]
		}
	}

	ordered := make([]Outcome, len(points))
	query = filter.Query()
	for query.Next() {
		_, out := query.Get()
		ordered[out.Index] = *out
	}
	slog.Debug("sweep complete", "points", len(points), "workers", workers, "steps", o.Steps)
	return ordered, nil
}

func runPoint(ctx context.Context, o Options, p ScanPoint) (Outcome, error) {
	opts := o.Base
	opts.Xi = p.Xi
	opts.RipplePct = p.RipplePct
	if p.NeCm3 > 0 {
		opts.NeCm3 = p.NeCm3
	}
	if p.TeEV > 0 {
		opts.TeEV = p.TeEV
	}
	sink := &telemetry.MemorySink{}
	opts.Timeline = sink
	opts.Progress = nil
	opts.Hardware = nil
	opts.Perf = nil
	if opts.PowerW > 0 {
		opts.Ledger = feasibility.NewLedger()
	}

	r, err := reactor.New(opts)
	if err != nil {
		return Outcome{}, err
	}
	for i := 0; i < o.Steps; i++ {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		r.Step(o.DT)
	}

	prod := r.Production()
	if opts.Ledger != nil {
		opts.Ledger.SetYield(prod.YieldCm3S * r.TimeS())
	}
	return Outcome{
		Point:            ScanPoint{Xi: opts.Xi, RipplePct: opts.RipplePct, NeCm3: r.NeCm3(), TeEV: r.TeEV()},
		Efficiency:       r.Efficiency(),
		Wmax:             r.Wmax(),
		Production:       prod,
		Fired:            r.Fired(),
		Events:           sink.Len(),
		Confined:         r.HasFired(telemetry.KindConfinement),
		ProductionFailed: r.LogEdgeProductionFailure(o.Progress),
		Ledger:           opts.Ledger,
		Done:             true,
	}, nil
}

// MergedLedger sums the energy accounts of all outcomes. Outcomes without a
// ledger are skipped.
func MergedLedger(outcomes []Outcome) *feasibility.Ledger {
	ledgers := make([]*feasibility.Ledger, len(outcomes))
	for i, o := range outcomes {
		ledgers[i] = o.Ledger
	}
	return feasibility.MergeLedgers(ledgers...)
}

// Grid returns a row-major xi x ripple scan. A step count of one or less
// yields only the minimum of that axis.
func Grid(xiMin, xiMax float64, xiSteps int, rMin, rMax float64, rSteps int) []ScanPoint {
	xs := linspace(xiMin, xiMax, xiSteps)
	rs := linspace(rMin, rMax, rSteps)
	points := make([]ScanPoint, 0, len(xs)*len(rs))
	for _, xi := range xs {
		for _, r := range rs {
			points = append(points, ScanPoint{Xi: xi, RipplePct: r})
		}
	}
	return points
}

func linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

// Records converts outcomes into sweep.csv rows.
func Records(outcomes []Outcome) []telemetry.SweepRecord {
	rows := make([]telemetry.SweepRecord, len(outcomes))
	for i, o := range outcomes {
		rows[i] = telemetry.SweepRecord{
			Index:      o.Index,
			Xi:         o.Point.Xi,
			Ripple:     o.Point.RipplePct,
			NeCm3:      o.Point.NeCm3,
			TeEV:       o.Point.TeEV,
			Efficiency: o.Efficiency,
			Wmax:       o.Wmax,
			YieldCm3S:  o.Production.YieldCm3S,
			FOM:        o.Production.FOM,
			Events:     o.Events,
			Confined:   o.Confined,
			Failed:     o.ProductionFailed,
		}
	}
	return rows
}
