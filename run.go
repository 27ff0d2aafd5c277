package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pthm-cable/vortex/config"
	"github.com/pthm-cable/vortex/ensemble"
	"github.com/pthm-cable/vortex/feasibility"
	"github.com/pthm-cable/vortex/hardware"
	"github.com/pthm-cable/vortex/reactor"
	"github.com/pthm-cable/vortex/systems"
	"github.com/pthm-cable/vortex/telemetry"
)

// runSummary is written to summary.json at the end of a run.
type runSummary struct {
	RunID        string                      `json:"run_id"`
	Steps        int                         `json:"steps"`
	TimeS        float64                     `json:"time_s"`
	Wmax         float64                     `json:"wmax"`
	NeCm3        float64                     `json:"ne_cm3"`
	Efficiency   float64                     `json:"efficiency"`
	BRipple      float64                     `json:"b_ripple"`
	Budget       string                      `json:"budget_state"`
	BudgetUsed   int                         `json:"budget_used"`
	Fired        []telemetry.Kind            `json:"fired"`
	Production   reactor.Production          `json:"production"`
	EnergyPerPbJ *float64                    `json:"energy_per_pbar_J"`
	EnergyOK     bool                        `json:"energy_ok"`
	Stability    feasibility.StabilityReport `json:"stability"`
	Timeline     *telemetry.Summary          `json:"timeline,omitempty"`
}

func run(ctx context.Context, cfg *config.Config, runID string, sweep bool) error {
	stopMetrics := serveMetrics(cfg.Telemetry.MetricsAddr)
	defer stopMetrics()

	om, err := telemetry.NewOutputManager(cfg.Run.OutputDir)
	if err != nil {
		return err
	}
	defer om.Close()
	if err := om.WriteConfig(cfg); err != nil {
		slog.Warn("failed to write config snapshot", "error", err)
	}

	// Sinks stay nil interfaces when disabled so the reactor skips them
	var timeline, progress telemetry.Sink
	if cfg.Telemetry.TimelinePath != "" {
		sink, err := telemetry.OpenNDJSON(cfg.Telemetry.TimelinePath)
		if err != nil {
			return err
		}
		defer sink.Close()
		timeline = sink
	}
	if cfg.Telemetry.ProgressPath != "" {
		sink, err := telemetry.OpenNDJSON(cfg.Telemetry.ProgressPath)
		if err != nil {
			return err
		}
		defer sink.Close()
		progress = sink
	}

	rng := rand.New(rand.NewSource(cfg.Run.Seed))
	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow)
	ledger := feasibility.NewLedger()

	opts := reactor.OptionsFromConfig(cfg)
	opts.Timeline = timeline
	opts.Progress = progress
	opts.Ledger = ledger
	opts.Perf = perf
	if cfg.BField.Enabled {
		opts.BSeries = systems.SimulateBFieldRipple(rng, cfg.BField.Samples, cfg.BField.BaseT, cfg.BField.RipplePct)
	}
	if cfg.Forcing.Amplitude != 0 {
		opts.Forcing = systems.NewNoiseForcing(rng, cfg.Forcing.Amplitude, cfg.Forcing.Scale, cfg.Forcing.TimeSpeed)
	}
	if cfg.Hardware.Enabled {
		opts.Hardware = &hardware.Mock{
			Delay:     cfg.Derived.HardwareDelay,
			FailEvery: cfg.Hardware.FailEvery,
			Load:      cfg.Hardware.Load,
		}
	}

	r, err := reactor.New(opts)
	if err != nil {
		return err
	}

	slog.Info("starting run",
		"seed", cfg.Run.Seed,
		"grid", cfg.Reactor.Grid,
		"steps", cfg.Run.Steps,
		"dt", cfg.Run.DT,
		"hardware", cfg.Hardware.Enabled,
		"timeline", cfg.Telemetry.TimelinePath,
	)

	gamma, err := stepLoop(ctx, cfg, r, om, perf)
	if err != nil {
		return err
	}

	// Production report goes to the progress log
	prod := r.LogProductionMetrics(progress)
	r.LogProductionFailure(progress)
	if cfg.Hardware.Enabled {
		r.LogHardware(progress)
	}
	ledger.SetYield(prod.YieldCm3S * r.TimeS())

	summary := runSummary{
		RunID:      runID,
		Steps:      r.Steps(),
		TimeS:      r.TimeS(),
		Wmax:       r.Wmax(),
		NeCm3:      r.NeCm3(),
		Efficiency: r.Efficiency(),
		BRipple:    r.BRipple(),
		Budget:     r.BudgetState().String(),
		BudgetUsed: r.BudgetUsed(),
		Fired:      r.Fired(),
		Production: prod,
	}
	e := ledger.EnergyPerAntiproton()
	if !math.IsInf(e, 0) {
		summary.EnergyPerPbJ = &e
	}
	summary.EnergyOK = r.Thresholds().EnergyPerPbarOK(e)
	if summary.Stability, err = feasibility.AssessStability(gamma, cfg.Run.DT, r.Thresholds()); err != nil {
		slog.Warn("stability assessment failed", "error", err)
	}

	if cfg.Telemetry.TimelinePath != "" && om != nil {
		events, err := telemetry.ReadEventsFile(cfg.Telemetry.TimelinePath)
		if err != nil {
			slog.Warn("failed to read timeline back", "error", err)
		} else {
			s := telemetry.SummarizeTimeline(events)
			s.Path = cfg.Telemetry.TimelinePath
			summary.Timeline = &s
			if err := om.WriteTimeline(events); err != nil {
				slog.Warn("failed to write timeline csv", "error", err)
			}
		}
	}
	if err := om.WriteJSON("summary.json", summary); err != nil {
		slog.Warn("failed to write summary", "error", err)
	}
	if om != nil && ledger.Total() > 0 {
		if err := ledger.WriteChannelReport(filepath.Join(om.Dir(), "energy.json")); err != nil {
			slog.Warn("failed to write energy report", "error", err)
		}
	}

	slog.Info("run complete",
		"steps", r.Steps(),
		"time_s", r.TimeS(),
		"fired", r.Fired(),
		"budget", r.BudgetState().String(),
		"yield", prod.YieldCm3S,
		"fom", prod.FOM,
	)

	if sweep {
		return runSweep(ctx, cfg, om, progress)
	}
	return nil
}

// stepLoop advances r for cfg.Run.Steps steps, writing step and perf rows.
// It returns the gamma proxy sampled after every step.
func stepLoop(ctx context.Context, cfg *config.Config, r *reactor.Reactor, om *telemetry.OutputManager, perf *telemetry.PerfCollector) ([]float64, error) {
	dt := cfg.Run.DT
	gamma := make([]float64, 0, cfg.Run.Steps)
	for i := 1; i <= cfg.Run.Steps; i++ {
		if cfg.Hardware.Enabled {
			err := r.StepWithHardware(ctx, dt, cfg.Derived.HardwareTimeout)
			var te *reactor.TimeoutError
			switch {
			case errors.As(err, &te):
				slog.Warn("hardware timeout", "step", i, "elapsed", te.Elapsed, "limit", te.Limit)
			case err != nil:
				return nil, err
			}
		} else {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			r.Step(dt)
		}
		gamma = append(gamma, r.GammaProxy())

		if cfg.BField.AdjustAlpha > 0 && i%cfg.BField.AdjustEvery == 0 {
			r.AdjustRipple(cfg.BField.AdjustAlpha)
		}

		if i%cfg.Run.LogEvery == 0 {
			rec := r.Observe()
			if err := om.WriteStep(rec); err != nil {
				return nil, err
			}
			slog.Debug("step",
				"step", rec.Step,
				"time_s", rec.TimeS,
				"wmax", rec.Wmax,
				"ripple", rec.Ripple,
				"fired", rec.Fired,
			)
		}

		if i%cfg.Telemetry.PerfWindow == 0 {
			stats := perf.Stats()
			stats.LogStats()
			if err := om.WritePerf(stats, i); err != nil {
				return nil, err
			}
		}
	}
	return gamma, nil
}

// runSweep scans the configured xi/ripple grid and writes sweep.csv. Points
// missing the production gates are reported to progress, and the summed
// energy account goes to sweep_energy.json.
func runSweep(ctx context.Context, cfg *config.Config, om *telemetry.OutputManager, progress telemetry.Sink) error {
	sc := cfg.Sweep
	points := ensemble.Grid(sc.XiMin, sc.XiMax, sc.XiSteps, sc.RippleMin, sc.RippleMax, sc.RippleSteps)

	base := reactor.OptionsFromConfig(cfg)
	start := time.Now()
	outcomes, err := ensemble.Sweep(ctx, ensemble.Options{
		Base:    base,
		Steps:   sc.Steps,
		DT:      cfg.Run.DT,
		Workers: sc.Workers,

		Progress: progress,
	}, points)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	confined, failed := 0, 0
	best := -1
	for i, o := range outcomes {
		if o.Confined {
			confined++
		}
		if o.ProductionFailed {
			failed++
		}
		if best < 0 || o.Production.FOM > outcomes[best].Production.FOM {
			best = i
		}
	}
	attrs := []any{
		"points", len(outcomes),
		"confined", confined,
		"production_failed", failed,
		"elapsed", time.Since(start),
	}
	if best >= 0 {
		attrs = append(attrs, "best_xi", outcomes[best].Point.Xi, "best_ripple", outcomes[best].Point.RipplePct, "best_fom", outcomes[best].Production.FOM)
	}
	ledger := ensemble.MergedLedger(outcomes)
	if ledger.Total() > 0 {
		th := base.Thresholds.Merge(feasibility.DefaultThresholds())
		e := ledger.EnergyPerAntiproton()
		attrs = append(attrs, "energy_J", ledger.Total(), "energy_ok", th.EnergyPerPbarOK(e))
		if !math.IsInf(e, 0) {
			attrs = append(attrs, "energy_per_pbar_J", e)
		}
	}
	slog.Info("sweep complete", attrs...)

	if om != nil && ledger.Total() > 0 {
		if err := ledger.WriteChannelReport(filepath.Join(om.Dir(), "sweep_energy.json")); err != nil {
			slog.Warn("failed to write sweep energy report", "error", err)
		}
	}
	return om.WriteSweep(ensemble.Records(outcomes))
}

// serveMetrics exposes the default Prometheus registry on addr. The returned
// func shuts the server down; an empty addr serves nothing.
func serveMetrics(addr string) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
