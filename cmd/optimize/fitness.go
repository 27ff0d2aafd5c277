package main

import (
	"math"
	"math/rand"
	"sync"

	"github.com/pthm-cable/vortex/config"
	"github.com/pthm-cable/vortex/reactor"
	"github.com/pthm-cable/vortex/systems"
	"github.com/pthm-cable/vortex/telemetry"
)

// gatePenalty scales the confinement shortfall added to the fitness.
const gatePenalty = 100.0

// minFOM floors the figure of merit before taking its log.
const minFOM = 1e-300

// FitnessEvaluator runs short reactor runs and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	steps      int
	seeds      []int64
	baseConfig *config.Config

	// Best run tracking
	mu          sync.Mutex
	bestFitness float64
	bestResult  runResult
	lastResult  runResult // mean of the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, steps int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		steps:       steps,
		seeds:       seeds,
		baseConfig:  baseCfg,
		bestFitness: math.Inf(1),
	}
}

// runResult holds the outcome of a single reactor run.
type runResult struct {
	Efficiency float64            `json:"efficiency"`
	Production reactor.Production `json:"production"`
	Confined   bool               `json:"confined"`
	Fitness    float64            `json:"fitness"`
}

// Best returns the lowest fitness seen and the run that produced it.
func (fe *FitnessEvaluator) Best() (float64, runResult) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestFitness, fe.bestResult
}

// LastResult returns the seed-averaged result of the most recent evaluation.
func (fe *FitnessEvaluator) LastResult() runResult {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastResult
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
// Fitness is -log10(FOM) plus a penalty for missing the confinement gate.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	// Run all seeds in parallel
	results := make([]runResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runReactor(cfg, s)
		}(i, seed)
	}
	wg.Wait()

	// Aggregate results
	var mean runResult
	bestSeed := 0
	for i, r := range results {
		mean.Fitness += r.Fitness
		mean.Efficiency += r.Efficiency
		mean.Production.YieldCm3S += r.Production.YieldCm3S
		mean.Production.EnergyJ += r.Production.EnergyJ
		mean.Production.FOM += r.Production.FOM
		if r.Fitness < results[bestSeed].Fitness {
			bestSeed = i
		}
	}
	n := float64(len(results))
	mean.Fitness /= n
	mean.Efficiency /= n
	mean.Production.YieldCm3S /= n
	mean.Production.EnergyJ /= n
	mean.Production.FOM /= n
	mean.Confined = results[bestSeed].Confined

	// Update best tracking
	fe.mu.Lock()
	if mean.Fitness < fe.bestFitness {
		fe.bestFitness = mean.Fitness
		fe.bestResult = results[bestSeed]
	}
	fe.lastResult = mean
	fe.mu.Unlock()

	return mean.Fitness
}

// EvaluateValues runs the first seed at the named parameter values. It backs
// the uncertainty sweep.
func (fe *FitnessEvaluator) EvaluateValues(values map[string]float64) map[string]float64 {
	cfg := fe.copyConfig()
	applyValues(cfg, values)
	var seed int64 = 42
	if len(fe.seeds) > 0 {
		seed = fe.seeds[0]
	}
	r := fe.runReactor(cfg, seed)
	confined := 0.0
	if r.Confined {
		confined = 1
	}
	return map[string]float64{
		"efficiency": r.Efficiency,
		"yield":      r.Production.YieldCm3S,
		"fom":        r.Production.FOM,
		"confined":   confined,
		"fitness":    r.Fitness,
	}
}

// runReactor executes one headless run. The seed drives the synthetic
// B-field series and forcing noise.
func (fe *FitnessEvaluator) runReactor(cfg *config.Config, seed int64) runResult {
	rng := rand.New(rand.NewSource(seed))

	opts := reactor.OptionsFromConfig(cfg)
	opts.Timeline = &telemetry.MemorySink{}
	if cfg.BField.Enabled {
		opts.BSeries = systems.SimulateBFieldRipple(rng, cfg.BField.Samples, cfg.BField.BaseT, cfg.BField.RipplePct)
	}
	if cfg.Forcing.Amplitude != 0 {
		opts.Forcing = systems.NewNoiseForcing(rng, cfg.Forcing.Amplitude, cfg.Forcing.Scale, cfg.Forcing.TimeSpeed)
	}

	r, err := reactor.New(opts)
	if err != nil {
		return runResult{Fitness: math.Inf(1)}
	}
	for i := 0; i < fe.steps; i++ {
		r.Step(cfg.Run.DT)
	}

	res := runResult{
		Efficiency: r.Efficiency(),
		Production: r.Production(),
		Confined:   r.HasFired(telemetry.KindConfinement),
	}
	res.Fitness = computeFitness(res, r.Thresholds().ConfinementMin)
	return res
}

// computeFitness calculates the scalar fitness (lower = better).
func computeFitness(r runResult, confinementMin float64) float64 {
	f := -math.Log10(math.Max(r.Production.FOM, minFOM))
	if short := confinementMin - r.Efficiency; short > 0 {
		f += gatePenalty * short
	}
	return f
}

// copyConfig creates a copy of the base config that ApplyToConfig may change.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	return &cfg
}
