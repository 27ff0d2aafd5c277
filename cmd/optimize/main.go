// Package main searches reactor parameters with CMA-ES for the best figure of
// merit that still passes the confinement gate, and optionally samples the
// configured ranges for an uncertainty report.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/vortex/config"
	"github.com/pthm-cable/vortex/feasibility"
)

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	steps := flag.Int("steps", 200, "Reactor steps per evaluation")
	seeds := flag.Int("seeds", 3, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 0, "Maximum number of evaluations (0 = use config)")
	population := flag.Int("population", 0, "CMA-ES population size (0 = use config, then auto)")
	uqSamples := flag.Int("uq", 0, "Run N uncertainty samples instead of optimizing (-1 = use config)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}

	// Create output directory
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	// Load base config
	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	baseCfg := config.Cfg()

	// Create parameter vector
	params := NewParamVector(baseCfg, baseCfg.Optimize.Ranges)

	// Generate seeds for evaluation
	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}

	// Create fitness evaluator
	evaluator := NewFitnessEvaluator(params, *steps, evalSeeds, baseCfg)

	if *uqSamples != 0 {
		n := *uqSamples
		if n < 0 {
			n = baseCfg.Optimize.UQSamples
		}
		runUQ(evaluator, baseCfg, n, *outputDir)
		return
	}

	evals := *maxEvals
	if evals == 0 {
		evals = baseCfg.Optimize.Evaluations
	}

	// Set up CMA-ES
	dim := params.Dim()
	initX := params.Normalize(params.DefaultVector())

	// Create optimization problem
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			// Denormalize to get raw parameter values
			raw := params.Denormalize(x)
			return evaluator.Evaluate(raw)
		},
	}

	// CMA-ES settings
	settings := &optimize.Settings{
		FuncEvaluations: evals,
		Concurrent:      0, // Sequential evaluation
	}

	// Population size
	popSize := *population
	if popSize == 0 {
		popSize = baseCfg.Optimize.Population
	}
	if popSize == 0 {
		// Auto-size: 4 + floor(3*ln(n))
		popSize = 4 + int(3.0*math.Log(float64(dim)))
	}

	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}

	// Open log file
	logPath := filepath.Join(*outputDir, "optimize_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	logWriter := csv.NewWriter(logFile)
	defer logWriter.Flush()

	// Write header
	header := []string{"eval", "fitness"}
	for _, spec := range params.Specs {
		header = append(header, spec.Name)
	}
	logWriter.Write(header)

	// Track evaluations and timing
	evalCount := 0
	var bestFitness float64 = 1e9
	var bestParams []float64
	startTime := time.Now()

	// Wrap the function to log evaluations
	originalFunc := problem.Func
	problem.Func = func(x []float64) float64 {
		fitness := originalFunc(x)
		evalCount++

		// Denormalize and clamp to get actual parameter values
		raw := params.Denormalize(x)
		clamped := params.Clamp(raw)
		if fitness < bestFitness {
			bestFitness = fitness
			bestParams = make([]float64, len(clamped))
			copy(bestParams, clamped)
		}

		// Log clamped values to CSV (these are the values actually used)
		row := []string{strconv.Itoa(evalCount), fmt.Sprintf("%.6f", fitness)}
		for _, v := range clamped {
			row = append(row, fmt.Sprintf("%.6f", v))
		}
		logWriter.Write(row)
		logWriter.Flush()

		// Calculate timing
		elapsed := time.Since(startTime)
		avgPerEval := elapsed / time.Duration(evalCount)
		remaining := time.Duration(evals-evalCount) * avgPerEval

		last := evaluator.LastResult()
		fmt.Printf("Eval %d/%d: fom=%.3g eff=%.4f fitness=%.3f (best=%.3f) | elapsed: %s, ETA: %s\n",
			evalCount, evals, last.Production.FOM, last.Efficiency, fitness, bestFitness,
			formatDuration(elapsed), formatDuration(remaining))

		return fitness
	}

	// Run optimization
	fmt.Printf("Starting CMA-ES optimization with %d parameters, population=%d, max_evals=%d\n",
		dim, popSize, evals)
	fmt.Printf("Seeds per evaluation: %d, steps per run: %d\n", *seeds, *steps)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}

	// Use best params found (may be from any evaluation, not just final)
	if bestParams == nil {
		bestParams = params.Denormalize(result.X)
	}

	totalTime := time.Since(startTime)
	fmt.Printf("\nOptimization complete after %d evaluations in %s\n", evalCount, formatDuration(totalTime))
	fmt.Printf("Best fitness: %.4f\n", bestFitness)

	// Print best parameters
	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6f\n", spec.Name, bestParams[i])
	}

	// Save best config
	bestCfg, _ := config.Load(*configPath)
	params.ApplyToConfig(bestCfg, bestParams)

	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}

	// Save the best run
	_, best := evaluator.Best()
	bestPath := filepath.Join(*outputDir, "best_run.json")
	if err := writeJSON(bestPath, best); err != nil {
		log.Printf("failed to write best run: %v", err)
	} else {
		fmt.Printf("Best run saved to: %s\n", bestPath)
	}
}

// runUQ samples the configured ranges n times and writes uq.json.
func runUQ(evaluator *FitnessEvaluator, cfg *config.Config, n int, outputDir string) {
	rng := rand.New(rand.NewSource(cfg.Run.Seed))
	fmt.Printf("Running %d uncertainty samples over %d parameters\n", n, len(cfg.Optimize.Ranges))

	start := time.Now()
	res := feasibility.RunUQ(rng, n, cfg.Optimize.Ranges, evaluator.EvaluateValues)
	fmt.Printf("UQ complete in %s\n", formatDuration(time.Since(start)))
	for _, k := range []string{"efficiency", "yield", "fom", "confined"} {
		fmt.Printf("  mean %s: %.6g\n", k, res.Means[k])
	}

	path := filepath.Join(outputDir, "uq.json")
	if err := writeJSON(path, res); err != nil {
		log.Fatalf("failed to write UQ report: %v", err)
	}
	fmt.Printf("UQ report saved to: %s\n", path)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
