package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/pthm-cable/vortex/config"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and summaries (overrides config)")
	steps := flag.Int("steps", 0, "Number of steps (0 = use config)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = use config)")
	budget := flag.Int("budget", -1, "Timeline event budget (-1 = use config)")
	sweep := flag.Bool("sweep", false, "Run the xi/ripple sweep after the main run")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (overrides config)")
	verbose := flag.Bool("v", false, "Debug logging")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	runID := uuid.NewString()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).With("run_id", runID)
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	if *outputDir != "" {
		cfg.Run.OutputDir = *outputDir
	}
	if *steps > 0 {
		cfg.Run.Steps = *steps
	}
	if *seed != 0 {
		cfg.Run.Seed = *seed
	}
	if *budget >= 0 {
		n := *budget
		cfg.Telemetry.Budget = &n
	}
	if *metricsAddr != "" {
		cfg.Telemetry.MetricsAddr = *metricsAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, runID, *sweep); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}
