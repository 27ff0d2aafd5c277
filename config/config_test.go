package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pthm-cable/vortex/feasibility"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Derived.Rows != 64 || cfg.Derived.Cols != 64 {
		t.Errorf("grid = %dx%d, want 64x64", cfg.Derived.Rows, cfg.Derived.Cols)
	}
	if cfg.Reactor.Xi != 2.0 || cfg.Reactor.RipplePct != 0.005 || cfg.Reactor.TeEV != 10 {
		t.Errorf("reactor = %+v", cfg.Reactor)
	}
	if !cfg.Reactor.EnforceDensity {
		t.Error("enforce_density should default to true")
	}
	if cfg.Telemetry.Budget != nil {
		t.Errorf("budget = %v, want unlimited", *cfg.Telemetry.Budget)
	}
	if cfg.Thresholds != feasibility.DefaultThresholds() {
		t.Errorf("thresholds = %+v", cfg.Thresholds)
	}
	if cfg.Derived.HardwareTimeout != 60*time.Second {
		t.Errorf("hardware timeout = %v", cfg.Derived.HardwareTimeout)
	}
	if cfg.Derived.YieldModel != feasibility.YieldLegacy {
		t.Errorf("yield model = %q", cfg.Derived.YieldModel)
	}
}

func TestLoadMergesUserFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	data := []byte(`
reactor:
  grid: [32, 16]
  enforce_density: false
telemetry:
  budget: 5
thresholds:
  confinement_min: 0.9
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Derived.Rows != 32 || cfg.Derived.Cols != 16 {
		t.Errorf("grid = %dx%d", cfg.Derived.Rows, cfg.Derived.Cols)
	}
	if cfg.Reactor.EnforceDensity {
		t.Error("enforce_density override ignored")
	}
	if cfg.Reactor.Nu != 0.001 {
		t.Errorf("nu = %v, default should survive", cfg.Reactor.Nu)
	}
	if cfg.Telemetry.Budget == nil || *cfg.Telemetry.Budget != 5 {
		t.Errorf("budget = %v", cfg.Telemetry.Budget)
	}
	if cfg.Thresholds.ConfinementMin != 0.9 || cfg.Thresholds.GammaMin != 140 {
		t.Errorf("thresholds = %+v", cfg.Thresholds)
	}
}

func TestLoadAcceptsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	if err := os.WriteFile(path, []byte(`{"reactor": {"grid": [8, 8], "xi": 3.5}}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Reactor.Xi != 3.5 || cfg.Derived.Rows != 8 {
		t.Errorf("reactor = %+v", cfg.Reactor)
	}
}

func TestLoadNonPositiveHardwareTimeout(t *testing.T) {
	for _, body := range []string{
		"hardware:\n  timeout_s: 0\n",
		"hardware:\n  timeout_s: -5\n",
	} {
		path := filepath.Join(t.TempDir(), "hw.yaml")
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%q): %v", body, err)
		}
		if cfg.Derived.HardwareTimeout != 60*time.Second {
			t.Errorf("Load(%q) timeout = %v, want 1m0s", body, cfg.Derived.HardwareTimeout)
		}
		if cfg.Hardware.TimeoutS != 60 {
			t.Errorf("Load(%q) timeout_s = %v, want 60", body, cfg.Hardware.TimeoutS)
		}
	}
}

func TestLoadRejectsBadGrid(t *testing.T) {
	for _, body := range []string{
		"reactor:\n  grid: [0, 4]\n",
		"reactor:\n  grid: [4]\n",
		"reactor:\n  grid: [4, -1]\n",
	} {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); !errors.Is(err, ErrGrid) {
			t.Errorf("Load(%q) err = %v, want ErrGrid", body, err)
		}
	}
}

func TestLoadRejectsUnknownYieldModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("yield:\n  model: magic\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected an error for an unknown yield model")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg := Defaults()
	n := 7
	cfg.Telemetry.Budget = &n
	cfg.Reactor.Grid = []int{16, 24}

	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if back.Derived.Rows != 16 || back.Derived.Cols != 24 {
		t.Errorf("grid = %dx%d", back.Derived.Rows, back.Derived.Cols)
	}
	if back.Telemetry.Budget == nil || *back.Telemetry.Budget != 7 {
		t.Errorf("budget = %v", back.Telemetry.Budget)
	}
}

func TestCfgPanicsBeforeInit(t *testing.T) {
	saved := global
	global = nil
	defer func() {
		global = saved
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Cfg()
}
