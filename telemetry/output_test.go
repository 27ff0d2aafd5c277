package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("NewOutputManager(\"\") = %v, %v", om, err)
	}
	if err := om.WriteStep(StepRecord{}); err != nil {
		t.Errorf("nil WriteStep = %v", err)
	}
	if err := om.Close(); err != nil {
		t.Errorf("nil Close = %v", err)
	}
}

func TestOutputManagerWritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		if err := om.WriteStep(StepRecord{Step: i, TimeS: float64(i) * 1e-3}); err != nil {
			t.Fatal(err)
		}
	}
	if err := om.WriteTimeline([]Event{
		NewEvent(KindVortexStabilized, StatusOK, Details{"wmax": 0.75}),
		NewEvent(KindHardwareTimeout, StatusFail, nil),
	}); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "steps.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("steps.csv lines = %d, want 4:\n%s", len(lines), data)
	}
	if !strings.HasPrefix(lines[0], "step,time_s,wmax") {
		t.Errorf("header = %q", lines[0])
	}

	timeline, err := os.ReadFile(filepath.Join(dir, "timeline.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(timeline), "vortex_stabilized,ok") {
		t.Errorf("timeline.csv = %s", timeline)
	}

	if _, err := os.Stat(filepath.Join(dir, "sweep.csv")); !os.IsNotExist(err) {
		t.Error("sweep.csv should not exist when unused")
	}
}

func TestNewTimelineRow(t *testing.T) {
	row := NewTimelineRow(NewEvent(KindAntiprotonYield, StatusOK, Details{"yield_cm3_s": 4e23, "ne_cm3": 1e20}))
	if row.YieldCm3S != 4e23 || row.NeCm3 != 1e20 {
		t.Errorf("row = %+v", row)
	}
	if !strings.Contains(row.DetailsJSON, "yield_cm3_s") {
		t.Errorf("DetailsJSON = %q", row.DetailsJSON)
	}
}
