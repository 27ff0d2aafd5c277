package telemetry

import (
	"math"
	"strings"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.9},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestSummarizeTimeline(t *testing.T) {
	t0 := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	events := []Event{
		{Event: KindVortexStabilized, Status: StatusOK, TS: t0, Details: Details{"wmax": 0.9}},
		{Event: KindBFieldCheck, Status: StatusFail, TS: t0.Add(time.Second), Details: Details{"ripple": 0.01}},
		{Event: KindVortexStabilized, Status: StatusOK, TS: t0.Add(2 * time.Second), Details: Details{"wmax": 0.4}},
		{Event: KindHardwareSimulation, Status: StatusOK, TS: t0.Add(3 * time.Second), Details: Details{"elapsed_s": 2.0}},
		{Event: KindHardwareSimulation, Status: StatusOK, TS: t0.Add(4 * time.Second), Details: Details{"elapsed_s": 1.0}},
	}

	s := SummarizeTimeline(events)

	if s.Total != 5 {
		t.Errorf("Total = %d, want 5", s.Total)
	}
	if s.Counts[KindVortexStabilized] != 2 || s.Counts[KindBFieldCheck] != 1 {
		t.Errorf("Counts = %v", s.Counts)
	}
	if s.StatusCounts[StatusFail] != 1 {
		t.Errorf("StatusCounts = %v", s.StatusCounts)
	}
	if s.FirstTS == nil || !s.FirstTS.Equal(t0) {
		t.Errorf("FirstTS = %v, want %v", s.FirstTS, t0)
	}
	if s.LastTS == nil || !s.LastTS.Equal(t0.Add(4*time.Second)) {
		t.Errorf("LastTS = %v", s.LastTS)
	}
	if s.WmaxMin == nil || *s.WmaxMin != 0.4 || s.WmaxMax == nil || *s.WmaxMax != 0.9 {
		t.Errorf("wmax range = %v..%v", s.WmaxMin, s.WmaxMax)
	}
	if s.PerfCount != 2 || s.PerfPercentiles["p50"] != 1.5 {
		t.Errorf("perf = %d %v", s.PerfCount, s.PerfPercentiles)
	}
}

func TestSummarizeTimelineEmpty(t *testing.T) {
	s := SummarizeTimeline(nil)
	if s.Total != 0 || s.FirstTS != nil || s.WmaxMin != nil || s.PerfPercentiles != nil {
		t.Errorf("empty summary = %+v", s)
	}
}

func TestReadEvents(t *testing.T) {
	input := `{"event":"vortex_stabilized","status":"ok","ts":"2025-01-02T03:04:05.123456+00:00","details":{"wmax":1.0}}

{"event":"hardware_timeout","status":"fail","ts":"2025-01-02T03:04:06Z","code":"HW1"}
`
	events, err := ReadEvents(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if w, ok := DetailFloat(events[0].Details, "wmax"); !ok || w != 1.0 {
		t.Errorf("wmax = %v %v", w, ok)
	}
	if events[1].Code != "HW1" || events[1].Status != StatusFail {
		t.Errorf("second event = %+v", events[1])
	}

	if _, err := ReadEvents(strings.NewReader("{not json}\n")); err == nil {
		t.Error("expected an error for malformed input")
	}
}
