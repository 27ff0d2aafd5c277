package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"
)

// Summary aggregates a timeline.
type Summary struct {
	Path            string             `json:"path,omitempty"`
	Total           int                `json:"total"`
	Counts          map[Kind]int       `json:"counts"`
	StatusCounts    map[Status]int     `json:"status_counts"`
	FirstTS         *time.Time         `json:"first_ts"`
	LastTS          *time.Time         `json:"last_ts"`
	WmaxMin         *float64           `json:"wmax_min"`
	WmaxMax         *float64           `json:"wmax_max"`
	PerfCount       int                `json:"perf_count,omitempty"`
	PerfPercentiles map[string]float64 `json:"perf_percentiles,omitempty"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// SummarizeTimeline counts events per kind and status, tracks the first and
// last timestamps, the wmax range and percentiles of any elapsed_s details.
func SummarizeTimeline(events []Event) Summary {
	s := Summary{
		Total:        len(events),
		Counts:       make(map[Kind]int),
		StatusCounts: make(map[Status]int),
	}
	var elapsed []float64
	for _, e := range events {
		s.Counts[e.Event]++
		s.StatusCounts[e.Status]++
		if !e.TS.IsZero() {
			ts := e.TS
			if s.FirstTS == nil {
				s.FirstTS = &ts
			}
			s.LastTS = &ts
		}
		if w, ok := DetailFloat(e.Details, "wmax"); ok {
			if s.WmaxMin == nil || w < *s.WmaxMin {
				s.WmaxMin = &w
			}
			if s.WmaxMax == nil || w > *s.WmaxMax {
				s.WmaxMax = &w
			}
		}
		if v, ok := DetailFloat(e.Details, "elapsed_s"); ok {
			elapsed = append(elapsed, v)
		}
	}
	if len(elapsed) > 0 {
		sort.Float64s(elapsed)
		s.PerfCount = len(elapsed)
		s.PerfPercentiles = map[string]float64{
			"p50": Percentile(elapsed, 0.50),
			"p90": Percentile(elapsed, 0.90),
			"p99": Percentile(elapsed, 0.99),
		}
	}
	return s
}

// DetailFloat reads a numeric detail regardless of how it was decoded.
func DetailFloat(d Details, key string) (float64, bool) {
	v, ok := d[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// ReadEvents decodes an NDJSON timeline, skipping blank lines.
func ReadEvents(r io.Reader) ([]Event, error) {
	var events []Event
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(b, &e); err != nil {
			return events, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, e)
	}
	if err := sc.Err(); err != nil {
		return events, fmt.Errorf("reading timeline: %w", err)
	}
	return events, nil
}

// ReadEventsFile reads an NDJSON timeline from path.
func ReadEventsFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadEvents(f)
}

// LogValue implements slog.LogValuer for structured logging.
func (s Summary) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("total", s.Total),
	}
	for k, n := range s.Counts {
		attrs = append(attrs, slog.Int(string(k), n))
	}
	if s.WmaxMax != nil {
		attrs = append(attrs, slog.Float64("wmax_max", *s.WmaxMax))
	}
	return slog.GroupValue(attrs...)
}
