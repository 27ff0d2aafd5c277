package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/pthm-cable/vortex/config"
)

// StepRecord is one row of steps.csv.
type StepRecord struct {
	Step       int     `csv:"step"`
	TimeS      float64 `csv:"time_s"`
	Wmax       float64 `csv:"wmax"`
	PsiMax     float64 `csv:"psi_max"`
	NeCm3      float64 `csv:"ne_cm3"`
	TeEV       float64 `csv:"te_ev"`
	Efficiency float64 `csv:"efficiency"`
	Ripple     float64 `csv:"ripple"`
	YieldCm3S  float64 `csv:"yield_cm3_s"`
	Fired      int     `csv:"fired"`
	BudgetUsed int     `csv:"budget_used"`
}

// SweepRecord is one row of sweep.csv.
type SweepRecord struct {
	Index      int     `csv:"index"`
	Xi         float64 `csv:"xi"`
	Ripple     float64 `csv:"ripple"`
	NeCm3      float64 `csv:"ne_cm3"`
	TeEV       float64 `csv:"te_ev"`
	Efficiency float64 `csv:"efficiency"`
	Wmax       float64 `csv:"wmax"`
	YieldCm3S  float64 `csv:"yield_cm3_s"`
	FOM        float64 `csv:"fom"`
	Events     int     `csv:"events"`
	Confined   bool    `csv:"confined"`
	Failed     bool    `csv:"production_failed"`
}

// TimelineRow is a flattened event for timeline.csv. Common details get
// their own columns; everything is also kept as JSON.
type TimelineRow struct {
	TS          string  `csv:"ts"`
	Event       string  `csv:"event"`
	Status      string  `csv:"status"`
	Code        string  `csv:"code"`
	Wmax        float64 `csv:"wmax"`
	Efficiency  float64 `csv:"efficiency"`
	NeCm3       float64 `csv:"ne_cm3"`
	YieldCm3S   float64 `csv:"yield_cm3_s"`
	Gamma       float64 `csv:"gamma"`
	DetailsJSON string  `csv:"details_json"`
}

// NewTimelineRow flattens e.
func NewTimelineRow(e Event) TimelineRow {
	row := TimelineRow{
		Event:  string(e.Event),
		Status: string(e.Status),
		Code:   e.Code,
	}
	if !e.TS.IsZero() {
		row.TS = e.TS.Format("2006-01-02T15:04:05.000000Z07:00")
	}
	row.Wmax, _ = DetailFloat(e.Details, "wmax")
	row.Efficiency, _ = DetailFloat(e.Details, "efficiency")
	row.NeCm3, _ = DetailFloat(e.Details, "ne_cm3")
	row.YieldCm3S, _ = DetailFloat(e.Details, "yield_cm3_s")
	row.Gamma, _ = DetailFloat(e.Details, "gamma")
	if len(e.Details) > 0 {
		if b, err := json.Marshal(e.Details); err == nil {
			row.DetailsJSON = string(b)
		}
	}
	return row
}

// csvTable appends rows to one CSV file, writing the header once.
type csvTable struct {
	name          string
	file          *os.File
	headerWritten bool
}

func (t *csvTable) write(records any) error {
	if !t.headerWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, t.file); err != nil {
			return fmt.Errorf("writing %s: %w", t.name, err)
		}
		t.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, t.file); err != nil {
		return fmt.Errorf("writing %s: %w", t.name, err)
	}
	return nil
}

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir    string
	tables map[string]*csvTable
}

const (
	stepsCSV    = "steps.csv"
	perfCSV     = "perf.csv"
	sweepCSV    = "sweep.csv"
	timelineCSV = "timeline.csv"
)

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &OutputManager{dir: dir, tables: make(map[string]*csvTable)}, nil
}

// table opens name lazily so runs only produce the files they use.
func (om *OutputManager) table(name string) (*csvTable, error) {
	if t, ok := om.tables[name]; ok {
		return t, nil
	}
	f, err := os.Create(filepath.Join(om.dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	t := &csvTable{name: name, file: f}
	om.tables[name] = t
	return t, nil
}

func (om *OutputManager) append(name string, records any) error {
	if om == nil {
		return nil
	}
	t, err := om.table(name)
	if err != nil {
		return err
	}
	return t.write(records)
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	configPath := filepath.Join(om.dir, "config.yaml")
	return cfg.WriteYAML(configPath)
}

// WriteStep appends a step record to steps.csv.
func (om *OutputManager) WriteStep(r StepRecord) error {
	return om.append(stepsCSV, []StepRecord{r})
}

// WritePerf appends a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int) error {
	return om.append(perfCSV, []PerfStatsCSV{stats.ToCSV(windowEnd)})
}

// WriteSweep appends sweep outcomes to sweep.csv.
func (om *OutputManager) WriteSweep(rows []SweepRecord) error {
	if len(rows) == 0 {
		return nil
	}
	return om.append(sweepCSV, rows)
}

// WriteTimeline appends flattened events to timeline.csv.
func (om *OutputManager) WriteTimeline(events []Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]TimelineRow, len(events))
	for i, e := range events {
		rows[i] = NewTimelineRow(e)
	}
	return om.append(timelineCSV, rows)
}

// WriteJSON saves v as indented JSON under name.
func (om *OutputManager) WriteJSON(name string, v any) error {
	if om == nil {
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(om.dir, name), data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, t := range om.tables {
		if err := t.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
