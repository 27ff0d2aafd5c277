package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNDJSONSinkWritesOneLinePerEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "timeline.ndjson")
	sink, err := OpenNDJSON(path)
	if err != nil {
		t.Fatalf("OpenNDJSON: %v", err)
	}

	if err := sink.Append(NewEvent(KindVortexStabilized, StatusOK, Details{"wmax": 1.0})); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := sink.Append(NewEvent(KindHardwareTimeout, StatusFail, nil)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		lines = append(lines, m)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[0]["event"] != "vortex_stabilized" || lines[0]["status"] != "ok" {
		t.Errorf("first line = %v", lines[0])
	}
	if _, ok := lines[0]["ts"].(string); !ok {
		t.Errorf("ts missing: %v", lines[0])
	}
	if _, ok := lines[1]["details"]; ok {
		t.Errorf("empty details should be omitted: %v", lines[1])
	}
	if _, ok := lines[1]["code"]; ok {
		t.Errorf("empty code should be omitted: %v", lines[1])
	}
}

func TestNDJSONSinkAppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline.ndjson")
	for i := 0; i < 2; i++ {
		sink, err := OpenNDJSON(path)
		if err != nil {
			t.Fatal(err)
		}
		sink.Append(NewEvent(KindBFieldCheck, StatusOK, nil))
		sink.Close()
	}
	events, err := ReadEventsFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Errorf("events = %d, want 2", len(events))
	}
}

func TestNDJSONSinkNilSafe(t *testing.T) {
	var sink *NDJSONSink
	if err := sink.Append(NewEvent(KindBFieldCheck, StatusOK, nil)); err != nil {
		t.Errorf("nil Append = %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Errorf("nil Close = %v", err)
	}
}

func TestNDJSONSinkWriter(t *testing.T) {
	var buf bytes.Buffer
	sink := NewNDJSONSink(&buf)
	sink.Append(NewEvent(KindStabilityCheck, StatusOK, Details{"gamma": 150.0}))
	if err := sink.Close(); err != nil {
		t.Errorf("Close on borrowed writer = %v", err)
	}
	if !bytes.HasSuffix(buf.Bytes(), []byte("\n")) || bytes.Count(buf.Bytes(), []byte("\n")) != 1 {
		t.Errorf("output = %q", buf.String())
	}
}

func TestMemorySink(t *testing.T) {
	var m MemorySink
	m.Append(NewEvent(KindBFieldCheck, StatusOK, nil))
	m.Append(NewEvent(KindBFieldCheck, StatusFail, nil))
	m.Append(NewEvent(KindVortexStabilized, StatusOK, nil))

	if m.Len() != 3 || m.Count(KindBFieldCheck) != 2 {
		t.Errorf("Len = %d, Count = %d", m.Len(), m.Count(KindBFieldCheck))
	}
	events := m.Events()
	events[0].Status = StatusWarn
	if m.Events()[0].Status != StatusOK {
		t.Error("Events should return a copy")
	}
}
