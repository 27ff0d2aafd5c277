package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// Sink receives timeline events in append order.
type Sink interface {
	Append(Event) error
}

// NDJSONSink appends one JSON object per line to a file or writer.
// A nil NDJSONSink discards events.
type NDJSONSink struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// OpenNDJSON opens path for appending, creating it and its directory if needed.
func OpenNDJSON(path string) (*NDJSONSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating timeline directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &NDJSONSink{w: f, c: f}, nil
}

// NewNDJSONSink wraps an existing writer. The caller keeps ownership of w.
func NewNDJSONSink(w io.Writer) *NDJSONSink {
	return &NDJSONSink{w: w}
}

// Append writes e as a single line.
func (s *NDJSONSink) Append(e Event) error {
	if s == nil || s.w == nil {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", e.Event, err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("appending %s event: %w", e.Event, err)
	}
	return nil
}

// Close closes the underlying file when the sink owns one.
func (s *NDJSONSink) Close() error {
	if s == nil || s.c == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.c.Close()
	s.c = nil
	s.w = nil
	return err
}

// MemorySink keeps events in memory.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// Append records e.
func (m *MemorySink) Append(e Event) error {
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
	return nil
}

// Events returns a copy of everything appended so far.
func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

// Len returns the number of appended events.
func (m *MemorySink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// Count returns how many events of kind k were appended.
func (m *MemorySink) Count(k Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Event == k {
			n++
		}
	}
	return n
}
