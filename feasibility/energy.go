package feasibility

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"os"
	"sync"
)

// Ledger accumulates input energy, optionally split by channel, and the
// antiproton count it was spent on. Safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	energyJ  float64
	nPbar    float64
	channels map[string]float64
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{channels: make(map[string]float64)}
}

// AddPowerSample adds powerW*dtS joules.
func (l *Ledger) AddPowerSample(powerW, dtS float64) {
	l.mu.Lock()
	l.energyJ += powerW * dtS
	l.mu.Unlock()
}

// AddChannelEnergy adds powerW*dtS joules to the total and to channel.
func (l *Ledger) AddChannelEnergy(channel string, powerW, dtS float64) {
	e := powerW * dtS
	l.mu.Lock()
	l.energyJ += e
	l.channels[channel] += e
	l.mu.Unlock()
}

// Total returns the accumulated energy in joules.
func (l *Ledger) Total() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.energyJ
}

// SetYield records the antiproton count, clamped to >= 0.
func (l *Ledger) SetYield(nPbar float64) {
	l.mu.Lock()
	l.nPbar = math.Max(0, nPbar)
	l.mu.Unlock()
}

// EnergyPerAntiproton returns J per antiproton, +Inf when nothing was produced.
func (l *Ledger) EnergyPerAntiproton() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.nPbar <= 0 {
		return math.Inf(1)
	}
	return l.energyJ / l.nPbar
}

// Channels returns a copy of the per-channel totals.
func (l *Ledger) Channels() map[string]float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return maps.Clone(l.channels)
}

// ChannelReport is the JSON document written by WriteChannelReport.
type ChannelReport struct {
	TotalEnergyJ float64            `json:"total_energy_J"`
	Channels     map[string]float64 `json:"channels"`
}

// WriteChannelReport writes the channel breakdown as indented JSON.
func (l *Ledger) WriteChannelReport(path string) error {
	report := ChannelReport{TotalEnergyJ: l.Total(), Channels: l.Channels()}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal channel report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write channel report: %w", err)
	}
	return nil
}

// MergeLedgers sums energies, yields and channels into a new ledger.
func MergeLedgers(ledgers ...*Ledger) *Ledger {
	out := NewLedger()
	for _, l := range ledgers {
		if l == nil {
			continue
		}
		l.mu.Lock()
		out.energyJ += l.energyJ
		out.nPbar += l.nPbar
		for k, v := range l.channels {
			out.channels[k] += v
		}
		l.mu.Unlock()
	}
	return out
}
