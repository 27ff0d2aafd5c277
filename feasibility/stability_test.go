package feasibility

import (
	"encoding/json"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStabilityDurationBoundaries(t *testing.T) {
	const dt, thr = 0.002, 140.0
	assert.False(t, StabilityDuration([]float64{150, 100, 100}, dt, thr, 0.004))
	assert.True(t, StabilityDuration([]float64{150, 150, 150}, dt, thr, 0.004))
	assert.False(t, StabilityDuration([]float64{150, 100, 150, 100}, dt, thr, 0.004))
	assert.True(t, StabilityDuration([]float64{100, 141}, 1, thr, 0.5))
	assert.False(t, StabilityDuration(nil, dt, thr, 0.004))
}

func TestStabilityProbability(t *testing.T) {
	s := []float64{150, 100, 150, 150}
	assert.InDelta(t, 0.75, StabilityProbability(s, 140, 0), 1e-12)
	assert.InDelta(t, 0.5, StabilityProbability(s, 140, 2), 1e-12)
	assert.InDelta(t, 0.75, StabilityProbability(s, 140, 99), 1e-12)
	assert.Equal(t, 0.0, StabilityProbability(nil, 140, 0))
}

func TestStabilityVariance(t *testing.T) {
	assert.Equal(t, 0.0, StabilityVariance(nil))
	assert.InDelta(t, 1.0, StabilityVariance([]float64{4, 6}), 1e-12)
}

func TestEMA(t *testing.T) {
	out, err := EMA([]float64{0, 10, 10}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 5, 7.5}, out)

	_, err = EMA([]float64{1}, 0)
	assert.ErrorIs(t, err, ErrSmoothing)

	out, err = EMA(nil, 2)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestWindowedGamma(t *testing.T) {
	w, err := WindowedGamma([]float64{1, 3, 2, 5}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 2}, w.Min)
	assert.Equal(t, []float64{3, 3, 5}, w.Max)
	assert.Equal(t, []float64{2, 2.5, 3.5}, w.Mean)

	short, err := WindowedGamma([]float64{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, short.Mean)

	_, err = WindowedGamma([]float64{1}, 0)
	assert.ErrorIs(t, err, ErrWindow)
}

func TestAssessStability(t *testing.T) {
	th := DefaultThresholds()
	gamma := []float64{100, 150, 150, 150, 150, 150, 100}

	rep, err := AssessStability(gamma, 0.002, th)
	require.NoError(t, err)
	assert.True(t, rep.GammaOK)
	assert.Equal(t, 7, rep.Samples)
	assert.InDelta(t, 5.0/7, rep.Probability, 1e-12)
	assert.InDelta(t, StabilityVariance(gamma), rep.Variance, 1e-12)
	assert.Equal(t, 100.0, rep.WindowMin)
	assert.Equal(t, 150.0, rep.WindowMax)
	assert.Greater(t, rep.Smoothed, 100.0)
	assert.Less(t, rep.Smoothed, 150.0)

	// Four stable samples cover only 8 ms of the 10 ms gate.
	rep, err = AssessStability([]float64{150, 150, 150, 150}, 0.002, th)
	require.NoError(t, err)
	assert.False(t, rep.GammaOK)
	assert.Equal(t, 1.0, rep.Probability)

	rep, err = AssessStability(nil, 0.002, th)
	require.NoError(t, err)
	assert.Equal(t, StabilityReport{}, rep)
}

func TestLedger(t *testing.T) {
	l := NewLedger()
	assert.True(t, math.IsInf(l.EnergyPerAntiproton(), 1))

	l.AddPowerSample(100, 2)
	l.AddChannelEnergy("rf", 10, 3)
	l.AddChannelEnergy("rf", 10, 1)
	l.AddChannelEnergy("magnets", 5, 2)
	assert.InDelta(t, 250.0, l.Total(), 1e-12)
	assert.Equal(t, map[string]float64{"rf": 40, "magnets": 10}, l.Channels())

	l.SetYield(-3)
	assert.True(t, math.IsInf(l.EnergyPerAntiproton(), 1))
	l.SetYield(50)
	assert.InDelta(t, 5.0, l.EnergyPerAntiproton(), 1e-12)

	other := NewLedger()
	other.AddChannelEnergy("rf", 1, 10)
	other.SetYield(50)
	merged := MergeLedgers(l, other, nil)
	assert.InDelta(t, 260.0, merged.Total(), 1e-12)
	assert.InDelta(t, 2.6, merged.EnergyPerAntiproton(), 1e-12)
	assert.InDelta(t, 50.0, merged.Channels()["rf"], 1e-12)

	path := filepath.Join(t.TempDir(), "channels.json")
	require.NoError(t, merged.WriteChannelReport(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var report ChannelReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.InDelta(t, 260.0, report.TotalEnergyJ, 1e-12)
	assert.Len(t, report.Channels, 2)
}

func TestFitDecayAlpha(t *testing.T) {
	times := []float64{0, 1, 2}
	ripples := []float64{0.01, 0.008, 0.01 * math.Exp(-0.2)}
	assert.InDelta(t, 0.1, FitDecayAlpha(times, ripples), 1e-12)

	assert.Equal(t, DefaultDecayAlpha, FitDecayAlpha([]float64{0}, []float64{1}))
	assert.Equal(t, DefaultDecayAlpha, FitDecayAlpha([]float64{1, 0}, []float64{1, 1}))
	assert.Equal(t, DefaultDecayAlpha, FitDecayAlpha([]float64{0, 1}, []float64{0, 1}))
	// Growth clamps to the lower bound.
	assert.Equal(t, 1e-6, FitDecayAlpha([]float64{0, 1}, []float64{1, 2}))
}

func TestRunUQ(t *testing.T) {
	ranges := map[string]Range{"xi": {Lo: 1, Hi: 3}, "ripple": {Lo: 0, Hi: 0.01}}
	eval := func(p map[string]float64) map[string]float64 {
		return map[string]float64{"eff": ConfinementEfficiency(p["xi"], p["ripple"])}
	}

	a := RunUQ(rand.New(rand.NewSource(3)), 50, ranges, eval)
	b := RunUQ(rand.New(rand.NewSource(3)), 50, ranges, eval)
	require.Len(t, a.Results, 50)
	assert.Equal(t, a.Means, b.Means)
	assert.Greater(t, a.Means["eff"], 0.9)
	assert.LessOrEqual(t, a.Means["eff"], 0.96)

	empty := RunUQ(rand.New(rand.NewSource(3)), 0, ranges, eval)
	assert.Empty(t, empty.Results)
	assert.Empty(t, empty.Means)
}
