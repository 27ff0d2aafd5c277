package ensemble

import (
	"context"
	"testing"

	"github.com/pthm-cable/vortex/reactor"
	"github.com/pthm-cable/vortex/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallOptions(steps, workers int) Options {
	base := reactor.DefaultOptions()
	base.Rows, base.Cols = 16, 16
	return Options{Base: base, Steps: steps, DT: 0.01, Workers: workers}
}

func TestGrid(t *testing.T) {
	points := Grid(0, 4, 3, 0.001, 0.002, 2)
	require.Len(t, points, 6)
	assert.Equal(t, ScanPoint{Xi: 0, RipplePct: 0.001}, points[0])
	assert.Equal(t, ScanPoint{Xi: 0, RipplePct: 0.002}, points[1])
	assert.Equal(t, ScanPoint{Xi: 2, RipplePct: 0.001}, points[2])
	assert.Equal(t, ScanPoint{Xi: 4, RipplePct: 0.002}, points[5])

	single := Grid(1.5, 9, 1, 0.003, 0.1, 0)
	assert.Equal(t, []ScanPoint{{Xi: 1.5, RipplePct: 0.003}}, single)
}

func TestSweepEmpty(t *testing.T) {
	out, err := Sweep(context.Background(), smallOptions(1, 1), nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestSweepConfinementByRipple(t *testing.T) {
	points := []ScanPoint{
		{Xi: 2, RipplePct: 0.005},
		{Xi: 2, RipplePct: 0.02},
		{Xi: 0, RipplePct: 0.001},
	}
	out, err := Sweep(context.Background(), smallOptions(2, 2), points)
	require.NoError(t, err)
	require.Len(t, out, 3)

	for i, o := range out {
		assert.Equal(t, i, o.Index)
		assert.True(t, o.Done)
		assert.Equal(t, points[i].Xi, o.Point.Xi)
		assert.Equal(t, points[i].RipplePct, o.Point.RipplePct)
	}
	assert.True(t, out[0].Confined)
	assert.False(t, out[1].Confined)
	assert.True(t, out[2].Confined)
	assert.Contains(t, out[0].Fired, telemetry.KindVortexStabilized)
	assert.Greater(t, out[0].Events, 0)
}

func TestSweepDeterministicAcrossWorkers(t *testing.T) {
	points := Grid(0, 3, 3, 0.001, 0.01, 3)

	serial, err := Sweep(context.Background(), smallOptions(3, 1), points)
	require.NoError(t, err)
	parallel, err := Sweep(context.Background(), smallOptions(3, 4), points)
	require.NoError(t, err)

	require.Len(t, parallel, len(serial))
	for i := range serial {
		assert.Equal(t, serial[i].Wmax, parallel[i].Wmax, "point %d", i)
		assert.Equal(t, serial[i].Confined, parallel[i].Confined, "point %d", i)
		assert.Equal(t, serial[i].Fired, parallel[i].Fired, "point %d", i)
	}
}

func TestSweepOverridesPlasmaState(t *testing.T) {
	opts := smallOptions(1, 1)
	opts.Base.EnforceDensity = false
	out, err := Sweep(context.Background(), opts, []ScanPoint{{Xi: 1, RipplePct: 0.005, NeCm3: 5e13, TeEV: 20}})
	require.NoError(t, err)
	assert.Equal(t, 5e13, out[0].Point.NeCm3)
	assert.Equal(t, 20.0, out[0].Point.TeEV)
}

func TestSweepLogsEdgeProductionFailures(t *testing.T) {
	points := Grid(1, 2, 2, 0.001, 0.002, 2)
	progress := &telemetry.MemorySink{}

	opts := smallOptions(2, 3)
	opts.Base.Thresholds.FOMMin = 1e300
	opts.Progress = progress
	out, err := Sweep(context.Background(), opts, points)
	require.NoError(t, err)
	for _, o := range out {
		assert.True(t, o.ProductionFailed, "point %d", o.Index)
	}
	assert.Equal(t, len(points), progress.Count(telemetry.KindEdgeProductionFail))

	passing := &telemetry.MemorySink{}
	opts = smallOptions(2, 3)
	opts.Base.Thresholds.FOMMin = -1
	opts.Base.Thresholds.ProductionYieldMin = -1
	opts.Progress = passing
	out, err = Sweep(context.Background(), opts, points)
	require.NoError(t, err)
	for _, o := range out {
		assert.False(t, o.ProductionFailed, "point %d", o.Index)
	}
	assert.Zero(t, passing.Len())
}

func TestMergedLedger(t *testing.T) {
	opts := smallOptions(4, 2)
	opts.Base.PowerW = 500
	points := []ScanPoint{{Xi: 1, RipplePct: 0.001}, {Xi: 2, RipplePct: 0.002}}
	out, err := Sweep(context.Background(), opts, points)
	require.NoError(t, err)

	var want float64
	for _, o := range out {
		require.NotNil(t, o.Ledger)
		want += o.Ledger.Total()
	}
	merged := MergedLedger(out)
	assert.InDelta(t, 2*4*0.01*500, merged.Total(), 1e-9)
	assert.InDelta(t, want, merged.Total(), 1e-9)

	opts.Base.PowerW = 0
	out, err = Sweep(context.Background(), opts, points)
	require.NoError(t, err)
	assert.Nil(t, out[0].Ledger)
	assert.Zero(t, MergedLedger(out).Total())
}

func TestSweepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Sweep(ctx, smallOptions(5, 2), Grid(0, 1, 2, 0.001, 0.002, 2))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSweepBadGrid(t *testing.T) {
	opts := smallOptions(1, 1)
	opts.Base.Rows = 0
	_, err := Sweep(context.Background(), opts, []ScanPoint{{Xi: 1}})
	assert.ErrorIs(t, err, reactor.ErrGrid)
}

func TestRecords(t *testing.T) {
	out := []Outcome{{
		Index:      3,
		Point:      ScanPoint{Xi: 1, RipplePct: 0.004, NeCm3: 1e20, TeEV: 10},
		Efficiency: 0.95,
		Wmax:       0.9,
		Production: reactor.Production{YieldCm3S: 4e23, FOM: 2},
		Events:     5,
		Confined:   true,

		ProductionFailed: true,
	}}
	rows := Records(out)
	require.Len(t, rows, 1)
	assert.Equal(t, telemetry.SweepRecord{
		Index: 3, Xi: 1, Ripple: 0.004, NeCm3: 1e20, TeEV: 10,
		Efficiency: 0.95, Wmax: 0.9, YieldCm3S: 4e23, FOM: 2, Events: 5, Confined: true, Failed: true,
	}, rows[0])
}
