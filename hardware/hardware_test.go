package hardware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailable(t *testing.T) {
	assert.False(t, Available(nil))
	assert.False(t, Available(None{}))
	assert.False(t, Available(&None{}))
	assert.True(t, Available(&Mock{}))
	assert.True(t, Available(Func(func(context.Context, State) (State, error) { return nil, nil })))
}

func TestNoneReportsUnavailable(t *testing.T) {
	_, err := None{}.Simulate(context.Background(), State{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStateHighLoad(t *testing.T) {
	assert.False(t, State{}.HighLoad())
	assert.False(t, State{"load": 0.9}.HighLoad())
	assert.True(t, State{"load": "high"}.HighLoad())
}

func TestStateClone(t *testing.T) {
	s := State{"a": 1}
	c := s.Clone()
	c["a"] = 2
	assert.Equal(t, 1, s["a"])
	assert.NotNil(t, State(nil).Clone())
}

func TestMockCountsAndDoesNotMutateInput(t *testing.T) {
	m := &Mock{Load: "high"}
	in := State{"i": 4}

	out, err := m.Simulate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 5, out["i"])
	assert.Equal(t, "high", out["load"])
	assert.Equal(t, 4, in["i"])
	assert.EqualValues(t, 1, m.Calls())
}

func TestMockFailEvery(t *testing.T) {
	m := &Mock{FailEvery: 2}
	ctx := context.Background()

	_, err := m.Simulate(ctx, nil)
	require.NoError(t, err)
	_, err = m.Simulate(ctx, nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnavailable))
	_, err = m.Simulate(ctx, nil)
	require.NoError(t, err)
}

func TestMockDelay(t *testing.T) {
	m := &Mock{Delay: 5 * time.Millisecond}
	start := time.Now()
	_, err := m.Simulate(context.Background(), State{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}
