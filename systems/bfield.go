package systems

import (
	"math/rand"
)

// SimulateBFieldRipple returns n synthetic magnetic-field samples
// baseT * (1 + N(0, ripplePct)). The generator is owned by the caller.
func SimulateBFieldRipple(rng *rand.Rand, n int, baseT, ripplePct float64) []float64 {
	if n <= 0 {
		return nil
	}
	series := make([]float64, n)
	for i := range series {
		series[i] = baseT * (1 + rng.NormFloat64()*ripplePct)
	}
	return series
}
