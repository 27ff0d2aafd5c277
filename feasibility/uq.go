package feasibility

import (
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Range is a closed sampling interval.
type Range struct {
	Lo float64 `yaml:"lo" json:"lo"`
	Hi float64 `yaml:"hi" json:"hi"`
}

// SampleUniform draws from [r.Lo, r.Hi).
func SampleUniform(rng *rand.Rand, r Range) float64 {
	return r.Lo + (r.Hi-r.Lo)*rng.Float64()
}

// UQResult aggregates a Monte-Carlo sweep.
type UQResult struct {
	Samples int                  `json:"n_samples"`
	Means   map[string]float64   `json:"means"`
	Results []map[string]float64 `json:"results"`
}

// RunUQ samples every parameter uniformly n times and averages each output of
// eval. Parameters are drawn in sorted key order so a seed is reproducible.
func RunUQ(rng *rand.Rand, n int, ranges map[string]Range, eval func(map[string]float64) map[string]float64) UQResult {
	res := UQResult{Samples: n, Means: map[string]float64{}}
	if n <= 0 {
		return res
	}
	keys := make([]string, 0, len(ranges))
	for k := range ranges {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for i := 0; i < n; i++ {
		params := make(map[string]float64, len(keys))
		for _, k := range keys {
			params[k] = SampleUniform(rng, ranges[k])
		}
		res.Results = append(res.Results, eval(params))
	}

	col := make([]float64, len(res.Results))
	for k := range res.Results[0] {
		for i, r := range res.Results {
			col[i] = r[k]
		}
		res.Means[k] = stat.Mean(col, nil)
	}
	return res
}
