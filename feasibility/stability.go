package feasibility

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrWindow is returned for a non-positive window size.
var ErrWindow = errors.New("feasibility: window size must be >= 1")

// ErrSmoothing is returned for an EMA factor outside (0, 1].
var ErrSmoothing = errors.New("feasibility: alpha must be in (0, 1]")

// StabilityDuration reports whether gamma stays at or above threshold for at
// least minDuration seconds of consecutive samples spaced dt apart.
// When a single sample covers minDuration any qualifying sample is enough.
func StabilityDuration(gamma []float64, dt, threshold, minDuration float64) bool {
	needed := int(math.Ceil(minDuration / math.Max(dt, yieldEps)))
	run := 0
	for _, g := range gamma {
		if g < threshold {
			run = 0
			continue
		}
		if needed <= 1 {
			return true
		}
		run++
		if run >= needed {
			return true
		}
	}
	return false
}

// StabilityProbability is the fraction of the first steps samples that reach
// threshold. steps <= 0 uses the whole series; it is clamped to [1, len].
func StabilityProbability(series []float64, threshold float64, steps int) float64 {
	if len(series) == 0 {
		return 0
	}
	n := steps
	if n <= 0 || n > len(series) {
		n = len(series)
	}
	stable := 0
	for _, v := range series[:n] {
		if v >= threshold {
			stable++
		}
	}
	return float64(stable) / float64(n)
}

// StabilityVariance is the population variance of values, 0 when empty.
func StabilityVariance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	_, v := stat.PopMeanVariance(values, nil)
	return v
}

// EMA is an exponential moving average seeded with the first sample.
func EMA(series []float64, alpha float64) ([]float64, error) {
	if len(series) == 0 {
		return nil, nil
	}
	if !(alpha > 0 && alpha <= 1) {
		return nil, ErrSmoothing
	}
	out := make([]float64, len(series))
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		out[i] = alpha*series[i] + (1-alpha)*out[i-1]
	}
	return out, nil
}

// Window holds rolling statistics of a gamma series.
type Window struct {
	Min  []float64
	Max  []float64
	Mean []float64
}

// WindowedGamma computes min, max and mean over every full window of size w.
// A series shorter than w yields empty slices.
func WindowedGamma(series []float64, w int) (Window, error) {
	if w <= 0 {
		return Window{}, ErrWindow
	}
	if len(series) < w {
		return Window{Min: []float64{}, Max: []float64{}, Mean: []float64{}}, nil
	}
	n := len(series) - w + 1
	win := Window{
		Min:  make([]float64, n),
		Max:  make([]float64, n),
		Mean: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		s := series[i : i+w]
		win.Min[i] = floats.Min(s)
		win.Max[i] = floats.Max(s)
		win.Mean[i] = stat.Mean(s, nil)
	}
	return win, nil
}

// StabilityReport summarises a per-step gamma series against the gates.
type StabilityReport struct {
	GammaOK     bool    `json:"gamma_ok"`
	Probability float64 `json:"stability_probability"`
	Variance    float64 `json:"stability_variance"`
	Smoothed    float64 `json:"gamma_ema"`
	WindowMin   float64 `json:"gamma_window_min"`
	WindowMax   float64 `json:"gamma_window_max"`
	Samples     int     `json:"samples"`
}

// AssessStability checks gamma (one sample per dt) against GammaMin for
// GammaDurationS. The rolling window spans GammaDurationS and the EMA uses
// the matching 2/(w+1) factor. An empty series gives a zero report.
func AssessStability(gamma []float64, dt float64, th Thresholds) (StabilityReport, error) {
	rep := StabilityReport{Samples: len(gamma)}
	if len(gamma) == 0 {
		return rep, nil
	}
	w := int(math.Ceil(th.GammaDurationS / math.Max(dt, yieldEps)))
	w = max(1, min(w, len(gamma)))

	rep.GammaOK = StabilityDuration(gamma, dt, th.GammaMin, th.GammaDurationS)
	rep.Probability = StabilityProbability(gamma, th.GammaMin, 0)
	rep.Variance = StabilityVariance(gamma)

	smooth, err := EMA(gamma, 2/float64(w+1))
	if err != nil {
		return rep, err
	}
	rep.Smoothed = smooth[len(smooth)-1]

	win, err := WindowedGamma(gamma, w)
	if err != nil {
		return rep, err
	}
	rep.WindowMin = floats.Min(win.Min)
	rep.WindowMax = floats.Max(win.Max)
	return rep, nil
}
