package feasibility

import "math"

// DefaultDecayAlpha is returned when a decay rate cannot be fitted.
const DefaultDecayAlpha = 0.01

// FitDecayAlpha fits ripple ~ exp(-alpha*t) through the first and last
// samples and clamps the result to [1e-6, 1].
func FitDecayAlpha(times, ripples []float64) float64 {
	if len(times) < 2 || len(ripples) < 2 {
		return DefaultDecayAlpha
	}
	last := min(len(times), len(ripples)) - 1
	t1, t2 := times[0], times[last]
	r1, r2 := ripples[0], ripples[last]
	if t2 <= t1 || r1 <= 0 || r2 <= 0 {
		return DefaultDecayAlpha
	}
	alpha := -math.Log(r2/r1) / (t2 - t1)
	if math.IsNaN(alpha) {
		return DefaultDecayAlpha
	}
	return clamp(alpha, 1e-6, 1)
}
