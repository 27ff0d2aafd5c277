package reactor

import (
	"math"

	"github.com/pthm-cable/vortex/feasibility"
	"gonum.org/v1/gonum/stat"
)

// AdjustRipple shrinks the deviations of the attached B-field series about
// its mean by max(0, 1-alpha*t) and returns the new RMS ripple. It works on
// the current series, so repeated calls compound. Without a series, or with
// a non-positive mean, it returns 0 and leaves the series alone.
func (r *Reactor) AdjustRipple(alpha float64) float64 {
	if len(r.bSeries) == 0 {
		return 0
	}
	mean := stat.Mean(r.bSeries, nil)
	if mean <= 0 {
		return 0
	}
	scale := math.Max(0, 1-alpha*r.timeS)
	for i, b := range r.bSeries {
		r.bSeries[i] = mean + (b-mean)*scale
	}
	return feasibility.RMSFluctuation(r.bSeries)
}
