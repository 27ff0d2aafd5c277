// Package feasibility holds the pure heuristic gates used to judge a reactor
// run: confinement efficiency, antiproton yield, Debye-length density checks,
// magnetic-field ripple and stability statistics.
package feasibility

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Physical constants used by the density check.
const (
	Epsilon0   = 8.854e-12    // F/m
	ElemCharge = 1.602e-19    // C
	EVJoule    = 1.602e-19    // J per eV
	Boltzmann  = 1.380649e-23 // J/K
)

// yieldEps is the floor applied to temperatures and energies.
const yieldEps = 1e-12

// ConfinementEfficiency is a heuristic score in [0, 1] with mild penalties for
// field ripple and large |xi|.
func ConfinementEfficiency(xi, ripplePct float64) float64 {
	ripplePen := 2.0 * math.Max(0, ripplePct)
	xiPen := 0.01 * math.Tanh(math.Abs(xi)/5.0)
	return clamp(0.96-ripplePen-xiPen, 0, 1)
}

// YieldModel selects the antiproton yield formula.
type YieldModel string

const (
	YieldLegacy    YieldModel = "legacy"
	YieldThreshold YieldModel = "threshold"
	YieldPhysics   YieldModel = "physics"
)

// YieldParams parameterises AntiprotonYield.
type YieldParams struct {
	Model      YieldModel `yaml:"model"`
	K0         float64    `yaml:"k0"`           // prefactor [1/(cm^3 s eV^alpha)]
	AlphaT     float64    `yaml:"alpha_t"`      // temperature exponent
	ETh        float64    `yaml:"e_th"`         // threshold temperature [eV]
	SigmaPP    float64    `yaml:"sigma_pp_cm2"` // pair cross-section [cm^2]
	VRelCmPerS float64    `yaml:"v_rel_cm_s"`   // relative velocity [cm/s]
}

// DefaultYieldParams returns the legacy model with its usual constants.
func DefaultYieldParams() YieldParams {
	return YieldParams{
		Model:      YieldLegacy,
		K0:         1e-12,
		AlphaT:     0.25,
		SigmaPP:    4e-26,
		VRelCmPerS: 1e9,
	}
}

// WithModel returns a copy of p using model m.
func (p YieldParams) WithModel(m YieldModel) YieldParams {
	p.Model = m
	return p
}

// AntiprotonYield estimates a yield rate density [1/(cm^3 s)].
// Density is clamped to >= 0, temperature to >= 1e-12 and the result to >= 0.
func AntiprotonYield(nCm3, teEV float64, p YieldParams) float64 {
	n := math.Max(0, nCm3)
	T := math.Max(yieldEps, teEV)

	var y float64
	switch p.Model {
	case YieldPhysics:
		y = p.SigmaPP * n * n * p.VRelCmPerS
	case YieldThreshold:
		excess := math.Max(0, T-p.ETh)
		y = p.K0 * n * math.Pow(excess, p.AlphaT)
	default:
		y = p.K0 * n * math.Pow(T, p.AlphaT)
	}
	if math.IsNaN(y) {
		return 0
	}
	return math.Max(0, y)
}

// ParseYieldModel maps a config string onto a YieldModel.
func ParseYieldModel(s string) (YieldModel, error) {
	switch YieldModel(s) {
	case "", YieldLegacy:
		return YieldLegacy, nil
	case YieldThreshold, YieldPhysics:
		return YieldModel(s), nil
	}
	return "", fmt.Errorf("unknown yield model %q", s)
}

// FigureOfMerit is yield per unit energy, scaled by 1e-8.
func FigureOfMerit(yield, eTotal float64) float64 {
	return yield / (math.Max(eTotal, yieldEps) * 1e8)
}

// DebyeLength computes lambda_D = sqrt(eps0 kB T / (2 n e^2)) in metres for a
// temperature in eV and a density in m^-3.
func DebyeLength(teEV, nM3 float64) float64 {
	tK := teEV * EVJoule / Boltzmann
	n := math.Max(1e-30, nM3)
	lam2 := Epsilon0 * Boltzmann * tK / (2 * n * ElemCharge * ElemCharge)
	return math.Sqrt(math.Max(lam2, 0))
}

// DensityCheck is the outcome of the Debye-length density proxy.
type DensityCheck struct {
	DebyeM  float64
	Enforce bool
}

// CheckDensity evaluates the Debye length at the current plasma state and
// reports whether the density should be forced up to th.DensityMinCm3.
func CheckDensity(neCm3, teEV float64, th Thresholds) DensityCheck {
	lam := DebyeLength(math.Max(1.0, teEV), math.Max(1e6, neCm3*1e6))
	return DensityCheck{
		DebyeM:  lam,
		Enforce: lam > th.DebyeMaxM && neCm3 < th.DensityMinCm3,
	}
}

// RMSFluctuation returns std(series)/mean(series) using the population
// standard deviation. Empty series or a non-positive mean give 0.
func RMSFluctuation(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	mean, std := stat.PopMeanStdDev(series, nil)
	if mean <= 0 || math.IsNaN(std) {
		return 0
	}
	return std / mean
}

// BFieldCheck is the result of a magnetic-field validity check.
type BFieldCheck struct {
	MeanT  float64
	Ripple float64
	Pass   bool
}

// CheckBField passes when the RMS ripple is within th.BRippleMax and the mean
// field reaches th.BFieldMinT. An empty series fails with zero mean.
func CheckBField(series []float64, th Thresholds) BFieldCheck {
	if len(series) == 0 {
		return BFieldCheck{}
	}
	mean := stat.Mean(series, nil)
	ripple := RMSFluctuation(series)
	return BFieldCheck{
		MeanT:  mean,
		Ripple: ripple,
		Pass:   ripple <= th.BRippleMax && mean >= th.BFieldMinT,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
