package feasibility

import "math"

// Thresholds collects the numeric gates a run is judged against.
type Thresholds struct {
	GammaMin           float64 `yaml:"gamma_min"`
	GammaDurationS     float64 `yaml:"gamma_duration_s"`
	DensityMinCm3      float64 `yaml:"density_min_cm3"`
	ConfinementMin     float64 `yaml:"confinement_min"`
	BFieldMinT         float64 `yaml:"b_field_min_t"`
	BRippleMax         float64 `yaml:"b_ripple_max"`
	VortexMin          float64 `yaml:"vortex_min"`
	DebyeMaxM          float64 `yaml:"debye_max_m"`
	YieldMin           float64 `yaml:"yield_min"`
	ProductionYieldMin float64 `yaml:"production_yield_min"`
	FOMMin             float64 `yaml:"fom_min"`
	EnergyPerPbarMaxJ  float64 `yaml:"energy_per_pbar_max_j"`
}

// DefaultThresholds returns the gate values used by the reactor checks.
func DefaultThresholds() Thresholds {
	return Thresholds{
		GammaMin:           140.0,
		GammaDurationS:     0.010,
		DensityMinCm3:      1e20,
		ConfinementMin:     0.94,
		BFieldMinT:         5.0,
		BRippleMax:         1e-4,
		VortexMin:          0.5,
		DebyeMaxM:          1e-6,
		YieldMin:           1e8,
		ProductionYieldMin: 1e12,
		FOMMin:             0.1,
		EnergyPerPbarMaxJ:  1e12,
	}
}

// Merge fills zero fields of t from d.
func (t Thresholds) Merge(d Thresholds) Thresholds {
	pick := func(v, def float64) float64 {
		if v == 0 {
			return def
		}
		return v
	}
	return Thresholds{
		GammaMin:           pick(t.GammaMin, d.GammaMin),
		GammaDurationS:     pick(t.GammaDurationS, d.GammaDurationS),
		DensityMinCm3:      pick(t.DensityMinCm3, d.DensityMinCm3),
		ConfinementMin:     pick(t.ConfinementMin, d.ConfinementMin),
		BFieldMinT:         pick(t.BFieldMinT, d.BFieldMinT),
		BRippleMax:         pick(t.BRippleMax, d.BRippleMax),
		VortexMin:          pick(t.VortexMin, d.VortexMin),
		DebyeMaxM:          pick(t.DebyeMaxM, d.DebyeMaxM),
		YieldMin:           pick(t.YieldMin, d.YieldMin),
		ProductionYieldMin: pick(t.ProductionYieldMin, d.ProductionYieldMin),
		FOMMin:             pick(t.FOMMin, d.FOMMin),
		EnergyPerPbarMaxJ:  pick(t.EnergyPerPbarMaxJ, d.EnergyPerPbarMaxJ),
	}
}

// EnergyPerPbarOK reports whether joules per antiproton are within
// EnergyPerPbarMaxJ. Infinite or NaN energy never passes.
func (t Thresholds) EnergyPerPbarOK(joules float64) bool {
	return !math.IsInf(joules, 0) && !math.IsNaN(joules) && joules <= t.EnergyPerPbarMaxJ
}
