package main

import (
	"math"

	"github.com/pthm-cable/vortex/config"
	"github.com/pthm-cable/vortex/feasibility"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Key in optimize.ranges
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
	Log     bool    // Search in log10 space
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the reactor parameter set, taking bounds from
// ranges where present and defaults from cfg.
func NewParamVector(cfg *config.Config, ranges map[string]feasibility.Range) *ParamVector {
	ne := cfg.Reactor.NeCm3
	if ne <= 0 {
		ne = 1e19
	}
	pv := &ParamVector{
		Specs: []ParamSpec{
			{Name: "xi", Path: "reactor.xi", Min: 0.5, Max: 5.0, Default: cfg.Reactor.Xi},
			{Name: "ripple", Path: "reactor.ripple_pct", Min: 0, Max: 0.02, Default: cfg.Reactor.RipplePct},
			{Name: "ne_cm3", Path: "reactor.ne_cm3", Min: 1e18, Max: 1e21, Default: ne, Log: true},
			{Name: "te_ev", Path: "reactor.te_ev", Min: 1, Max: 50, Default: cfg.Reactor.TeEV},
		},
	}
	for i := range pv.Specs {
		s := &pv.Specs[i]
		if r, ok := ranges[s.Name]; ok && r.Hi > r.Lo {
			s.Min, s.Max = r.Lo, r.Hi
		}
		s.Default = math.Min(s.Max, math.Max(s.Min, s.Default))
	}
	return pv
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		lo, hi, v := spec.bounds(raw[i])
		normalized[i] = (v - lo) / (hi - lo)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		lo, hi, _ := spec.bounds(spec.Min)
		v := lo + normalized[i]*(hi-lo)
		if spec.Log {
			v = math.Pow(10, v)
		}
		raw[i] = v
	}
	return raw
}

// bounds returns the search-space bounds and v mapped into that space.
func (s ParamSpec) bounds(v float64) (lo, hi, mapped float64) {
	if !s.Log {
		return s.Min, s.Max, v
	}
	return math.Log10(s.Min), math.Log10(s.Max), math.Log10(math.Max(v, s.Min))
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = math.Min(spec.Max, math.Max(spec.Min, v[i]))
	}
	return clamped
}

// Values maps v onto parameter names.
func (pv *ParamVector) Values(v []float64) map[string]float64 {
	out := make(map[string]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[spec.Name] = v[i]
	}
	return out
}

// ApplyToConfig applies clamped parameter values to cfg.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	applyValues(cfg, pv.Values(pv.Clamp(values)))
}

// applyValues writes named parameters onto cfg. Unknown names are ignored.
func applyValues(cfg *config.Config, values map[string]float64) {
	for name, v := range values {
		switch name {
		case "xi":
			cfg.Reactor.Xi = v
		case "ripple":
			cfg.Reactor.RipplePct = v
		case "ne_cm3":
			cfg.Reactor.NeCm3 = v
		case "te_ev":
			cfg.Reactor.TeEV = v
		}
	}
}
