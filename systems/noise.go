package systems

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// PerlinNoise generates coherent 3-D gradient noise in roughly [-1, 1].
type PerlinNoise struct {
	perm [512]int
}

// NewPerlinNoise builds a permutation table from the given generator.
// The generator is only read during construction.
func NewPerlinNoise(rng *rand.Rand) *PerlinNoise {
	p := &PerlinNoise{}

	var perm [256]int
	for i := range perm {
		perm[i] = i
	}
	rng.Shuffle(len(perm), func(i, j int) {
		perm[i], perm[j] = perm[j], perm[i]
	})
	for i := 0; i < 256; i++ {
		p.perm[i] = perm[i]
		p.perm[i+256] = perm[i]
	}
	return p
}

// Noise3D returns a noise value for 3-D coordinates.
func (p *PerlinNoise) Noise3D(x, y, z float64) float64 {
	X := int(math.Floor(x)) & 255
	Y := int(math.Floor(y)) & 255
	Z := int(math.Floor(z)) & 255

	x -= math.Floor(x)
	y -= math.Floor(y)
	z -= math.Floor(z)

	u := fade(x)
	v := fade(y)
	w := fade(z)

	A := p.perm[X] + Y
	AA := p.perm[A] + Z
	AB := p.perm[A+1] + Z
	B := p.perm[X+1] + Y
	BA := p.perm[B] + Z
	BB := p.perm[B+1] + Z

	return lerp(w, lerp(v, lerp(u, grad3D(p.perm[AA], x, y, z),
		grad3D(p.perm[BA], x-1, y, z)),
		lerp(u, grad3D(p.perm[AB], x, y-1, z),
			grad3D(p.perm[BB], x-1, y-1, z))),
		lerp(v, lerp(u, grad3D(p.perm[AA+1], x, y, z-1),
			grad3D(p.perm[BA+1], x-1, y, z-1)),
			lerp(u, grad3D(p.perm[AB+1], x, y-1, z-1),
				grad3D(p.perm[BB+1], x-1, y-1, z-1))))
}

// NoiseForcing is a smooth, slowly drifting external forcing term for the
// vorticity equation. A zero Amplitude yields a zero field.
type NoiseForcing struct {
	noise     *PerlinNoise
	Amplitude float64 // peak forcing magnitude
	Scale     float64 // noise frequency per grid cell
	TimeSpeed float64 // noise drift per simulated second
}

// NewNoiseForcing creates a forcing generator seeded from rng.
func NewNoiseForcing(rng *rand.Rand, amplitude, scale, timeSpeed float64) *NoiseForcing {
	return &NoiseForcing{
		noise:     NewPerlinNoise(rng),
		Amplitude: amplitude,
		Scale:     scale,
		TimeSpeed: timeSpeed,
	}
}

// Field samples the forcing on a rows x cols grid at simulated time t.
func (f *NoiseForcing) Field(rows, cols int, t float64) *mat.Dense {
	out := mat.NewDense(rows, cols, nil)
	if f == nil || f.Amplitude == 0 {
		return out
	}
	z := t * f.TimeSpeed
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			n := f.noise.Noise3D(float64(j)*f.Scale, float64(i)*f.Scale, z)
			out.Set(i, j, f.Amplitude*n)
		}
	}
	return out
}

func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(t, a, b float64) float64 {
	return a + t*(b-a)
}

func grad3D(hash int, x, y, z float64) float64 {
	h := hash & 15
	u := x
	if h >= 8 {
		u = y
	}
	v := y
	if h >= 4 {
		if h == 12 || h == 14 {
			v = x
		} else {
			v = z
		}
	}
	if h&1 != 0 {
		u = -u
	}
	if h&2 != 0 {
		v = -v
	}
	return u + v
}
