package world

import (
	"fmt"
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

// NoiseField is a coherent 2D scalar field with values in [-1, 1].
// Implementations must be safe for concurrent reads.
type NoiseField interface {
	Eval2(x, y float64) float64
}

// NoiseBackend selects the primitive behind a NoiseField.
type NoiseBackend string

const (
	// NoiseValue is hashed lattice value noise. Its arithmetic is written
	// so results are bit-identical on every architecture.
	NoiseValue   NoiseBackend = "value"
	NoiseSimplex NoiseBackend = "simplex"
	NoisePerlin  NoiseBackend = "perlin"
)

// NewNoiseField builds the primitive for backend, seeded with seed.
func NewNoiseField(backend NoiseBackend, seed int64) (NoiseField, error) {
	switch backend {
	case NoiseValue, "":
		return valueField{seed: seed}, nil
	case NoiseSimplex:
		return simplexField{n: opensimplex.New(seed)}, nil
	case NoisePerlin:
		// One internal octave; octaves are summed by the generator.
		return perlinField{p: perlin.NewPerlin(2, 2, 1, seed)}, nil
	default:
		return nil, fmt.Errorf("unknown noise backend %q", backend)
	}
}

// Explicit float64 conversions below keep the compiler from fusing
// multiply-add pairs, which would change results across architectures.

// fade is the quintic smoothstep 6t^5 - 15t^4 + 10t^3.
func fade(t float64) float64 {
	inner := float64(t*6) - 15
	inner = float64(t*inner) + 10
	return t * t * t * inner
}

func lerp(a, b, t float64) float64 {
	return a + float64(t*(b-a))
}

func hash2(x int64, y int64, seed int64) uint64 {
	// SplitMix64 style integer hash, stable across runs for same inputs
	v := uint64(x) + (uint64(y) << 1) + uint64(seed)*0x9E3779B97F4A7C15
	v += 0x9E3779B97F4A7C15
	v = (v ^ (v >> 30)) * 0xBF58476D1CE4E5B9
	v = (v ^ (v >> 27)) * 0x94D049BB133111EB
	v = v ^ (v >> 31)
	return v
}

func latticeValue(x int64, y int64, seed int64) float64 {
	// Map to [0,1]
	h := hash2(x, y, seed)
	return float64(h&0xFFFFFFFF) / float64(0xFFFFFFFF)
}

func valueNoise2D(x float64, y float64, seed int64) float64 {
	// Lattice points
	x0 := math.Floor(x)
	y0 := math.Floor(y)
	x1 := x0 + 1
	y1 := y0 + 1

	// Interpolation weights
	fx := fade(x - x0)
	fy := fade(y - y0)

	v00 := latticeValue(int64(x0), int64(y0), seed)
	v10 := latticeValue(int64(x1), int64(y0), seed)
	v01 := latticeValue(int64(x0), int64(y1), seed)
	v11 := latticeValue(int64(x1), int64(y1), seed)

	i0 := lerp(v00, v10, fx)
	i1 := lerp(v01, v11, fx)
	return lerp(i0, i1, fy) // [0,1]
}

type valueField struct {
	seed int64
}

func (f valueField) Eval2(x, y float64) float64 {
	return float64(valueNoise2D(x, y, f.seed)*2) - 1
}

type simplexField struct {
	n opensimplex.Noise
}

func (f simplexField) Eval2(x, y float64) float64 {
	return clamp(f.n.Eval2(x, y), -1, 1)
}

type perlinField struct {
	p *perlin.Perlin
}

func (f perlinField) Eval2(x, y float64) float64 {
	// Raw perlin output sits roughly in [-0.7, 0.7].
	return clamp(f.p.Noise2D(x, y)*math.Sqrt2, -1, 1)
}

// octaveOffset derives a per-octave shift in [-100000, 100000) so octaves
// do not share lattice alignment.
func octaveOffset(seed int64, octave int) (float64, float64) {
	hx := hash2(int64(octave), 0x51ED, seed)
	hy := hash2(int64(octave), 0x2F1A, seed)
	return float64(int64(hx%200000) - 100000), float64(int64(hy%200000) - 100000)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
