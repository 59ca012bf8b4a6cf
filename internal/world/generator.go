package world

import (
	"errors"
	"fmt"
)

// TerrainGenerator synthesizes the tiles of a chunk. Implementations must
// be pure: the same coordinate always yields the same grid.
type TerrainGenerator interface {
	Generate(coord Coord) Grid
	ChunkSize() int
}

// Band maps noise values below Below to Tile. Bands are checked in order.
type Band struct {
	Below float64
	Tile  Tile
}

// GeneratorOptions are fixed for a world's lifetime; changing them does not
// regenerate chunks that were already persisted.
type GeneratorOptions struct {
	Seed        int64
	ChunkSize   int
	Backend     NoiseBackend
	Octaves     int
	Persistence float64 // amplitude multiplier per octave
	Lacunarity  float64 // frequency multiplier per octave
	Scale       float64 // world units to noise units
	Bands       []Band
	Default     Tile // used at and above the last band
}

// DefaultGeneratorOptions returns the water/sand/grass setup.
func DefaultGeneratorOptions(seed int64) GeneratorOptions {
	return GeneratorOptions{
		Seed:        seed,
		ChunkSize:   DefaultChunkSize,
		Backend:     NoiseValue,
		Octaves:     3,
		Persistence: 0.5,
		Lacunarity:  2.0,
		Scale:       1.0 / 64.0,
		Bands: []Band{
			{Below: -0.4, Tile: TileWater},
			{Below: 0.0, Tile: TileSand},
		},
		Default: TileGrass,
	}
}

// Validate checks the options for values that would break generation.
func (o GeneratorOptions) Validate() error {
	var errs []error
	if o.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("chunk size must be positive, got %d", o.ChunkSize))
	}
	if o.Octaves < 1 {
		errs = append(errs, fmt.Errorf("octaves must be positive, got %d", o.Octaves))
	}
	if o.Persistence <= 0 {
		errs = append(errs, fmt.Errorf("persistence must be positive, got %g", o.Persistence))
	}
	if o.Lacunarity <= 0 {
		errs = append(errs, fmt.Errorf("lacunarity must be positive, got %g", o.Lacunarity))
	}
	if o.Scale <= 0 {
		errs = append(errs, fmt.Errorf("scale must be positive, got %g", o.Scale))
	}
	for i, b := range o.Bands {
		if !ValidToken(b.Tile) {
			errs = append(errs, fmt.Errorf("band %d: invalid tile %q", i, b.Tile))
		}
		if i > 0 && b.Below <= o.Bands[i-1].Below {
			errs = append(errs, fmt.Errorf("band %d: threshold %g not above %g", i, b.Below, o.Bands[i-1].Below))
		}
	}
	if !ValidToken(o.Default) {
		errs = append(errs, fmt.Errorf("invalid default tile %q", o.Default))
	}
	return errors.Join(errs...)
}

// Generator handles terrain generation logic: layered coherent noise sampled
// in world space, classified by threshold bands.
type Generator struct {
	opts    GeneratorOptions
	field   NoiseField
	offsets [][2]float64
}

// NewGenerator validates opts and builds the noise field.
func NewGenerator(opts GeneratorOptions) (*Generator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	field, err := NewNoiseField(opts.Backend, opts.Seed)
	if err != nil {
		return nil, err
	}
	g := &Generator{
		opts:    opts,
		field:   field,
		offsets: make([][2]float64, opts.Octaves),
	}
	g.opts.Bands = append([]Band(nil), opts.Bands...)
	for i := range g.offsets {
		ox, oy := octaveOffset(opts.Seed, i)
		g.offsets[i] = [2]float64{ox, oy}
	}
	return g, nil
}

// ChunkSize returns the side length of generated grids.
func (g *Generator) ChunkSize() int { return g.opts.ChunkSize }

// Options returns the generation parameters.
func (g *Generator) Options() GeneratorOptions { return g.opts }

// Sample evaluates the fractal noise at world position (wx, wy), in [-1, 1].
func (g *Generator) Sample(wx, wy float64) float64 {
	x := wx * g.opts.Scale
	y := wy * g.opts.Scale
	amplitude := 1.0
	frequency := 1.0
	sum := 0.0
	norm := 0.0
	for i := range g.opts.Octaves {
		off := g.offsets[i]
		v := g.field.Eval2(float64(x*frequency)+off[0], float64(y*frequency)+off[1])
		sum += float64(v * amplitude)
		norm += amplitude
		amplitude *= g.opts.Persistence
		frequency *= g.opts.Lacunarity
	}
	return clamp(sum/norm, -1, 1)
}

// ValueAt samples the field for local cell (x, y) of coord. Local
// coordinates outside [0, size) address neighbouring chunks' cells.
func (g *Generator) ValueAt(coord Coord, x, y int) float64 {
	s := g.opts.ChunkSize
	return g.Sample(float64(coord.X*s+x), float64(coord.Y*s+y))
}

// Classify maps a noise value to a tile via the ordered bands.
func (g *Generator) Classify(v float64) Tile {
	for _, b := range g.opts.Bands {
		if v < b.Below {
			return b.Tile
		}
	}
	return g.opts.Default
}

// Generate fills a grid for coord. It never fails.
func (g *Generator) Generate(coord Coord) Grid {
	s := g.opts.ChunkSize
	grid := NewGrid(s)
	for y := range s {
		for x := range s {
			grid.Set(x, y, g.Classify(g.ValueAt(coord, x, y)))
		}
	}
	return grid
}

// FlatGenerator fills every cell with one tile. Useful for tests and
// placeholder worlds.
type FlatGenerator struct {
	size int
	tile Tile
}

// NewFlatGenerator creates a flat generator.
func NewFlatGenerator(size int, tile Tile) *FlatGenerator {
	return &FlatGenerator{size: size, tile: tile}
}

func (f *FlatGenerator) ChunkSize() int { return f.size }

func (f *FlatGenerator) Generate(coord Coord) Grid {
	return FilledGrid(f.size, f.tile)
}
