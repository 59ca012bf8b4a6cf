package world

import (
	"context"
	"errors"

	"github.com/go-gl/mathgl/mgl64"
)

// Options wires the collaborators of a World.
type Options struct {
	Generator   TerrainGenerator
	Persistence Persistence
	Streamer    StreamerOptions

	// Tiles limits SetTile to a vocabulary. Persistence backends that
	// validate on load should be given the same set.
	Tiles TileSet
}

// World is the explicit context object for one streamed world: generator,
// resident store and streamer. Independent worlds share nothing.
type World struct {
	gen      TerrainGenerator
	tiles    TileSet
	store    *ChunkStore
	streamer *ChunkStreamer
}

// New builds a world. A nil Persistence means nothing is ever loaded, and
// evicting a dirty chunk reports a write failure.
func New(opts Options) (*World, error) {
	if opts.Generator == nil {
		return nil, errors.New("world: generator is required")
	}
	if opts.Generator.ChunkSize() < 1 {
		return nil, errors.New("world: chunk size must be positive")
	}
	store := NewChunkStore()
	return &World{
		gen:      opts.Generator,
		tiles:    opts.Tiles,
		store:    store,
		streamer: NewChunkStreamer(store, opts.Generator, opts.Persistence, opts.Streamer),
	}, nil
}

// ChunkSize returns the side length of a chunk in tiles.
func (w *World) ChunkSize() int { return w.gen.ChunkSize() }

// Generator returns the terrain generator.
func (w *World) Generator() TerrainGenerator { return w.gen }

// Store returns the resident chunk store.
func (w *World) Store() *ChunkStore { return w.store }

// Streamer returns the streaming controller.
func (w *World) Streamer() *ChunkStreamer { return w.streamer }

// Update runs one streaming step for an observer at pos.
func (w *World) Update(ctx context.Context, pos mgl64.Vec2, radius int) StepReport {
	return w.streamer.Step(ctx, pos, radius)
}

// ResidentChunks returns read-only views of the resident chunks.
func (w *World) ResidentChunks() []ChunkView {
	return w.store.Chunks()
}

// TileAt returns the tile at integer world coordinates, if its chunk is resident.
func (w *World) TileAt(x, y int) (Tile, bool) {
	s := w.gen.ChunkSize()
	chunk, ok := w.store.Get(CoordFromTile(x, y, s))
	if !ok {
		return "", false
	}
	return chunk.Tile(mod(x, s), mod(y, s)), true
}

// SetTile edits the tile at integer world coordinates and marks its chunk
// dirty. It returns false when the chunk is not resident or t is not in the
// world's vocabulary.
func (w *World) SetTile(x, y int, t Tile) bool {
	if !ValidToken(t) {
		return false
	}
	if w.tiles != nil && !w.tiles.Has(t) {
		return false
	}
	s := w.gen.ChunkSize()
	chunk, ok := w.store.Get(CoordFromTile(x, y, s))
	if !ok {
		return false
	}
	return chunk.SetTile(mod(x, s), mod(y, s), t)
}

// Flush persists every dirty resident chunk.
func (w *World) Flush(ctx context.Context) error {
	return w.streamer.Flush(ctx)
}

// Close stops background resolution.
func (w *World) Close() {
	w.streamer.Close()
}
