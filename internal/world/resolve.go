package world

import (
	"context"
	"errors"
	"fmt"
)

// Source tells where a resolved chunk came from.
type Source int

const (
	SourceGenerated Source = iota
	SourceLoaded
)

func (s Source) String() string {
	if s == SourceLoaded {
		return "loaded"
	}
	return "generated"
}

// Resolver is the only path that creates chunks: load what is persisted,
// generate the rest.
type Resolver struct {
	persist Persistence
	gen     TerrainGenerator
}

// NewResolver builds a resolver. persist may be nil, in which case every
// chunk is generated.
func NewResolver(persist Persistence, gen TerrainGenerator) *Resolver {
	return &Resolver{persist: persist, gen: gen}
}

// Resolve returns a clean chunk for coord. The chunk is never nil. A non-nil
// error reports a load problem (corrupt data, I/O) that was answered by
// generating instead; ErrNotFound is not reported.
func (r *Resolver) Resolve(ctx context.Context, coord Coord) (*Chunk, Source, error) {
	if r.persist == nil {
		return NewChunk(coord, r.gen.Generate(coord)), SourceGenerated, nil
	}

	grid, err := r.persist.Load(ctx, coord)
	switch {
	case err == nil:
		if grid.Size() != r.gen.ChunkSize() || !grid.Complete() {
			err = &CorruptChunkError{
				Coord:  coord,
				Reason: fmt.Sprintf("grid is %dx%d or incomplete, want %dx%d", grid.Size(), grid.Size(), r.gen.ChunkSize(), r.gen.ChunkSize()),
			}
			break
		}
		return NewChunk(coord, grid), SourceLoaded, nil
	case errors.Is(err, ErrNotFound):
		return NewChunk(coord, r.gen.Generate(coord)), SourceGenerated, nil
	case errors.Is(err, ErrCorruptChunkData):
	default:
		err = fmt.Errorf("load chunk %s: %w", coord, err)
	}
	return NewChunk(coord, r.gen.Generate(coord)), SourceGenerated, err
}
