package world

import "context"

// Persistence stores tile grids keyed by chunk coordinate.
//
// Load returns an error wrapping ErrNotFound when nothing is stored, and one
// wrapping ErrCorruptChunkData when stored data is malformed. Load must be the
// exact inverse of Save.
type Persistence interface {
	Load(ctx context.Context, coord Coord) (Grid, error)
	Save(ctx context.Context, coord Coord, grid Grid) error
}
