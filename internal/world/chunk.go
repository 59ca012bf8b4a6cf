package world

// Chunk is a resident square of tiles. The store owns every chunk; other
// components only see it through ChunkView.
type Chunk struct {
	coord Coord
	tiles Grid
	dirty bool
}

// NewChunk wraps a fully populated grid. New chunks start clean.
func NewChunk(coord Coord, tiles Grid) *Chunk {
	return &Chunk{
		coord: coord,
		tiles: tiles,
	}
}

// Coord returns the chunk coordinate.
func (c *Chunk) Coord() Coord { return c.coord }

// Size returns the side length in tiles.
func (c *Chunk) Size() int { return c.tiles.Size() }

// Tile returns the tile at local coordinates.
func (c *Chunk) Tile(x, y int) Tile { return c.tiles.At(x, y) }

// SetTile is the only mutation path for resident tiles.
// It marks the chunk dirty when the cell actually changes. Tokens that
// could not be written back to storage are rejected.
func (c *Chunk) SetTile(x, y int, t Tile) bool {
	if !ValidToken(t) {
		return false
	}
	old := c.tiles.At(x, y)
	if !c.tiles.Set(x, y, t) {
		return false
	}
	if old != t {
		c.dirty = true
	}
	return true
}

// Tiles returns a copy of the grid.
func (c *Chunk) Tiles() Grid { return c.tiles.Clone() }

// IsDirty returns whether the chunk has edits that are not persisted.
func (c *Chunk) IsDirty() bool {
	return c.dirty
}

// SetClean marks the chunk as persisted.
func (c *Chunk) SetClean() {
	c.dirty = false
}

// ChunkView is the read-only handle handed to renderers for one draw.
type ChunkView struct {
	c *Chunk
}

// Coord returns the chunk coordinate.
func (v ChunkView) Coord() Coord { return v.c.coord }

// Size returns the side length in tiles.
func (v ChunkView) Size() int { return v.c.tiles.Size() }

// Tile returns the tile at local coordinates.
func (v ChunkView) Tile(x, y int) Tile { return v.c.tiles.At(x, y) }

// Each calls fn for every cell in row-major order.
func (v ChunkView) Each(fn func(x, y int, t Tile)) {
	n := v.c.tiles.Size()
	for y := range n {
		for x := range n {
			fn(x, y, v.c.tiles.At(x, y))
		}
	}
}
