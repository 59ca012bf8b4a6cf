package world

import "strings"

// Tile is an opaque terrain identifier, persisted as a literal token.
type Tile string

const (
	TileWater Tile = "Water"
	TileSand  Tile = "Sand"
	TileGrass Tile = "Grass"
)

// TileSet reports whether a tile name belongs to the known vocabulary.
type TileSet interface {
	Has(t Tile) bool
}

// ValidToken reports whether t can be written as a single grid token.
func ValidToken(t Tile) bool {
	return t != "" && !strings.ContainsAny(string(t), " \t\r\n")
}

// Grid is a square, row-major array of tiles: cell (x, y) lives at y*size+x.
type Grid struct {
	size  int
	cells []Tile
}

// NewGrid allocates an empty size×size grid.
func NewGrid(size int) Grid {
	return Grid{size: size, cells: make([]Tile, size*size)}
}

// FilledGrid returns a size×size grid with every cell set to t.
func FilledGrid(size int, t Tile) Grid {
	g := NewGrid(size)
	for i := range g.cells {
		g.cells[i] = t
	}
	return g
}

// Size returns the side length.
func (g Grid) Size() int { return g.size }

func (g Grid) inBounds(x, y int) bool {
	return x >= 0 && x < g.size && y >= 0 && y < g.size
}

// At returns the tile at local (x, y), or "" when out of range.
func (g Grid) At(x, y int) Tile {
	if !g.inBounds(x, y) {
		return ""
	}
	return g.cells[y*g.size+x]
}

// Set writes a tile and reports whether (x, y) was in range.
func (g *Grid) Set(x, y int, t Tile) bool {
	if !g.inBounds(x, y) {
		return false
	}
	g.cells[y*g.size+x] = t
	return true
}

// Row returns a copy of row y.
func (g Grid) Row(y int) []Tile {
	if y < 0 || y >= g.size {
		return nil
	}
	out := make([]Tile, g.size)
	copy(out, g.cells[y*g.size:(y+1)*g.size])
	return out
}

// Complete reports whether every cell holds a tile.
func (g Grid) Complete() bool {
	if g.size <= 0 || len(g.cells) != g.size*g.size {
		return false
	}
	for _, t := range g.cells {
		if t == "" {
			return false
		}
	}
	return true
}

// Equal compares size and every cell.
func (g Grid) Equal(o Grid) bool {
	if g.size != o.size || len(g.cells) != len(o.cells) {
		return false
	}
	for i := range g.cells {
		if g.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (g Grid) Clone() Grid {
	out := Grid{size: g.size, cells: make([]Tile, len(g.cells))}
	copy(out.cells, g.cells)
	return out
}
