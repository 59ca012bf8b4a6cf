package world

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultChunkSize is the side length of a chunk in tiles.
const DefaultChunkSize = 16

// Coord identifies a chunk on the infinite integer lattice.
type Coord struct {
	X, Y int
}

// String returns the persistence key for the chunk, e.g. "x-1y3".
func (c Coord) String() string {
	return fmt.Sprintf("x%dy%d", c.X, c.Y)
}

// Add offsets a coordinate by (dx, dy) chunks.
func (c Coord) Add(dx, dy int) Coord {
	return Coord{X: c.X + dx, Y: c.Y + dy}
}

// CoordFromWorld returns the chunk containing world position p.
// Positions exactly on a boundary belong to the chunk on their positive side.
func CoordFromWorld(p mgl64.Vec2, size int) Coord {
	s := float64(size)
	return Coord{
		X: int(math.Floor(p.X() / s)),
		Y: int(math.Floor(p.Y() / s)),
	}
}

// CoordFromTile returns the chunk containing the tile at integer world coordinates.
func CoordFromTile(x, y, size int) Coord {
	return Coord{X: floorDiv(x, size), Y: floorDiv(y, size)}
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// mod returns a non-negative remainder for positive b.
func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Window is the square set of chunk coordinates within Chebyshev distance
// Radius of Center.
type Window struct {
	Center Coord
	Radius int
}

// WindowAround builds the streaming window for an observer at p.
func WindowAround(p mgl64.Vec2, size, radius int) Window {
	if radius < 0 {
		radius = 0
	}
	return Window{Center: CoordFromWorld(p, size), Radius: radius}
}

// Contains reports whether c lies inside the window.
func (w Window) Contains(c Coord) bool {
	return abs(c.X-w.Center.X) <= w.Radius && abs(c.Y-w.Center.Y) <= w.Radius
}

// Len returns the number of coordinates in the window, (2R+1)².
func (w Window) Len() int {
	side := 2*w.Radius + 1
	return side * side
}

// Coords lists every coordinate of the window, row by row.
func (w Window) Coords() []Coord {
	out := make([]Coord, 0, w.Len())
	for y := w.Center.Y - w.Radius; y <= w.Center.Y+w.Radius; y++ {
		for x := w.Center.X - w.Radius; x <= w.Center.X+w.Radius; x++ {
			out = append(out, Coord{X: x, Y: y})
		}
	}
	return out
}

// RingCoords lists the window centre-out: the centre first, then each ring
// at Chebyshev distance 1..Radius, walked row by row.
func (w Window) RingCoords() []Coord {
	out := make([]Coord, 0, w.Len())
	out = append(out, w.Center)
	for r := 1; r <= w.Radius; r++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if abs(dx) != r && abs(dy) != r {
					continue
				}
				out = append(out, w.Center.Add(dx, dy))
			}
		}
	}
	return out
}
