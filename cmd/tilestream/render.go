package main

import (
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"tilestream/internal/registry"
	"tilestream/internal/world"
)

// glyphs are indexed by texture index; unknown indices print '?'.
var glyphs = []rune{'"', '.', '~', '#', '^', '*'}

// RenderASCII draws the resident chunks around pos, one rune per tile, with
// '@' on the observer's tile and ' ' for tiles that are not resident.
func RenderASCII(w *world.World, reg *registry.Registry, pos mgl64.Vec2) string {
	views := w.ResidentChunks()
	if len(views) == 0 {
		return ""
	}
	size := w.ChunkSize()

	minC, maxC := views[0].Coord(), views[0].Coord()
	for _, v := range views[1:] {
		c := v.Coord()
		minC.X, minC.Y = min(minC.X, c.X), min(minC.Y, c.Y)
		maxC.X, maxC.Y = max(maxC.X, c.X), max(maxC.Y, c.Y)
	}

	width := (maxC.X - minC.X + 1) * size
	height := (maxC.Y - minC.Y + 1) * size
	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	for _, v := range views {
		ox := (v.Coord().X - minC.X) * size
		oy := (v.Coord().Y - minC.Y) * size
		v.Each(func(x, y int, t world.Tile) {
			canvas[oy+y][ox+x] = glyphFor(reg, t)
		})
	}

	px := int(math.Floor(pos.X())) - minC.X*size
	py := int(math.Floor(pos.Y())) - minC.Y*size
	if py >= 0 && py < height && px >= 0 && px < width {
		canvas[py][px] = '@'
	}

	var b strings.Builder
	// Highest y first so north is up.
	for y := height - 1; y >= 0; y-- {
		b.WriteString(string(canvas[y]))
		b.WriteByte('\n')
	}
	return b.String()
}

func glyphFor(reg *registry.Registry, t world.Tile) rune {
	idx, ok := reg.LookupTextureIndex(string(t))
	if !ok || idx >= len(glyphs) {
		return '?'
	}
	return glyphs[idx]
}
