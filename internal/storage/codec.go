// Package storage persists chunk tile grids.
//
// Every backend stores the same line-oriented text body: one line per row,
// tile tokens separated by a single space, no header and no trailing
// whitespace.
package storage

import (
	"bytes"
	"fmt"
	"strings"

	"tilestream/internal/world"
)

// Codec converts grids to and from the text body.
type Codec struct {
	Size  int           // expected side length
	Tiles world.TileSet // vocabulary; nil accepts any valid token
}

// Encode renders g row-major. It rejects grids that Decode would refuse.
func (c Codec) Encode(g world.Grid) ([]byte, error) {
	if g.Size() != c.Size {
		return nil, fmt.Errorf("encode: grid is %dx%d, want %dx%d", g.Size(), g.Size(), c.Size, c.Size)
	}
	var buf bytes.Buffer
	buf.Grow(c.Size * c.Size * 6)
	for y := 0; y < c.Size; y++ {
		if y > 0 {
			buf.WriteByte('\n')
		}
		for x := 0; x < c.Size; x++ {
			t := g.At(x, y)
			if !world.ValidToken(t) {
				return nil, fmt.Errorf("encode: cell (%d,%d) holds invalid token %q", x, y, t)
			}
			if c.Tiles != nil && !c.Tiles.Has(t) {
				return nil, fmt.Errorf("encode: cell (%d,%d) holds unknown tile %q", x, y, t)
			}
			if x > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(string(t))
		}
	}
	return buf.Bytes(), nil
}

// Decode parses a body stored for coord. Structural problems come back as
// *world.CorruptChunkError.
func (c Codec) Decode(coord world.Coord, data []byte) (world.Grid, error) {
	corrupt := func(format string, args ...any) (world.Grid, error) {
		return world.Grid{}, &world.CorruptChunkError{Coord: coord, Reason: fmt.Sprintf(format, args...)}
	}

	text := strings.ReplaceAll(string(data), "\r", "")
	text = strings.TrimSpace(text)
	if text == "" {
		return corrupt("empty body")
	}
	rows := strings.Split(text, "\n")
	if len(rows) != c.Size {
		return corrupt("%d rows, want %d", len(rows), c.Size)
	}

	grid := world.NewGrid(c.Size)
	for y, row := range rows {
		cols := strings.Split(strings.TrimRight(row, " \t"), " ")
		if len(cols) != c.Size {
			return corrupt("row %d has %d tokens, want %d", y, len(cols), c.Size)
		}
		for x, tok := range cols {
			t := world.Tile(tok)
			if !world.ValidToken(t) {
				return corrupt("row %d col %d: empty or malformed token %q", y, x, tok)
			}
			if c.Tiles != nil && !c.Tiles.Has(t) {
				return corrupt("row %d col %d: unknown tile %q", y, x, tok)
			}
			grid.Set(x, y, t)
		}
	}
	return grid, nil
}
