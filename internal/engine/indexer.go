// Package engine runs tiling plans: it walks each core's tile sequence,
// streams tiles through double-buffered copy-in/compute/copy-out stages and
// provides the diagonal-aware structured copy used by triangular kernels.
//
// Nothing in this package validates its inputs. Plans are checked once by
// the host planner; misuse here panics.
package engine

import (
	"iter"

	"github.com/born-ml/tilekit/internal/tensor"
	"github.com/born-ml/tilekit/internal/tiling"
)

// TileCoordinate locates one iteration of a core.
type TileCoordinate struct {
	Core   int
	Local  int // ordinal within the core
	Global int // ordinal within the plan

	// Index is the output index of the tile's first element.
	Index tensor.Dims

	SplitTile int // tile ordinal along the split axis
	ColTile   int // tile ordinal along the last axis (0 unless columns are tiled)
	Length    int // extent along the split axis
	ColLength int // extent along the last axis when columns are tiled, else 0
}

// Iterations returns the tiles core must process, in order. Cores at or
// beyond the plan's used core count get an empty sequence. The sequence can
// be ranged over any number of times and always yields the same coordinates.
func Iterations(core int, p *tiling.Plan) iter.Seq[TileCoordinate] {
	return func(yield func(TileCoordinate) bool) {
		n := p.Blocks(core)
		if n == 0 {
			return
		}
		start := core * p.BlockFormer
		c := newCursor(p, start)
		for local := 0; local < n; local++ {
			if !yield(c.coordinate(core, local, start+local)) {
				return
			}
			c.advance()
		}
	}
}

// CoordinateAt returns the local-th tile of core without walking the
// preceding ones.
func CoordinateAt(core, local int, p *tiling.Plan) TileCoordinate {
	global := core*p.BlockFormer + local
	c := newCursor(p, global)
	return c.coordinate(core, local, global)
}

// cursor is a mixed-radix counter over (outer axes..., split tiles[, column tiles]).
type cursor struct {
	plan  *tiling.Plan
	radix [tensor.MaxRank + 1]int
	digit [tensor.MaxRank + 1]int
	n     int
}

func newCursor(p *tiling.Plan, global int) *cursor {
	c := &cursor{plan: p}
	for a := 0; a < p.SplitAxis; a++ {
		c.radix[c.n] = p.Out.Shape.V[a]
		c.n++
	}
	c.radix[c.n] = p.SplitTiles()
	c.n++
	if p.ColSplit() {
		c.radix[c.n] = p.ColTiles()
		c.n++
	}
	for i := c.n - 1; i >= 0; i-- {
		c.digit[i] = global % c.radix[i]
		global /= c.radix[i]
	}
	return c
}

// advance increments the innermost digit, carrying outward.
func (c *cursor) advance() {
	for i := c.n - 1; i >= 0; i-- {
		c.digit[i]++
		if c.digit[i] < c.radix[i] {
			return
		}
		c.digit[i] = 0
	}
}

func (c *cursor) coordinate(core, local, global int) TileCoordinate {
	p := c.plan
	split := p.SplitAxis
	tc := TileCoordinate{Core: core, Local: local, Global: global}
	tc.Index.Rank = p.Rank()
	copy(tc.Index.V[:split], c.digit[:split])

	tc.SplitTile = c.digit[split]
	tc.Index.V[split] = tc.SplitTile * p.TileFormer
	tc.Length = p.TileFormer
	if tc.SplitTile == p.SplitTiles()-1 {
		tc.Length = p.TileTail
	}

	if p.ColSplit() {
		tc.ColTile = c.digit[split+1]
		tc.Index.V[p.Rank()-1] = tc.ColTile * p.ColFormer
		tc.ColLength = p.ColFormer
		if tc.ColTile == p.ColTiles()-1 {
			tc.ColLength = p.ColTail
		}
	}
	return tc
}

// Tile is a TileCoordinate with its extents resolved against the plan.
type Tile struct {
	TileCoordinate

	Rows  int // extent along the split axis
	Cols  int // elements per split-axis row
	Elems int // Rows * Cols

	// RowOffset and ColOffset locate the tile inside its matrix when the split
	// axis is the second-to-last axis; otherwise they are zero.
	RowOffset int
	ColOffset int
}

// TileOf resolves the extents of tc.
func TileOf(tc TileCoordinate, p *tiling.Plan) Tile {
	t := Tile{TileCoordinate: tc, Rows: tc.Length}
	rank := p.Rank()
	if p.ColSplit() {
		t.Cols = p.Out.Shape.Product(p.SplitAxis+1, rank-1) * tc.ColLength
	} else {
		t.Cols = p.Out.Shape.Product(p.SplitAxis+1, rank)
	}
	t.Elems = t.Rows * t.Cols
	if p.SplitAxis == rank-2 {
		t.RowOffset = tc.Index.V[rank-2]
		t.ColOffset = tc.Index.V[rank-1]
	}
	return t
}

// extents returns the per-axis extent of the tile window. rows overrides the
// split-axis extent and cols (when > 0) the column extent.
func extents(p *tiling.Plan, rows, cols int) tensor.Dims {
	e := p.Out.Shape
	for a := 0; a < p.SplitAxis; a++ {
		e.V[a] = 1
	}
	e.V[p.SplitAxis] = rows
	if p.ColSplit() {
		e.V[p.Rank()-1] = cols
	}
	return e
}
