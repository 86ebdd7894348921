package engine

// Position is where a tile lies relative to the diagonal.
type Position uint8

// Tile positions.
const (
	OnDiagonal Position = iota
	AboveDiagonal
	BelowDiagonal
)

// String returns the position name.
func (p Position) String() string {
	switch p {
	case AboveDiagonal:
		return "above"
	case BelowDiagonal:
		return "below"
	default:
		return "on"
	}
}

// BlockGeometry splits a tile's rows into those strictly above the diagonal
// (HeadRows), those the diagonal may cross (MidRows) and those strictly below
// it (TailRows). HeadRows+MidRows+TailRows == RowActual.
type BlockGeometry struct {
	RowActual int
	ColActual int
	HeadRows  int
	MidRows   int
	TailRows  int
	Position  Position

	// Skew is colOffset - (rowOffset + diagonal) before clamping. Element
	// (i, j) of the tile lies on the diagonal when j == i - Skew.
	Skew int
}

// Classify computes the geometry of a rowActual x colActual tile whose first
// element sits at (rowOffset, colOffset) of its matrix. The diagonal is the
// set of elements with col - row == diagonal.
func Classify(rowOffset, colOffset, diagonal, rowActual, colActual int) BlockGeometry {
	skew := colOffset - (rowOffset + diagonal)
	head := clampInt(skew, 0, rowActual)
	tail := clampInt(rowActual-colActual-skew, 0, rowActual)
	g := BlockGeometry{
		RowActual: rowActual,
		ColActual: colActual,
		HeadRows:  head,
		MidRows:   rowActual - head - tail,
		TailRows:  tail,
		Skew:      skew,
	}
	switch {
	case head >= rowActual:
		g.Position = AboveDiagonal
	case tail >= rowActual:
		g.Position = BelowDiagonal
	default:
		g.Position = OnDiagonal
	}
	return g
}

// ZeroSide reports whether the whole tile is zero for the given mode, so its
// source never needs to be read.
func (g BlockGeometry) ZeroSide(upper bool) bool {
	if upper {
		return g.Position == BelowDiagonal
	}
	return g.Position == AboveDiagonal
}

// lowerEnd returns the column where keep-lower stops keeping tile row i.
// It moves right by exactly one column per row.
func (g BlockGeometry) lowerEnd(i int) int {
	return clampInt(i-g.Skew+1, 0, g.ColActual)
}

// upperStart returns the first column keep-upper keeps in tile row i.
func (g BlockGeometry) upperStart(i int) int {
	return clampInt(i-g.Skew, 0, g.ColActual)
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
