package kernels

import (
	"github.com/born-ml/tilekit/internal/engine"
	"github.com/born-ml/tilekit/internal/tensor"
	"github.com/born-ml/tilekit/internal/tiling"
)

// TriangularOptions tune the triangular kernel.
type TriangularOptions struct {
	// DisableDegenerateSkip fetches every tile and runs the generic masked
	// select on it, even when the tile lies wholly on one side of the diagonal.
	DisableDegenerateSkip bool
}

// triangular keeps the lower (tril) or upper (triu) triangle of every matrix
// over the last two axes and zeroes the rest. One instance serves one core.
type triangular[T any] struct {
	diagonal int
	upper    bool
	skip     bool
	tiny     bool

	// Compute-stage scratch: the bitmask of the last geometry seen.
	mask     *engine.DiagonalMask
	maskGeom engine.BlockGeometry
}

// Triangular builds the per-core triangular kernel for plan p.
func Triangular[T any](p *tiling.Plan, opts TriangularOptions) engine.Factory {
	return func(int) engine.Kernel {
		return &triangular[T]{
			diagonal: p.DiagonalOffset,
			upper:    p.Attr == tiling.KeepUpper,
			skip:     !opts.DisableDegenerateSkip,
			tiny:     p.Key.Strategy() == tiling.StrategyTiny,
		}
	}
}

func (k *triangular[T]) geometry(t *engine.Tile) engine.BlockGeometry {
	return engine.Classify(t.RowOffset, t.ColOffset, k.diagonal, t.Rows, t.Cols)
}

// Fetch skips the source of tiles that end up all zero.
func (k *triangular[T]) Fetch(_ int, t *engine.Tile) bool {
	return !k.skip || !k.geometry(t).ZeroSide(k.upper)
}

func (k *triangular[T]) Compute(t *engine.Tile, out []byte, ins [][]byte) {
	g := k.geometry(t)
	dst := elems[T](out, t.Elems)
	if ins[0] == nil {
		clear(dst)
		return
	}
	src := tensor.View[T](ins[0])

	switch {
	case k.tiny:
		if k.mask == nil || k.maskGeom != g {
			k.mask = engine.NewDiagonalMask(g, k.upper)
			k.maskGeom = g
		}
		engine.ApplyMask(dst, src, k.mask)
	case !k.skip:
		engine.MaskedSelect(dst, src, g, k.upper)
	default:
		engine.StructuredCopy(dst, src, g, k.upper)
	}
}
