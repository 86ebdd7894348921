// Package tiling defines the TilingPlan exchanged between the host planner and
// the device engine, its fixed-layout binary encoding, and a reference planner.
package tiling

import (
	"github.com/pkg/errors"

	"github.com/born-ml/tilekit/internal/tensor"
)

// MaxInputs is the largest number of input operands a plan can carry.
const MaxInputs = 4

// Attr is an operator-specific attribute carried in the plan.
type Attr uint8

// Triangular attributes.
const (
	KeepLower Attr = iota // tril
	KeepUpper             // triu
)

// Compare attributes.
const (
	CmpEqual Attr = iota
	CmpNotEqual
	CmpLess
	CmpLessEqual
	CmpGreater
	CmpGreaterEqual
)

// Reduce attributes.
const (
	ReduceSum Attr = iota
	ReduceMax
)

// Operand is one tensor as indexed by the plan: shape and element strides in
// the output's index space, a base element offset, and a fan-in (number of
// contiguous source elements feeding one output element, 1 unless reducing).
type Operand struct {
	Shape   tensor.Dims
	Strides tensor.Dims
	Offset  int
	FanIn   int
}

// Plan is the TilingPlan. It is produced once per invocation by the host and is
// read-only to the engine.
//
// Iterations are counted over (outer axes, split-axis tiles, column tiles):
// the split axis is cut into tiles of TileFormer elements (the last one
// TileTail), and when ColFormer > 0 the last axis is cut into tiles of
// ColFormer (the last one ColTail). Core c < UsedCoreCount-1 processes
// BlockFormer consecutive iterations starting at c*BlockFormer; the last used
// core processes BlockTail.
type Plan struct {
	Key       Key
	Attr      Attr
	SplitAxis int

	BlockFormer int
	BlockTail   int
	TileFormer  int
	TileTail    int
	ColFormer   int
	ColTail     int

	UsedCoreCount  int
	UBBytes        int
	DiagonalOffset int

	Out    Operand
	Inputs []Operand
}

// Rank returns the output rank.
func (p *Plan) Rank() int {
	return p.Out.Shape.Rank
}

// SplitDim returns the output extent along the split axis.
func (p *Plan) SplitDim() int {
	return p.Out.Shape.V[p.SplitAxis]
}

// SplitTiles returns the number of tiles along the split axis.
func (p *Plan) SplitTiles() int {
	return ceilDiv(p.SplitDim(), p.TileFormer)
}

// ColSplit reports whether the last axis is tiled as well.
func (p *Plan) ColSplit() bool {
	return p.ColFormer > 0
}

// ColTiles returns the number of column tiles (1 when columns are not split).
func (p *Plan) ColTiles() int {
	if !p.ColSplit() {
		return 1
	}
	return ceilDiv(p.Out.Shape.V[p.Rank()-1], p.ColFormer)
}

// OuterCount returns the number of index combinations of the axes before the split axis.
func (p *Plan) OuterCount() int {
	return p.Out.Shape.Product(0, p.SplitAxis)
}

// Period returns the number of iterations per step of the outer axes.
func (p *Plan) Period() int {
	return p.SplitTiles() * p.ColTiles()
}

// TotalIterations returns the iteration count over all cores.
func (p *Plan) TotalIterations() int {
	return p.OuterCount() * p.Period()
}

// InnerElems returns the number of output elements per split-axis row of a
// full tile.
func (p *Plan) InnerElems() int {
	if p.ColSplit() {
		return p.Out.Shape.Product(p.SplitAxis+1, p.Rank()-1) * p.ColFormer
	}
	return p.Out.Shape.Product(p.SplitAxis+1, p.Rank())
}

// TileElems returns the number of output elements in a full tile.
func (p *Plan) TileElems() int {
	return p.TileFormer * p.InnerElems()
}

// Blocks returns how many iterations core runs. Cores at or beyond
// UsedCoreCount are idle.
func (p *Plan) Blocks(core int) int {
	switch {
	case core < 0 || core >= p.UsedCoreCount:
		return 0
	case core == p.UsedCoreCount-1:
		return p.BlockTail
	default:
		return p.BlockFormer
	}
}

// Validate checks the plan's internal consistency. It runs once per
// invocation on the host (and on Decode); the engine never re-checks.
func (p *Plan) Validate() error {
	rank := p.Rank()
	if rank < 1 || rank > tensor.MaxRank {
		return errors.Wrapf(ErrInvalidPlan, "rank %d outside [1, %d]", rank, tensor.MaxRank)
	}
	if len(p.Inputs) > MaxInputs {
		return errors.Wrapf(ErrInvalidPlan, "%d inputs exceed maximum %d", len(p.Inputs), MaxInputs)
	}
	if p.SplitAxis < 0 || p.SplitAxis >= rank {
		return errors.Wrapf(ErrInvalidPlan, "split axis %d outside [0, %d)", p.SplitAxis, rank)
	}
	for i := 0; i < rank; i++ {
		if p.Out.Shape.V[i] <= 0 {
			return errors.Wrapf(ErrInvalidPlan, "output dim %d is %d", i, p.Out.Shape.V[i])
		}
	}
	if err := checkTiles("split", p.SplitDim(), p.TileFormer, p.TileTail); err != nil {
		return err
	}
	if p.ColSplit() {
		if p.SplitAxis != rank-2 {
			return errors.Wrapf(ErrInvalidPlan, "column tiling needs split axis %d, got %d", rank-2, p.SplitAxis)
		}
		if err := checkTiles("column", p.Out.Shape.V[rank-1], p.ColFormer, p.ColTail); err != nil {
			return err
		}
	}
	for i, in := range p.Inputs {
		if in.Shape.Rank != rank || in.Strides.Rank != rank {
			return errors.Wrapf(ErrInvalidPlan, "input %d has rank %d, output has %d", i, in.Shape.Rank, rank)
		}
		if in.FanIn < 1 {
			return errors.Wrapf(ErrInvalidPlan, "input %d fan-in %d", i, in.FanIn)
		}
	}
	if p.UsedCoreCount < 1 || p.BlockFormer < 1 {
		return errors.Wrapf(ErrInvalidPlan, "used cores %d, block former %d", p.UsedCoreCount, p.BlockFormer)
	}
	if p.BlockTail < 0 || p.BlockTail > p.BlockFormer {
		return errors.Wrapf(ErrInvalidPlan, "block tail %d outside [0, %d]", p.BlockTail, p.BlockFormer)
	}
	covered := (p.UsedCoreCount-1)*p.BlockFormer + p.BlockTail
	if total := p.TotalIterations(); covered != total {
		return errors.Wrapf(ErrInvalidPlan, "cores cover %d iterations, plan has %d", covered, total)
	}
	return nil
}

func checkTiles(what string, dim, former, tail int) error {
	if former <= 0 || tail <= 0 || tail > former {
		return errors.Wrapf(ErrInvalidPlan, "%s tile former %d tail %d", what, former, tail)
	}
	if want := dim - (ceilDiv(dim, former)-1)*former; tail != want {
		return errors.Wrapf(ErrInvalidPlan, "%s tile tail %d, want %d for dim %d", what, tail, want, dim)
	}
	return nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
