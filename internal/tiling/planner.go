package tiling

import (
	"math"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/born-ml/tilekit/internal/tensor"
)

// BufferDepth is the number of slots per operand role (double buffering).
const BufferDepth = 2

// TinyElems is the largest matrix (in elements) routed to the bitmask strategy
// when the planner chooses on its own.
const TinyElems = 4096

// Planner builds TilingPlans for a platform. It is the host-side step that
// the engine trusts: every shape, type and budget check happens here.
type Planner struct {
	platform Platform
}

// NewPlanner creates a planner; zero fields of pl take DefaultPlatform values.
func NewPlanner(pl Platform) *Planner {
	return &Planner{platform: pl.withDefaults()}
}

// Platform returns the effective platform.
func (pl *Planner) Platform() Platform {
	return pl.platform
}

// Partition splits total iterations over at most cores cores. Every used core
// but the last runs blockFormer iterations; the last runs blockTail.
func Partition(total, cores int) (blockFormer, blockTail, used int) {
	if total <= 0 || cores <= 0 {
		return 0, 0, 0
	}
	blockFormer = ceilDiv(total, cores)
	used = ceilDiv(total, blockFormer)
	blockTail = total - (used-1)*blockFormer
	return blockFormer, blockTail, used
}

// ElementwiseRequest describes an elementwise operator over broadcast inputs.
type ElementwiseRequest struct {
	Inputs   []tensor.Shape
	InTypes  []tensor.DataType
	OutType  tensor.DataType
	Elem     tensor.DataType // element type encoded in the key
	Strategy Strategy        // 0 lets the planner choose
	Attr     Attr
}

// PlanElementwise plans an elementwise operator. The output shape is the
// broadcast of all inputs.
func (pl *Planner) PlanElementwise(req ElementwiseRequest) (*Plan, error) {
	if len(req.Inputs) == 0 || len(req.Inputs) > MaxInputs {
		return nil, errors.Wrapf(ErrInvalidShape, "%d inputs", len(req.Inputs))
	}
	if len(req.InTypes) != len(req.Inputs) {
		return nil, errors.Wrapf(ErrInvalidShape, "%d input types for %d inputs", len(req.InTypes), len(req.Inputs))
	}

	shapes := lo.Map(req.Inputs, func(s tensor.Shape, _ int) tensor.Shape { return promoteScalar(s) })
	out := shapes[0]
	for _, s := range shapes[1:] {
		b, _, err := tensor.BroadcastShapes(out, s)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidShape, err.Error())
		}
		out = b
	}
	if err := out.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidShape, err.Error())
	}

	inputs := make([]Operand, len(shapes))
	for i, s := range shapes {
		if err := s.Validate(); err != nil {
			return nil, errors.Wrapf(ErrInvalidShape, "input %d: %v", i, err)
		}
		d, err := tensor.Broadcast(s, out, req.InTypes[i])
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidShape, "input %d: %v", i, err)
		}
		inputs[i] = Operand{Shape: d.Shape, Strides: d.Strides, FanIn: 1}
	}

	return pl.planStream(streamRequest{
		out:      out,
		outOp:    contiguousOperand(out),
		inputs:   inputs,
		inSizes:  lo.Map(req.InTypes, func(dt tensor.DataType, _ int) int { return dt.Size() }),
		outSize:  req.OutType.Size(),
		elem:     req.Elem,
		strategy: req.Strategy,
		attr:     req.Attr,
	})
}

// PlanReduce plans a reduction over the last axis of in, keeping the axis
// with size 1.
func (pl *Planner) PlanReduce(in tensor.Shape, elem tensor.DataType, attr Attr, strategy Strategy) (*Plan, error) {
	in = promoteScalar(in)
	if err := in.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidShape, err.Error())
	}
	out := in.Clone()
	out[len(out)-1] = 1

	input := Operand{
		Shape:   tensor.DimsOf(in...),
		Strides: tensor.DimsOf(in.ComputeStrides()...),
		FanIn:   in[len(in)-1],
	}
	return pl.planStream(streamRequest{
		out:      out,
		outOp:    contiguousOperand(out),
		inputs:   []Operand{input},
		inSizes:  []int{elem.Size()},
		outSize:  elem.Size(),
		elem:     elem,
		strategy: strategy,
		attr:     attr,
	})
}

// PlanTranspose plans out[i0..] = in[perm-permuted index]. Output axis i has
// extent in[perm[i]].
func (pl *Planner) PlanTranspose(in tensor.Shape, perm []int, elem tensor.DataType, strategy Strategy) (*Plan, error) {
	in = promoteScalar(in)
	if err := in.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidShape, err.Error())
	}
	if len(perm) != len(in) || len(lo.Uniq(perm)) != len(perm) ||
		lo.SomeBy(perm, func(a int) bool { return a < 0 || a >= len(in) }) {
		return nil, errors.Wrapf(ErrInvalidShape, "perm %v is not a permutation of %d axes", perm, len(in))
	}

	inStrides := in.ComputeStrides()
	out := make(tensor.Shape, len(in))
	strides := make([]int, len(in))
	for i, a := range perm {
		out[i] = in[a]
		strides[i] = inStrides[a]
	}
	input := Operand{Shape: tensor.DimsOf(out...), Strides: tensor.DimsOf(strides...), FanIn: 1}

	return pl.planStream(streamRequest{
		out:      out,
		outOp:    contiguousOperand(out),
		inputs:   []Operand{input},
		inSizes:  []int{elem.Size()},
		outSize:  elem.Size(),
		elem:     elem,
		strategy: strategy,
	})
}

// Slice selects indices Start, Start+Step, ... below Stop along one axis.
type Slice struct {
	Start, Stop, Step int
}

// PlanAssign plans writing value (broadcast to the region) into the strided
// region of dst selected by region. Missing trailing slices select whole axes.
// The output operand is a strided view into dst.
func (pl *Planner) PlanAssign(dst tensor.Shape, region []Slice, value tensor.Shape, elem tensor.DataType, strategy Strategy) (*Plan, error) {
	dst = promoteScalar(dst)
	if err := dst.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidShape, err.Error())
	}
	if len(region) > len(dst) {
		return nil, errors.Wrapf(ErrInvalidShape, "%d slices for rank %d", len(region), len(dst))
	}

	dstStrides := dst.ComputeStrides()
	out := make(tensor.Shape, len(dst))
	strides := make([]int, len(dst))
	offset := 0
	for i := range dst {
		sl := Slice{Start: 0, Stop: dst[i], Step: 1}
		if i < len(region) {
			sl = region[i]
		}
		if sl.Step < 1 || sl.Start < 0 || sl.Start >= sl.Stop || sl.Stop > dst[i] {
			return nil, errors.Wrapf(ErrInvalidShape, "axis %d: slice %+v of extent %d", i, sl, dst[i])
		}
		out[i] = ceilDiv(sl.Stop-sl.Start, sl.Step)
		strides[i] = dstStrides[i] * sl.Step
		offset += sl.Start * dstStrides[i]
	}

	d, err := tensor.Broadcast(promoteScalar(value), out, elem)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidShape, "value: %v", err)
	}
	outOp := Operand{
		Shape:   tensor.DimsOf(out...),
		Strides: tensor.DimsOf(strides...),
		Offset:  offset,
		FanIn:   1,
	}

	return pl.planStream(streamRequest{
		out:      out,
		outOp:    outOp,
		inputs:   []Operand{{Shape: d.Shape, Strides: d.Strides, FanIn: 1}},
		inSizes:  []int{elem.Size()},
		outSize:  elem.Size(),
		elem:     elem,
		strategy: strategy,
	})
}

type streamRequest struct {
	out      tensor.Shape
	outOp    Operand
	inputs   []Operand
	inSizes  []int
	outSize  int
	elem     tensor.DataType
	strategy Strategy
	attr     Attr
}

// planStream chooses the split axis and tile length for the streaming
// pipeline: the outermost axis whose inner chunk fits the per-slot budget,
// shortened when that would leave cores idle.
func (pl *Planner) planStream(req streamRequest) (*Plan, error) {
	if !req.elem.Valid() {
		return nil, errors.Wrapf(ErrUnsupportedType, "%d", req.elem)
	}

	perElem := req.outSize
	for i, in := range req.inputs {
		perElem += req.inSizes[i] * in.FanIn
	}
	budget := pl.platform.UBBytes / (BufferDepth * perElem)
	if budget < 1 {
		return nil, errors.Wrapf(ErrBufferTooSmall, "%d bytes per element, %d byte buffer", BufferDepth*perElem, pl.platform.UBBytes)
	}

	out := req.out
	rank := len(out)
	p := &Plan{
		Attr:    req.attr,
		UBBytes: pl.platform.UBBytes,
		Out:     req.outOp,
		Inputs:  req.inputs,
	}

	strategy := req.strategy
	total := out.NumElements()
	if strategy == 0 {
		strategy = StrategyTiled
		if total <= budget {
			strategy = StrategyWhole
		}
	}

	switch strategy {
	case StrategyWhole:
		if total > budget {
			return nil, errors.Wrapf(ErrStrategyNotFit, "%d elements, budget %d", total, budget)
		}
		p.SplitAxis = 0
		p.TileFormer = out[0]
	case StrategyTiled:
		axis := 0
		for axis < rank-1 && product(out[axis+1:]) > budget {
			axis++
		}
		inner := product(out[axis+1:])
		tile := min(out[axis], budget/inner)
		if axis == rank-1 {
			if align := pl.platform.Align / req.outSize; align > 0 && tile > align {
				tile -= tile % align
			}
		}
		tile = spreadTiles(out[axis], tile, product(out[:axis]), pl.platform.Cores)
		p.SplitAxis = axis
		p.TileFormer = tile
	default:
		return nil, errors.Wrapf(ErrUnsupportedStrategy, "%s", strategy)
	}

	p.Key = MakeKey(strategy, req.elem)
	p.TileTail = tailOf(p.SplitDim(), p.TileFormer)
	p.BlockFormer, p.BlockTail, p.UsedCoreCount = Partition(p.TotalIterations(), pl.platform.Cores)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// TriangularRequest describes a tril/triu extraction over the last two axes.
type TriangularRequest struct {
	Shape    tensor.Shape
	Diagonal int
	Upper    bool
	Elem     tensor.DataType
	Strategy Strategy // 0 lets the planner choose
	RowTile  int      // optional row tile override (tiled/medium)
	ColTile  int      // optional column tile override (tiled)
}

// PlanTriangular plans a triangular extraction. The split axis is always the
// row axis; batch axes are outer.
func (pl *Planner) PlanTriangular(req TriangularRequest) (*Plan, error) {
	shape := req.Shape
	if len(shape) < 2 {
		return nil, errors.Wrapf(ErrInvalidShape, "triangular op needs rank >= 2, got %v", shape)
	}
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidShape, err.Error())
	}
	if !req.Elem.Valid() {
		return nil, errors.Wrapf(ErrUnsupportedType, "%d", req.Elem)
	}

	rank := len(shape)
	rows, cols := shape[rank-2], shape[rank-1]
	budget := pl.platform.UBBytes / (BufferDepth * 2 * req.Elem.Size())
	if budget < 1 {
		return nil, errors.Wrapf(ErrBufferTooSmall, "%d byte buffer", pl.platform.UBBytes)
	}

	strategy := req.Strategy
	if strategy == 0 {
		switch {
		case req.RowTile > 0 || req.ColTile > 0:
			strategy = StrategyTiled
		case rows*cols <= budget && rows*cols <= TinyElems:
			strategy = StrategyTiny
		case rows*cols <= budget:
			strategy = StrategyWhole
		case cols <= budget:
			strategy = StrategyMedium
		default:
			strategy = StrategyTiled
		}
	}

	p := &Plan{
		Key:            MakeKey(strategy, req.Elem),
		SplitAxis:      rank - 2,
		UBBytes:        pl.platform.UBBytes,
		DiagonalOffset: req.Diagonal,
		Out:            contiguousOperand(shape),
		Inputs:         []Operand{contiguousOperand(shape)},
	}
	if req.Upper {
		p.Attr = KeepUpper
	}
	batch := product(shape[:rank-2])

	switch strategy {
	case StrategyWhole, StrategyTiny:
		if rows*cols > budget {
			return nil, errors.Wrapf(ErrStrategyNotFit, "%dx%d matrix, budget %d", rows, cols, budget)
		}
		p.TileFormer = rows
	case StrategyMedium:
		if cols > budget {
			return nil, errors.Wrapf(ErrStrategyNotFit, "row of %d, budget %d", cols, budget)
		}
		tile := min(rows, budget/cols)
		if req.RowTile > 0 {
			tile = min(rows, req.RowTile)
			if tile*cols > budget {
				return nil, errors.Wrapf(ErrStrategyNotFit, "row tile %d x %d, budget %d", tile, cols, budget)
			}
		} else {
			tile = spreadTiles(rows, tile, batch, pl.platform.Cores)
		}
		p.TileFormer = tile
	case StrategyTiled:
		rowTile, colTile := req.RowTile, req.ColTile
		if colTile <= 0 {
			side := int(math.Sqrt(float64(budget)))
			colTile = min(cols, max(side, 1))
			if align := pl.platform.Align / req.Elem.Size(); align > 0 && colTile > align {
				colTile -= colTile % align
			}
		}
		colTile = min(colTile, cols)
		if rowTile <= 0 {
			rowTile = min(rows, max(budget/colTile, 1))
			rowTile = spreadTiles(rows, rowTile, batch*ceilDiv(cols, colTile), pl.platform.Cores)
		}
		rowTile = min(rowTile, rows)
		if rowTile*colTile > budget {
			return nil, errors.Wrapf(ErrStrategyNotFit, "tile %dx%d, budget %d", rowTile, colTile, budget)
		}
		p.TileFormer = rowTile
		p.ColFormer = colTile
		p.ColTail = tailOf(cols, colTile)
	default:
		return nil, errors.Wrapf(ErrUnsupportedStrategy, "%s", strategy)
	}

	p.TileTail = tailOf(rows, p.TileFormer)
	p.BlockFormer, p.BlockTail, p.UsedCoreCount = Partition(p.TotalIterations(), pl.platform.Cores)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// spreadTiles shortens tile so that outer*tiles reaches cores when possible.
func spreadTiles(dim, tile, outer, cores int) int {
	if outer*ceilDiv(dim, tile) >= cores {
		return tile
	}
	want := ceilDiv(cores, outer)
	return max(1, min(tile, ceilDiv(dim, want)))
}

func tailOf(dim, tile int) int {
	return dim - (ceilDiv(dim, tile)-1)*tile
}

func product(s []int) int {
	return lo.Reduce(s, func(acc, d, _ int) int { return acc * d }, 1)
}

func promoteScalar(s tensor.Shape) tensor.Shape {
	if len(s) == 0 {
		return tensor.Shape{1}
	}
	return s
}

func contiguousOperand(s tensor.Shape) Operand {
	return Operand{
		Shape:   tensor.DimsOf(s...),
		Strides: tensor.DimsOf(s.ComputeStrides()...),
		FanIn:   1,
	}
}
