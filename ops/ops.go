// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package ops runs tensor operators on the simulated multi-core accelerator.
//
// Every call plans the work on the host (shape checks, split axis, tile sizes,
// core partition), encodes the plan into its binary blob, selects the kernel
// by tiling key and runs all cores to completion. Errors are only ever
// returned by the host steps; a launched kernel always completes.
//
// Example:
//
//	x, _ := tensor.FromSlice([]float32{-2, 0.5, 3}, tensor.Shape{3})
//	lo, _ := tensor.FromSlice([]float32{0}, tensor.Shape{1})
//	hi, _ := tensor.FromSlice([]float32{1}, tensor.Shape{1})
//	y, err := ops.Clip(x, lo, hi) // [0 0.5 1]
package ops

import (
	"fmt"

	"github.com/born-ml/tilekit/internal/dispatch"
	"github.com/born-ml/tilekit/internal/tiling"
	"github.com/born-ml/tilekit/tensor"
)

// Comparison selects the predicate of Compare.
type Comparison = tiling.Attr

// Comparisons.
const (
	Equal        Comparison = tiling.CmpEqual
	NotEqual     Comparison = tiling.CmpNotEqual
	Less         Comparison = tiling.CmpLess
	LessEqual    Comparison = tiling.CmpLessEqual
	Greater      Comparison = tiling.CmpGreater
	GreaterEqual Comparison = tiling.CmpGreaterEqual
)

// Slice selects indices Start, Start+Step, ... below Stop along one axis.
type Slice = tiling.Slice

// Clip limits x to [lo, hi] elementwise. All three broadcast together.
func Clip(x, lo, hi *tensor.Raw, opts ...Option) (*tensor.Raw, error) {
	return elementwise(dispatch.OpClip, 0, []*tensor.Raw{x, lo, hi}, x.DType(), opts)
}

// Maximum returns the elementwise maximum of a and b.
func Maximum(a, b *tensor.Raw, opts ...Option) (*tensor.Raw, error) {
	return elementwise(dispatch.OpMaximum, 0, []*tensor.Raw{a, b}, a.DType(), opts)
}

// Minimum returns the elementwise minimum of a and b.
func Minimum(a, b *tensor.Raw, opts ...Option) (*tensor.Raw, error) {
	return elementwise(dispatch.OpMinimum, 0, []*tensor.Raw{a, b}, a.DType(), opts)
}

// Where returns a where cond is true and b elsewhere. cond must be Bool.
func Where(cond, a, b *tensor.Raw, opts ...Option) (*tensor.Raw, error) {
	return elementwise(dispatch.OpWhere, 0, []*tensor.Raw{cond, a, b}, a.DType(), opts)
}

// Compare returns the Bool tensor cmp(a, b).
func Compare(a, b *tensor.Raw, cmp Comparison, opts ...Option) (*tensor.Raw, error) {
	if cmp > GreaterEqual {
		return nil, fmt.Errorf("compare: unknown comparison %d", cmp)
	}
	return elementwise(dispatch.OpCompare, cmp, []*tensor.Raw{a, b}, a.DType(), opts)
}

func elementwise(op dispatch.Op, attr tiling.Attr, inputs []*tensor.Raw, elem tensor.DataType, opts []Option) (*tensor.Raw, error) {
	c := newConfig(opts)
	table, err := dispatch.Lookup(op)
	if err != nil {
		return nil, err
	}
	inTypes, outType := table.Signature(elem)

	req := tiling.ElementwiseRequest{
		InTypes:  inTypes,
		OutType:  outType,
		Elem:     elem,
		Strategy: c.strategy,
		Attr:     attr,
	}
	for _, in := range inputs {
		req.Inputs = append(req.Inputs, in.Shape())
	}
	p, err := c.planner().PlanElementwise(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return run(c, op, p, inputs, nil)
}

// Tril keeps the elements of every matrix (last two axes) on and below the
// diagonal-th diagonal and zeroes the rest. Diagonal 0 is the main diagonal,
// positive values move it up.
func Tril(x *tensor.Raw, diagonal int, opts ...Option) (*tensor.Raw, error) {
	return triangular(x, diagonal, false, opts)
}

// Triu keeps the elements on and above the diagonal-th diagonal.
func Triu(x *tensor.Raw, diagonal int, opts ...Option) (*tensor.Raw, error) {
	return triangular(x, diagonal, true, opts)
}

func triangular(x *tensor.Raw, diagonal int, upper bool, opts []Option) (*tensor.Raw, error) {
	c := newConfig(opts)
	p, err := c.planner().PlanTriangular(tiling.TriangularRequest{
		Shape:    x.Shape(),
		Diagonal: diagonal,
		Upper:    upper,
		Elem:     x.DType(),
		Strategy: c.strategy,
		RowTile:  c.rowTile,
		ColTile:  c.colTile,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dispatch.OpTriangular, err)
	}
	return run(c, dispatch.OpTriangular, p, []*tensor.Raw{x}, nil)
}

// ReduceSum sums over the last axis, keeping it with size 1. Half-precision
// input accumulates in float32.
func ReduceSum(x *tensor.Raw, opts ...Option) (*tensor.Raw, error) {
	return reduce(x, tiling.ReduceSum, opts)
}

// ReduceMax takes the maximum over the last axis, keeping it with size 1.
func ReduceMax(x *tensor.Raw, opts ...Option) (*tensor.Raw, error) {
	return reduce(x, tiling.ReduceMax, opts)
}

func reduce(x *tensor.Raw, attr tiling.Attr, opts []Option) (*tensor.Raw, error) {
	c := newConfig(opts)
	p, err := c.planner().PlanReduce(x.Shape(), x.DType(), attr, c.strategy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dispatch.OpReduce, err)
	}
	return run(c, dispatch.OpReduce, p, []*tensor.Raw{x}, nil)
}

// Transpose permutes the axes of x: output axis i is input axis perm[i].
func Transpose(x *tensor.Raw, perm []int, opts ...Option) (*tensor.Raw, error) {
	c := newConfig(opts)
	p, err := c.planner().PlanTranspose(x.Shape(), perm, x.DType(), c.strategy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dispatch.OpTranspose, err)
	}
	return run(c, dispatch.OpTranspose, p, []*tensor.Raw{x}, nil)
}

// StridedAssign writes value, broadcast to the region of dst selected by
// region, into dst in place. Missing trailing slices select whole axes.
func StridedAssign(dst *tensor.Raw, region []Slice, value *tensor.Raw, opts ...Option) error {
	if value.DType() != dst.DType() {
		return fmt.Errorf("%s: value is %s, destination is %s", dispatch.OpAssign, value.DType(), dst.DType())
	}
	c := newConfig(opts)
	p, err := c.planner().PlanAssign(dst.Shape(), region, value.Shape(), dst.DType(), c.strategy)
	if err != nil {
		return fmt.Errorf("%s: %w", dispatch.OpAssign, err)
	}
	_, err = run(c, dispatch.OpAssign, p, []*tensor.Raw{value}, dst)
	return err
}

// run encodes p, allocates the output unless out is given and launches the
// kernel through its dispatch table.
func run(c *config, op dispatch.Op, p *tiling.Plan, inputs []*tensor.Raw, out *tensor.Raw) (*tensor.Raw, error) {
	blob, err := tiling.Encode(p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if out == nil {
		table, err := dispatch.Lookup(op)
		if err != nil {
			return nil, err
		}
		_, outType := table.Signature(p.Key.Elem())
		out, err = tensor.NewRaw(p.Out.Shape.Shape(), outType)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	report, err := dispatch.Launch(op, inputs, out, nil, blob, c.launch...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if c.report != nil {
		*c.report = report
	}
	return out, nil
}
