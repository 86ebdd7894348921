// Package reference holds naive whole-tensor implementations of every kernel
// family. They index each output element directly, without tiles, cores or
// local buffers, and serve as golden results for the engine.
//
// Like the CPU backend they are modelled on, these functions panic on
// malformed arguments.
package reference

import (
	"fmt"

	"github.com/born-ml/tilekit/internal/kernels"
	"github.com/born-ml/tilekit/internal/parallel"
	"github.com/born-ml/tilekit/internal/tensor"
	"github.com/born-ml/tilekit/internal/tiling"
)

var cfg = parallel.DefaultConfig()

// broadcastOut returns the common broadcast shape of the inputs.
func broadcastOut(op string, shapes ...tensor.Shape) tensor.Shape {
	out := shapes[0]
	for _, s := range shapes[1:] {
		b, _, err := tensor.BroadcastShapes(out, s)
		if err != nil {
			panic(fmt.Sprintf("%s: %v", op, err))
		}
		out = b
	}
	return out
}

// indexer maps flat output indices to flat indices of an input broadcast to out.
type indexer struct {
	outStrides []int
	inStrides  []int
}

func newIndexer(in, out tensor.Shape) indexer {
	return indexer{
		outStrides: out.ComputeStrides(),
		inStrides:  tensor.BroadcastStrides(in, out),
	}
}

func (ix indexer) at(i int) int {
	return tensor.FlatIndex(i, ix.outStrides, ix.inStrides)
}

func newRaw(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.Raw {
	r, err := tensor.NewRaw(shape, dtype)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	return r
}

// Clip returns min(max(x, lo), hi) with broadcasting.
func Clip[T tensor.DType](ar kernels.Arith[T], x, lo, hi *tensor.Raw) *tensor.Raw {
	out := broadcastOut("clip", x.Shape(), lo.Shape(), hi.Shape())
	result := newRaw("clip", out, x.DType())
	xs, los, his, dst := tensor.As[T](x), tensor.As[T](lo), tensor.As[T](hi), tensor.As[T](result)
	xi, li, hi2 := newIndexer(x.Shape(), out), newIndexer(lo.Shape(), out), newIndexer(hi.Shape(), out)

	parallel.For(len(dst), func(i int) {
		v := xs[xi.at(i)]
		if l := los[li.at(i)]; ar.Less(v, l) {
			v = l
		}
		if h := his[hi2.at(i)]; ar.Less(h, v) {
			v = h
		}
		dst[i] = v
	}, cfg)
	return result
}

// Maximum returns the elementwise maximum with broadcasting.
func Maximum[T tensor.DType](ar kernels.Arith[T], a, b *tensor.Raw) *tensor.Raw {
	return binary("maximum", a, b, func(x, y T) T {
		if ar.Less(x, y) {
			return y
		}
		return x
	})
}

// Minimum returns the elementwise minimum with broadcasting.
func Minimum[T tensor.DType](ar kernels.Arith[T], a, b *tensor.Raw) *tensor.Raw {
	return binary("minimum", a, b, func(x, y T) T {
		if ar.Less(y, x) {
			return y
		}
		return x
	})
}

func binary[T, O tensor.DType](op string, a, b *tensor.Raw, f func(x, y T) O) *tensor.Raw {
	out := broadcastOut(op, a.Shape(), b.Shape())
	result := newRaw(op, out, tensor.DataTypeOf[O]())
	as, bs, dst := tensor.As[T](a), tensor.As[T](b), tensor.As[O](result)
	ai, bi := newIndexer(a.Shape(), out), newIndexer(b.Shape(), out)

	parallel.For(len(dst), func(i int) {
		dst[i] = f(as[ai.at(i)], bs[bi.at(i)])
	}, cfg)
	return result
}

// Where returns cond ? a : b with broadcasting; cond is a Bool tensor.
func Where[T tensor.DType](cond, a, b *tensor.Raw) *tensor.Raw {
	out := broadcastOut("where", cond.Shape(), a.Shape(), b.Shape())
	result := newRaw("where", out, a.DType())
	cs, as, bs, dst := tensor.As[bool](cond), tensor.As[T](a), tensor.As[T](b), tensor.As[T](result)
	ci, ai, bi := newIndexer(cond.Shape(), out), newIndexer(a.Shape(), out), newIndexer(b.Shape(), out)

	parallel.For(len(dst), func(i int) {
		if cs[ci.at(i)] {
			dst[i] = as[ai.at(i)]
		} else {
			dst[i] = bs[bi.at(i)]
		}
	}, cfg)
	return result
}

// Compare returns the Bool tensor attr(a, b) with broadcasting.
func Compare[T tensor.DType](ar kernels.Arith[T], attr tiling.Attr, a, b *tensor.Raw) *tensor.Raw {
	return binary("compare", a, b, kernels.Predicate(ar, attr))
}

// Triangular keeps elements with col-row <= diagonal (lower) or
// col-row >= diagonal (upper) of every matrix over the last two axes.
func Triangular[T tensor.DType](x *tensor.Raw, diagonal int, upper bool) *tensor.Raw {
	shape := x.Shape()
	if len(shape) < 2 {
		panic(fmt.Sprintf("triangular: rank %d < 2", len(shape)))
	}
	rows, cols := shape[len(shape)-2], shape[len(shape)-1]
	result := newRaw("triangular", shape, x.DType())
	src, dst := tensor.As[T](x), tensor.As[T](result)

	parallel.For(len(dst), func(k int) {
		i, j := (k/cols)%rows, k%cols
		keep := j-i <= diagonal
		if upper {
			keep = j-i >= diagonal
		}
		if keep {
			dst[k] = src[k]
		}
	}, cfg)
	return result
}

// ReduceSum sums over the last axis keeping it with size 1, accumulating in W.
func ReduceSum[T tensor.DType, W any](acc kernels.Accumulator[T, W], x *tensor.Raw) *tensor.Raw {
	return reduceLast("reducesum", x, func(group []T) T {
		var s W
		for _, v := range group {
			s = acc.AddWide(s, acc.Widen(v))
		}
		return acc.Narrow(s)
	})
}

// ReduceMax takes the maximum over the last axis keeping it with size 1.
func ReduceMax[T tensor.DType](ar kernels.Arith[T], x *tensor.Raw) *tensor.Raw {
	return reduceLast("reducemax", x, func(group []T) T {
		m := group[0]
		for _, v := range group[1:] {
			if ar.Less(m, v) {
				m = v
			}
		}
		return m
	})
}

func reduceLast[T tensor.DType](op string, x *tensor.Raw, f func([]T) T) *tensor.Raw {
	shape := x.Shape()
	if len(shape) == 0 {
		shape = tensor.Shape{1}
	}
	n := shape[len(shape)-1]
	out := shape.Clone()
	out[len(out)-1] = 1
	result := newRaw(op, out, x.DType())
	src, dst := tensor.As[T](x), tensor.As[T](result)

	parallel.For(len(dst), func(i int) {
		dst[i] = f(src[i*n : (i+1)*n])
	}, cfg)
	return result
}

// Transpose returns x with axes permuted: output axis i is input axis perm[i].
func Transpose[T tensor.DType](x *tensor.Raw, perm []int) *tensor.Raw {
	shape := x.Shape()
	if len(perm) != len(shape) {
		panic(fmt.Sprintf("transpose: perm %v for rank %d", perm, len(shape)))
	}
	inStrides := shape.ComputeStrides()
	out := make(tensor.Shape, len(shape))
	strides := make([]int, len(shape))
	for i, a := range perm {
		out[i] = shape[a]
		strides[i] = inStrides[a]
	}
	result := newRaw("transpose", out, x.DType())
	src, dst := tensor.As[T](x), tensor.As[T](result)
	outStrides := out.ComputeStrides()

	parallel.For(len(dst), func(i int) {
		dst[i] = src[tensor.FlatIndex(i, outStrides, strides)]
	}, cfg)
	return result
}

// Assign returns a copy of dst with value (broadcast) written into the region
// selected by slices. Missing trailing slices select whole axes.
func Assign[T tensor.DType](dst *tensor.Raw, region []tiling.Slice, value *tensor.Raw) *tensor.Raw {
	shape := dst.Shape()
	result := dst.Clone()
	out := make(tensor.Shape, len(shape))
	starts := make([]int, len(shape))
	steps := make([]int, len(shape))
	for a := range shape {
		sl := tiling.Slice{Start: 0, Stop: shape[a], Step: 1}
		if a < len(region) {
			sl = region[a]
		}
		out[a] = (sl.Stop - sl.Start + sl.Step - 1) / sl.Step
		starts[a], steps[a] = sl.Start, sl.Step
	}

	vs, ds := tensor.As[T](value), tensor.As[T](result)
	vi := newIndexer(value.Shape(), out)
	outStrides, dstStrides := out.ComputeStrides(), shape.ComputeStrides()

	// Region elements are distinct, so writes never collide.
	parallel.For(out.NumElements(), func(i int) {
		at, rem := 0, i
		for a := range out {
			c := rem / outStrides[a]
			rem %= outStrides[a]
			at += (starts[a] + c*steps[a]) * dstStrides[a]
		}
		ds[at] = vs[vi.at(i)]
	}, cfg)
	return result
}
