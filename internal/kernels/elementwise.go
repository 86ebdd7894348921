package kernels

import (
	"github.com/born-ml/tilekit/internal/engine"
	"github.com/born-ml/tilekit/internal/tensor"
	"github.com/born-ml/tilekit/internal/tiling"
)

// stream is a stateless kernel that reads every input of every tile. One
// value is shared by all cores.
type stream struct {
	compute func(t *engine.Tile, out []byte, ins [][]byte)
}

func (stream) Fetch(int, *engine.Tile) bool { return true }

func (k stream) Compute(t *engine.Tile, out []byte, ins [][]byte) {
	k.compute(t, out, ins)
}

func streamFactory(f func(t *engine.Tile, out []byte, ins [][]byte)) engine.Factory {
	k := stream{compute: f}
	return func(int) engine.Kernel { return k }
}

// elems views the first n elements of a tile buffer as []T.
func elems[T any](b []byte, n int) []T {
	return tensor.View[T](b)[:n]
}

// Clip computes min(max(x, lo), hi) over inputs (x, lo, hi).
func Clip[T any](ar Arith[T]) engine.Factory {
	return streamFactory(func(t *engine.Tile, out []byte, ins [][]byte) {
		n := t.Elems
		dst := elems[T](out, n)
		x, lo, hi := elems[T](ins[0], n), elems[T](ins[1], n), elems[T](ins[2], n)
		for i := range dst {
			v := x[i]
			if ar.Less(v, lo[i]) {
				v = lo[i]
			}
			if ar.Less(hi[i], v) {
				v = hi[i]
			}
			dst[i] = v
		}
	})
}

// Maximum computes the elementwise maximum of two inputs.
func Maximum[T any](ar Arith[T]) engine.Factory {
	return binary(func(a, b T) T {
		if ar.Less(a, b) {
			return b
		}
		return a
	})
}

// Minimum computes the elementwise minimum of two inputs.
func Minimum[T any](ar Arith[T]) engine.Factory {
	return binary(func(a, b T) T {
		if ar.Less(b, a) {
			return b
		}
		return a
	})
}

func binary[T any](f func(a, b T) T) engine.Factory {
	return streamFactory(func(t *engine.Tile, out []byte, ins [][]byte) {
		n := t.Elems
		dst := elems[T](out, n)
		a, b := elems[T](ins[0], n), elems[T](ins[1], n)
		for i := range dst {
			dst[i] = f(a[i], b[i])
		}
	})
}

// Select computes cond ? a : b over inputs (cond, a, b); cond is a Bool tensor.
func Select[T any]() engine.Factory {
	return streamFactory(func(t *engine.Tile, out []byte, ins [][]byte) {
		n := t.Elems
		dst := elems[T](out, n)
		cond, a, b := elems[bool](ins[0], n), elems[T](ins[1], n), elems[T](ins[2], n)
		for i := range dst {
			if cond[i] {
				dst[i] = a[i]
			} else {
				dst[i] = b[i]
			}
		}
	})
}

// Predicate returns the comparison selected by attr.
func Predicate[T any](ar Arith[T], attr tiling.Attr) func(a, b T) bool {
	switch attr {
	case tiling.CmpEqual:
		return ar.Equal
	case tiling.CmpNotEqual:
		return func(a, b T) bool { return !ar.Equal(a, b) }
	case tiling.CmpLess:
		return ar.Less
	case tiling.CmpLessEqual:
		return func(a, b T) bool { return ar.Less(a, b) || ar.Equal(a, b) }
	case tiling.CmpGreater:
		return func(a, b T) bool { return ar.Less(b, a) }
	case tiling.CmpGreaterEqual:
		return func(a, b T) bool { return ar.Less(b, a) || ar.Equal(a, b) }
	default:
		panic("kernels: unknown comparison")
	}
}

// Compare writes a Bool output holding attr(a, b) for two inputs of type T.
func Compare[T any](ar Arith[T], attr tiling.Attr) engine.Factory {
	pred := Predicate(ar, attr)
	return streamFactory(func(t *engine.Tile, out []byte, ins [][]byte) {
		n := t.Elems
		dst := elems[bool](out, n)
		a, b := elems[T](ins[0], n), elems[T](ins[1], n)
		for i := range dst {
			dst[i] = pred(a[i], b[i])
		}
	})
}

// Copy moves the single input tile to the output unchanged. The layout work
// of transpose and strided assignment happens in the copy-in gather and the
// copy-out scatter, so one byte-level kernel serves every element type.
func Copy() engine.Factory {
	return streamFactory(func(_ *engine.Tile, out []byte, ins [][]byte) {
		copy(out, ins[0][:len(out)])
	})
}
