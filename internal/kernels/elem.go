// Package kernels implements the per-op compute stages run by the engine:
// clip, maximum/minimum, select, compare, triangular extraction, last-axis
// reductions and plain copies (transpose, strided assignment).
package kernels

import (
	"math"

	"github.com/x448/float16"
)

// Number is the set of element types with native Go arithmetic.
type Number interface {
	~float32 | ~float64 | ~int8 | ~int32 | ~int64 | ~uint8
}

// Arith is the element-type trait kernels are written against. Values stay in
// their native type; implementations define ordering and addition.
type Arith[T any] interface {
	Less(a, b T) bool
	Equal(a, b T) bool
	Add(a, b T) T
	Lowest() T
}

// Native is the Arith trait of a Number type.
type Native[T Number] struct{}

// Less reports a < b.
func (Native[T]) Less(a, b T) bool { return a < b }

// Equal reports a == b.
func (Native[T]) Equal(a, b T) bool { return a == b }

// Add returns a + b.
func (Native[T]) Add(a, b T) T { return a + b }

// Lowest returns the smallest value of T (negative infinity for floats).
func (Native[T]) Lowest() T {
	var zero T
	switch any(zero).(type) {
	case float32:
		return T(float32(math.Inf(-1)))
	case float64:
		return T(math.Inf(-1))
	case int8:
		v := int8(math.MinInt8)
		return T(v)
	case int32:
		v := int32(math.MinInt32)
		return T(v)
	case int64:
		v := int64(math.MinInt64)
		return T(v)
	default:
		return zero
	}
}

// Half is the Arith trait of float16.Float16. Comparisons and sums go through
// float32 and round back to half precision.
type Half struct{}

// Less reports a < b.
func (Half) Less(a, b float16.Float16) bool { return a.Float32() < b.Float32() }

// Equal reports a == b (so +0 == -0 and NaN != NaN).
func (Half) Equal(a, b float16.Float16) bool { return a.Float32() == b.Float32() }

// Add returns a + b rounded to half precision.
func (Half) Add(a, b float16.Float16) float16.Float16 {
	return float16.Fromfloat32(a.Float32() + b.Float32())
}

// Lowest returns negative infinity.
func (Half) Lowest() float16.Float16 { return float16.Inf(-1) }

// Accumulator widens values for reductions that must not accumulate in T.
type Accumulator[T, W any] interface {
	Widen(v T) W
	Narrow(w W) T
	AddWide(a, b W) W
}

// Same accumulates in T itself.
type Same[T Number] struct{}

// Widen returns v.
func (Same[T]) Widen(v T) T { return v }

// Narrow returns w.
func (Same[T]) Narrow(w T) T { return w }

// AddWide returns a + b.
func (Same[T]) AddWide(a, b T) T { return a + b }

// HalfToFloat32 accumulates half-precision values in float32.
type HalfToFloat32 struct{}

// Widen converts v to float32.
func (HalfToFloat32) Widen(v float16.Float16) float32 { return v.Float32() }

// Narrow rounds w to half precision.
func (HalfToFloat32) Narrow(w float32) float16.Float16 { return float16.Fromfloat32(w) }

// AddWide returns a + b.
func (HalfToFloat32) AddWide(a, b float32) float32 { return a + b }
