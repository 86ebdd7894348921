package kernels

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/x448/float16"

	"github.com/born-ml/tilekit/internal/tiling"
)

func TestNativeLowest(t *testing.T) {
	assert.True(t, math.IsInf(float64(Native[float32]{}.Lowest()), -1))
	assert.True(t, math.IsInf(Native[float64]{}.Lowest(), -1))
	assert.Equal(t, int8(math.MinInt8), Native[int8]{}.Lowest())
	assert.Equal(t, int32(math.MinInt32), Native[int32]{}.Lowest())
	assert.Equal(t, int64(math.MinInt64), Native[int64]{}.Lowest())
	assert.Equal(t, uint8(0), Native[uint8]{}.Lowest())
}

func TestNativeArith(t *testing.T) {
	ar := Native[int8]{}
	assert.True(t, ar.Less(-3, 2))
	assert.False(t, ar.Less(2, 2))
	assert.True(t, ar.Equal(5, 5))
	assert.Equal(t, int8(-128), ar.Add(127, 1), "int8 addition wraps")

	f := Native[float64]{}
	nan := math.NaN()
	assert.False(t, f.Equal(nan, nan))
	assert.False(t, f.Less(nan, 1))
	assert.False(t, f.Less(1, nan))
}

func TestHalf(t *testing.T) {
	ar := Half{}
	one := float16.Fromfloat32(1)
	two := float16.Fromfloat32(2)

	assert.True(t, ar.Less(one, two))
	assert.False(t, ar.Less(two, one))
	assert.True(t, ar.Equal(float16.Fromfloat32(0), float16.Fromfloat32(float32(math.Copysign(0, -1)))))
	nan := float16.Fromfloat32(float32(math.NaN()))
	assert.False(t, ar.Equal(nan, nan))
	assert.Equal(t, float16.Fromfloat32(3), ar.Add(one, two))
	assert.True(t, math.IsInf(float64(ar.Lowest().Float32()), -1))

	// 2048 + 1 is not representable and rounds back to 2048.
	big := float16.Fromfloat32(2048)
	assert.Equal(t, big, ar.Add(big, one))
}

func TestAccumulators(t *testing.T) {
	h := HalfToFloat32{}
	one := float16.Fromfloat32(1)
	var wide float32
	narrow := float16.Fromfloat32(0)
	for range 4096 {
		wide = h.AddWide(wide, h.Widen(one))
		narrow = Half{}.Add(narrow, one)
	}
	assert.Equal(t, float16.Fromfloat32(4096), h.Narrow(wide))
	assert.Equal(t, float16.Fromfloat32(2048), narrow)

	s := Same[int32]{}
	assert.Equal(t, int32(7), s.Narrow(s.AddWide(s.Widen(3), 4)))
}

func TestPredicate(t *testing.T) {
	ar := Native[int32]{}
	tests := []struct {
		attr tiling.Attr
		want [3]bool // (1,2), (2,2), (3,2)
	}{
		{tiling.CmpEqual, [3]bool{false, true, false}},
		{tiling.CmpNotEqual, [3]bool{true, false, true}},
		{tiling.CmpLess, [3]bool{true, false, false}},
		{tiling.CmpLessEqual, [3]bool{true, true, false}},
		{tiling.CmpGreater, [3]bool{false, false, true}},
		{tiling.CmpGreaterEqual, [3]bool{false, true, true}},
	}
	for _, tt := range tests {
		pred := Predicate[int32](ar, tt.attr)
		got := [3]bool{pred(1, 2), pred(2, 2), pred(3, 2)}
		assert.Equal(t, tt.want, got, "attr %d", tt.attr)
	}

	assert.Panics(t, func() { Predicate[int32](ar, tiling.Attr(42)) })
}
