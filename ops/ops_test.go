// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package ops_test

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/born-ml/tilekit/internal/kernels"
	"github.com/born-ml/tilekit/internal/reference"
	"github.com/born-ml/tilekit/ops"
	"github.com/born-ml/tilekit/tensor"
)

// platforms cover one core, many cores with tiny buffers and the defaults.
var platforms = []ops.Platform{
	{Cores: 1},
	{Cores: 4, UBBytes: 256, Align: 4},
	{Cores: 3, UBBytes: 1024},
	{},
}

func random[T tensor.DType](t *testing.T, rng *rand.Rand, gen func(*rand.Rand) T, shape tensor.Shape) *tensor.Raw {
	t.Helper()
	vals := make([]T, shape.NumElements())
	for i := range vals {
		vals[i] = gen(rng)
	}
	r, err := tensor.FromSlice(vals, shape)
	require.NoError(t, err)
	return r
}

func requireSame(t *testing.T, want, got *tensor.Raw, what string) {
	t.Helper()
	require.Equal(t, want.Shape(), got.Shape(), what)
	require.Equal(t, want.DType(), got.DType(), what)
	if !bytes.Equal(want.Data(), got.Data()) {
		t.Fatalf("%s: result differs from reference", what)
	}
}

// variants returns option sets for every platform and the stream strategies.
func variants() map[string][]ops.Option {
	v := map[string][]ops.Option{}
	for i, pl := range platforms {
		v[fmt.Sprintf("platform%d/auto", i)] = []ops.Option{ops.WithPlatform(pl)}
		v[fmt.Sprintf("platform%d/tiled", i)] = []ops.Option{ops.WithPlatform(pl), ops.WithStrategy(ops.Tiled)}
		v[fmt.Sprintf("platform%d/noreuse", i)] = []ops.Option{ops.WithPlatform(pl), ops.WithoutReuse(), ops.WithSerialCores()}
	}
	v["whole"] = []ops.Option{ops.WithStrategy(ops.Whole)}
	return v
}

// triangularVariants adds the triangular-only strategies and tile overrides.
func triangularVariants() map[string][]ops.Option {
	v := variants()
	v["tiny"] = []ops.Option{ops.WithStrategy(ops.Tiny)}
	v["medium"] = []ops.Option{ops.WithStrategy(ops.Medium), ops.WithPlatform(ops.Platform{Cores: 5})}
	v["tiles3x4"] = []ops.Option{ops.WithTiles(3, 4), ops.WithPlatform(ops.Platform{Cores: 4})}
	v["tiles3x4/noskip"] = []ops.Option{ops.WithTiles(3, 4), ops.WithoutDegenerateSkip()}
	v["tiles1x1"] = []ops.Option{ops.WithTiles(1, 1), ops.WithPlatform(ops.Platform{Cores: 7})}
	return v
}

func checkMovement[T tensor.DType](t *testing.T, gen func(*rand.Rand) T) {
	rng := rand.New(rand.NewPCG(1, 2))

	x := random(t, rng, gen, tensor.Shape{2, 7, 9})
	for name, opts := range triangularVariants() {
		for _, diag := range []int{-9, -2, 0, 3, 9} {
			got, err := ops.Tril(x, diag, opts...)
			require.NoError(t, err, name)
			requireSame(t, reference.Triangular[T](x, diag, false), got, fmt.Sprintf("tril %s diag %d", name, diag))

			got, err = ops.Triu(x, diag, opts...)
			require.NoError(t, err, name)
			requireSame(t, reference.Triangular[T](x, diag, true), got, fmt.Sprintf("triu %s diag %d", name, diag))
		}
	}

	y := random(t, rng, gen, tensor.Shape{2, 3, 4})
	for name, opts := range variants() {
		for _, perm := range [][]int{{2, 0, 1}, {1, 0, 2}, {0, 1, 2}} {
			got, err := ops.Transpose(y, perm, opts...)
			require.NoError(t, err, name)
			requireSame(t, reference.Transpose[T](y, perm), got, fmt.Sprintf("transpose %s %v", name, perm))
		}
	}

	region := []ops.Slice{{Start: 1, Stop: 5, Step: 2}, {Start: 0, Stop: 6, Step: 3}}
	value := random(t, rng, gen, tensor.Shape{1, 4})
	for name, opts := range variants() {
		dst := random(t, rng, gen, tensor.Shape{5, 6, 4})
		want := reference.Assign[T](dst, region, value)
		require.NoError(t, ops.StridedAssign(dst, region, value, opts...), name)
		requireSame(t, want, dst, "assign "+name)
	}
}

func checkNumeric[T tensor.DType, W any](t *testing.T, ar kernels.Arith[T], acc kernels.Accumulator[T, W], gen func(*rand.Rand) T) {
	rng := rand.New(rand.NewPCG(3, 4))

	x := random(t, rng, gen, tensor.Shape{2, 3, 5})
	lo := random(t, rng, gen, tensor.Shape{1})
	hi := random(t, rng, gen, tensor.Shape{3, 1})
	a := random(t, rng, gen, tensor.Shape{4, 1, 6})
	b := random(t, rng, gen, tensor.Shape{5, 1})
	cond := random(t, rng, func(r *rand.Rand) bool { return r.IntN(2) == 0 }, tensor.Shape{3, 1})
	c := random(t, rng, gen, tensor.Shape{2, 3, 4})
	d := random(t, rng, gen, tensor.Shape{4})
	s := random(t, rng, gen, tensor.Shape{3, 4, 9})

	for name, opts := range variants() {
		got, err := ops.Clip(x, lo, hi, opts...)
		require.NoError(t, err, name)
		requireSame(t, reference.Clip(ar, x, lo, hi), got, "clip "+name)

		got, err = ops.Maximum(a, b, opts...)
		require.NoError(t, err, name)
		requireSame(t, reference.Maximum(ar, a, b), got, "maximum "+name)

		got, err = ops.Minimum(a, b, opts...)
		require.NoError(t, err, name)
		requireSame(t, reference.Minimum(ar, a, b), got, "minimum "+name)

		got, err = ops.Where(cond, c, d, opts...)
		require.NoError(t, err, name)
		requireSame(t, reference.Where[T](cond, c, d), got, "where "+name)

		for cmp := ops.Equal; cmp <= ops.GreaterEqual; cmp++ {
			got, err = ops.Compare(c, d, cmp, opts...)
			require.NoError(t, err, name)
			requireSame(t, reference.Compare(ar, cmp, c, d), got, fmt.Sprintf("compare %d %s", cmp, name))
		}

		got, err = ops.ReduceSum(s, opts...)
		require.NoError(t, err, name)
		requireSame(t, reference.ReduceSum(acc, s), got, "reducesum "+name)

		got, err = ops.ReduceMax(s, opts...)
		require.NoError(t, err, name)
		requireSame(t, reference.ReduceMax(ar, s), got, "reducemax "+name)
	}

	checkMovement(t, gen)
}

func small(r *rand.Rand) int { return r.IntN(16) - 8 }

func TestFloat32(t *testing.T) {
	checkNumeric(t, kernels.Native[float32]{}, kernels.Same[float32]{}, func(r *rand.Rand) float32 { return float32(small(r)) / 4 })
}

func TestFloat64(t *testing.T) {
	checkNumeric(t, kernels.Native[float64]{}, kernels.Same[float64]{}, func(r *rand.Rand) float64 { return float64(small(r)) / 8 })
}

func TestFloat16(t *testing.T) {
	checkNumeric(t, kernels.Half{}, kernels.HalfToFloat32{}, func(r *rand.Rand) float16.Float16 {
		return float16.Fromfloat32(float32(small(r)) / 4)
	})
}

func TestInt8(t *testing.T) {
	checkNumeric(t, kernels.Native[int8]{}, kernels.Same[int8]{}, func(r *rand.Rand) int8 { return int8(small(r)) })
}

func TestInt32(t *testing.T) {
	checkNumeric(t, kernels.Native[int32]{}, kernels.Same[int32]{}, func(r *rand.Rand) int32 { return int32(small(r)) })
}

func TestInt64(t *testing.T) {
	checkNumeric(t, kernels.Native[int64]{}, kernels.Same[int64]{}, func(r *rand.Rand) int64 { return int64(small(r)) * 1000 })
}

func TestUint8(t *testing.T) {
	checkNumeric(t, kernels.Native[uint8]{}, kernels.Same[uint8]{}, func(r *rand.Rand) uint8 { return uint8(r.IntN(40)) })
}

func TestBool(t *testing.T) {
	checkMovement(t, func(r *rand.Rand) bool { return r.IntN(2) == 0 })
}
