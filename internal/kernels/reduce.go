package kernels

import (
	"github.com/born-ml/tilekit/internal/engine"
	"github.com/born-ml/tilekit/internal/tiling"
)

// Each output element of a reduction owns fanIn consecutive input elements
// in its input tile (the whole last axis of the source row).

// ReduceSum sums each fan-in group, accumulating in W.
func ReduceSum[T, W any](acc Accumulator[T, W], fanIn int) engine.Factory {
	return streamFactory(func(t *engine.Tile, out []byte, ins [][]byte) {
		dst := elems[T](out, t.Elems)
		src := elems[T](ins[0], t.Elems*fanIn)
		for i := range dst {
			var s W
			for _, v := range src[i*fanIn : (i+1)*fanIn] {
				s = acc.AddWide(s, acc.Widen(v))
			}
			dst[i] = acc.Narrow(s)
		}
	})
}

// ReduceMax takes the maximum of each fan-in group.
func ReduceMax[T any](ar Arith[T], fanIn int) engine.Factory {
	return streamFactory(func(t *engine.Tile, out []byte, ins [][]byte) {
		dst := elems[T](out, t.Elems)
		src := elems[T](ins[0], t.Elems*fanIn)
		for i := range dst {
			group := src[i*fanIn : (i+1)*fanIn]
			m := group[0]
			for _, v := range group[1:] {
				if ar.Less(m, v) {
					m = v
				}
			}
			dst[i] = m
		}
	})
}

// Reduce picks the reduction named by the plan's attribute.
func Reduce[T, W any](ar Arith[T], acc Accumulator[T, W], p *tiling.Plan) engine.Factory {
	fanIn := p.Inputs[0].FanIn
	if p.Attr == tiling.ReduceMax {
		return ReduceMax(ar, fanIn)
	}
	return ReduceSum(acc, fanIn)
}
