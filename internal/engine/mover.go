package engine

import "github.com/born-ml/tilekit/internal/tensor"

// window is a strided box of global memory moved as one tile.
type window struct {
	ext     tensor.Dims // extent per axis
	strides tensor.Dims // global strides in elements
	base    int         // element offset of the first element
	esz     int         // element size in bytes
	unit    int         // bytes per tile element: esz * fan-in
}

// gather copies the window out of src into dst, densely, in row-major order
// of ext. Broadcast axes (stride 0) replicate, fan-in groups stay contiguous.
func gather(dst, src []byte, w *window) {
	gatherAxis(dst, src, w, 0, w.base, 0)
}

func gatherAxis(dst, src []byte, w *window, axis, off, pos int) int {
	n, st := w.ext.V[axis], w.strides.V[axis]
	if axis < w.ext.Rank-1 {
		for i := 0; i < n; i++ {
			pos = gatherAxis(dst, src, w, axis+1, off+i*st, pos)
		}
		return pos
	}

	switch {
	case n == 1 || st*w.esz == w.unit:
		nb := n * w.unit
		copy(dst[pos:pos+nb], src[off*w.esz:off*w.esz+nb])
		return pos + nb
	case st == 0:
		first := src[off*w.esz : off*w.esz+w.unit]
		for i := 0; i < n; i++ {
			copy(dst[pos:pos+w.unit], first)
			pos += w.unit
		}
		return pos
	default:
		for i := 0; i < n; i++ {
			at := (off + i*st) * w.esz
			copy(dst[pos:pos+w.unit], src[at:at+w.unit])
			pos += w.unit
		}
		return pos
	}
}

// scatter writes the dense tile in src to the window of dst.
func scatter(dst, src []byte, w *window) {
	scatterAxis(dst, src, w, 0, w.base, 0)
}

func scatterAxis(dst, src []byte, w *window, axis, off, pos int) int {
	n, st := w.ext.V[axis], w.strides.V[axis]
	if axis < w.ext.Rank-1 {
		for i := 0; i < n; i++ {
			pos = scatterAxis(dst, src, w, axis+1, off+i*st, pos)
		}
		return pos
	}

	if n == 1 || st*w.esz == w.unit {
		nb := n * w.unit
		copy(dst[off*w.esz:off*w.esz+nb], src[pos:pos+nb])
		return pos + nb
	}
	for i := 0; i < n; i++ {
		at := (off + i*st) * w.esz
		copy(dst[at:at+w.unit], src[pos:pos+w.unit])
		pos += w.unit
	}
	return pos
}

// denseFrom reports whether every tile window of op starting at axis split
// (with whole inner axes) is one contiguous run of memory.
func denseFrom(op tensor.Dims, strides tensor.Dims, split int) bool {
	want := 1
	for a := op.Rank - 1; a >= split; a-- {
		if op.V[a] != 1 && strides.V[a] != want {
			return false
		}
		want *= op.V[a]
	}
	return true
}
