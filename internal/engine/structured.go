package engine

// StructuredCopy writes the triangular extraction of src into dst for one
// tile with geometry g. Rows are g.ColActual elements apart in both buffers.
//
// Keep-lower zero-fills head rows without reading src, copies tail rows and
// masks mid rows; keep-upper is the mirror. A nil src means the tile was not
// fetched because it lies wholly on the zero side.
func StructuredCopy[T any](dst, src []T, g BlockGeometry, upper bool) {
	cols := g.ColActual
	if src == nil {
		clear(dst[:g.RowActual*cols])
		return
	}

	head := dst[:g.HeadRows*cols]
	tailFrom := (g.HeadRows + g.MidRows) * cols
	tail := dst[tailFrom : g.RowActual*cols]
	if upper {
		copy(head, src[:len(head)])
		clear(tail)
	} else {
		clear(head)
		copy(tail, src[tailFrom:tailFrom+len(tail)])
	}

	for i := g.HeadRows; i < g.HeadRows+g.MidRows; i++ {
		row := i * cols
		selectRow(dst[row:row+cols], src[row:row+cols], g, i, upper)
	}
}

// MaskedSelect is the generic path: every row goes through the per-row
// select, whatever its class. It yields exactly what StructuredCopy yields.
func MaskedSelect[T any](dst, src []T, g BlockGeometry, upper bool) {
	cols := g.ColActual
	for i := 0; i < g.RowActual; i++ {
		row := i * cols
		selectRow(dst[row:row+cols], src[row:row+cols], g, i, upper)
	}
}

// selectRow keeps src where the mask of row i is set and writes zero elsewhere.
func selectRow[T any](dst, src []T, g BlockGeometry, i int, upper bool) {
	if upper {
		start := g.upperStart(i)
		clear(dst[:start])
		copy(dst[start:], src[start:])
		return
	}
	end := g.lowerEnd(i)
	copy(dst[:end], src[:end])
	clear(dst[end:])
}

// DiagonalMask is a precomputed keep-bitmask for a whole rows x cols tile,
// used by the tiny strategy instead of per-row arithmetic.
type DiagonalMask struct {
	rows, cols int
	bits       []uint64
}

// NewDiagonalMask builds the mask of tile geometry g for the given mode.
func NewDiagonalMask(g BlockGeometry, upper bool) *DiagonalMask {
	m := &DiagonalMask{
		rows: g.RowActual,
		cols: g.ColActual,
		bits: make([]uint64, (g.RowActual*g.ColActual+63)/64),
	}
	for i := 0; i < g.RowActual; i++ {
		from, to := 0, g.lowerEnd(i)
		if upper {
			from, to = g.upperStart(i), g.ColActual
		}
		for j := from; j < to; j++ {
			k := i*g.ColActual + j
			m.bits[k/64] |= 1 << (k % 64)
		}
	}
	return m
}

// Keep reports whether element k (row-major) survives.
func (m *DiagonalMask) Keep(k int) bool {
	return m.bits[k/64]&(1<<(k%64)) != 0
}

// ApplyMask selects src or zero per element according to m.
func ApplyMask[T any](dst, src []T, m *DiagonalMask) {
	var zero T
	n := m.rows * m.cols
	for k := 0; k < n; k++ {
		if m.Keep(k) {
			dst[k] = src[k]
		} else {
			dst[k] = zero
		}
	}
}
