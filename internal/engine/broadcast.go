package engine

import "github.com/born-ml/tilekit/internal/tiling"

// Resolver decides, per input and iteration, whether a tile must be fetched
// from global memory or whether the slot filled BufferDepth iterations
// earlier still holds the same expanded data.
//
// An input whose split-axis stride is non-zero varies along the split axis
// and is always fetched. An input broadcast along the split axis produces the
// same tile for every split-axis step of one outer step, so only the first
// BufferDepth tiles of each period (one per slot) and of each core are fetched.
// The rule may fetch more than strictly needed; it never reuses stale data.
type Resolver struct {
	plan      *tiling.Plan
	start     int
	period    int
	disabled  bool
	reusable  []bool
	invariant []bool
}

// NewResolver builds the resolver for one core. With disableReuse every
// iteration fetches.
func NewResolver(p *tiling.Plan, core int, disableReuse bool) *Resolver {
	r := &Resolver{
		plan:      p,
		start:     core * p.BlockFormer,
		period:    p.Period(),
		disabled:  disableReuse,
		reusable:  make([]bool, len(p.Inputs)),
		invariant: make([]bool, len(p.Inputs)),
	}
	last := p.Rank() - 1
	for i, in := range p.Inputs {
		if in.Strides.V[p.SplitAxis] != 0 {
			continue
		}
		// With column tiles the window also moves along the last axis.
		if p.ColSplit() && in.Strides.V[last] != 0 {
			continue
		}
		r.reusable[i] = true
		r.invariant[i] = true
		for a := 0; a < p.SplitAxis; a++ {
			if in.Strides.V[a] != 0 && p.Out.Shape.V[a] != 1 {
				r.invariant[i] = false
				break
			}
		}
	}
	return r
}

// Reusable reports whether input can ever skip a fetch. Reusable inputs are
// always gathered with full tile extents so any later tile can read a prefix.
func (r *Resolver) Reusable(input int) bool {
	return r.reusable[input] && !r.disabled
}

// NeedsFetch reports whether input must be copied in for tile tc.
func (r *Resolver) NeedsFetch(input int, tc TileCoordinate) bool {
	if r.disabled || !r.reusable[input] {
		return true
	}
	if tc.Local < tiling.BufferDepth {
		return true
	}
	if r.invariant[input] {
		return false
	}
	return (r.start+tc.Local)%r.period < tiling.BufferDepth
}
