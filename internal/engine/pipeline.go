package engine

import (
	"github.com/born-ml/tilekit/internal/tensor"
	"github.com/born-ml/tilekit/internal/tiling"
)

// Kernel is the per-op part of the pipeline. One Kernel value serves exactly
// one core. Fetch runs on the copy-in stage and Compute on the compute stage,
// concurrently, so per-core scratch state may only be touched by Compute.
type Kernel interface {
	// Fetch reports whether input must be read for tile t. Returning false
	// leaves the input without a slot and Compute receives nil for it.
	Fetch(input int, t *Tile) bool
	// Compute fills out (t.Elems output elements) from the input tiles. Each
	// input tile holds at least t.Elems elements (times fan-in) laid out
	// row-major over the tile extents.
	Compute(t *Tile, out []byte, ins [][]byte)
}

// Factory creates the kernel instance of one core.
type Factory func(core int) Kernel

// operandIO binds a plan operand to its global buffer and local slots.
type operandIO struct {
	op    tiling.Operand
	data  []byte
	esz   int
	slots *slotPair
}

type inMsg struct {
	tile  Tile
	slots [tiling.MaxInputs]int // -1: input not fetched for this tile
}

type outMsg struct {
	tile Tile
	slot int
}

// pipeline is the per-core double-buffered copy-in → compute → copy-out engine.
type pipeline struct {
	plan     *tiling.Plan
	core     int
	kernel   Kernel
	resolver *Resolver
	ins      []operandIO
	out      operandIO
	dense    bool // output tiles are contiguous runs
	stats    CoreStats
}

func newPipeline(p *tiling.Plan, core int, k Kernel, ins []*tensor.Raw, out *tensor.Raw, disableReuse bool) *pipeline {
	pl := &pipeline{
		plan:     p,
		core:     core,
		kernel:   k,
		resolver: NewResolver(p, core, disableReuse),
		ins:      make([]operandIO, len(p.Inputs)),
		stats:    newCoreStats(core, len(p.Inputs)),
	}
	tileElems := p.TileElems()
	for i, op := range p.Inputs {
		esz := ins[i].DType().Size()
		pl.ins[i] = operandIO{
			op:    op,
			data:  ins[i].Data(),
			esz:   esz,
			slots: newSlotPair(tileElems * op.FanIn * esz),
		}
	}
	esz := out.DType().Size()
	pl.out = operandIO{
		op:    p.Out,
		data:  out.Data(),
		esz:   esz,
		slots: newSlotPair(tileElems * esz),
	}
	pl.dense = !p.ColSplit() && denseFrom(p.Out.Shape, p.Out.Strides, p.SplitAxis)
	return pl
}

// run processes every tile of the core and returns once the last copy-out
// has landed in global memory.
func (pl *pipeline) run() CoreStats {
	if pl.plan.Blocks(pl.core) == 0 {
		return pl.stats
	}

	inCh := make(chan inMsg, tiling.BufferDepth)
	outCh := make(chan outMsg, tiling.BufferDepth)
	done := make(chan struct{})

	go pl.copyIn(inCh)
	go func() {
		pl.copyOut(outCh)
		close(done)
	}()
	pl.compute(inCh, outCh)
	<-done
	return pl.stats
}

// copyIn is the producer stage: it fills input slots and announces each tile.
func (pl *pipeline) copyIn(inCh chan<- inMsg) {
	defer close(inCh)
	for tc := range Iterations(pl.core, pl.plan) {
		msg := inMsg{tile: TileOf(tc, pl.plan)}
		s := tc.Local % tiling.BufferDepth
		for i := range pl.ins {
			in := &pl.ins[i]
			if !pl.kernel.Fetch(i, &msg.tile) {
				msg.slots[i] = -1
				pl.stats.Skips[i]++
				continue
			}
			buf := in.slots.acquire(s)
			if pl.resolver.NeedsFetch(i, tc) {
				gather(buf, in.data, pl.inputWindow(i, &msg.tile))
				pl.stats.Fetches[i]++
			} else {
				pl.stats.Reuses[i]++
			}
			in.slots.state[s] = SlotFull
			msg.slots[i] = s
		}
		inCh <- msg
	}
}

// compute waits for a tile's inputs, runs the kernel into an output slot and
// releases the input slots.
func (pl *pipeline) compute(inCh <-chan inMsg, outCh chan<- outMsg) {
	defer close(outCh)
	ins := make([][]byte, len(pl.ins))
	for msg := range inCh {
		t := &msg.tile
		for i := range pl.ins {
			ins[i] = nil
			if s := msg.slots[i]; s >= 0 {
				pl.ins[i].slots.state[s] = SlotDraining
				ins[i] = pl.ins[i].slots.bufs[s]
			}
		}

		s := t.Local % tiling.BufferDepth
		out := pl.out.slots.acquire(s)
		pl.kernel.Compute(t, out[:t.Elems*pl.out.esz], ins)
		pl.out.slots.state[s] = SlotFull

		for i := range pl.ins {
			if msg.slots[i] >= 0 {
				pl.ins[i].slots.release(msg.slots[i])
			}
		}
		pl.stats.Tiles++
		outCh <- outMsg{tile: *t, slot: s}
	}
}

// copyOut drains output slots into the output tensor.
func (pl *pipeline) copyOut(outCh <-chan outMsg) {
	for msg := range outCh {
		sp := pl.out.slots
		sp.state[msg.slot] = SlotDraining
		src := sp.bufs[msg.slot]
		if pl.dense {
			at := (pl.out.op.Offset + msg.tile.Index.Dot(pl.out.op.Strides)) * pl.out.esz
			n := msg.tile.Elems * pl.out.esz
			copy(pl.out.data[at:at+n], src[:n])
		} else {
			scatter(pl.out.data, src, pl.outputWindow(&msg.tile))
		}
		sp.release(msg.slot)
	}
}

func (pl *pipeline) inputWindow(i int, t *Tile) *window {
	in := &pl.ins[i]
	rows, cols := t.Rows, t.ColLength
	if pl.resolver.Reusable(i) {
		rows, cols = pl.plan.TileFormer, pl.plan.ColFormer
	}
	return &window{
		ext:     extents(pl.plan, rows, cols),
		strides: in.op.Strides,
		base:    in.op.Offset + t.Index.Dot(in.op.Strides),
		esz:     in.esz,
		unit:    in.esz * in.op.FanIn,
	}
}

func (pl *pipeline) outputWindow(t *Tile) *window {
	return &window{
		ext:     extents(pl.plan, t.Rows, t.ColLength),
		strides: pl.out.op.Strides,
		base:    pl.out.op.Offset + t.Index.Dot(pl.out.op.Strides),
		esz:     pl.out.esz,
		unit:    pl.out.esz,
	}
}
