package engine

import (
	"golang.org/x/sys/cpu"

	"github.com/born-ml/tilekit/internal/tensor"
	"github.com/born-ml/tilekit/internal/tiling"
)

// SlotState is the lifecycle of one local buffer slot.
type SlotState uint8

// Slot states. A slot cycles Empty → Filling → Full → Draining → Empty once
// per iteration that uses it.
const (
	SlotEmpty SlotState = iota
	SlotFilling
	SlotFull
	SlotDraining
)

// String returns the state name.
func (s SlotState) String() string {
	switch s {
	case SlotEmpty:
		return "empty"
	case SlotFilling:
		return "filling"
	case SlotFull:
		return "full"
	case SlotDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// slotPair is the double buffer of one operand role on one core. Slot s is
// used by iterations with local%BufferDepth == s, so reuse is strictly FIFO:
// a slot is reacquired only after the consumer of the previous iteration
// holding it released it. Each free channel has capacity 1 and carries the
// slot's ownership token.
type slotPair struct {
	bufs  [tiling.BufferDepth][]byte
	free  [tiling.BufferDepth]chan struct{}
	state [tiling.BufferDepth]SlotState
	_     cpu.CacheLinePad
}

func newSlotPair(size int) *slotPair {
	sp := &slotPair{}
	for s := range sp.bufs {
		sp.bufs[s] = tensor.AlignedBytes(size)
		sp.free[s] = make(chan struct{}, 1)
		sp.free[s] <- struct{}{}
	}
	return sp
}

// acquire blocks until slot s has been released by its previous consumer.
func (sp *slotPair) acquire(s int) []byte {
	<-sp.free[s]
	sp.state[s] = SlotFilling
	return sp.bufs[s]
}

// release hands slot s back to the producer side.
func (sp *slotPair) release(s int) {
	sp.state[s] = SlotEmpty
	sp.free[s] <- struct{}{}
}
