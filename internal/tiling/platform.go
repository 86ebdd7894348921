package tiling

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// DefaultUBBytes is the default per-core local buffer budget.
const DefaultUBBytes = 192 * 1024

// Platform describes the resources the planner partitions against.
type Platform struct {
	Cores   int // Number of parallel cores.
	UBBytes int // Local buffer bytes per core, shared by all slots.
	Align   int // Slot alignment in bytes; tile rows are rounded to it.
}

// DefaultPlatform returns one core per CPU and a cache-line aligned budget.
func DefaultPlatform() Platform {
	return Platform{
		Cores:   runtime.NumCPU(),
		UBBytes: DefaultUBBytes,
		Align:   CacheLineSize(),
	}
}

// CacheLineSize returns the cache line size assumed by x/sys/cpu for this
// architecture.
func CacheLineSize() int {
	return int(unsafe.Sizeof(cpu.CacheLinePad{}))
}

func (pl Platform) withDefaults() Platform {
	def := DefaultPlatform()
	if pl.Cores <= 0 {
		pl.Cores = def.Cores
	}
	if pl.UBBytes <= 0 {
		pl.UBBytes = def.UBBytes
	}
	if pl.Align <= 0 {
		pl.Align = def.Align
	}
	return pl
}
