package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/born-ml/tilekit/internal/parallel"
	"github.com/born-ml/tilekit/internal/tensor"
	"github.com/born-ml/tilekit/internal/tiling"
)

// Options tune one launch.
type Options struct {
	// DisableReuse makes every iteration fetch every input, turning off
	// broadcast tile reuse.
	DisableReuse bool
	// Parallel controls how cores are scheduled onto goroutines.
	Parallel parallel.Config
	// Logger receives debug records; nil discards them.
	Logger *slog.Logger
}

// DefaultOptions returns options with parallel cores and no logging.
func DefaultOptions() Options {
	return Options{Parallel: parallel.DefaultConfig()}
}

// CoreStats counts what one core did.
type CoreStats struct {
	Core    int
	Tiles   int
	Fetches []int // per input: tiles copied in from global memory
	Reuses  []int // per input: tiles served from the slot filled earlier
	Skips   []int // per input: tiles the kernel did not need at all
}

func newCoreStats(core, inputs int) CoreStats {
	return CoreStats{
		Core:    core,
		Fetches: make([]int, inputs),
		Reuses:  make([]int, inputs),
		Skips:   make([]int, inputs),
	}
}

// Report summarizes one launch.
type Report struct {
	Invocation string
	Key        tiling.Key
	Cores      []CoreStats
}

// Tiles returns the number of tiles processed by all cores.
func (r Report) Tiles() int {
	n := 0
	for _, c := range r.Cores {
		n += c.Tiles
	}
	return n
}

// Fetches returns how many tiles of input were copied in over all cores.
func (r Report) Fetches(input int) int {
	n := 0
	for _, c := range r.Cores {
		n += c.Fetches[input]
	}
	return n
}

// Reuses returns how many tiles of input were served without a fetch.
func (r Report) Reuses(input int) int {
	n := 0
	for _, c := range r.Cores {
		n += c.Reuses[input]
	}
	return n
}

// Skips returns how many tiles of input the kernel did not read.
func (r Report) Skips(input int) int {
	n := 0
	for _, c := range r.Cores {
		n += c.Skips[input]
	}
	return n
}

var discard = slog.New(slog.DiscardHandler)

// Launch runs plan p on UsedCoreCount cores. Each core builds its kernel from
// factory, walks its tiles and writes its disjoint part of out. ins and out
// must match the plan; nothing is checked.
func Launch(p *tiling.Plan, factory Factory, ins []*tensor.Raw, out *tensor.Raw, opts Options) Report {
	log := opts.Logger
	if log == nil {
		log = discard
	}
	report := Report{
		Invocation: uuid.NewString(),
		Key:        p.Key,
		Cores:      make([]CoreStats, p.UsedCoreCount),
	}
	log = log.With("invocation", report.Invocation, "key", p.Key.String())
	log.Debug("launch",
		"cores", p.UsedCoreCount,
		"split_axis", p.SplitAxis,
		"block_former", p.BlockFormer,
		"block_tail", p.BlockTail,
		"tile_former", p.TileFormer,
		"tile_tail", p.TileTail,
		"col_former", p.ColFormer)

	parallel.Cores(p.UsedCoreCount, func(core int) {
		pl := newPipeline(p, core, factory(core), ins, out, opts.DisableReuse)
		report.Cores[core] = pl.run()
	}, opts.Parallel)

	if log.Enabled(context.Background(), slog.LevelDebug) {
		for _, c := range report.Cores {
			log.Debug("core done", "core", c.Core, "tiles", c.Tiles,
				"fetches", c.Fetches, "reuses", c.Reuses, "skips", c.Skips)
		}
	}
	return report
}
