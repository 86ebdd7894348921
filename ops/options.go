// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package ops

import (
	"log/slog"

	"github.com/born-ml/tilekit/internal/dispatch"
	"github.com/born-ml/tilekit/internal/engine"
	"github.com/born-ml/tilekit/internal/parallel"
	"github.com/born-ml/tilekit/internal/tiling"
)

// Platform describes the simulated accelerator. Zero fields take defaults:
// one core per CPU, a 192 KiB local buffer per core and the cache line size
// as alignment unit.
type Platform struct {
	Cores   int
	UBBytes int
	Align   int
}

// Strategy selects a partitioning strategy. The zero value lets the planner choose.
type Strategy = tiling.Strategy

// Strategies.
const (
	Auto   Strategy = 0
	Whole  Strategy = tiling.StrategyWhole
	Tiled  Strategy = tiling.StrategyTiled
	Tiny   Strategy = tiling.StrategyTiny
	Medium Strategy = tiling.StrategyMedium
)

// Report summarizes what the cores did during one operator call.
type Report = engine.Report

type config struct {
	platform Platform
	strategy Strategy
	rowTile  int
	colTile  int
	serial   bool
	report   *Report
	launch   []dispatch.Option
}

// Option configures one operator call.
type Option func(*config)

// WithPlatform sets the simulated platform.
func WithPlatform(p Platform) Option {
	return func(c *config) { c.platform = p }
}

// WithStrategy forces a partitioning strategy. The call fails when the
// strategy cannot serve the operator or shape.
func WithStrategy(s Strategy) Option {
	return func(c *config) { c.strategy = s }
}

// WithTiles sets the row and column tile of triangular operators. Zero keeps
// the planner's choice for that dimension.
func WithTiles(rows, cols int) Option {
	return func(c *config) { c.rowTile, c.colTile = rows, cols }
}

// WithLogger sends per-launch debug records to l.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.launch = append(c.launch, dispatch.WithLogger(l)) }
}

// WithReport stores the launch report in r.
func WithReport(r *Report) Option {
	return func(c *config) { c.report = r }
}

// WithSerialCores runs the cores one after another on the calling goroutine.
func WithSerialCores() Option {
	return func(c *config) { c.serial = true }
}

// WithoutReuse disables broadcast tile reuse.
func WithoutReuse() Option {
	return func(c *config) { c.launch = append(c.launch, dispatch.WithoutReuse()) }
}

// WithoutDegenerateSkip makes triangular operators read and mask every tile.
func WithoutDegenerateSkip() Option {
	return func(c *config) { c.launch = append(c.launch, dispatch.WithoutDegenerateSkip()) }
}

func newConfig(opts []Option) *config {
	c := &config{}
	for _, o := range opts {
		o(c)
	}
	if c.serial {
		cfg := parallel.DefaultConfig()
		cfg.Enabled = false
		c.launch = append(c.launch, dispatch.WithParallel(cfg))
	}
	return c
}

func (c *config) planner() *tiling.Planner {
	return tiling.NewPlanner(tiling.Platform{
		Cores:   c.platform.Cores,
		UBBytes: c.platform.UBBytes,
		Align:   c.platform.Align,
	})
}
