package dispatch

import (
	"log/slog"

	"github.com/born-ml/tilekit/internal/engine"
	"github.com/born-ml/tilekit/internal/kernels"
	"github.com/born-ml/tilekit/internal/parallel"
)

// Config carries launch-time switches that do not belong in the plan blob.
type Config struct {
	Engine     engine.Options
	Triangular kernels.TriangularOptions
}

func defaultConfig() Config {
	cfg := Config{Engine: engine.DefaultOptions()}
	cfg.Engine.Logger = slog.New(slog.DiscardHandler)
	return cfg
}

// Option configures a launch.
type Option func(*Config)

// WithLogger sends launch debug records to l.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Engine.Logger = l
		}
	}
}

// WithParallel sets how cores are scheduled onto goroutines.
func WithParallel(p parallel.Config) Option {
	return func(c *Config) { c.Engine.Parallel = p }
}

// WithoutReuse disables broadcast tile reuse; every tile is fetched fresh.
func WithoutReuse() Option {
	return func(c *Config) { c.Engine.DisableReuse = true }
}

// WithoutDegenerateSkip makes triangular kernels fetch and mask every tile.
func WithoutDegenerateSkip() Option {
	return func(c *Config) { c.Triangular.DisableDegenerateSkip = true }
}
