package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(n), counter)
}

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}

	var counter int64
	For(100, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(100), counter)
}

func TestFor_SmallChunk(t *testing.T) {
	// Small work units fall back to sequential.
	cfg := DefaultConfig()

	var counter int64
	n := cfg.MinChunkSize - 1

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(n), counter)
}

func TestCores(t *testing.T) {
	for _, cfg := range []Config{
		DefaultConfig(),
		{Enabled: true, NumWorkers: 2},
		{Enabled: false},
	} {
		seen := make([]int32, 13)
		Cores(len(seen), func(core int) {
			atomic.AddInt32(&seen[core], 1)
		}, cfg)

		for core, n := range seen {
			assert.Equal(t, int32(1), n, "core %d ran %d times (cfg %+v)", core, n, cfg)
		}
	}
}

func TestCores_SequentialOrder(t *testing.T) {
	var order []int
	Cores(5, func(core int) { order = append(order, core) }, Config{Enabled: false})
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestCores_Limit(t *testing.T) {
	var running, peak int32
	Cores(16, func(_ int) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		atomic.AddInt32(&running, -1)
	}, Config{Enabled: true, NumWorkers: 3})

	assert.LessOrEqual(t, peak, int32(3))
}

func TestCores_Zero(t *testing.T) {
	called := false
	Cores(0, func(_ int) { called = true }, DefaultConfig())
	assert.False(t, called)
}

func BenchmarkFor(b *testing.B) {
	cfg := DefaultConfig()
	n := 10000

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		cfgSeq := cfg
		cfgSeq.Enabled = false
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfgSeq)
		}
	})
}

func BenchmarkCores(b *testing.B) {
	cfg := DefaultConfig()
	for i := 0; i < b.N; i++ {
		var sum int64
		Cores(64, func(core int) {
			atomic.AddInt64(&sum, int64(core))
		}, cfg)
	}
}
