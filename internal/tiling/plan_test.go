package tiling

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tilekit/internal/tensor"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		total, cores       int
		former, tail, used int
	}{
		{10, 4, 3, 1, 4},
		{12, 4, 3, 3, 4},
		{3, 8, 1, 1, 3},
		{1, 1, 1, 1, 1},
		{100, 7, 15, 10, 7},
		{9, 4, 3, 3, 3}, // ceil(9/4)=3 covers 9 in 3 cores
	}
	for _, tt := range tests {
		former, tail, used := Partition(tt.total, tt.cores)
		assert.Equal(t, tt.former, former, "former for %d/%d", tt.total, tt.cores)
		assert.Equal(t, tt.tail, tail, "tail for %d/%d", tt.total, tt.cores)
		assert.Equal(t, tt.used, used, "used for %d/%d", tt.total, tt.cores)
		assert.Equal(t, tt.total, (used-1)*former+tail)
		assert.LessOrEqual(t, used, tt.cores)
	}

	former, tail, used := Partition(0, 4)
	assert.Zero(t, former+tail+used)
}

// tenOverFour is a split axis of 10 one-element tiles over four cores.
func tenOverFour() *Plan {
	out := Operand{Shape: tensor.DimsOf(10), Strides: tensor.DimsOf(1), FanIn: 1}
	return &Plan{
		Key:           MakeKey(StrategyTiled, tensor.Float32),
		BlockFormer:   3,
		BlockTail:     1,
		TileFormer:    1,
		TileTail:      1,
		UsedCoreCount: 4,
		UBBytes:       DefaultUBBytes,
		Out:           out,
		Inputs:        []Operand{out},
	}
}

func TestPlanTailCore(t *testing.T) {
	p := tenOverFour()
	require.NoError(t, p.Validate())

	assert.Equal(t, 10, p.TotalIterations())
	assert.Equal(t, 3, p.Blocks(0))
	assert.Equal(t, 3, p.Blocks(2))
	assert.Equal(t, 1, p.Blocks(3))
	assert.Equal(t, 0, p.Blocks(4), "cores past usedCoreCount are idle")
	assert.Equal(t, 0, p.Blocks(-1))
}

func TestPlanValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Plan)
	}{
		{"zero tile", func(p *Plan) { p.TileFormer = 0 }},
		{"wrong tile tail", func(p *Plan) { p.TileFormer, p.TileTail = 4, 4 }},
		{"split axis out of range", func(p *Plan) { p.SplitAxis = 1 }},
		{"coverage gap", func(p *Plan) { p.BlockTail = 0 }},
		{"tail above former", func(p *Plan) { p.BlockTail = 4 }},
		{"too many inputs", func(p *Plan) { p.Inputs = make([]Operand, MaxInputs+1) }},
		{"input rank", func(p *Plan) { p.Inputs[0].Shape = tensor.DimsOf(2, 5) }},
		{"fan-in", func(p *Plan) { p.Inputs[0].FanIn = 0 }},
		{"column split needs matrix split", func(p *Plan) { p.ColFormer, p.ColTail = 1, 1 }},
		{"zero dim", func(p *Plan) { p.Out.Shape.V[0] = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tenOverFour()
			tt.mutate(p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPlan), "got %v", err)
		})
	}
}

func TestPlanGeometry(t *testing.T) {
	// (2, 6, 10) matrix batch cut into 4x4 tiles.
	out := Operand{Shape: tensor.DimsOf(2, 6, 10), Strides: tensor.DimsOf(60, 10, 1), FanIn: 1}
	p := &Plan{
		SplitAxis:  1,
		TileFormer: 4,
		TileTail:   2,
		ColFormer:  4,
		ColTail:    2,
		Out:        out,
		Inputs:     []Operand{out},
	}
	p.BlockFormer, p.BlockTail, p.UsedCoreCount = Partition(p.TotalIterations(), 5)
	require.NoError(t, p.Validate())

	assert.Equal(t, 2, p.SplitTiles())
	assert.Equal(t, 3, p.ColTiles())
	assert.Equal(t, 6, p.Period())
	assert.Equal(t, 2, p.OuterCount())
	assert.Equal(t, 12, p.TotalIterations())
	assert.Equal(t, 4, p.InnerElems())
	assert.Equal(t, 16, p.TileElems())
}

func TestKey(t *testing.T) {
	k := MakeKey(StrategyMedium, tensor.Float16)
	assert.Equal(t, Key(406), k)
	assert.Equal(t, StrategyMedium, k.Strategy())
	assert.Equal(t, tensor.Float16, k.Elem())
	assert.Equal(t, "406(medium,float16)", k.String())

	s, err := ParseStrategy("auto")
	require.NoError(t, err)
	assert.Zero(t, s)
	_, err = ParseStrategy("huge")
	assert.Error(t, err)
}
