package dispatch

import (
	"fmt"
	"strings"

	"github.com/x448/float16"

	"github.com/born-ml/tilekit/internal/engine"
	"github.com/born-ml/tilekit/internal/kernels"
	"github.com/born-ml/tilekit/internal/tensor"
	"github.com/born-ml/tilekit/internal/tiling"
)

// Op names an operator kernel. Each operator has its own dispatch table.
type Op uint8

// Operators.
const (
	OpClip Op = iota
	OpMaximum
	OpMinimum
	OpWhere
	OpCompare
	OpTriangular
	OpReduce
	OpTranspose
	OpAssign
	numOps
)

var opNames = [numOps]string{
	OpClip:       "clip",
	OpMaximum:    "maximum",
	OpMinimum:    "minimum",
	OpWhere:      "where",
	OpCompare:    "compare",
	OpTriangular: "triangular",
	OpReduce:     "reduce",
	OpTranspose:  "transpose",
	OpAssign:     "assign",
}

// String returns the operator name.
func (op Op) String() string {
	if op < numOps {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// ParseOp resolves an operator name.
func ParseOp(s string) (Op, error) {
	for op, name := range opNames {
		if strings.EqualFold(s, name) {
			return Op(op), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOp, s)
}

// Ops returns all operators.
func Ops() []Op {
	ops := make([]Op, numOps)
	for i := range ops {
		ops[i] = Op(i)
	}
	return ops
}

var tables = buildTables()

// Lookup returns the dispatch table of op.
func Lookup(op Op) (*Table, error) {
	if op >= numOps {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOp, op)
	}
	return tables[op], nil
}

// Launch runs the kernel entry of op. See Table.Launch.
func Launch(op Op, inputs []*tensor.Raw, output *tensor.Raw, workspace []byte, blob []byte, opts ...Option) (engine.Report, error) {
	t, err := Lookup(op)
	if err != nil {
		return engine.Report{}, err
	}
	return t.Launch(inputs, output, workspace, blob, opts...)
}

var (
	streamStrategies     = []tiling.Strategy{tiling.StrategyWhole, tiling.StrategyTiled}
	triangularStrategies = []tiling.Strategy{
		tiling.StrategyWhole, tiling.StrategyTiled, tiling.StrategyTiny, tiling.StrategyMedium,
	}
)

// kernelSet holds the builders of every operator for one element type.
// Nil builders leave the operator unregistered for that type.
type kernelSet struct {
	clip, maximum, minimum, where, compare, reduce, triangular, copy Builder
}

func numericSet[T any, W any](ar kernels.Arith[T], acc kernels.Accumulator[T, W]) kernelSet {
	s := orderlessSet[T]()
	s.clip = func(*tiling.Plan, Config) engine.Factory { return kernels.Clip(ar) }
	s.maximum = func(*tiling.Plan, Config) engine.Factory { return kernels.Maximum(ar) }
	s.minimum = func(*tiling.Plan, Config) engine.Factory { return kernels.Minimum(ar) }
	s.where = func(*tiling.Plan, Config) engine.Factory { return kernels.Select[T]() }
	s.compare = func(p *tiling.Plan, _ Config) engine.Factory { return kernels.Compare(ar, p.Attr) }
	s.reduce = func(p *tiling.Plan, _ Config) engine.Factory { return kernels.Reduce(ar, acc, p) }
	return s
}

// orderlessSet covers the operators that only move data.
func orderlessSet[T any]() kernelSet {
	return kernelSet{
		triangular: func(p *tiling.Plan, cfg Config) engine.Factory {
			return kernels.Triangular[T](p, cfg.Triangular)
		},
		copy: func(*tiling.Plan, Config) engine.Factory { return kernels.Copy() },
	}
}

func sameType(n int) Signature {
	return func(elem tensor.DataType) ([]tensor.DataType, tensor.DataType) {
		ins := make([]tensor.DataType, n)
		for i := range ins {
			ins[i] = elem
		}
		return ins, elem
	}
}

func whereSignature(elem tensor.DataType) ([]tensor.DataType, tensor.DataType) {
	return []tensor.DataType{tensor.Bool, elem, elem}, elem
}

func compareSignature(elem tensor.DataType) ([]tensor.DataType, tensor.DataType) {
	return []tensor.DataType{elem, elem}, tensor.Bool
}

func buildTables() [numOps]*Table {
	var t [numOps]*Table
	t[OpClip] = NewTable(OpClip, sameType(3))
	t[OpMaximum] = NewTable(OpMaximum, sameType(2))
	t[OpMinimum] = NewTable(OpMinimum, sameType(2))
	t[OpWhere] = NewTable(OpWhere, whereSignature)
	t[OpCompare] = NewTable(OpCompare, compareSignature)
	t[OpTriangular] = NewTable(OpTriangular, sameType(1))
	t[OpReduce] = NewTable(OpReduce, sameType(1))
	t[OpTranspose] = NewTable(OpTranspose, sameType(1))
	t[OpAssign] = NewTable(OpAssign, sameType(1))

	sets := map[tensor.DataType]kernelSet{
		tensor.Float32: numericSet[float32, float32](kernels.Native[float32]{}, kernels.Same[float32]{}),
		tensor.Float64: numericSet[float64, float64](kernels.Native[float64]{}, kernels.Same[float64]{}),
		tensor.Int8:    numericSet[int8, int8](kernels.Native[int8]{}, kernels.Same[int8]{}),
		tensor.Int32:   numericSet[int32, int32](kernels.Native[int32]{}, kernels.Same[int32]{}),
		tensor.Int64:   numericSet[int64, int64](kernels.Native[int64]{}, kernels.Same[int64]{}),
		tensor.Uint8:   numericSet[uint8, uint8](kernels.Native[uint8]{}, kernels.Same[uint8]{}),
		tensor.Float16: numericSet[float16.Float16, float32](kernels.Half{}, kernels.HalfToFloat32{}),
		tensor.Bool:    orderlessSet[bool](),
	}

	for elem, s := range sets {
		register := func(op Op, b Builder, strategies []tiling.Strategy) {
			if b == nil {
				return
			}
			if err := t[op].Register(elem, b, strategies...); err != nil {
				panic(err)
			}
		}
		register(OpClip, s.clip, streamStrategies)
		register(OpMaximum, s.maximum, streamStrategies)
		register(OpMinimum, s.minimum, streamStrategies)
		register(OpWhere, s.where, streamStrategies)
		register(OpCompare, s.compare, streamStrategies)
		register(OpReduce, s.reduce, streamStrategies)
		register(OpTriangular, s.triangular, triangularStrategies)
		register(OpTranspose, s.copy, streamStrategies)
		register(OpAssign, s.copy, streamStrategies)
	}
	return t
}
