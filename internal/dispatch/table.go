// Package dispatch maps tiling keys to kernel instantiations and implements
// the kernel entry point: decode the plan blob, look the key up, launch.
package dispatch

import (
	"errors"
	"fmt"
	"slices"

	"github.com/born-ml/tilekit/internal/engine"
	"github.com/born-ml/tilekit/internal/tensor"
	"github.com/born-ml/tilekit/internal/tiling"
)

// Errors returned before any core runs.
var (
	ErrUnknownKey      = errors.New("dispatch: no kernel for tiling key")
	ErrDuplicateKey    = errors.New("dispatch: tiling key already registered")
	ErrOperandMismatch = errors.New("dispatch: operands do not match the plan")
	ErrUnknownOp       = errors.New("dispatch: unknown operator")
)

// Builder creates the kernel factory for a decoded plan.
type Builder func(p *tiling.Plan, cfg Config) engine.Factory

// Signature returns the input and output element types an operator uses for
// key element type elem.
type Signature func(elem tensor.DataType) (ins []tensor.DataType, out tensor.DataType)

// Entry is one (element type, strategy) instantiation of an operator.
type Entry struct {
	Key      tiling.Key
	Elem     tensor.DataType
	Strategy tiling.Strategy
	Build    Builder
}

// Table is the dispatch table of one operator.
type Table struct {
	op      Op
	sig     Signature
	entries map[tiling.Key]Entry
}

// NewTable creates an empty table for op.
func NewTable(op Op, sig Signature) *Table {
	return &Table{op: op, sig: sig, entries: make(map[tiling.Key]Entry)}
}

// Op returns the operator the table serves.
func (t *Table) Op() Op {
	return t.op
}

// Register adds b under every strategy for element type elem.
func (t *Table) Register(elem tensor.DataType, b Builder, strategies ...tiling.Strategy) error {
	for _, s := range strategies {
		key := tiling.MakeKey(s, elem)
		if _, ok := t.entries[key]; ok {
			return fmt.Errorf("%w: %s %s", ErrDuplicateKey, t.op, key)
		}
		t.entries[key] = Entry{Key: key, Elem: elem, Strategy: s, Build: b}
	}
	return nil
}

// Lookup returns the entry registered for key.
func (t *Table) Lookup(key tiling.Key) (Entry, error) {
	e, ok := t.entries[key]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s %s", ErrUnknownKey, t.op, key)
	}
	return e, nil
}

// Keys returns the registered keys in increasing order.
func (t *Table) Keys() []tiling.Key {
	keys := make([]tiling.Key, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Signature returns the operand types used with element type elem.
func (t *Table) Signature(elem tensor.DataType) ([]tensor.DataType, tensor.DataType) {
	return t.sig(elem)
}

// Launch is the kernel entry point. It decodes blob, selects the
// instantiation named by its key, checks the operands against the plan and
// runs every core to completion. workspace is reserved scratch memory; no
// current kernel needs it.
//
// All errors are reported before the first core starts. Once launched, a
// valid plan always completes.
func (t *Table) Launch(inputs []*tensor.Raw, output *tensor.Raw, workspace []byte, blob []byte, opts ...Option) (engine.Report, error) {
	_ = workspace

	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	p, err := tiling.Decode(blob)
	if err != nil {
		return engine.Report{}, fmt.Errorf("decode plan: %w", err)
	}
	entry, err := t.Lookup(p.Key)
	if err != nil {
		return engine.Report{}, err
	}
	if err := t.checkOperands(p, inputs, output); err != nil {
		return engine.Report{}, err
	}

	cfg.Engine.Logger = cfg.Engine.Logger.With("op", t.op.String())
	return engine.Launch(p, entry.Build(p, cfg), inputs, output, cfg.Engine), nil
}

// checkOperands verifies element types and that every operand window the
// plan addresses lies inside its buffer.
func (t *Table) checkOperands(p *tiling.Plan, inputs []*tensor.Raw, output *tensor.Raw) error {
	inTypes, outType := t.sig(p.Key.Elem())
	if len(inputs) != len(p.Inputs) || len(inputs) != len(inTypes) {
		return fmt.Errorf("%w: %d inputs, plan has %d, %s takes %d",
			ErrOperandMismatch, len(inputs), len(p.Inputs), t.op, len(inTypes))
	}
	for i, in := range inputs {
		if in.DType() != inTypes[i] {
			return fmt.Errorf("%w: input %d is %s, want %s", ErrOperandMismatch, i, in.DType(), inTypes[i])
		}
		if span := extentOf(p.Inputs[i], p.Out.Shape); span > in.NumElements() {
			return fmt.Errorf("%w: input %d addresses %d elements, has %d", ErrOperandMismatch, i, span, in.NumElements())
		}
	}
	if output.DType() != outType {
		return fmt.Errorf("%w: output is %s, want %s", ErrOperandMismatch, output.DType(), outType)
	}
	if span := extentOf(p.Out, p.Out.Shape); span > output.NumElements() {
		return fmt.Errorf("%w: output addresses %d elements, has %d", ErrOperandMismatch, span, output.NumElements())
	}
	return nil
}

// extentOf returns one past the largest element index op can touch while
// the engine walks index space shape.
func extentOf(op tiling.Operand, shape tensor.Dims) int {
	last := op.Offset
	for a := 0; a < shape.Rank; a++ {
		last += (shape.V[a] - 1) * op.Strides.V[a]
	}
	return last + op.FanIn
}
