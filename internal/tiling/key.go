package tiling

import (
	"fmt"

	"github.com/born-ml/tilekit/internal/tensor"
)

// Strategy selects how an operator is partitioned. The device contract is the
// same for every strategy; only geometry derivation and buffer sizing differ.
type Strategy uint8

// Supported strategies. Zero is reserved so that a zero Key is never valid.
const (
	// StrategyWhole processes the whole tensor (or one whole matrix) per tile.
	StrategyWhole Strategy = iota + 1
	// StrategyTiled splits along one axis (and for matrices also along columns).
	StrategyTiled
	// StrategyTiny encodes the diagonal as a precomputed bitmask.
	StrategyTiny
	// StrategyMedium tiles rows only and derives the diagonal arithmetically.
	StrategyMedium
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyWhole:
		return "whole"
	case StrategyTiled:
		return "tiled"
	case StrategyTiny:
		return "tiny"
	case StrategyMedium:
		return "medium"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
}

// ParseStrategy parses a strategy name. The empty string and "auto" return 0,
// which asks the planner to choose.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "auto":
		return 0, nil
	case "whole":
		return StrategyWhole, nil
	case "tiled":
		return StrategyTiled, nil
	case "tiny":
		return StrategyTiny, nil
	case "medium":
		return StrategyMedium, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q", s)
	}
}

// Key is the integer tiling key selecting one (element type, strategy)
// instantiation of a kernel: strategy*100 + element type.
type Key uint32

const keyRadix = 100

// MakeKey builds the tiling key for a strategy and element type.
func MakeKey(s Strategy, elem tensor.DataType) Key {
	return Key(uint32(s)*keyRadix + uint32(elem))
}

// Strategy returns the strategy encoded in k.
func (k Key) Strategy() Strategy {
	return Strategy(k / keyRadix)
}

// Elem returns the element type encoded in k.
func (k Key) Elem() tensor.DataType {
	return tensor.DataType(k % keyRadix)
}

// String formats the key with its decoded parts.
func (k Key) String() string {
	return fmt.Sprintf("%d(%s,%s)", uint32(k), k.Strategy(), k.Elem())
}
