// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/tilekit/internal/tensor"
)

// Type aliases for public API

// DType is a constraint for tensor element types.
type DType = tensor.DType

// DataType represents the element type of a tensor at run time.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint8   DataType = tensor.Uint8
	Bool    DataType = tensor.Bool
	Float16 DataType = tensor.Float16
	Int8    DataType = tensor.Int8
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// MaxRank is the largest rank an operator accepts.
const MaxRank = tensor.MaxRank

// Raw is a dense row-major tensor buffer.
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32)
//	data := tensor.As[float32](raw)
type Raw = tensor.Raw

// NewRaw creates a zero-filled tensor.
func NewRaw(shape Shape, dtype DataType) (*Raw, error) {
	return tensor.NewRaw(shape, dtype)
}

// FromSlice copies values into a new tensor of the given shape.
func FromSlice[T DType](values []T, shape Shape) (*Raw, error) {
	return tensor.FromSlice(values, shape)
}

// As returns the tensor data as []T without copying.
// It panics if T does not match the tensor's data type.
func As[T DType](r *Raw) []T {
	return tensor.As[T](r)
}

// ParseDataType converts a name such as "float32" or "half" to a DataType.
func ParseDataType(s string) (DataType, error) {
	return tensor.ParseDataType(s)
}
