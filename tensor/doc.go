// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the operand types accepted by the tilekit operators.
//
// # Overview
//
// A Raw tensor is a dense row-major buffer with a Shape and a DataType. The
// ops package reads inputs and writes outputs through Raw tensors; typed
// access goes through As.
//
//	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
//	vals := tensor.As[float32](x)
//
// # Supported Data Types
//
//   - float32, float64, float16 (github.com/x448/float16)
//   - int8, int32, int64
//   - uint8
//   - bool (masks and comparison results)
//
// # Broadcasting
//
// Elementwise operators follow NumPy broadcasting rules:
//
//	a := (3, 1)
//	b := (3, 4)
//	clip(a, b, b) -> (3, 4)
package tensor
