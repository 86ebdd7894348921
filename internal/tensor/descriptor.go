package tensor

import "fmt"

// Descriptor describes one operand as seen from the output index space:
// Shape and Strides have the output's rank, strides are in elements, and a
// zero stride marks a broadcast axis. Descriptors are values and never change
// during an invocation.
type Descriptor struct {
	Shape   Dims
	Strides Dims
	DType   DataType
	Offset  int
}

// Contiguous returns the descriptor of a dense row-major tensor.
func Contiguous(shape Shape, dtype DataType) Descriptor {
	return Descriptor{
		Shape:   DimsOf(shape...),
		Strides: DimsOf(shape.ComputeStrides()...),
		DType:   dtype,
	}
}

// Broadcast returns the descriptor of an input of shape in read through the
// output shape out. Axes where in has size 1 (or is missing) get stride 0.
func Broadcast(in, out Shape, dtype DataType) (Descriptor, error) {
	b, _, err := BroadcastShapes(in, out)
	if err != nil {
		return Descriptor{}, err
	}
	if !b.Equal(out) {
		return Descriptor{}, fmt.Errorf("shape %v does not broadcast to %v", in, out)
	}
	return Descriptor{
		Shape:   DimsOf(padLeft(in, len(out))...),
		Strides: DimsOf(BroadcastStrides(in, out)...),
		DType:   dtype,
	}, nil
}

// IsBroadcast reports whether axis is broadcast in this operand.
func (d Descriptor) IsBroadcast(axis int) bool {
	return d.Strides.V[axis] == 0
}

// BroadcastStrides computes strides for broadcasting inShape to outShape.
// Returns strides where dimensions of size 1 have stride 0 (for broadcasting).
func BroadcastStrides(inShape, outShape Shape) []int {
	outDim := len(outShape)
	strides := make([]int, outDim)

	// Pad input shape with 1s on the left
	inDim := len(inShape)
	offset := outDim - inDim

	origStrides := inShape.ComputeStrides()

	for i := 0; i < outDim; i++ {
		inIdx := i - offset
		switch {
		case inIdx < 0 && outShape[i] == 1:
			// Padded axis that is not broadcast: any non-zero stride works.
			strides[i] = inShape.NumElements()
		case inIdx < 0:
			strides[i] = 0
		case inShape[inIdx] == 1 && outShape[i] != 1:
			strides[i] = 0
		default:
			strides[i] = origStrides[inIdx]
		}
	}

	return strides
}

// FlatIndex maps a flat output index to the source element offset.
// outStrides are the output's row-major strides, inStrides the broadcast-adjusted
// strides of the input.
func FlatIndex(outIdx int, outStrides, inStrides []int) int {
	flatIdx := 0
	for i := range outStrides {
		coord := outIdx / outStrides[i]
		outIdx %= outStrides[i]
		flatIdx += coord * inStrides[i]
	}
	return flatIdx
}

func padLeft(s Shape, rank int) Shape {
	out := make(Shape, rank)
	for i := range out {
		out[i] = 1
	}
	copy(out[rank-len(s):], s)
	return out
}
