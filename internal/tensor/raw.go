package tensor

import (
	"fmt"
	"unsafe"
)

// Raw is a contiguous row-major tensor in global memory.
// The engine reads inputs and writes outputs through Raw buffers; local tile
// buffers are plain byte slices viewed with View.
type Raw struct {
	data  []byte
	shape Shape
	dtype DataType
}

// NewRaw creates a new zero-filled Raw tensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType) (*Raw, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if !dtype.Valid() {
		return nil, fmt.Errorf("invalid data type %d", dtype)
	}

	return &Raw{
		data:  AlignedBytes(shape.NumElements() * dtype.Size()),
		shape: shape.Clone(),
		dtype: dtype,
	}, nil
}

// FromSlice copies values into a new Raw tensor of the given shape.
func FromSlice[T DType](values []T, shape Shape) (*Raw, error) {
	if len(values) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(values), shape, shape.NumElements())
	}
	r, err := NewRaw(shape, DataTypeOf[T]())
	if err != nil {
		return nil, err
	}
	copy(As[T](r), values)
	return r, nil
}

// Shape returns the tensor's shape.
func (r *Raw) Shape() Shape {
	return r.shape
}

// Strides returns row-major strides in elements.
func (r *Raw) Strides() []int {
	return r.shape.ComputeStrides()
}

// DType returns the tensor's data type.
func (r *Raw) DType() DataType {
	return r.dtype
}

// NumElements returns the total number of elements.
func (r *Raw) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *Raw) ByteSize() int {
	return len(r.data)
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *Raw) Data() []byte {
	return r.data
}

// Clone returns a deep copy of r.
func (r *Raw) Clone() *Raw {
	data := AlignedBytes(len(r.data))
	copy(data, r.data)
	return &Raw{data: data, shape: r.shape.Clone(), dtype: r.dtype}
}

// As interprets the tensor data as []T.
// Panics if the tensor's dtype does not match T.
func As[T DType](r *Raw) []T {
	if want := DataTypeOf[T](); r.dtype != want {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", r.dtype, want))
	}
	return View[T](r.data)
}

// View reinterprets a byte buffer as []T without copying.
// The buffer must come from AlignedBytes or a Raw tensor.
func View[T any](b []byte) []T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if len(b) < size {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, length derived from len(b)
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), len(b)/size)
}

// AlignedBytes allocates n zeroed bytes aligned for any element type.
func AlignedBytes(n int) []byte {
	if n == 0 {
		return []byte{}
	}
	words := make([]uint64, (n+7)/8)
	//nolint:gosec // backing array is uint64-aligned and at least n bytes long
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), n)
}
