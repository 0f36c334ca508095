// Package tensor implements the dynamically-shaped, contiguous f32 tensor
// value exposed to the postprocessing sandbox: a value with equality,
// arithmetic, indexing, and reduction/normalization/pooling operations.
//
// Axes are 1-indexed at the scripting boundary and 0-indexed internally;
// every exported method that accepts an axis converts and validates it
// before touching any kernel — 0 is never a legal axis.
package tensor

import (
	"fmt"
)

// Tensor is a dynamically-shaped, contiguous (or slice-of-contiguous) f32
// multi-dimensional array. It has reference semantics at the host level: Go
// code sharing a *Tensor shares its backing slice. Every operation here that
// the scripting layer exposes returns a *new* Tensor rather than mutating in
// place, so script-level value semantics hold without the host needing to
// defensively copy on every binding.
type Tensor struct {
	shape []int
	data  []float32
}

// New wraps data as a tensor of the given shape. len(data) must equal the
// product of shape; New panics otherwise, since this is a host-side
// construction error, never a script-input error (script-facing
// construction goes through the Lua Tensor() constructor in package script,
// which validates the nested table itself).
func New(shape []int, data []float32) *Tensor {
	if n := numElements(shape); n != len(data) {
		panic(fmt.Sprintf("tensor: shape %v wants %d elements, got %d", shape, n, len(data)))
	}
	return &Tensor{shape: append([]int(nil), shape...), data: data}
}

// Zeros returns a new tensor of the given shape filled with zero.
func Zeros(shape []int) *Tensor {
	return &Tensor{shape: append([]int(nil), shape...), data: make([]float32, numElements(shape))}
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Shape returns a copy of the tensor's dimensions.
func (t *Tensor) Shape() []int { return append([]int(nil), t.shape...) }

// Data returns the tensor's backing slice. Callers must not mutate it;
// Tensor values are treated as immutable once constructed.
func (t *Tensor) Data() []float32 { return t.data }

// Ndim returns the tensor's rank.
func (t *Tensor) Ndim() int { return len(t.shape) }

// Len returns the total element count.
func (t *Tensor) Len() int { return len(t.data) }

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.data))
	copy(data, t.data)
	return &Tensor{shape: t.Shape(), data: data}
}

// Equal reports whether two tensors have identical shape and data.
func (t *Tensor) Equal(o *Tensor) bool {
	if o == nil || len(t.shape) != len(o.shape) {
		return false
	}
	for i := range t.shape {
		if t.shape[i] != o.shape[i] {
			return false
		}
	}
	if len(t.data) != len(o.data) {
		return false
	}
	for i := range t.data {
		if t.data[i] != o.data[i] {
			return false
		}
	}
	return true
}

// strides returns the row-major (C-contiguous) strides for shape.
func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}

// AxisError reports an out-of-range axis: 1-indexed, so the valid range is
// [1, ndim]; anything outside it is a script-visible error, and 0 is never
// a legal axis.
type AxisError struct {
	Axis int
	Ndim int
}

func (e *AxisError) Error() string {
	return fmt.Sprintf("axis %d out of range for tensor of rank %d (valid range: 1..%d)", e.Axis, e.Ndim, e.Ndim)
}

// resolveAxis converts a 1-indexed script axis to a 0-indexed internal axis,
// validating it against ndim.
func resolveAxis(axis1 int, ndim int) (int, error) {
	if axis1 <= 0 || axis1 > ndim {
		return 0, &AxisError{Axis: axis1, Ndim: ndim}
	}
	return axis1 - 1, nil
}

// ShapeMismatchError reports two shapes that cannot be used together.
type ShapeMismatchError struct {
	A, B   []int
	Detail string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: %v and %v are not broadcastable (%s)", e.A, e.B, e.Detail)
}

// forEachIndex iterates every multi-index into shape in row-major order,
// calling visit with the multi-index (the slice is reused between calls).
// Used by axis-wise operations that need to walk all "rows" along one axis.
func forEachIndex(shape []int, visit func(idx []int)) {
	ndim := len(shape)
	if ndim == 0 {
		visit(nil)
		return
	}
	idx := make([]int, ndim)
	for {
		visit(idx)
		for d := ndim - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
			if d == 0 {
				return
			}
		}
	}
}

func flatOffset(idx []int, str []int) int {
	off := 0
	for i, v := range idx {
		off += v * str[i]
	}
	return off
}
