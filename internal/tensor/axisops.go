package tensor

import (
	"fmt"
	"math"
)

// forEachAxisSlice walks every "row" along axis0 (0-indexed), handing back
// the flat offsets of each element in that row (in order along the axis).
// It's the shared engine behind SumAxis, Softmax, LayerNorm and LPNormalize.
func (t *Tensor) forEachAxisSlice(axis0 int, visit func(offsets []int)) {
	str := strides(t.shape)
	axisLen := t.shape[axis0]
	axisStride := str[axis0]

	outerShape := append([]int(nil), t.shape...)
	outerShape[axis0] = 1

	forEachIndex(outerShape, func(idx []int) {
		base := flatOffset(idx, str)
		offsets := make([]int, axisLen)
		for i := 0; i < axisLen; i++ {
			offsets[i] = base + i*axisStride
		}
		visit(offsets)
	})
}

// SumAxis reduces axis (1-indexed), returning a tensor with that axis set
// to size 1 collapsed out (rank reduced by one), preserving the others.
func (t *Tensor) SumAxis(axis int) (*Tensor, error) {
	axis0, err := resolveAxis(axis, t.Ndim())
	if err != nil {
		return nil, err
	}
	outShape := dropAxis(t.shape, axis0)
	out := Zeros(outShape)
	i := 0
	t.forEachAxisSlice(axis0, func(offsets []int) {
		var s float32
		for _, off := range offsets {
			s += t.data[off]
		}
		out.data[i] = s
		i++
	})
	return out, nil
}

func dropAxis(shape []int, axis0 int) []int {
	out := make([]int, 0, len(shape)-1)
	for i, d := range shape {
		if i == axis0 {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Softmax is numerically stabilized: it subtracts the per-slice max along
// axis, exponentiates, then divides by the per-slice sum. Every slice along
// axis sums to 1 within 1e-6, and large negative inputs never produce NaN.
func (t *Tensor) Softmax(axis int) (*Tensor, error) {
	axis0, err := resolveAxis(axis, t.Ndim())
	if err != nil {
		return nil, err
	}
	out := t.Clone()
	t.forEachAxisSlice(axis0, func(offsets []int) {
		max := float32(math.Inf(-1))
		for _, off := range offsets {
			if t.data[off] > max {
				max = t.data[off]
			}
		}
		var sum float32
		for _, off := range offsets {
			e := float32(math.Exp(float64(t.data[off] - max)))
			out.data[off] = e
			sum += e
		}
		if sum == 0 {
			sum = 1e-12
		}
		for _, off := range offsets {
			out.data[off] /= sum
		}
	})
	return out, nil
}

// LPNormalize divides each element of every slice along axis by the slice's
// L^p norm, clamped to at least 1e-12 to avoid division by zero. Fails for
// p == 0 or an empty tensor.
func (t *Tensor) LPNormalize(p float32, axis int) (*Tensor, error) {
	if p == 0 {
		return nil, fmt.Errorf("lp_normalize: p must be non-zero")
	}
	if t.Len() == 0 {
		return nil, fmt.Errorf("lp_normalize: empty tensor")
	}
	axis0, err := resolveAxis(axis, t.Ndim())
	if err != nil {
		return nil, err
	}
	out := t.Clone()
	pf := float64(p)
	t.forEachAxisSlice(axis0, func(offsets []int) {
		var acc float64
		for _, off := range offsets {
			acc += math.Pow(math.Abs(float64(t.data[off])), pf)
		}
		norm := float32(math.Pow(acc, 1/pf))
		if norm < 1e-12 {
			norm = 1e-12
		}
		for _, off := range offsets {
			out.data[off] = t.data[off] / norm
		}
	})
	return out, nil
}

// LayerNorm returns (x - mean_along(axis)) / sqrt(var_along(axis, ddof=0) + eps),
// with no learnable affine term. Invariant under any per-slice additive bias.
func (t *Tensor) LayerNorm(axis int, eps float32) (*Tensor, error) {
	axis0, err := resolveAxis(axis, t.Ndim())
	if err != nil {
		return nil, err
	}
	out := t.Clone()
	t.forEachAxisSlice(axis0, func(offsets []int) {
		n := float32(len(offsets))
		var sum float32
		for _, off := range offsets {
			sum += t.data[off]
		}
		mean := sum / n
		var varAcc float32
		for _, off := range offsets {
			d := t.data[off] - mean
			varAcc += d * d
		}
		variance := varAcc / n
		denom := float32(math.Sqrt(float64(variance + eps)))
		for _, off := range offsets {
			out.data[off] = (t.data[off] - mean) / denom
		}
	})
	return out, nil
}

// TruncateAxis takes the first min(axis_length, length) elements along axis
// (1-indexed), preserving every other axis.
func (t *Tensor) TruncateAxis(axis int, length int) (*Tensor, error) {
	axis0, err := resolveAxis(axis, t.Ndim())
	if err != nil {
		return nil, err
	}
	newLen := length
	if newLen > t.shape[axis0] {
		newLen = t.shape[axis0]
	}
	if newLen < 0 {
		newLen = 0
	}
	outShape := append([]int(nil), t.shape...)
	outShape[axis0] = newLen
	out := Zeros(outShape)

	str := strides(t.shape)
	outStr := strides(outShape)
	forEachIndex(outShape, func(idx []int) {
		srcOff := flatOffset(idx, str)
		dstOff := flatOffset(idx, outStr)
		out.data[dstOff] = t.data[srcOff]
	})
	return out, nil
}

// Transpose reverses every axis, returning a new contiguous tensor.
func (t *Tensor) Transpose() *Tensor {
	ndim := t.Ndim()
	outShape := make([]int, ndim)
	for i, d := range t.shape {
		outShape[ndim-1-i] = d
	}
	out := Zeros(outShape)
	str := strides(t.shape)
	outStr := strides(outShape)
	forEachIndex(t.shape, func(idx []int) {
		revIdx := make([]int, ndim)
		for i, v := range idx {
			revIdx[ndim-1-i] = v
		}
		out.data[flatOffset(revIdx, outStr)] = t.data[flatOffset(idx, str)]
	})
	return out
}

// MapAxisFunc transforms one slice (presented as a rank-(ndim-1) tensor)
// into a new tensor of the same rank. MapAxis stacks the results back along
// axis and fails if returned shapes are inconsistent.
type MapAxisFunc func(slice *Tensor) (*Tensor, error)

// MapAxis iterates slices along axis (1-indexed), applies f to each, and
// restacks the results along axis. Fails if f returns inconsistent shapes
// across slices.
func (t *Tensor) MapAxis(axis int, f MapAxisFunc) (*Tensor, error) {
	axis0, err := resolveAxis(axis, t.Ndim())
	if err != nil {
		return nil, err
	}
	return t.mapAxisImpl(axis0, f)
}

// extractSlice returns the rank-(ndim-1) tensor at position i along axis0.
func (t *Tensor) extractSlice(axis0, i int) *Tensor {
	outShape := dropAxis(t.shape, axis0)
	out := Zeros(outShape)
	str := strides(t.shape)
	outStr := strides(outShape)
	forEachIndex(outShape, func(idx []int) {
		full := insertAxis(idx, axis0, i)
		out.data[flatOffset(idx, outStr)] = t.data[flatOffset(full, str)]
	})
	return out
}

func insertAxis(idx []int, axis0, v int) []int {
	full := make([]int, len(idx)+1)
	copy(full[:axis0], idx[:axis0])
	full[axis0] = v
	copy(full[axis0+1:], idx[axis0:])
	return full
}

func (t *Tensor) mapAxisImpl(axis0 int, f MapAxisFunc) (*Tensor, error) {
	axisLen := t.shape[axis0]
	var results []*Tensor
	for i := 0; i < axisLen; i++ {
		slice := t.extractSlice(axis0, i)
		r, err := f(slice)
		if err != nil {
			return nil, fmt.Errorf("map_axis: slice %d: %w", i, err)
		}
		if len(results) > 0 && !sameShape(results[0].shape, r.shape) {
			return nil, fmt.Errorf("map_axis: inconsistent shapes: slice 0 is %v, slice %d is %v", results[0].shape, i, r.shape)
		}
		results = append(results, r)
	}
	if len(results) == 0 {
		return Zeros(append([]int(nil), t.shape...)), nil
	}
	return stackAlongAxis(results, axis0), nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stackAlongAxis(slices []*Tensor, axis0 int) *Tensor {
	sliceShape := slices[0].shape
	outShape := insertAxis(append([]int(nil), sliceShape...), axis0, len(slices))
	out := Zeros(outShape)
	outStr := strides(outShape)
	sliceStr := strides(sliceShape)
	for i, s := range slices {
		forEachIndex(sliceShape, func(idx []int) {
			full := insertAxis(idx, axis0, i)
			out.data[flatOffset(full, outStr)] = s.data[flatOffset(idx, sliceStr)]
		})
	}
	return out
}

// FoldAxisFunc accumulates one slice (rank ndim-1 tensor) into a running
// scalar accumulator.
type FoldAxisFunc func(acc float32, slice *Tensor) (float32, error)

// FoldAxis iterates slices along axis (1-indexed), threading acc through f,
// and returns a rank-1 tensor of the per-slice accumulated values — one
// entry per position along axis, each seeded fresh from init.
func (t *Tensor) FoldAxis(axis int, init float32, f FoldAxisFunc) (*Tensor, error) {
	axis0, err := resolveAxis(axis, t.Ndim())
	if err != nil {
		return nil, err
	}
	axisLen := t.shape[axis0]
	out := Zeros([]int{axisLen})
	for i := 0; i < axisLen; i++ {
		slice := t.extractSlice(axis0, i)
		v, err := f(init, slice)
		if err != nil {
			return nil, fmt.Errorf("fold_axis: slice %d: %w", i, err)
		}
		out.data[i] = v
	}
	return out, nil
}
