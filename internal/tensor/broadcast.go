package tensor

// broadcastShape computes the NumPy-style right-aligned broadcast shape of
// a and b: traversing axes from the trailing end, each pair of dims must be
// equal or one of them must be 1; missing leading dims are treated as 1.
func broadcastShape(a, b []int) ([]int, error) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		da := dimFromEnd(a, i)
		db := dimFromEnd(b, i)
		switch {
		case da == db:
			out[n-1-i] = da
		case da == 1:
			out[n-1-i] = db
		case db == 1:
			out[n-1-i] = da
		default:
			return nil, &ShapeMismatchError{A: a, B: b, Detail: "not broadcastable"}
		}
	}
	return out, nil
}

// dimFromEnd returns the dimension i positions from the trailing axis of
// shape (0 = last axis), or 1 if shape is too short to have that axis.
func dimFromEnd(shape []int, i int) int {
	idx := len(shape) - 1 - i
	if idx < 0 {
		return 1
	}
	return shape[idx]
}

// broadcastIndex maps a multi-index in the broadcast output shape back to
// the corresponding (possibly narrower) multi-index in an input of shape
// srcShape, collapsing any axis where srcShape has size 1.
func broadcastIndex(outIdx []int, srcShape []int) []int {
	offset := len(outIdx) - len(srcShape)
	idx := make([]int, len(srcShape))
	for i := range srcShape {
		v := outIdx[offset+i]
		if srcShape[i] == 1 {
			v = 0
		}
		idx[i] = v
	}
	return idx
}

type binOp func(a, b float32) float32

// broadcastBinary applies op elementwise across a and b using right-aligned
// broadcasting, returning a new tensor of the broadcast shape.
func broadcastBinary(a, b *Tensor, op binOp) (*Tensor, error) {
	outShape, err := broadcastShape(a.shape, b.shape)
	if err != nil {
		return nil, err
	}
	out := Zeros(outShape)
	aStr := strides(a.shape)
	bStr := strides(b.shape)

	forEachIndex(outShape, func(idx []int) {
		aIdx := broadcastIndex(idx, a.shape)
		bIdx := broadcastIndex(idx, b.shape)
		av := a.data[flatOffset(aIdx, aStr)]
		bv := b.data[flatOffset(bIdx, bStr)]
		out.data[flatOffset(idx, strides(outShape))] = op(av, bv)
	})
	return out, nil
}

func scalarBinary(a *Tensor, scalar float32, op binOp) *Tensor {
	out := a.Clone()
	for i, v := range out.data {
		out.data[i] = op(v, scalar)
	}
	return out
}

// Add returns a+b with broadcasting.
func (t *Tensor) Add(o *Tensor) (*Tensor, error) { return broadcastBinary(t, o, func(a, b float32) float32 { return a + b }) }

// Sub returns a-b with broadcasting.
func (t *Tensor) Sub(o *Tensor) (*Tensor, error) { return broadcastBinary(t, o, func(a, b float32) float32 { return a - b }) }

// Mul returns a*b with broadcasting.
func (t *Tensor) Mul(o *Tensor) (*Tensor, error) { return broadcastBinary(t, o, func(a, b float32) float32 { return a * b }) }

// Div returns a/b with broadcasting.
func (t *Tensor) Div(o *Tensor) (*Tensor, error) { return broadcastBinary(t, o, func(a, b float32) float32 { return a / b }) }

// AddScalar returns t+s elementwise.
func (t *Tensor) AddScalar(s float32) *Tensor { return scalarBinary(t, s, func(a, b float32) float32 { return a + b }) }

// SubScalar returns t-s elementwise.
func (t *Tensor) SubScalar(s float32) *Tensor { return scalarBinary(t, s, func(a, b float32) float32 { return a - b }) }

// MulScalar returns t*s elementwise.
func (t *Tensor) MulScalar(s float32) *Tensor { return scalarBinary(t, s, func(a, b float32) float32 { return a * b }) }

// DivScalar returns t/s elementwise.
func (t *Tensor) DivScalar(s float32) *Tensor { return scalarBinary(t, s, func(a, b float32) float32 { return a / b }) }
