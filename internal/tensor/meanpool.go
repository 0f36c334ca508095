package tensor

import "fmt"

// MeanPool reduces a rank-r (r >= 2) tensor to rank-2 using mask (rank r-1,
// dims matching the tensor's leading r-1 axes): the mask is broadcast over
// the trailing (feature) axis, multiplied elementwise, summed over every
// axis except the first (batch) and last (feature), then divided by the
// same sum of the expanded mask. Used by sentence-embedding to reduce
// [batch, seq, hidden] to [batch, hidden] when no Postprocess script
// defines its own pooling.
func (t *Tensor) MeanPool(mask *Tensor) (*Tensor, error) {
	r := t.Ndim()
	if r < 2 {
		return nil, fmt.Errorf("mean_pool: tensor must have rank >= 2, got %d", r)
	}
	if mask.Ndim() != r-1 {
		return nil, fmt.Errorf("mean_pool: mask rank must be %d, got %d", r-1, mask.Ndim())
	}
	for i := 0; i < r-1; i++ {
		if mask.shape[i] != t.shape[i] {
			return nil, &ShapeMismatchError{A: t.shape, B: mask.shape, Detail: "mask dims must match tensor's leading dims"}
		}
	}

	batch := t.shape[0]
	hidden := t.shape[r-1]
	// middle holds every axis strictly between batch and hidden (usually
	// just "seq", but the operation generalizes to any rank >= 2).
	middle := t.shape[1 : r-1]

	out := Zeros([]int{batch, hidden})
	tStr := strides(t.shape)
	mStr := strides(mask.shape)

	for b := 0; b < batch; b++ {
		sums := make([]float32, hidden)
		var maskSum float32
		forEachIndex(middle, func(midIdx []int) {
			full := append([]int{b}, midIdx...)
			mVal := mask.data[flatOffset(full, mStr)]
			maskSum += mVal
			base := append(append([]int{}, full...), 0)
			baseOff := flatOffset(base, tStr)
			for h := 0; h < hidden; h++ {
				sums[h] += t.data[baseOff+h] * mVal
			}
		})
		if maskSum < 1e-9 {
			maskSum = 1e-9
		}
		for h := 0; h < hidden; h++ {
			out.data[b*hidden+h] = sums[h] / maskSum
		}
	}
	return out, nil
}
