package tensor

import (
	"fmt"
	"math"
)

// Sum returns the sum of every element.
func (t *Tensor) Sum() float32 {
	var s float32
	for _, v := range t.data {
		s += v
	}
	return s
}

// Mean returns the mean of every element, or ok=false if the tensor is empty.
func (t *Tensor) Mean() (float32, bool) {
	if len(t.data) == 0 {
		return 0, false
	}
	return t.Sum() / float32(len(t.data)), true
}

// Min returns the minimum element, failing if the tensor is empty.
func (t *Tensor) Min() (float32, error) {
	if len(t.data) == 0 {
		return 0, fmt.Errorf("min: empty tensor")
	}
	m := t.data[0]
	for _, v := range t.data[1:] {
		if v < m {
			m = v
		}
	}
	return m, nil
}

// Max returns the maximum element, failing if the tensor is empty.
func (t *Tensor) Max() (float32, error) {
	if len(t.data) == 0 {
		return 0, fmt.Errorf("max: empty tensor")
	}
	m := t.data[0]
	for _, v := range t.data[1:] {
		if v > m {
			m = v
		}
	}
	return m, nil
}

// Std returns the standard deviation with the given delta degrees of
// freedom (ddof); e.g. ddof=0 for population std, ddof=1 for sample std.
func (t *Tensor) Std(ddof float32) float32 {
	n := float32(len(t.data))
	if n == 0 {
		return 0
	}
	mean, _ := t.Mean()
	var acc float32
	for _, v := range t.data {
		d := v - mean
		acc += d * d
	}
	denom := n - ddof
	if denom <= 0 {
		return 0
	}
	return float32(math.Sqrt(float64(acc / denom)))
}

// Exp returns a new tensor with exp applied elementwise.
func (t *Tensor) Exp() *Tensor {
	out := t.Clone()
	for i, v := range out.data {
		out.data[i] = float32(math.Exp(float64(v)))
	}
	return out
}

// Clamp returns a new tensor with every element clamped to [min, max].
// Either bound may be nil, meaning "no bound on this side". A NaN bound
// propagates NaN to the entire output (IEEE-754 propagating policy); an
// inverted bound pair (min > max) applies max(·,min) then min(·,max), so
// the result is max everywhere.
func (t *Tensor) Clamp(min, max *float32) *Tensor {
	out := t.Clone()
	if min == nil && max == nil {
		return out
	}
	for i, v := range out.data {
		x := v
		if min != nil {
			if math.IsNaN(float64(*min)) {
				x = float32(math.NaN())
			} else if x < *min {
				x = *min
			}
		}
		if max != nil {
			if math.IsNaN(float64(*max)) {
				x = float32(math.NaN())
			} else if x > *max {
				x = *max
			}
		}
		out.data[i] = x
	}
	return out
}
