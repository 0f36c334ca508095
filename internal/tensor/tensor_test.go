package tensor

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveAxisRejectsZeroAndOutOfRange(t *testing.T) {
	tn := New([]int{2, 3}, make([]float32, 6))
	_, err := tn.SumAxis(0)
	require.Error(t, err)
	var axisErr *AxisError
	require.True(t, errors.As(err, &axisErr))

	_, err = tn.SumAxis(3)
	require.Error(t, err)
	require.True(t, errors.As(err, &axisErr))
}

func TestBroadcastSucceedsWhenTrailingAxisMatches(t *testing.T) {
	a := New([]int{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	b := New([]int{3}, []float32{10, 20, 30})
	out, err := a.Add(b)
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, out.Shape())
	require.Equal(t, []float32{11, 22, 33, 14, 25, 36}, out.Data())
}

func TestBroadcastFailsWithNotBroadcastableMessage(t *testing.T) {
	a := New([]int{2, 3}, make([]float32, 6))
	b := New([]int{2}, make([]float32, 2))
	_, err := a.Add(b)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not broadcastable")
	var shapeErr *ShapeMismatchError
	require.True(t, errors.As(err, &shapeErr))
}

func TestSoftmaxSumsToOneAndAvoidsNaN(t *testing.T) {
	tn := New([]int{2, 3}, []float32{-1000, -2000, -3000, 1, 2, 3})
	out, err := tn.Softmax(2)
	require.NoError(t, err)
	for row := 0; row < 2; row++ {
		var sum float32
		for col := 0; col < 3; col++ {
			v := out.Data()[row*3+col]
			require.False(t, math.IsNaN(float64(v)))
			sum += v
		}
		require.InDelta(t, 1.0, sum, 1e-6)
	}
}

func TestLayerNormMeanZeroVarOneAndBiasInvariant(t *testing.T) {
	tn := New([]int{1, 4}, []float32{1, 2, 3, 4})
	out, err := tn.LayerNorm(2, 1e-5)
	require.NoError(t, err)

	var mean float32
	for _, v := range out.Data() {
		mean += v
	}
	mean /= 4
	require.InDelta(t, 0.0, mean, 1e-4)

	var variance float32
	for _, v := range out.Data() {
		variance += (v - mean) * (v - mean)
	}
	variance /= 4
	require.InDelta(t, 1.0, variance, 1e-3)

	biased := New([]int{1, 4}, []float32{101, 102, 103, 104})
	biasedOut, err := biased.LayerNorm(2, 1e-5)
	require.NoError(t, err)
	for i := range out.Data() {
		require.InDelta(t, out.Data()[i], biasedOut.Data()[i], 1e-3)
	}
}

func TestLPNormalizeFailsOnZeroPAndEmptyTensor(t *testing.T) {
	tn := New([]int{1, 3}, []float32{1, 2, 3})
	_, err := tn.LPNormalize(0, 2)
	require.Error(t, err)

	empty := New([]int{0}, nil)
	_, err = empty.LPNormalize(2, 1)
	require.Error(t, err)
}

func TestLPNormalizeProducesUnitNorm(t *testing.T) {
	tn := New([]int{1, 3}, []float32{3, 4, 0})
	out, err := tn.LPNormalize(2, 2)
	require.NoError(t, err)
	var sumSq float32
	for _, v := range out.Data() {
		sumSq += v * v
	}
	require.InDelta(t, 1.0, sumSq, 1e-6)
}

func TestClampIdentityWhenWithinBounds(t *testing.T) {
	tn := New([]int{3}, []float32{1, 2, 3})
	lo, hi := float32(0), float32(10)
	out := tn.Clamp(&lo, &hi)
	require.Equal(t, tn.Data(), out.Data())
}

func TestClampPropagatesNaNBound(t *testing.T) {
	tn := New([]int{2}, []float32{1, 2})
	nan := float32(math.NaN())
	out := tn.Clamp(&nan, nil)
	for _, v := range out.Data() {
		require.True(t, math.IsNaN(float64(v)))
	}
}

func TestClampInvertedBoundsCollapseToHigh(t *testing.T) {
	tn := New([]int{3}, []float32{-5, 0, 5})
	lo, hi := float32(10), float32(1)
	out := tn.Clamp(&lo, &hi)
	for _, v := range out.Data() {
		require.Equal(t, float32(1), v)
	}
}

func TestMeanPoolExcludesMaskedPositions(t *testing.T) {
	// batch=1, seq=2, hidden=3
	values := New([]int{1, 2, 3}, []float32{1, 2, 3, 100, 100, 100})
	mask := New([]int{1, 2}, []float32{1, 0})
	out, err := values.MeanPool(mask)
	require.NoError(t, err)
	require.Equal(t, []int{1, 3}, out.Shape())
	require.Equal(t, []float32{1, 2, 3}, out.Data())
}

func TestMeanPoolAllOnesAveragesAcrossSeq(t *testing.T) {
	values := New([]int{1, 2, 3}, []float32{1, 2, 3, 3, 2, 1})
	mask := New([]int{1, 2}, []float32{1, 1})
	out, err := values.MeanPool(mask)
	require.NoError(t, err)
	require.Equal(t, []float32{2, 2, 2}, out.Data())
}

func TestSumAxisDropsAxis(t *testing.T) {
	tn := New([]int{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	out, err := tn.SumAxis(2)
	require.NoError(t, err)
	require.Equal(t, []int{2}, out.Shape())
	require.Equal(t, []float32{6, 15}, out.Data())
}

func TestTruncateAxisShortensOnly(t *testing.T) {
	tn := New([]int{1, 5}, []float32{1, 2, 3, 4, 5})
	out, err := tn.TruncateAxis(2, 3)
	require.NoError(t, err)
	require.Equal(t, []int{1, 3}, out.Shape())
	require.Equal(t, []float32{1, 2, 3}, out.Data())
}

func TestMapAxisStacksResults(t *testing.T) {
	tn := New([]int{2, 2}, []float32{1, 2, 3, 4})
	out, err := tn.MapAxis(1, func(slice *Tensor) (*Tensor, error) {
		return slice.MulScalar(10), nil
	})
	require.NoError(t, err)
	require.Equal(t, []float32{10, 20, 30, 40}, out.Data())
}

func TestFoldAxisReturnsRank1PerSlice(t *testing.T) {
	tn := New([]int{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	out, err := tn.FoldAxis(1, 0, func(acc float32, slice *Tensor) (float32, error) {
		return acc + slice.Sum(), nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{2}, out.Shape())
	require.Equal(t, []float32{6, 15}, out.Data())
}

func TestEqualDetectsShapeAndDataDifferences(t *testing.T) {
	a := New([]int{2}, []float32{1, 2})
	b := New([]int{2}, []float32{1, 2})
	c := New([]int{2}, []float32{1, 3})
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}
