package transform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/encoderfile/encoderfile/internal/script"
	"github.com/encoderfile/encoderfile/internal/tensor"
)

func TestEmbeddingIdentityWhenNoPostprocess(t *testing.T) {
	eng, err := NewEngine("")
	require.NoError(t, err)
	defer eng.Close()

	x := NewEmbedding(eng)
	in := tensor.New([]int{1, 2, 3}, []float32{1, 2, 3, 4, 5, 6})
	out, err := x.Apply(in)
	require.NoError(t, err)
	require.True(t, in.Equal(out))
}

func TestEmbeddingAppliesPostprocessAndValidatesShape(t *testing.T) {
	eng, err := NewEngine(`function Postprocess(a) return a:sum_axis(3) end`)
	require.NoError(t, err)
	defer eng.Close()

	x := NewEmbedding(eng)
	in := tensor.New([]int{1, 2, 3}, []float32{1, 2, 3, 4, 5, 6})
	_, err = x.Apply(in)
	var shapeErr *ShapeError
	require.True(t, errors.As(err, &shapeErr))
}

func TestEmbeddingIdentityScriptPreservesShape(t *testing.T) {
	eng, err := NewEngine(`function Postprocess(a) return a end`)
	require.NoError(t, err)
	defer eng.Close()

	x := NewEmbedding(eng)
	in := tensor.New([]int{1, 2, 3}, []float32{1, 2, 3, 4, 5, 6})
	out, err := x.Apply(in)
	require.NoError(t, err)
	require.True(t, in.Equal(out))
}

func TestSequenceClassificationIdentityAndShape(t *testing.T) {
	eng, err := NewEngine("")
	require.NoError(t, err)
	defer eng.Close()
	x := NewSequenceClassification(eng)
	in := tensor.New([]int{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	out, err := x.Apply(in)
	require.NoError(t, err)
	require.True(t, in.Equal(out))
}

func TestTokenClassificationRejectsWrongRank(t *testing.T) {
	eng, err := NewEngine("")
	require.NoError(t, err)
	defer eng.Close()
	x := NewTokenClassification(eng)
	_, err = x.Apply(tensor.New([]int{2, 3}, []float32{1, 2, 3, 4, 5, 6}))
	require.Error(t, err)
}

func TestSentenceEmbeddingFallsBackToMeanPool(t *testing.T) {
	eng, err := NewEngine("")
	require.NoError(t, err)
	defer eng.Close()
	x := NewSentenceEmbedding(eng)

	hidden := tensor.New([]int{1, 2, 3}, []float32{1, 2, 3, 100, 100, 100})
	mask := tensor.New([]int{1, 2}, []float32{1, 0})
	out, err := x.Apply(hidden, mask)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3}, out.Data())
}

func TestSentenceEmbeddingUsesPostprocessWhenPresent(t *testing.T) {
	eng, err := NewEngine(`
		function Postprocess(t, mask)
			return t:mean_pool(mask)
		end
	`)
	require.NoError(t, err)
	defer eng.Close()
	x := NewSentenceEmbedding(eng)

	hidden := tensor.New([]int{1, 2, 3}, []float32{1, 2, 3, 3, 2, 1})
	mask := tensor.New([]int{1, 2}, []float32{1, 1})
	out, err := x.Apply(hidden, mask)
	require.NoError(t, err)
	require.Equal(t, []float32{2, 2, 2}, out.Data())
}

func TestPostprocessRuntimeErrorSurfacesScriptMessage(t *testing.T) {
	eng, err := NewEngine(`function Postprocess(a) error("boom") end`)
	require.NoError(t, err)
	defer eng.Close()
	x := NewEmbedding(eng)
	_, err = x.Apply(tensor.New([]int{1, 1, 1}, []float32{1}))
	require.Error(t, err)
	var scriptErr *script.Error
	require.True(t, errors.As(err, &scriptErr))
	require.Contains(t, err.Error(), "boom")
}
