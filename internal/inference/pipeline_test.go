package inference

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/encoderfile/encoderfile/internal/tokenizer"
)

func TestValidateInputsRejectsEmptyBatch(t *testing.T) {
	err := validateInputs(nil)
	require.Error(t, err)
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
}

func TestValidateInputsRejectsEmptyString(t *testing.T) {
	err := validateInputs([]string{"hello", ""})
	require.Error(t, err)
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
}

func TestValidateInputsAcceptsNonEmptyBatch(t *testing.T) {
	require.NoError(t, validateInputs([]string{"hello", "world"}))
}

func TestMarshalBatchProducesUniformShape(t *testing.T) {
	encodings := []tokenizer.Encoding{
		{IDs: []int64{1, 2, 3}, AttentionMask: []int64{1, 1, 1}, TypeIDs: []int64{0, 0, 0}},
		{IDs: []int64{4, 5, 0}, AttentionMask: []int64{1, 1, 0}, TypeIDs: []int64{0, 0, 0}},
	}
	bt := marshalBatch(encodings)
	require.Equal(t, 2, bt.batch)
	require.Equal(t, 3, bt.seqLen)
	require.Equal(t, []int64{1, 2, 3, 4, 5, 0}, bt.ids)
	require.Equal(t, []int64{1, 1, 1, 1, 1, 0}, bt.mask)
}

func TestArgmaxPicksHighestScore(t *testing.T) {
	require.Equal(t, 2, argmax([]float32{0.1, 0.2, 0.7}))
	require.Equal(t, 0, argmax([]float32{0.9, 0.05, 0.05}))
}

func TestTokenAtBoundsCheck(t *testing.T) {
	require.Equal(t, "hello", tokenAt([]string{"hello", "world"}, 0))
	require.Equal(t, "", tokenAt([]string{"hello"}, 5))
}
