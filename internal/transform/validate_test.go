package transform

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/encoderfile/encoderfile/internal/container"
)

func TestValidateSkipsWhenNoPostprocess(t *testing.T) {
	eng, err := NewEngine("")
	require.NoError(t, err)
	defer eng.Close()

	require.NoError(t, Validate(container.Embedding, eng, 0))
	require.NoError(t, Validate(container.SequenceClassification, eng, 0))
}

func TestValidateEmbeddingCatchesWrongShape(t *testing.T) {
	eng, err := NewEngine(`function Postprocess(a) return a:sum_axis(3) end`)
	require.NoError(t, err)
	defer eng.Close()

	err = Validate(container.Embedding, eng, 0)
	require.Error(t, err)
}

func TestValidateEmbeddingPassesIdentityScript(t *testing.T) {
	eng, err := NewEngine(`function Postprocess(a) return a end`)
	require.NoError(t, err)
	defer eng.Close()

	require.NoError(t, Validate(container.Embedding, eng, 0))
}

func TestValidateSequenceClassificationRequiresNumLabels(t *testing.T) {
	eng, err := NewEngine(`function Postprocess(a) return a end`)
	require.NoError(t, err)
	defer eng.Close()

	err = Validate(container.SequenceClassification, eng, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "num_labels")
}

func TestValidateSequenceClassificationPassesWithNumLabels(t *testing.T) {
	eng, err := NewEngine(`function Postprocess(a) return a end`)
	require.NoError(t, err)
	defer eng.Close()

	require.NoError(t, Validate(container.SequenceClassification, eng, 3))
}

func TestValidateSentenceEmbeddingPassesMeanPoolScript(t *testing.T) {
	eng, err := NewEngine(`function Postprocess(hidden, mask) return hidden:mean_pool(mask) end`)
	require.NoError(t, err)
	defer eng.Close()

	require.NoError(t, Validate(container.SentenceEmbedding, eng, 0))
}
