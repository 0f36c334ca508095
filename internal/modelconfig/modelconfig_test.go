package modelconfig

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBasicEmbeddingConfig(t *testing.T) {
	cfg, err := Parse([]byte(`{"model_type":"embedding","pad_token_id":0}`))
	require.NoError(t, err)
	require.Equal(t, uint32(0), cfg.PadTokenID)
	require.Equal(t, 0, cfg.NumLabels())
}

func TestParseRejectsUnknownModelType(t *testing.T) {
	_, err := Parse([]byte(`{"model_type":"not-a-real-kind"}`))
	require.Error(t, err)
}

func TestParseDerivesNumLabelsFromId2Label(t *testing.T) {
	cfg, err := Parse([]byte(`{"model_type":"sequence-classification","pad_token_id":0,"id2label":{"0":"NEGATIVE","1":"POSITIVE"}}`))
	require.NoError(t, err)
	require.Equal(t, 2, cfg.NumLabels())
	label, ok := cfg.Label(1)
	require.True(t, ok)
	require.Equal(t, "POSITIVE", label)
}

func TestNumLabelsExplicitFieldWins(t *testing.T) {
	cfg, err := Parse([]byte(`{"model_type":"sequence-classification","pad_token_id":0,"id2label":{"0":"A"},"num_labels":5}`))
	require.NoError(t, err)
	require.Equal(t, 5, cfg.NumLabels())
}

func TestValidateLabelCompletenessDetectsGap(t *testing.T) {
	cfg, err := Parse([]byte(`{"model_type":"token-classification","pad_token_id":0,"id2label":{"0":"O","2":"B-PER"}}`))
	require.NoError(t, err)
	err = cfg.ValidateLabelCompleteness(3)
	require.Error(t, err)
	require.Contains(t, err.Error(), "index 1")
}

func TestValidateLabelCompletenessPassesWhenComplete(t *testing.T) {
	cfg, err := Parse([]byte(`{"model_type":"token-classification","pad_token_id":0,"id2label":{"0":"O","1":"B-PER"}}`))
	require.NoError(t, err)
	require.NoError(t, cfg.ValidateLabelCompleteness(2))
}

func TestLabelFalseWhenNoId2Label(t *testing.T) {
	cfg, err := Parse([]byte(`{"model_type":"embedding","pad_token_id":0}`))
	require.NoError(t, err)
	_, ok := cfg.Label(0)
	require.False(t, ok)
}
