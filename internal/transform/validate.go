package transform

import (
	"fmt"
	"math/rand"

	"github.com/encoderfile/encoderfile/internal/container"
	"github.com/encoderfile/encoderfile/internal/tensor"
)

// Dry-run shape constants. These mirror no real model; they only need to be
// large enough to exercise a Postprocess script's indexing logic and small
// enough to build instantly at `encoderfile build` time.
const (
	dryRunBatchSize = 32
	dryRunSeqLen    = 128
	dryRunHiddenDim = 384
	dryRunSeed      = 42
)

// randomTensor builds a tensor of the given shape filled with deterministic
// pseudo-random values in [-1, 1], seeded the same way on every build so a
// failing dry run reproduces exactly.
func randomTensor(shape []int) *tensor.Tensor {
	rng := rand.New(rand.NewSource(dryRunSeed))
	n := 1
	for _, d := range shape {
		n *= d
	}
	data := make([]float32, n)
	for i := range data {
		data[i] = rng.Float32()*2 - 1
	}
	return tensor.New(shape, data)
}

// dummyAttentionMask builds a mask with the last 8 positions of every
// sequence padded out, so a SentenceEmbedding dry run exercises masked
// pooling rather than a trivially all-ones mask.
func dummyAttentionMask(batch, seqLen int) *tensor.Tensor {
	data := make([]float32, batch*seqLen)
	validLen := seqLen - 8
	for b := 0; b < batch; b++ {
		for s := 0; s < validLen; s++ {
			data[b*seqLen+s] = 1
		}
	}
	return tensor.New([]int{batch, seqLen}, data)
}

// Validate dry-runs engine's Postprocess function, if any, against a
// synthetic tensor shaped the way kind's real ONNX output would be, so a
// script that panics or returns the wrong shape fails at `encoderfile build`
// rather than on a container's first real inference request. numLabels is
// read from the model config and is required for the classification kinds;
// it is ignored for Embedding and SentenceEmbedding.
func Validate(kind container.ModelKind, engine *Engine, numLabels int) error {
	if !engine.HasPostprocess() {
		return nil
	}
	switch kind {
	case container.Embedding:
		x := NewEmbedding(engine)
		_, err := x.Apply(randomTensor([]int{dryRunBatchSize, dryRunSeqLen, dryRunHiddenDim}))
		if err != nil {
			return fmt.Errorf("validate embedding transform: %w", err)
		}
		return nil

	case container.SequenceClassification:
		if numLabels < 1 {
			return fmt.Errorf("validate sequence-classification transform: model config has no num_labels (set num_labels, id2label, or label2id)")
		}
		x := NewSequenceClassification(engine)
		_, err := x.Apply(randomTensor([]int{dryRunBatchSize, numLabels}))
		if err != nil {
			return fmt.Errorf("validate sequence-classification transform: %w", err)
		}
		return nil

	case container.TokenClassification:
		if numLabels < 1 {
			return fmt.Errorf("validate token-classification transform: model config has no num_labels (set num_labels, id2label, or label2id)")
		}
		x := NewTokenClassification(engine)
		_, err := x.Apply(randomTensor([]int{dryRunBatchSize, dryRunSeqLen, numLabels}))
		if err != nil {
			return fmt.Errorf("validate token-classification transform: %w", err)
		}
		return nil

	case container.SentenceEmbedding:
		x := NewSentenceEmbedding(engine)
		hidden := randomTensor([]int{dryRunBatchSize, dryRunSeqLen, dryRunHiddenDim})
		mask := dummyAttentionMask(dryRunBatchSize, dryRunSeqLen)
		_, err := x.Apply(hidden, mask)
		if err != nil {
			return fmt.Errorf("validate sentence-embedding transform: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("validate transform: unknown model kind %v", kind)
	}
}
