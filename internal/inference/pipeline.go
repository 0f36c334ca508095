package inference

import (
	"context"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/encoderfile/encoderfile/internal/tensor"
	"github.com/encoderfile/encoderfile/internal/tokenizer"
)

// batchTensors holds the three [n, S] int64 marshaling tensors the ONNX
// session expects.
type batchTensors struct {
	ids, mask, typeIDs []int64
	batch, seqLen      int
}

func marshalBatch(encodings []tokenizer.Encoding) batchTensors {
	batch := len(encodings)
	seqLen := 0
	if batch > 0 {
		seqLen = len(encodings[0].IDs)
	}
	bt := batchTensors{
		ids:     make([]int64, batch*seqLen),
		mask:    make([]int64, batch*seqLen),
		typeIDs: make([]int64, batch*seqLen),
		batch:   batch,
		seqLen:  seqLen,
	}
	for i, enc := range encodings {
		copy(bt.ids[i*seqLen:], enc.IDs)
		copy(bt.mask[i*seqLen:], enc.AttentionMask)
		copy(bt.typeIDs[i*seqLen:], enc.TypeIDs)
	}
	return bt
}

// runSession builds the ORT input tensors, acquires the session lock via
// Session.Run, and converts the single declared output into a *tensor.Tensor
// of wantRank dimensions. The attention-mask f32 tensor is also returned for
// callers (sentence-embedding) that need it for mean-pool.
func runSession(state *State, bt batchTensors, wantRank int) (*tensor.Tensor, *tensor.Tensor, error) {
	shape := ort.NewShape(int64(bt.batch), int64(bt.seqLen))

	idsT, err := ort.NewTensor(shape, bt.ids)
	if err != nil {
		return nil, nil, &InternalError{Reason: "building input_ids tensor", Cause: err}
	}
	defer idsT.Destroy()

	maskT, err := ort.NewTensor(shape, bt.mask)
	if err != nil {
		return nil, nil, &InternalError{Reason: "building attention_mask tensor", Cause: err}
	}
	defer maskT.Destroy()

	inputs := []ort.Value{idsT, maskT}
	if state.Session.HasInput("token_type_ids") {
		typeT, err := ort.NewTensor(shape, bt.typeIDs)
		if err != nil {
			return nil, nil, &InternalError{Reason: "building token_type_ids tensor", Cause: err}
		}
		defer typeT.Destroy()
		inputs = append(inputs, typeT)
	}

	outputs := []ort.Value{nil}
	if err := state.Session.Run(inputs, outputs); err != nil {
		return nil, nil, &InternalError{Reason: "onnx session run failed", Cause: err}
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	outT, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, &InternalError{Reason: "model output is not a float32 tensor"}
	}
	shapeInts := shapeToInts(outT.GetShape())
	if len(shapeInts) != wantRank {
		return nil, nil, &InternalError{Reason: fmt.Sprintf("model output has rank %d, want %d", len(shapeInts), wantRank)}
	}
	data := append([]float32(nil), outT.GetData()...)
	out := tensor.New(shapeInts, data)

	maskData := make([]float32, len(bt.mask))
	for i, v := range bt.mask {
		maskData[i] = float32(v)
	}
	mask := tensor.New([]int{bt.batch, bt.seqLen}, maskData)

	return out, mask, nil
}

func shapeToInts(shape ort.Shape) []int {
	out := make([]int, len(shape))
	for i, d := range shape {
		out[i] = int(d)
	}
	return out
}

func validateInputs(inputs []string) error {
	if len(inputs) == 0 {
		return &InputError{Reason: "batch must contain at least one input"}
	}
	for i, s := range inputs {
		if s == "" {
			return &InputError{Reason: fmt.Sprintf("batch item %d is an empty string", i)}
		}
	}
	return nil
}

func tokenizeBatch(state *State, inputs []string) ([]tokenizer.Encoding, error) {
	if err := validateInputs(inputs); err != nil {
		return nil, err
	}
	encodings, err := state.Tokenizer.EncodeBatch(inputs)
	if err != nil {
		return nil, &InputError{Reason: err.Error()}
	}
	return encodings, nil
}

func argmax(values []float32) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

// RunEmbedding executes the Embedding pipeline.
func RunEmbedding(ctx context.Context, state *State, req Request) (*Response[EmbeddingResult], error) {
	encodings, err := tokenizeBatch(state, req.Inputs)
	if err != nil {
		return nil, err
	}
	hidden, _, err := runSession(state, marshalBatch(encodings), 3)
	if err != nil {
		return nil, err
	}

	transformed, err := state.embedding.Apply(hidden)
	if err != nil {
		return nil, wrapPostprocessError(err)
	}

	shape := transformed.Shape()
	seqLen := shape[1]
	featLen := shape[2]

	results := make([]EmbeddingResult, len(encodings))
	for b, enc := range encodings {
		var recs EmbeddingResult
		for s := 0; s < seqLen; s++ {
			if s < len(enc.SpecialTokensMask) && enc.SpecialTokensMask[s] == 1 {
				continue
			}
			vec := make([]float32, featLen)
			base := (b*seqLen + s) * featLen
			copy(vec, transformed.Data()[base:base+featLen])
			recs = append(recs, EmbeddingRecord{
				Embedding: vec,
				TokenInfo: TokenInfo{
					Token:   tokenAt(enc.Tokens, s),
					TokenID: enc.IDs[s],
					Start:   enc.Offsets[s][0],
					End:     enc.Offsets[s][1],
				},
			})
		}
		results[b] = recs
	}

	return &Response[EmbeddingResult]{Results: results, ModelID: state.ModelID, Metadata: req.Metadata}, nil
}

// RunSequenceClassification executes the SequenceClassification pipeline.
func RunSequenceClassification(ctx context.Context, state *State, req Request) (*Response[SequenceClassificationResult], error) {
	encodings, err := tokenizeBatch(state, req.Inputs)
	if err != nil {
		return nil, err
	}
	logits, _, err := runSession(state, marshalBatch(encodings), 2)
	if err != nil {
		return nil, err
	}

	transformed, err := state.sequenceClassification.Apply(logits)
	if err != nil {
		return nil, wrapPostprocessError(err)
	}

	scores, err := transformed.Softmax(2)
	if err != nil {
		return nil, &InternalError{Reason: "softmax over logits failed", Cause: err}
	}

	numLabels := transformed.Shape()[1]
	results := make([]SequenceClassificationResult, len(encodings))
	for b := range encodings {
		base := b * numLabels
		rowLogits := append([]float32(nil), transformed.Data()[base:base+numLabels]...)
		rowScores := append([]float32(nil), scores.Data()[base:base+numLabels]...)
		idx := argmax(rowScores)
		var label *string
		if l, ok := state.Config.Label(idx); ok {
			label = &l
		}
		results[b] = SequenceClassificationResult{
			Logits:         rowLogits,
			Scores:         rowScores,
			PredictedIndex: idx,
			PredictedLabel: label,
		}
	}

	return &Response[SequenceClassificationResult]{Results: results, ModelID: state.ModelID, Metadata: req.Metadata}, nil
}

// RunTokenClassification executes the TokenClassification pipeline.
func RunTokenClassification(ctx context.Context, state *State, req Request) (*Response[TokenClassificationResult], error) {
	encodings, err := tokenizeBatch(state, req.Inputs)
	if err != nil {
		return nil, err
	}
	logits, _, err := runSession(state, marshalBatch(encodings), 3)
	if err != nil {
		return nil, err
	}

	transformed, err := state.tokenClassification.Apply(logits)
	if err != nil {
		return nil, wrapPostprocessError(err)
	}

	scores, err := transformed.Softmax(3)
	if err != nil {
		return nil, &InternalError{Reason: "softmax over token logits failed", Cause: err}
	}

	shape := transformed.Shape()
	seqLen := shape[1]
	numLabels := shape[2]

	results := make([]TokenClassificationResult, len(encodings))
	for b, enc := range encodings {
		var recs TokenClassificationResult
		for s := 0; s < seqLen; s++ {
			if s < len(enc.SpecialTokensMask) && enc.SpecialTokensMask[s] == 1 {
				continue
			}
			base := (b*seqLen + s) * numLabels
			rowLogits := append([]float32(nil), transformed.Data()[base:base+numLabels]...)
			rowScores := append([]float32(nil), scores.Data()[base:base+numLabels]...)
			idx := argmax(rowScores)
			var label *string
			if l, ok := state.Config.Label(idx); ok {
				label = &l
			}
			recs = append(recs, TokenClassificationRecord{
				TokenInfo: TokenInfo{
					Token:   tokenAt(enc.Tokens, s),
					TokenID: enc.IDs[s],
					Start:   enc.Offsets[s][0],
					End:     enc.Offsets[s][1],
				},
				Logits: rowLogits,
				Scores: rowScores,
				Label:  label,
				Score:  rowScores[idx],
			})
		}
		results[b] = recs
	}

	return &Response[TokenClassificationResult]{Results: results, ModelID: state.ModelID, Metadata: req.Metadata}, nil
}

// RunSentenceEmbedding executes the SentenceEmbedding pipeline.
func RunSentenceEmbedding(ctx context.Context, state *State, req Request) (*Response[SentenceEmbeddingResult], error) {
	encodings, err := tokenizeBatch(state, req.Inputs)
	if err != nil {
		return nil, err
	}
	hidden, mask, err := runSession(state, marshalBatch(encodings), 3)
	if err != nil {
		return nil, err
	}

	pooled, err := state.sentenceEmbedding.Apply(hidden, mask)
	if err != nil {
		return nil, wrapPostprocessError(err)
	}

	hiddenSize := pooled.Shape()[1]
	results := make([]SentenceEmbeddingResult, len(encodings))
	for b := range encodings {
		vec := make([]float32, hiddenSize)
		copy(vec, pooled.Data()[b*hiddenSize:(b+1)*hiddenSize])
		results[b] = SentenceEmbeddingResult{Embedding: vec}
	}

	return &Response[SentenceEmbeddingResult]{Results: results, ModelID: state.ModelID, Metadata: req.Metadata}, nil
}

func tokenAt(tokens []string, i int) string {
	if i < len(tokens) {
		return tokens[i]
	}
	return ""
}
