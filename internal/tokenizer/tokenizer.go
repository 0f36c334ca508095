// Package tokenizer wraps daulet/tokenizers into the batch-encode shape the
// inference pipeline needs: ids, attention mask, type ids, offsets, and a
// special-tokens mask, uniformly padded per batch.
package tokenizer

import (
	"fmt"

	hf "github.com/daulet/tokenizers"
)

// Encoding is one batch item's tokenization, padded to the batch's shared
// length S.
type Encoding struct {
	IDs               []int64
	AttentionMask     []int64
	TypeIDs           []int64
	SpecialTokensMask []int64
	Tokens            []string
	Offsets           [][2]int
}

// Service wraps one loaded tokenizer for the lifetime of the process.
type Service struct {
	tk         *hf.Tokenizer
	padTokenID uint32
}

// New loads a tokenizer.json blob, padding future batches with padTokenID.
func New(raw []byte, padTokenID uint32) (*Service, error) {
	tk, err := hf.FromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: load: %w", err)
	}
	return &Service{tk: tk, padTokenID: padTokenID}, nil
}

// Close releases the underlying tokenizer.
func (s *Service) Close() { s.tk.Close() }

// EncodeBatch tokenizes every text, padding every encoding to the batch's
// longest sequence length. An empty batch or any empty string is rejected —
// internal/inference maps this into an InputError.
func (s *Service) EncodeBatch(texts []string) ([]Encoding, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("tokenizer: batch must contain at least one input")
	}

	raw := make([]hf.Encoding, len(texts))
	maxLen := 0
	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("tokenizer: batch item %d is an empty string", i)
		}
		raw[i] = s.tk.EncodeWithOptions(text, true,
			hf.WithReturnAttentionMask(),
			hf.WithReturnTypeIDs(),
			hf.WithReturnSpecialTokensMask(),
			hf.WithReturnOffsets(),
			hf.WithReturnTokens(),
		)
		if n := len(raw[i].IDs); n > maxLen {
			maxLen = n
		}
	}

	out := make([]Encoding, len(texts))
	for i, enc := range raw {
		out[i] = s.pad(enc, maxLen)
	}
	return out, nil
}

func (s *Service) pad(enc hf.Encoding, length int) Encoding {
	n := len(enc.IDs)
	e := Encoding{
		IDs:               make([]int64, length),
		AttentionMask:     make([]int64, length),
		TypeIDs:           make([]int64, length),
		SpecialTokensMask: make([]int64, length),
		Tokens:            make([]string, length),
		Offsets:           make([][2]int, length),
	}
	for i := 0; i < length; i++ {
		if i < n {
			e.IDs[i] = int64(enc.IDs[i])
			e.AttentionMask[i] = int64(valOr(enc.AttentionMask, i, 1))
			e.TypeIDs[i] = int64(valOr(enc.TypeIDs, i, 0))
			e.SpecialTokensMask[i] = int64(valOr(enc.SpecialTokensMask, i, 0))
			if i < len(enc.Tokens) {
				e.Tokens[i] = enc.Tokens[i]
			}
			if i < len(enc.Offsets) {
				e.Offsets[i] = [2]int{int(enc.Offsets[i][0]), int(enc.Offsets[i][1])}
			}
			continue
		}
		// Padding position: attends to nothing, carries the pad id, and is
		// always treated as a special token so response-shaping skips it.
		e.IDs[i] = int64(s.padTokenID)
		e.SpecialTokensMask[i] = 1
	}
	return e
}

func valOr(arr []uint32, i int, def uint32) uint32 {
	if i < len(arr) {
		return arr[i]
	}
	return def
}
