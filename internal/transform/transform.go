// Package transform implements the per-model-kind Postprocess binding: each
// model kind wraps a shared scripting Engine, applies the user's Postprocess
// function (if any) to the kind's tensor shape, and enforces the kind's
// output shape contract.
package transform

import (
	"fmt"
	"sync"

	"github.com/encoderfile/encoderfile/internal/script"
	"github.com/encoderfile/encoderfile/internal/tensor"
)

// ShapeError reports a Postprocess result whose shape violates the model
// kind's contract. This is always an Internal failure, never a LuaError:
// the script ran to completion and returned a tensor, just the wrong one.
type ShapeError struct {
	Kind string
	Got  []int
	Want string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s postprocess: output shape %v does not match expected %s", e.Kind, e.Got, e.Want)
}

// Engine owns one scripting sandbox and serializes access to it: gopher-lua
// state is not safe for concurrent use, so every Postprocess invocation
// across every concurrent request funnels through this one lock.
type Engine struct {
	mu  sync.Mutex
	sb  *script.Sandbox
	has bool
}

// NewEngine loads src (which may be empty) into a fresh sandbox.
func NewEngine(src string) (*Engine, error) {
	sb, err := script.New(src)
	if err != nil {
		return nil, err
	}
	return &Engine{sb: sb, has: sb.HasFunction("Postprocess")}, nil
}

// Close releases the underlying sandbox.
func (e *Engine) Close() { e.sb.Close() }

// HasPostprocess reports whether the loaded script defined a Postprocess
// function.
func (e *Engine) HasPostprocess() bool { return e.has }

func (e *Engine) call(arg *tensor.Tensor) (*tensor.Tensor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sb.Call("Postprocess", arg)
}

func (e *Engine) callWithMask(arg, mask *tensor.Tensor) (*tensor.Tensor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sb.CallWithMask("Postprocess", arg, mask)
}

// Embedding binds Postprocess for the Embedding model kind: input [B, S, H],
// output [B, S, *].
type Embedding struct{ engine *Engine }

// NewEmbedding constructs the Embedding transform. engine's lifetime is
// owned by the caller.
func NewEmbedding(engine *Engine) *Embedding { return &Embedding{engine: engine} }

// Apply runs Postprocess over hidden, or returns it unchanged if the script
// defined none.
func (x *Embedding) Apply(hidden *tensor.Tensor) (*tensor.Tensor, error) {
	if hidden.Ndim() != 3 {
		return nil, fmt.Errorf("embedding postprocess: expected rank-3 input [B,S,H], got rank %d", hidden.Ndim())
	}
	if !x.engine.HasPostprocess() {
		return hidden, nil
	}
	in := hidden.Shape()
	out, err := x.engine.call(hidden)
	if err != nil {
		return nil, err
	}
	got := out.Shape()
	if len(got) != 3 || got[0] != in[0] || got[1] != in[1] {
		return nil, &ShapeError{Kind: "embedding", Got: got, Want: fmt.Sprintf("[%d, %d, *]", in[0], in[1])}
	}
	return out, nil
}

// SequenceClassification binds Postprocess for SequenceClassification: input [B, L],
// output [B, L].
type SequenceClassification struct{ engine *Engine }

func NewSequenceClassification(engine *Engine) *SequenceClassification {
	return &SequenceClassification{engine: engine}
}

func (x *SequenceClassification) Apply(logits *tensor.Tensor) (*tensor.Tensor, error) {
	if logits.Ndim() != 2 {
		return nil, fmt.Errorf("sequence-classification postprocess: expected rank-2 input [B,L], got rank %d", logits.Ndim())
	}
	if !x.engine.HasPostprocess() {
		return logits, nil
	}
	in := logits.Shape()
	out, err := x.engine.call(logits)
	if err != nil {
		return nil, err
	}
	got := out.Shape()
	if len(got) != 2 || got[0] != in[0] || got[1] != in[1] {
		return nil, &ShapeError{Kind: "sequence-classification", Got: got, Want: fmt.Sprintf("[%d, %d]", in[0], in[1])}
	}
	return out, nil
}

// TokenClassification binds Postprocess for TokenClassification: input [B, S, L],
// output [B, S, L].
type TokenClassification struct{ engine *Engine }

func NewTokenClassification(engine *Engine) *TokenClassification {
	return &TokenClassification{engine: engine}
}

func (x *TokenClassification) Apply(logits *tensor.Tensor) (*tensor.Tensor, error) {
	if logits.Ndim() != 3 {
		return nil, fmt.Errorf("token-classification postprocess: expected rank-3 input [B,S,L], got rank %d", logits.Ndim())
	}
	if !x.engine.HasPostprocess() {
		return logits, nil
	}
	in := logits.Shape()
	out, err := x.engine.call(logits)
	if err != nil {
		return nil, err
	}
	got := out.Shape()
	if len(got) != 3 || got[0] != in[0] || got[1] != in[1] || got[2] != in[2] {
		return nil, &ShapeError{Kind: "token-classification", Got: got, Want: fmt.Sprintf("%v", in)}
	}
	return out, nil
}

// SentenceEmbedding binds Postprocess for the SentenceEmbedding model kind:
// input [B, S, H] plus a float mask [B, S], output [B, *]. With no
// Postprocess, it falls back to mean_pool(mask) rather than the identity.
type SentenceEmbedding struct{ engine *Engine }

func NewSentenceEmbedding(engine *Engine) *SentenceEmbedding {
	return &SentenceEmbedding{engine: engine}
}

func (x *SentenceEmbedding) Apply(hidden, mask *tensor.Tensor) (*tensor.Tensor, error) {
	if hidden.Ndim() != 3 {
		return nil, fmt.Errorf("sentence-embedding postprocess: expected rank-3 input [B,S,H], got rank %d", hidden.Ndim())
	}
	in := hidden.Shape()
	if !x.engine.HasPostprocess() {
		return hidden.MeanPool(mask)
	}
	out, err := x.engine.callWithMask(hidden, mask)
	if err != nil {
		return nil, err
	}
	got := out.Shape()
	if len(got) != 2 || got[0] != in[0] {
		return nil, &ShapeError{Kind: "sentence-embedding", Got: got, Want: fmt.Sprintf("[%d, *]", in[0])}
	}
	return out, nil
}
