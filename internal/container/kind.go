// Package container implements the encoderfile binary format: a fixed
// trailing footer, a length-delimited manifest of asset slots, and the
// writer/reader pair that seals and reopens a container built on top of an
// arbitrary base executable.
package container

import "fmt"

// AssetKind is the closed, ordered enumeration of artifact roles an
// encoderfile can carry. Declaration order is a format invariant: it is the
// canonical sort order for manifest slots and must only ever be extended by
// appending a new value after Tokenizer.
type AssetKind uint8

const (
	ModelWeights AssetKind = iota
	Transform
	ModelConfig
	Tokenizer

	numAssetKinds = int(Tokenizer) + 1
)

// CanonicalOrder lists every AssetKind in its canonical serialization order.
func CanonicalOrder() []AssetKind {
	return []AssetKind{ModelWeights, Transform, ModelConfig, Tokenizer}
}

func (k AssetKind) String() string {
	switch k {
	case ModelWeights:
		return "ModelWeights"
	case Transform:
		return "Transform"
	case ModelConfig:
		return "ModelConfig"
	case Tokenizer:
		return "Tokenizer"
	default:
		return fmt.Sprintf("AssetKind(%d)", uint8(k))
	}
}

func (k AssetKind) valid() bool {
	return int(k) < numAssetKinds
}

// ModelKind is the closed enumeration of model architectures the runtime
// dispatch layer knows how to drive. It is distinct from AssetKind: it
// discriminates the *inference pipeline*, not the manifest's asset slots.
type ModelKind uint8

const (
	Embedding ModelKind = iota
	SequenceClassification
	TokenClassification
	SentenceEmbedding
)

func (m ModelKind) String() string {
	switch m {
	case Embedding:
		return "embedding"
	case SequenceClassification:
		return "sequence-classification"
	case TokenClassification:
		return "token-classification"
	case SentenceEmbedding:
		return "sentence-embedding"
	default:
		return fmt.Sprintf("ModelKind(%d)", uint8(m))
	}
}

// ParseModelKind maps the wire/JSON discriminator string to a ModelKind.
func ParseModelKind(s string) (ModelKind, error) {
	switch s {
	case "embedding":
		return Embedding, nil
	case "sequence-classification":
		return SequenceClassification, nil
	case "token-classification":
		return TokenClassification, nil
	case "sentence-embedding":
		return SentenceEmbedding, nil
	default:
		return 0, fmt.Errorf("unknown model type %q", s)
	}
}

// Backend is the closed enumeration of compute backends a manifest may
// declare. The core treats the ONNX engine as a black box; this
// discriminator exists so a future backend can be added without breaking the
// wire format, per the declaration-order-is-append-only invariant.
type Backend uint8

const (
	BackendONNX Backend = iota
)

func (b Backend) String() string {
	switch b {
	case BackendONNX:
		return "onnx"
	default:
		return fmt.Sprintf("Backend(%d)", uint8(b))
	}
}
