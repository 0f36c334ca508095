// Package inference implements the per-model-kind inference pipeline over
// the process-wide state container: the locked ONNX session,
// tokenizer service, model config, and transform engine, reconstituted at
// startup from the decoded container.
package inference

import (
	"github.com/encoderfile/encoderfile/internal/container"
	"github.com/encoderfile/encoderfile/internal/modelconfig"
	"github.com/encoderfile/encoderfile/internal/onnxsession"
	"github.com/encoderfile/encoderfile/internal/tokenizer"
	"github.com/encoderfile/encoderfile/internal/transform"
)

// State is the process-wide container bootstrap builds once at startup and every
// transport handler shares for the life of the process. Exactly one of the
// four transform fields is populated, selected by Kind.
type State struct {
	ModelID string
	Kind    container.ModelKind

	Session   *onnxsession.Session
	Tokenizer *tokenizer.Service
	Config    *modelconfig.Config
	Engine    *transform.Engine

	embedding               *transform.Embedding
	sequenceClassification  *transform.SequenceClassification
	tokenClassification     *transform.TokenClassification
	sentenceEmbedding       *transform.SentenceEmbedding
}

// NewState builds a State for kind, wiring the one transform wrapper that
// kind's pipeline function needs.
func NewState(modelID string, kind container.ModelKind, session *onnxsession.Session, tok *tokenizer.Service, cfg *modelconfig.Config, engine *transform.Engine) *State {
	s := &State{
		ModelID:   modelID,
		Kind:      kind,
		Session:   session,
		Tokenizer: tok,
		Config:    cfg,
		Engine:    engine,
	}
	switch kind {
	case container.Embedding:
		s.embedding = transform.NewEmbedding(engine)
	case container.SequenceClassification:
		s.sequenceClassification = transform.NewSequenceClassification(engine)
	case container.TokenClassification:
		s.tokenClassification = transform.NewTokenClassification(engine)
	case container.SentenceEmbedding:
		s.sentenceEmbedding = transform.NewSentenceEmbedding(engine)
	}
	return s
}

// Close releases every owned resource: the ONNX session, the tokenizer, and
// the scripting engine.
func (s *State) Close() {
	if s.Session != nil {
		s.Session.Close()
	}
	if s.Tokenizer != nil {
		s.Tokenizer.Close()
	}
	if s.Engine != nil {
		s.Engine.Close()
	}
}
