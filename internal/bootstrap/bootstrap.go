// Package bootstrap implements self-executable reconstitution: at process start, open the running
// executable, decode its trailing container, verify every required asset's
// hash, and reconstitute the process-wide inference.State.
package bootstrap

import (
	"fmt"
	"os"

	"github.com/encoderfile/encoderfile/internal/container"
	"github.com/encoderfile/encoderfile/internal/inference"
	"github.com/encoderfile/encoderfile/internal/modelconfig"
	"github.com/encoderfile/encoderfile/internal/onnxsession"
	"github.com/encoderfile/encoderfile/internal/tokenizer"
	"github.com/encoderfile/encoderfile/internal/transform"
)

// Loaded bundles the reconstructed inference state with the open executable
// file handle it borrows assets from; Close releases both.
type Loaded struct {
	State *inference.State
	file  *os.File
}

// Close releases the inference state and the backing executable handle.
func (l *Loaded) Close() error {
	if l.State != nil {
		l.State.Close()
	}
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Load opens the running executable, decodes its container, and builds the
// inference.State for whatever model it carries. Any failure here is fatal
// at startup: container decode errors are never recoverable mid-process.
func Load() (*Loaded, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: locate own executable: %w", err)
	}

	f, err := os.Open(exePath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open own executable: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("bootstrap: stat own executable: %w", err)
	}

	reader, err := container.Open(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("bootstrap: open container: %w", err)
	}

	for _, kind := range []container.AssetKind{container.ModelWeights, container.ModelConfig, container.Tokenizer} {
		if err := reader.VerifyRequired(kind); err != nil {
			f.Close()
			return nil, fmt.Errorf("bootstrap: verify %s: %w", kind, err)
		}
	}

	configBytes, err := reader.ReadAllRequired(container.ModelConfig)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("bootstrap: read model config: %w", err)
	}
	cfg, err := modelconfig.Parse(configBytes)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	if numLabels := cfg.NumLabels(); numLabels > 0 {
		if err := cfg.ValidateLabelCompleteness(numLabels); err != nil {
			f.Close()
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
	}

	tokenizerBytes, err := reader.ReadAllRequired(container.Tokenizer)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("bootstrap: read tokenizer: %w", err)
	}
	tok, err := tokenizer.New(tokenizerBytes, cfg.PadTokenID)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	weightsBytes, err := reader.ReadAllRequired(container.ModelWeights)
	if err != nil {
		tok.Close()
		f.Close()
		return nil, fmt.Errorf("bootstrap: read model weights: %w", err)
	}
	session, err := buildSession(weightsBytes, cfg.ModelType)
	if err != nil {
		tok.Close()
		f.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	var scriptSrc string
	if _, ok := reader.Manifest().GetSlot(container.Transform); ok {
		scriptBytes, err := reader.ReadAllRequired(container.Transform)
		if err != nil {
			session.Close()
			tok.Close()
			f.Close()
			return nil, fmt.Errorf("bootstrap: read transform script: %w", err)
		}
		scriptSrc = string(scriptBytes)
	}

	engine, err := transform.NewEngine(scriptSrc)
	if err != nil {
		session.Close()
		tok.Close()
		f.Close()
		return nil, fmt.Errorf("bootstrap: transform construction: %w", err)
	}

	modelID := reader.Manifest().ModelName
	state := inference.NewState(modelID, cfg.ModelType, session, tok, cfg, engine)

	return &Loaded{State: state, file: f}, nil
}

// buildSession creates the ONNX session, first attempting the
// token_type_ids input and falling back to ids+mask only if the underlying
// graph does not declare it.
func buildSession(weights []byte, kind container.ModelKind) (*onnxsession.Session, error) {
	outputs := outputNamesFor(kind)

	sess, err := onnxsession.New(weights, []string{"input_ids", "attention_mask", "token_type_ids"}, outputs, onnxsession.Options{})
	if err == nil {
		return sess, nil
	}

	sess, err2 := onnxsession.New(weights, []string{"input_ids", "attention_mask"}, outputs, onnxsession.Options{})
	if err2 != nil {
		return nil, fmt.Errorf("create onnx session (with token_type_ids: %v; without: %w)", err, err2)
	}
	return sess, nil
}

func outputNamesFor(kind container.ModelKind) []string {
	switch kind {
	case container.Embedding, container.SentenceEmbedding:
		return []string{"last_hidden_state"}
	default:
		return []string{"logits"}
	}
}
