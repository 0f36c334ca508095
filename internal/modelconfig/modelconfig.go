// Package modelconfig parses the ModelConfig JSON asset: model type, padding
// token id, and the label maps classification kinds use to turn a predicted
// index into a human-readable label.
package modelconfig

import (
	"encoding/json"
	"fmt"

	"github.com/encoderfile/encoderfile/internal/container"
)

// Config is the decoded ModelConfig asset.
type Config struct {
	ModelType  container.ModelKind `json:"-"`
	PadTokenID uint32              `json:"pad_token_id"`
	Id2Label   map[uint32]string   `json:"id2label,omitempty"`
	Label2Id   map[string]uint32   `json:"label2id,omitempty"`
	NumLabelsField *int            `json:"num_labels,omitempty"`

	rawModelType string
}

// wireConfig mirrors the on-disk JSON shape; model_type arrives as a string
// and is resolved into a container.ModelKind after unmarshaling so invalid
// values produce a single consistent error path.
type wireConfig struct {
	ModelType  string            `json:"model_type"`
	PadTokenID uint32            `json:"pad_token_id"`
	Id2Label   map[string]string `json:"id2label,omitempty"`
	Label2Id   map[string]uint32 `json:"label2id,omitempty"`
	NumLabels  *int              `json:"num_labels,omitempty"`
}

// Parse decodes raw JSON into a Config, resolving model_type and converting
// id2label's string keys (JSON object keys are always strings) into u32.
func Parse(raw []byte) (*Config, error) {
	var w wireConfig
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("modelconfig: invalid json: %w", err)
	}

	kind, err := container.ParseModelKind(w.ModelType)
	if err != nil {
		return nil, fmt.Errorf("modelconfig: %w", err)
	}

	cfg := &Config{
		ModelType:      kind,
		PadTokenID:     w.PadTokenID,
		Label2Id:       w.Label2Id,
		NumLabelsField: w.NumLabels,
		rawModelType:   w.ModelType,
	}

	if len(w.Id2Label) > 0 {
		cfg.Id2Label = make(map[uint32]string, len(w.Id2Label))
		for k, v := range w.Id2Label {
			var idx uint32
			if _, err := fmt.Sscanf(k, "%d", &idx); err != nil {
				return nil, fmt.Errorf("modelconfig: id2label key %q is not a non-negative integer", k)
			}
			cfg.Id2Label[idx] = v
		}
	}

	return cfg, nil
}

// NumLabels returns the explicit num_labels if set, else the size of
// whichever label map is present, else 0.
func (c *Config) NumLabels() int {
	if c.NumLabelsField != nil {
		return *c.NumLabelsField
	}
	if len(c.Id2Label) > 0 {
		return len(c.Id2Label)
	}
	if len(c.Label2Id) > 0 {
		return len(c.Label2Id)
	}
	return 0
}

// Label looks up the label for a predicted class index. ok is false when
// no id2label map was provided, or the index has no entry.
func (c *Config) Label(index int) (string, bool) {
	if c.Id2Label == nil {
		return "", false
	}
	label, ok := c.Id2Label[uint32(index)]
	return label, ok
}

// ValidateLabelCompleteness fails if id2label is present but does not cover
// every index in [0, numLabels). Bootstrap calls this once at startup so a
// missing label can never surface as a request-time failure.
func (c *Config) ValidateLabelCompleteness(numLabels int) error {
	if c.Id2Label == nil {
		return nil
	}
	for i := 0; i < numLabels; i++ {
		if _, ok := c.Id2Label[uint32(i)]; !ok {
			return fmt.Errorf("modelconfig: id2label is missing an entry for class index %d", i)
		}
	}
	return nil
}
