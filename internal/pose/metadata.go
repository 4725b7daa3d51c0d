package pose

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Model file names expected in a model directory.
const (
	ModelFile    = "model.json"
	MetadataFile = "metadata.json"
)

// ErrNoLabels is returned for model metadata without any labels.
var ErrNoLabels = errors.New("model metadata has no labels")

// Metadata is the metadata.json written next to an exported Teachable Machine
// pose model.
type Metadata struct {
	ModelName      string         `json:"modelName"`
	Labels         []string       `json:"labels"`
	PackageName    string         `json:"packageName"`
	PackageVersion string         `json:"packageVersion"`
	TFJSVersion    string         `json:"tfjsVersion"`
	ModelSettings  *ModelSettings `json:"modelSettings,omitempty"`
}

// ModelSettings holds the PoseNet settings the model was trained with.
type ModelSettings struct {
	PoseNet struct {
		Architecture    string  `json:"architecture"`
		OutputStride    int     `json:"outputStride"`
		InputResolution int     `json:"inputResolution"`
		Multiplier      float64 `json:"multiplier"`
	} `json:"posenet"`
}

// LoadMetadata reads metadata.json from a model directory and checks that the
// model file sits beside it.
func LoadMetadata(modelDir string) (*Metadata, error) {
	if _, err := os.Stat(filepath.Join(modelDir, ModelFile)); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(modelDir, MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}

	if len(md.Labels) == 0 {
		return nil, ErrNoLabels
	}

	if md.ModelName == "" {
		md.ModelName = filepath.Base(modelDir)
	}

	return &md, nil
}
