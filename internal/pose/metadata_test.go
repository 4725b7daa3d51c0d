package pose

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeModelDir(t *testing.T, metadata string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "my-pose-model")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create model dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ModelFile), []byte(`{"modelTopology":{}}`), 0644); err != nil {
		t.Fatalf("failed to write model file: %v", err)
	}
	if metadata != "" {
		if err := os.WriteFile(filepath.Join(dir, MetadataFile), []byte(metadata), 0644); err != nil {
			t.Fatalf("failed to write metadata file: %v", err)
		}
	}
	return dir
}

func TestLoadMetadata(t *testing.T) {
	t.Run("parses Teachable Machine metadata", func(t *testing.T) {
		dir := writeModelDir(t, `{
			"tfjsVersion": "1.3.1",
			"packageName": "@teachablemachine/pose",
			"packageVersion": "0.8.4",
			"modelName": "squat-model",
			"labels": ["Up", "Down"],
			"modelSettings": {"posenet": {"architecture": "MobileNetV1", "outputStride": 16, "inputResolution": 257, "multiplier": 0.75}}
		}`)

		md, err := LoadMetadata(dir)
		if err != nil {
			t.Fatalf("LoadMetadata() error = %v", err)
		}
		if md.ModelName != "squat-model" {
			t.Errorf("expected model name squat-model, got %q", md.ModelName)
		}
		if len(md.Labels) != 2 || md.Labels[0] != "Up" || md.Labels[1] != "Down" {
			t.Errorf("unexpected labels %v", md.Labels)
		}
		if md.ModelSettings == nil || md.ModelSettings.PoseNet.InputResolution != 257 {
			t.Errorf("expected posenet settings to be parsed, got %+v", md.ModelSettings)
		}
	})

	t.Run("falls back to directory name", func(t *testing.T) {
		dir := writeModelDir(t, `{"labels": ["Up", "Down"]}`)

		md, err := LoadMetadata(dir)
		if err != nil {
			t.Fatalf("LoadMetadata() error = %v", err)
		}
		if md.ModelName != "my-pose-model" {
			t.Errorf("expected model name my-pose-model, got %q", md.ModelName)
		}
	})

	t.Run("requires labels", func(t *testing.T) {
		dir := writeModelDir(t, `{"modelName": "empty"}`)

		if _, err := LoadMetadata(dir); !errors.Is(err, ErrNoLabels) {
			t.Errorf("expected ErrNoLabels, got %v", err)
		}
	})

	t.Run("missing metadata file", func(t *testing.T) {
		dir := writeModelDir(t, "")

		if _, err := LoadMetadata(dir); err == nil {
			t.Error("expected error for missing metadata.json")
		}
	})

	t.Run("missing model file", func(t *testing.T) {
		if _, err := LoadMetadata(t.TempDir()); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected not-exist error, got %v", err)
		}
	})
}
