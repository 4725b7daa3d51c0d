package pose

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

// TestHelperProcess is not a real test. It runs as the pose service when
// re-executed by the tests below.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("POSEREPS_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	in := bufio.NewReader(os.Stdin)
	for {
		header := make([]byte, 5)
		if _, err := io.ReadFull(in, header); err != nil {
			return
		}
		payload := make([]byte, binary.BigEndian.Uint32(header[1:]))
		if _, err := io.ReadFull(in, payload); err != nil {
			return
		}

		switch header[0] {
		case 'E':
			fmt.Println(`{"pose":{"score":0.8,"keypoints":[{"part":"leftHip","position":{"x":10,"y":20},"score":0.7}]}}`)
		case 'C':
			var p jsonPose
			if err := json.Unmarshal(payload, &p); err != nil || len(p.Keypoints) != NumKeypoints {
				fmt.Println(`{"error":"bad pose"}`)
				continue
			}
			fmt.Println(`{"predictions":[{"className":"Up","probability":0.25},{"className":"Down","probability":0.75}]}`)
		default:
			fmt.Println(`{"error":"unknown op"}`)
		}
	}
}

func newHelperModel(t *testing.T) *ServiceModel {
	t.Helper()
	t.Setenv("POSEREPS_WANT_HELPER_PROCESS", "1")

	dir := writeModelDir(t, `{"modelName": "helper-model", "labels": ["Up", "Down"]}`)
	m, err := NewServiceModel(ServiceConfig{
		Command:     []string{os.Args[0], "-test.run=TestHelperProcess", "--"},
		ModelDir:    dir,
		IdleTimeout: time.Minute,
	})
	if err != nil {
		t.Fatalf("NewServiceModel() error = %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestServiceModel_Classify(t *testing.T) {
	m := newHelperModel(t)

	p := SquatPose()
	predictions, err := m.Classify(&p)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	if len(predictions) != 2 {
		t.Fatalf("expected 2 predictions, got %d", len(predictions))
	}
	if predictions[1].Label != "Down" || predictions[1].Probability != 0.75 {
		t.Errorf("unexpected prediction %+v", predictions[1])
	}

	t.Run("reuses the running process", func(t *testing.T) {
		if _, err := m.Classify(&p); err != nil {
			t.Fatalf("second Classify() error = %v", err)
		}
	})
}

func TestServiceModel_Estimate(t *testing.T) {
	m := newHelperModel(t)

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	p, err := m.Estimate(&frame)
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if p == nil {
		t.Fatal("expected a pose")
	}
	if p.Keypoints[LeftHip].Position != (Point2D{X: 10, Y: 20}) {
		t.Errorf("expected leftHip at (10,20), got %+v", p.Keypoints[LeftHip].Position)
	}
	if p.Score != 0.8 {
		t.Errorf("expected score 0.8, got %f", p.Score)
	}
}

func TestServiceModel_Metadata(t *testing.T) {
	m := newHelperModel(t)

	if m.Name() != "helper-model" {
		t.Errorf("expected name helper-model, got %q", m.Name())
	}
	if labels := m.Labels(); len(labels) != 2 {
		t.Errorf("expected 2 labels, got %v", labels)
	}
}

func TestNewServiceModel_Errors(t *testing.T) {
	t.Run("no command", func(t *testing.T) {
		if _, err := NewServiceModel(ServiceConfig{ModelDir: t.TempDir()}); !errors.Is(err, ErrNoCommand) {
			t.Errorf("expected ErrNoCommand, got %v", err)
		}
	})

	t.Run("missing model", func(t *testing.T) {
		_, err := NewServiceModel(ServiceConfig{Command: []string{"true"}, ModelDir: t.TempDir()})
		if err == nil {
			t.Error("expected error for missing model files")
		}
	})

	t.Run("close before start", func(t *testing.T) {
		dir := writeModelDir(t, `{"labels": ["Up", "Down"]}`)
		m, err := NewServiceModel(ServiceConfig{Command: []string{"true"}, ModelDir: dir})
		if err != nil {
			t.Fatalf("NewServiceModel() error = %v", err)
		}
		if err := m.Close(); err != nil {
			t.Errorf("expected Close to return nil, got %v", err)
		}
	})
}

func TestMockModel(t *testing.T) {
	t.Run("implements Model interface", func(t *testing.T) {
		var _ Model = (*MockModel)(nil)
		var _ Model = (*ServiceModel)(nil)
	})

	t.Run("replays queued predictions and repeats the last", func(t *testing.T) {
		m := NewMockModel("Up", "Down")
		m.QueuePredictions(Predictions("Down", 0.9), Predictions("Up", 0.8))

		first, _ := m.Classify(nil)
		second, _ := m.Classify(nil)
		third, _ := m.Classify(nil)

		if first[0].Label != "Down" || second[0].Label != "Up" || third[0].Label != "Up" {
			t.Errorf("unexpected sequence %v %v %v", first, second, third)
		}
		if m.Calls() != 3 {
			t.Errorf("expected 3 calls, got %d", m.Calls())
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		m := NewMockModel()
		want := errors.New("classifier exploded")
		m.SetClassifyError(want)

		if _, err := m.Classify(nil); err != want {
			t.Errorf("expected %v, got %v", want, err)
		}
	})

	t.Run("Close marks closed", func(t *testing.T) {
		m := NewMockModel()
		m.Close()
		if !m.Closed() {
			t.Error("expected mock to be closed")
		}
	})
}

func TestCompose(t *testing.T) {
	mock := NewMockModel("Up", "Down")
	standing := StandingPose()
	tc, err := NewTemplateClassifier([]Template{TemplateFromPose("Up", &standing)})
	if err != nil {
		t.Fatalf("NewTemplateClassifier() error = %v", err)
	}

	m := Compose("composed", mock, tc, mock)

	if m.Name() != "composed" {
		t.Errorf("expected name composed, got %q", m.Name())
	}
	if labels := m.Labels(); len(labels) != 1 || labels[0] != "Up" {
		t.Errorf("expected classifier labels, got %v", labels)
	}
	if err := m.Close(); err != nil || !mock.Closed() {
		t.Errorf("expected Close to reach the closer, err=%v", err)
	}
}
