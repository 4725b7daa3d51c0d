package pose

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/ayusman/posereps/internal/reps"
)

// shifted returns the pose's raw positions moved and scaled, which
// normalization must undo.
func shifted(p Pose, dx, dy, scale float64) []Point2D {
	points := p.Positions()
	for i := range points {
		points[i].X = points[i].X*scale + dx
		points[i].Y = points[i].Y*scale + dy
	}
	return points
}

func TestTrainTemplates(t *testing.T) {
	standing := StandingPose()
	squat := SquatPose()

	samples := []Sample{
		{Label: reps.LabelUp, Keypoints: shifted(standing, 0, 0, 1)},
		{Label: reps.LabelDown, Keypoints: shifted(squat, 10, -5, 1)},
		{Label: reps.LabelUp, Keypoints: shifted(standing, 40, 20, 0.5)},
	}

	templates, err := TrainTemplates(samples)
	if err != nil {
		t.Fatalf("TrainTemplates() error = %v", err)
	}
	if len(templates) != 2 {
		t.Fatalf("expected 2 templates, got %d", len(templates))
	}
	if templates[0].Label != reps.LabelUp || templates[1].Label != reps.LabelDown {
		t.Errorf("labels = %s, %s; want first-seen order", templates[0].Label, templates[1].Label)
	}

	want := standing.Normalize().Positions()
	for i, pt := range templates[0].Keypoints {
		if math.Abs(pt.X-want[i].X) > 1e-9 || math.Abs(pt.Y-want[i].Y) > 1e-9 {
			t.Errorf("keypoint %d = %+v, want %+v", i, pt, want[i])
		}
	}
}

func TestTrainTemplates_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		samples []Sample
	}{
		{"no samples", nil},
		{"missing label", []Sample{{Keypoints: make([]Point2D, NumKeypoints)}}},
		{"wrong keypoint count", []Sample{{Label: reps.LabelUp, Keypoints: make([]Point2D, 5)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := TrainTemplates(tt.samples); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestWriteTemplates_RoundTripsThroughClassifier(t *testing.T) {
	standing := StandingPose()
	squat := SquatPose()

	templates, err := TrainTemplates([]Sample{
		{Label: reps.LabelUp, Keypoints: standing.Positions()},
		{Label: reps.LabelDown, Keypoints: squat.Positions()},
	})
	if err != nil {
		t.Fatalf("TrainTemplates() error = %v", err)
	}

	var buf bytes.Buffer
	if err := WriteTemplates(&buf, templates); err != nil {
		t.Fatalf("WriteTemplates() error = %v", err)
	}

	read, err := ReadTemplates(&buf)
	if err != nil {
		t.Fatalf("ReadTemplates() error = %v", err)
	}
	c, err := NewTemplateClassifier(read)
	if err != nil {
		t.Fatalf("NewTemplateClassifier() error = %v", err)
	}

	predictions, err := c.Classify(&squat)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	top, err := reps.Top(predictions)
	if err != nil {
		t.Fatalf("Top() error = %v", err)
	}
	if top.Label != reps.LabelDown {
		t.Errorf("squat classified as %s", top.Label)
	}
}

func TestReadSamples(t *testing.T) {
	var b strings.Builder
	b.WriteString("samples:\n  - label: Up\n    keypoints:\n")
	for i := 0; i < NumKeypoints; i++ {
		b.WriteString("      - {x: 1, y: 2}\n")
	}

	samples, err := ReadSamples(strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("ReadSamples() error = %v", err)
	}
	if len(samples) != 1 || samples[0].Label != "Up" || len(samples[0].Keypoints) != NumKeypoints {
		t.Errorf("unexpected samples: %+v", samples)
	}
}
