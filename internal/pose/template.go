package pose

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/posereps/internal/reps"
)

// Template is a reference pose for one label, stored normalized.
type Template struct {
	Label     string    `yaml:"label"`
	Keypoints []Point2D `yaml:"keypoints"`
}

// TemplateClassifier classifies poses by distance to labelled reference poses.
// A label may have several templates; its closest one decides its score.
type TemplateClassifier struct {
	templates []Template
	labels    []string
}

// NewTemplateClassifier creates a classifier from normalized templates.
func NewTemplateClassifier(templates []Template) (*TemplateClassifier, error) {
	if len(templates) == 0 {
		return nil, errors.New("no pose templates")
	}

	c := &TemplateClassifier{}
	seen := make(map[string]bool)
	for i, t := range templates {
		if t.Label == "" {
			return nil, fmt.Errorf("template %d has no label", i)
		}
		if len(t.Keypoints) != NumKeypoints {
			return nil, fmt.Errorf("template %d (%s) has %d keypoints, expected %d", i, t.Label, len(t.Keypoints), NumKeypoints)
		}
		if !seen[t.Label] {
			seen[t.Label] = true
			c.labels = append(c.labels, t.Label)
		}
		c.templates = append(c.templates, t)
	}

	return c, nil
}

// ReadTemplates decodes a YAML template file. Template keypoints are taken as
// raw image positions and normalized on load.
func ReadTemplates(r io.Reader) ([]Template, error) {
	var doc struct {
		Templates []Template `yaml:"templates"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}

	for i, t := range doc.Templates {
		if len(t.Keypoints) != NumKeypoints {
			continue
		}
		var p Pose
		for j, pt := range t.Keypoints {
			p.Keypoints[j].Position = pt
		}
		doc.Templates[i].Keypoints = p.Normalize().Positions()
	}

	return doc.Templates, nil
}

// LoadTemplateClassifier reads a template file from disk.
func LoadTemplateClassifier(path string) (*TemplateClassifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	templates, err := ReadTemplates(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewTemplateClassifier(templates)
}

// TemplateFromPose builds a normalized template from an example pose.
func TemplateFromPose(label string, p *Pose) Template {
	return Template{Label: label, Keypoints: p.Normalize().Positions()}
}

// Labels returns the template labels in first-seen order.
func (c *TemplateClassifier) Labels() []string {
	return append([]string(nil), c.labels...)
}

// Classify scores every label as 1/(1+d), d being the distance to the label's
// closest template, and normalizes the scores so they sum to 1.
func (c *TemplateClassifier) Classify(p *Pose) ([]reps.Prediction, error) {
	if p == nil {
		return nil, errors.New("nil pose")
	}

	input := p.Normalize().Positions()

	best := make(map[string]float64, len(c.labels))
	for _, t := range c.templates {
		score := 1.0 / (1.0 + euclideanDistance(input, t.Keypoints))
		if score > best[t.Label] {
			best[t.Label] = score
		}
	}

	var total float64
	for _, label := range c.labels {
		total += best[label]
	}

	predictions := make([]reps.Prediction, len(c.labels))
	for i, label := range c.labels {
		predictions[i] = reps.Prediction{Label: label, Probability: best[label] / total}
	}
	return predictions, nil
}

// euclideanDistance sums the distances between corresponding points.
func euclideanDistance(a, b []Point2D) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var total float64
	for i := 0; i < n; i++ {
		dx := a[i].X - b[i].X
		dy := a[i].Y - b[i].Y
		total += math.Sqrt(dx*dx + dy*dy)
	}
	return total
}
