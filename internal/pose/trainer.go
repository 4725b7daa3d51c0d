package pose

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Sample is one example pose for a label, in raw image coordinates.
type Sample struct {
	Label     string    `yaml:"label"`
	Keypoints []Point2D `yaml:"keypoints"`
}

// ReadSamples decodes a YAML document with a top-level samples list.
func ReadSamples(r io.Reader) ([]Sample, error) {
	var doc struct {
		Samples []Sample `yaml:"samples"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}
	return doc.Samples, nil
}

// TrainTemplates averages the normalized samples of each label into a single
// template. Templates come out in the order labels first appear.
func TrainTemplates(samples []Sample) ([]Template, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples provided")
	}

	var labels []string
	sums := make(map[string][]Point2D)
	counts := make(map[string]int)

	for i, s := range samples {
		if s.Label == "" {
			return nil, fmt.Errorf("sample %d has no label", i)
		}
		if len(s.Keypoints) != NumKeypoints {
			return nil, fmt.Errorf("sample %d has %d keypoints, expected %d", i, len(s.Keypoints), NumKeypoints)
		}

		var p Pose
		for j, pt := range s.Keypoints {
			p.Keypoints[j].Position = pt
		}

		sum, ok := sums[s.Label]
		if !ok {
			labels = append(labels, s.Label)
			sum = make([]Point2D, NumKeypoints)
			sums[s.Label] = sum
		}
		for j, pt := range p.Normalize().Positions() {
			sum[j].X += pt.X
			sum[j].Y += pt.Y
		}
		counts[s.Label]++
	}

	templates := make([]Template, 0, len(labels))
	for _, label := range labels {
		n := float64(counts[label])
		averaged := make([]Point2D, NumKeypoints)
		for j, pt := range sums[label] {
			averaged[j] = Point2D{X: pt.X / n, Y: pt.Y / n}
		}
		templates = append(templates, Template{Label: label, Keypoints: averaged})
	}
	return templates, nil
}

// WriteTemplates encodes templates in the format ReadTemplates accepts.
func WriteTemplates(w io.Writer, templates []Template) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()

	doc := struct {
		Templates []Template `yaml:"templates"`
	}{Templates: templates}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode templates: %w", err)
	}
	return nil
}
